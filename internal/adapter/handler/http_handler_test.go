package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/core/service"
	"github.com/rl1809/parts-ledger/internal/port"
)

type fakeStore struct {
	mu         sync.Mutex
	components map[string]*domain.Component
	projects   map[string]*domain.Project
	records    []domain.TransactionRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		components: make(map[string]*domain.Component),
		projects:   make(map[string]*domain.Project),
	}
}

func (f *fakeStore) GetComponent(ctx context.Context, id string) (*domain.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.components[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *c
	cp.Locations = append([]domain.LocationStock(nil), c.Locations...)
	return &cp, nil
}

func (f *fakeStore) ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range writes {
		c, ok := f.components[w.ComponentID]
		if !ok {
			return port.ErrNotFound
		}
		entry, ok := c.StockAt(w.LocationID)
		if !ok {
			return port.ErrNotFound
		}
		if entry.Quantity != w.Expected {
			return port.ErrConflict
		}
	}
	for _, w := range writes {
		c := f.components[w.ComponentID]
		for i := range c.Locations {
			if c.Locations[i].LocationID == w.LocationID {
				c.Locations[i].Quantity = w.New
			}
		}
	}
	return nil
}

func (f *fakeStore) CreateComponent(ctx context.Context, c domain.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.components[c.ID]; exists {
		return port.ErrConflict
	}
	cp := c
	f.components[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Append(ctx context.Context, rec domain.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) List(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TransactionRecord, 0, limit)
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.records[i])
	}
	return out, nil
}

func newTestHandler(store *fakeStore) *HTTPHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPHandler(
		service.NewSettlementService(store, store, store, nil, logger),
		service.NewCirculationService(store, store, nil, logger),
		service.NewCatalogService(store, store, store, nil, logger),
		service.NewTransactionService(store),
		logger,
	)
}

func seedStore(store *fakeStore, stock int) {
	store.components["comp-x"] = &domain.Component{
		ID: "comp-x", Name: "Resistor 10k", Category: "Resistor",
		Locations: []domain.LocationStock{{LocationID: "loc-l", LocationName: "Shelf A", Quantity: stock}},
	}
	store.projects["proj-1"] = &domain.Project{
		ID: "proj-1", Name: "Amplifier",
		BOM: []domain.BOMLine{{ComponentID: "comp-x", LocationID: "loc-l", UnitQuantity: 2}},
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestCheckSettlement_Satisfied(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 10)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	require.Equal(t, http.StatusOK, w.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "checked", resp.Status)
	assert.True(t, resp.AllSatisfied)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 6, resp.Lines[0].Required)
	assert.Equal(t, 10, resp.Lines[0].Available)
	assert.Equal(t, 0, resp.Lines[0].Shortfall)
}

func TestCheckSettlement_AwaitingOverride(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	require.Equal(t, http.StatusOK, w.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting_override", resp.Status)
	assert.False(t, resp.AllSatisfied)
	assert.Equal(t, 3, resp.Lines[0].Shortfall)
}

func TestCheckSettlement_BadRequests(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 10)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "", Multiplier: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "ghost", Multiplier: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommitSettlement_RoundTrip(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 10)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	require.Equal(t, http.StatusOK, w.Code)
	var check checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))

	w = postJSON(t, h.CommitSettlement, commitRequest{
		ProjectID:   check.ProjectID,
		ProjectName: check.ProjectName,
		Multiplier:  check.Multiplier,
		Lines:       check.Lines,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp commitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "committed", resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Contains(t, resp.Details, "- Resistor 10k: Used 6 from Shelf A")

	entry, _ := store.components["comp-x"].StockAt("loc-l")
	assert.Equal(t, 4, entry.Quantity)
}

func TestCommitSettlement_InsufficientStock(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	var check checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))

	w = postJSON(t, h.CommitSettlement, commitRequest{
		ProjectID: check.ProjectID, ProjectName: check.ProjectName,
		Multiplier: check.Multiplier, Lines: check.Lines,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_stock", resp.Code)
}

func TestCommitSettlement_ForgedSatisfiedLineRejected(t *testing.T) {
	// the echoed line claims satisfaction but its own quantities say otherwise;
	// accepting it would write 3 - 6 = -3 into the ledger
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.CommitSettlement, commitRequest{
		ProjectID: "proj-1", ProjectName: "Amplifier", Multiplier: 3,
		Lines: []settlementLine{
			{
				ComponentID: "comp-x", ComponentName: "Resistor 10k",
				LocationID: "loc-l", LocationName: "Shelf A",
				Required: 6, Available: 3, Satisfied: true,
			},
		},
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_stock", resp.Code)

	entry, _ := store.components["comp-x"].StockAt("loc-l")
	assert.Equal(t, 3, entry.Quantity, "ledger untouched and never negative")
	assert.Empty(t, store.records)
}

func TestCommitSettlement_Forced(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	var check checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))

	w = postJSON(t, h.CommitSettlement, commitRequest{
		ProjectID: check.ProjectID, ProjectName: check.ProjectName,
		Multiplier: check.Multiplier, Force: true, Lines: check.Lines,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp commitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "force_committed", resp.Status)

	entry, _ := store.components["comp-x"].StockAt("loc-l")
	assert.Equal(t, 0, entry.Quantity)
}

func TestCommitSettlement_StaleCheckConflicts(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 10)
	h := newTestHandler(store)

	w := postJSON(t, h.CheckSettlement, checkRequest{ProjectID: "proj-1", Multiplier: 3})
	var check checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))

	// stock moves between check and commit
	store.components["comp-x"].Locations[0].Quantity = 8

	w = postJSON(t, h.CommitSettlement, commitRequest{
		ProjectID: check.ProjectID, ProjectName: check.ProjectName,
		Multiplier: check.Multiplier, Lines: check.Lines,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Code)
}

func TestCirculate_UseAndReturn(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 10)
	h := newTestHandler(store)

	w := postJSON(t, h.Circulate, circulationRequest{
		ComponentID: "comp-x", LocationID: "loc-l", Quantity: 4, Operation: "use",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h.Circulate, circulationRequest{
		ComponentID: "comp-x", LocationID: "loc-l", Quantity: 2, Operation: "return", Note: "restock",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp commitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details, "Note: restock")

	entry, _ := store.components["comp-x"].StockAt("loc-l")
	assert.Equal(t, 8, entry.Quantity)
}

func TestCirculate_InsufficientStock(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.Circulate, circulationRequest{
		ComponentID: "comp-x", LocationID: "loc-l", Quantity: 5, Operation: "use",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, store.records)
}

func TestCirculate_UnknownOperation(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.Circulate, circulationRequest{
		ComponentID: "comp-x", LocationID: "loc-l", Quantity: 1, Operation: "drop",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddStockAndListTransactions(t *testing.T) {
	store := newFakeStore()
	seedStore(store, 3)
	h := newTestHandler(store)

	w := postJSON(t, h.AddStock, addStockRequest{ComponentID: "comp-x", LocationID: "loc-l", Quantity: 7})
	require.Equal(t, http.StatusOK, w.Code)

	entry, _ := store.components["comp-x"].StockAt("loc-l")
	assert.Equal(t, 10, entry.Quantity)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []transactionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Stock Addition", list[0].Type)
	assert.Contains(t, list[0].Details, "Added 7 to Shelf A")
}
