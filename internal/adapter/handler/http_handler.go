package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/core/service"
	"github.com/rl1809/parts-ledger/internal/port"
)

type HTTPHandler struct {
	settlements  *service.SettlementService
	circulation  *service.CirculationService
	catalog      *service.CatalogService
	transactions *service.TransactionService
	logger       *slog.Logger
}

func NewHTTPHandler(settlements *service.SettlementService, circulation *service.CirculationService, catalog *service.CatalogService, transactions *service.TransactionService, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		settlements:  settlements,
		circulation:  circulation,
		catalog:      catalog,
		transactions: transactions,
		logger:       logger,
	}
}

type checkRequest struct {
	ProjectID  string `json:"project_id"`
	Multiplier int    `json:"multiplier"`
}

type settlementLine struct {
	ComponentID   string `json:"component_id"`
	ComponentName string `json:"component_name,omitempty"`
	LocationID    string `json:"location_id"`
	LocationName  string `json:"location_name,omitempty"`
	Required      int    `json:"required"`
	Available     int    `json:"available"`
	Satisfied     bool   `json:"satisfied"`
	Problem       string `json:"problem,omitempty"`
	Shortfall     int    `json:"shortfall,omitempty"`
}

type checkResponse struct {
	Status       string           `json:"status"`
	ProjectID    string           `json:"project_id"`
	ProjectName  string           `json:"project_name"`
	Multiplier   int              `json:"multiplier"`
	AllSatisfied bool             `json:"all_satisfied"`
	Lines        []settlementLine `json:"lines"`
}

type commitRequest struct {
	ProjectID   string           `json:"project_id"`
	ProjectName string           `json:"project_name"`
	Multiplier  int              `json:"multiplier"`
	Force       bool             `json:"force"`
	Lines       []settlementLine `json:"lines"`
}

type commitResponse struct {
	Status        string   `json:"status"`
	TransactionID string   `json:"transaction_id"`
	Details       []string `json:"details"`
}

type circulationRequest struct {
	ComponentID string `json:"component_id"`
	LocationID  string `json:"location_id"`
	Quantity    int    `json:"quantity"`
	Operation   string `json:"operation"` // "use" or "return"
	Note        string `json:"note"`
}

type addStockRequest struct {
	ComponentID string `json:"component_id"`
	LocationID  string `json:"location_id"`
	Quantity    int    `json:"quantity"`
}

type transactionJSON struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Details   []string `json:"details"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckSettlement resolves a project's BOM at the requested multiplier and
// returns the per-line stock verdicts. Status is "checked" when everything is
// satisfied and "awaiting_override" when the caller must decide between a
// forced run and cancelling.
func (h *HTTPHandler) CheckSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "project_id is required")
		return
	}

	check, err := h.settlements.Check(r.Context(), req.ProjectID, req.Multiplier)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := string(domain.StatusChecked)
	if !check.AllSatisfied {
		status = string(domain.StatusAwaitingOverride)
	}
	resp := checkResponse{
		Status:       status,
		ProjectID:    check.ProjectID,
		ProjectName:  check.ProjectName,
		Multiplier:   check.Multiplier,
		AllSatisfied: check.AllSatisfied,
	}
	for _, l := range check.Lines {
		resp.Lines = append(resp.Lines, lineToJSON(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CommitSettlement applies a previously checked settlement. The client echoes
// the checked lines back; the ledger re-validates every quantity on write, so
// a tampered or stale body surfaces as a conflict, not as corruption.
func (h *HTTPHandler) CommitSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	check := &domain.StockCheck{
		ProjectID:    req.ProjectID,
		ProjectName:  req.ProjectName,
		Multiplier:   req.Multiplier,
		AllSatisfied: true,
	}
	for _, l := range req.Lines {
		line := lineFromJSON(l)
		if !line.Satisfied {
			check.AllSatisfied = false
		}
		check.Lines = append(check.Lines, line)
	}

	var (
		rec    *domain.TransactionRecord
		err    error
		status = domain.StatusCommitted
	)
	if req.Force {
		rec, err = h.settlements.ForceCommit(r.Context(), check)
		status = domain.StatusForceCommitted
	} else {
		rec, err = h.settlements.Commit(r.Context(), check)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{
		Status:        string(status),
		TransactionID: rec.ID,
		Details:       rec.Details,
	})
}

// Circulate performs a manual single-location use or return.
func (h *HTTPHandler) Circulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req circulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	var (
		rec *domain.TransactionRecord
		err error
	)
	switch req.Operation {
	case "use":
		rec, err = h.circulation.Use(r.Context(), req.ComponentID, req.LocationID, req.Quantity, req.Note)
	case "return":
		rec, err = h.circulation.Return(r.Context(), req.ComponentID, req.LocationID, req.Quantity, req.Note)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "operation must be use or return")
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{
		Status:        string(domain.StatusCommitted),
		TransactionID: rec.ID,
		Details:       rec.Details,
	})
}

// AddStock increases the stock of one component at one location.
func (h *HTTPHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req addStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	rec, err := h.catalog.AddStock(r.Context(), req.ComponentID, req.LocationID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{
		Status:        string(domain.StatusCommitted),
		TransactionID: rec.ID,
		Details:       rec.Details,
	})
}

// ListTransactions returns recent records, newest first.
func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.transactions.Recent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]transactionJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, transactionJSON{
			ID:        rec.ID,
			Type:      string(rec.Type),
			Timestamp: rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Details:   rec.Details,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case errors.Is(err, service.ErrNothingToCommit):
		writeError(w, http.StatusBadRequest, "nothing_to_commit", "no committable lines")
	case errors.Is(err, port.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "component, location or project not found")
	case errors.Is(err, service.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", "insufficient stock")
	case errors.Is(err, port.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "stock changed since check, re-run the check")
	default:
		h.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func lineToJSON(l domain.SettlementLine) settlementLine {
	return settlementLine{
		ComponentID:   l.ComponentID,
		ComponentName: l.ComponentName,
		LocationID:    l.LocationID,
		LocationName:  l.LocationName,
		Required:      l.Required,
		Available:     l.Available,
		Satisfied:     l.Satisfied,
		Problem:       string(l.Problem),
		Shortfall:     l.Shortfall(),
	}
}

func lineFromJSON(l settlementLine) domain.SettlementLine {
	return domain.SettlementLine{
		ComponentID:   l.ComponentID,
		ComponentName: l.ComponentName,
		LocationID:    l.LocationID,
		LocationName:  l.LocationName,
		Required:      l.Required,
		Available:     l.Available,
		Satisfied:     l.Satisfied,
		Problem:       domain.LineProblem(l.Problem),
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
