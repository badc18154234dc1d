package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

// memoryLedger implements port.Ledger, port.CatalogWriter and
// port.BOMRepository over maps. Writes apply sequentially, each conditional on
// the quantity at the moment it runs, and the whole set rolls back on the
// first stale one. Same discipline as the SQL adapter's transaction.
type memoryLedger struct {
	mu         sync.Mutex
	components map[string]*domain.Component
	projects   map[string]*domain.Project
	applyErr   error // injected storage failure
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		components: make(map[string]*domain.Component),
		projects:   make(map[string]*domain.Project),
	}
}

func (m *memoryLedger) put(c domain.Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c
	cp.Locations = append([]domain.LocationStock(nil), c.Locations...)
	m.components[c.ID] = &cp
}

func (m *memoryLedger) putProject(p domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	cp.BOM = append([]domain.BOMLine(nil), p.BOM...)
	m.projects[p.ID] = &cp
}

func (m *memoryLedger) quantity(componentID, locationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.components[componentID]
	if !ok {
		return -1
	}
	entry, ok := c.StockAt(locationID)
	if !ok {
		return -1
	}
	return entry.Quantity
}

func (m *memoryLedger) GetComponent(ctx context.Context, componentID string) (*domain.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.components[componentID]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *c
	cp.Locations = append([]domain.LocationStock(nil), c.Locations...)
	return &cp, nil
}

func (m *memoryLedger) ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}

	type undo struct {
		component *domain.Component
		index     int
		quantity  int
	}
	var applied []undo
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			u := applied[i]
			u.component.Locations[u.index].Quantity = u.quantity
		}
	}

	for _, w := range writes {
		c, ok := m.components[w.ComponentID]
		if !ok {
			rollback()
			return port.ErrNotFound
		}
		idx := -1
		for i := range c.Locations {
			if c.Locations[i].LocationID == w.LocationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			rollback()
			return port.ErrNotFound
		}
		if c.Locations[idx].Quantity != w.Expected {
			rollback()
			return port.ErrConflict
		}
		applied = append(applied, undo{component: c, index: idx, quantity: c.Locations[idx].Quantity})
		c.Locations[idx].Quantity = w.New
	}
	return nil
}

func (m *memoryLedger) CreateComponent(ctx context.Context, c domain.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.components[c.ID]; exists {
		return port.ErrConflict
	}
	cp := c
	cp.Locations = append([]domain.LocationStock(nil), c.Locations...)
	m.components[c.ID] = &cp
	return nil
}

func (m *memoryLedger) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *p
	cp.BOM = append([]domain.BOMLine(nil), p.BOM...)
	return &cp, nil
}

type memoryLog struct {
	mu        sync.Mutex
	records   []domain.TransactionRecord
	appendErr error
}

func (l *memoryLog) Append(ctx context.Context, rec domain.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryLog) List(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TransactionRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *memoryLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type memoryNotifier struct {
	mu      sync.Mutex
	batches [][]domain.StockChange
}

func (n *memoryNotifier) StockChanged(ctx context.Context, changes []domain.StockChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, changes)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
