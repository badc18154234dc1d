package port

import (
	"context"
	"errors"

	"github.com/rl1809/parts-ledger/internal/core/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrent modification")
)

// Ledger is the authoritative per-component, per-location stock store.
type Ledger interface {
	// GetComponent returns a component with its stock entries, or ErrNotFound.
	GetComponent(ctx context.Context, componentID string) (*domain.Component, error)

	// ApplyStockWrites applies every write or none. Each write is conditional
	// on the entry still holding its Expected quantity; a stale expectation
	// aborts the whole set with ErrConflict.
	ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error
}

// CatalogWriter creates catalog entries. Creation of an existing component
// fails with ErrConflict.
type CatalogWriter interface {
	CreateComponent(ctx context.Context, c domain.Component) error
}
