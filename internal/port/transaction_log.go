package port

import (
	"context"

	"github.com/rl1809/parts-ledger/internal/core/domain"
)

// TransactionLog is append-only; records are never updated or deleted.
type TransactionLog interface {
	Append(ctx context.Context, rec domain.TransactionRecord) error

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
}
