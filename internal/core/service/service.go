package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

var (
	// ErrInsufficientStock is an expected outcome, not a fault: the caller may
	// offer the forced path (production runs) or give up (circulation).
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNothingToCommit is returned when every line of a forced run is
	// unresolvable and there is no entry left to write.
	ErrNothingToCommit = errors.New("nothing to commit")
)

func newRecord(typ domain.TransactionType, details []string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now(),
		Details:   details,
	}
}

// notifyStockChanged fans committed quantities out to the notifier. Failures
// are logged and swallowed: the commit has already happened.
func notifyStockChanged(ctx context.Context, n port.StockNotifier, logger *slog.Logger, writes []domain.StockWrite) {
	if n == nil {
		return
	}
	changes := make([]domain.StockChange, 0, len(writes))
	for _, w := range writes {
		changes = append(changes, domain.StockChange{
			ComponentID: w.ComponentID,
			LocationID:  w.LocationID,
			Quantity:    w.New,
		})
	}
	if err := n.StockChanged(ctx, changes); err != nil {
		logger.Warn("stock change notification failed", "err", err)
	}
}
