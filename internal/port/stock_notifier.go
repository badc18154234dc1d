package port

import (
	"context"

	"github.com/rl1809/parts-ledger/internal/core/domain"
)

// StockNotifier fans out committed quantities so interested consumers (UI
// refresh, mirrors) can react without subscribing to the ledger itself.
// Delivery is best effort: a notification failure never fails the commit that
// produced it.
type StockNotifier interface {
	StockChanged(ctx context.Context, changes []domain.StockChange) error
}
