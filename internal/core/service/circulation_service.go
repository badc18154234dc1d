package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

// CirculationService handles ad-hoc single-location stock use and return,
// outside of a formal production run. Use has no forced variant: taking more
// than is available fails with ErrInsufficientStock.
type CirculationService struct {
	ledger   port.Ledger
	txlog    port.TransactionLog
	notifier port.StockNotifier
	logger   *slog.Logger
}

func NewCirculationService(ledger port.Ledger, txlog port.TransactionLog, notifier port.StockNotifier, logger *slog.Logger) *CirculationService {
	return &CirculationService{
		ledger:   ledger,
		txlog:    txlog,
		notifier: notifier,
		logger:   logger,
	}
}

// Use takes quantity units from the component's stock at locationID.
func (s *CirculationService) Use(ctx context.Context, componentID, locationID string, quantity int, note string) (*domain.TransactionRecord, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidRequest
	}

	comp, entry, err := s.lookup(ctx, componentID, locationID)
	if err != nil {
		return nil, err
	}
	if entry.Quantity < quantity {
		return nil, ErrInsufficientStock
	}

	write := domain.StockWrite{
		ComponentID: componentID,
		LocationID:  locationID,
		Expected:    entry.Quantity,
		New:         entry.Quantity - quantity,
	}
	return s.adjust(ctx, domain.TxCirculationUse, comp, entry, quantity, note, write)
}

// Return puts quantity units back into the component's stock at locationID.
func (s *CirculationService) Return(ctx context.Context, componentID, locationID string, quantity int, note string) (*domain.TransactionRecord, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidRequest
	}

	comp, entry, err := s.lookup(ctx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	write := domain.StockWrite{
		ComponentID: componentID,
		LocationID:  locationID,
		Expected:    entry.Quantity,
		New:         entry.Quantity + quantity,
	}
	return s.adjust(ctx, domain.TxCirculationReturn, comp, entry, quantity, note, write)
}

func (s *CirculationService) lookup(ctx context.Context, componentID, locationID string) (*domain.Component, domain.LocationStock, error) {
	comp, err := s.ledger.GetComponent(ctx, componentID)
	if err != nil {
		return nil, domain.LocationStock{}, fmt.Errorf("load component %s: %w", componentID, err)
	}
	entry, ok := comp.StockAt(locationID)
	if !ok {
		return nil, domain.LocationStock{}, fmt.Errorf("location %s on component %s: %w", locationID, componentID, port.ErrNotFound)
	}
	return comp, entry, nil
}

func (s *CirculationService) adjust(ctx context.Context, typ domain.TransactionType, comp *domain.Component, entry domain.LocationStock, quantity int, note string, write domain.StockWrite) (*domain.TransactionRecord, error) {
	if err := s.ledger.ApplyStockWrites(ctx, []domain.StockWrite{write}); err != nil {
		return nil, fmt.Errorf("apply stock write: %w", err)
	}

	details := []string{
		fmt.Sprintf("Component: %s (ID: %s), Quantity: %d", comp.DisplayName(), comp.ID, quantity),
		fmt.Sprintf("Location: %s", entry.LocationName),
	}
	if note != "" {
		details = append(details, fmt.Sprintf("Note: %s", note))
	}

	rec := newRecord(typ, details)
	if err := s.txlog.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	notifyStockChanged(ctx, s.notifier, s.logger, []domain.StockWrite{write})
	s.logger.Info("circulation adjusted", "type", typ, "component", comp.ID, "quantity", quantity)
	return &rec, nil
}
