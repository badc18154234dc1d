package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

// CatalogService covers the stock-affecting slice of catalog management:
// adding stock to an existing entry and creating components with initial
// stock. Both append an audit record like every other ledger mutation.
type CatalogService struct {
	ledger   port.Ledger
	catalog  port.CatalogWriter
	txlog    port.TransactionLog
	notifier port.StockNotifier
	logger   *slog.Logger
}

func NewCatalogService(ledger port.Ledger, catalog port.CatalogWriter, txlog port.TransactionLog, notifier port.StockNotifier, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		ledger:   ledger,
		catalog:  catalog,
		txlog:    txlog,
		notifier: notifier,
		logger:   logger,
	}
}

// AddStock increases the component's stock at locationID by quantity.
func (s *CatalogService) AddStock(ctx context.Context, componentID, locationID string, quantity int) (*domain.TransactionRecord, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidRequest
	}

	comp, err := s.ledger.GetComponent(ctx, componentID)
	if err != nil {
		return nil, fmt.Errorf("load component %s: %w", componentID, err)
	}
	entry, ok := comp.StockAt(locationID)
	if !ok {
		return nil, fmt.Errorf("location %s on component %s: %w", locationID, componentID, port.ErrNotFound)
	}

	write := domain.StockWrite{
		ComponentID: componentID,
		LocationID:  locationID,
		Expected:    entry.Quantity,
		New:         entry.Quantity + quantity,
	}
	if err := s.ledger.ApplyStockWrites(ctx, []domain.StockWrite{write}); err != nil {
		return nil, fmt.Errorf("apply stock write: %w", err)
	}

	rec := newRecord(domain.TxStockAddition, []string{
		fmt.Sprintf("Component: %s (ID: %s)", comp.DisplayName(), comp.ID),
		fmt.Sprintf("Added %d to %s", quantity, entry.LocationName),
		fmt.Sprintf("New Quantity: %d", write.New),
	})
	if err := s.txlog.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	notifyStockChanged(ctx, s.notifier, s.logger, []domain.StockWrite{write})
	return &rec, nil
}

// CreateComponent registers a new catalog entry. An existing ID fails with
// port.ErrConflict; negative initial quantities are rejected up front.
func (s *CatalogService) CreateComponent(ctx context.Context, comp domain.Component) (*domain.TransactionRecord, error) {
	if comp.Name == "" || comp.Category == "" {
		return nil, domain.ErrInvalidRequest
	}
	for _, l := range comp.Locations {
		if l.Quantity < 0 || l.LocationID == "" {
			return nil, domain.ErrInvalidRequest
		}
	}

	if err := s.catalog.CreateComponent(ctx, comp); err != nil {
		return nil, fmt.Errorf("create component: %w", err)
	}

	details := []string{
		fmt.Sprintf("Component: %s (ID: %s)", comp.DisplayName(), comp.ID),
		fmt.Sprintf("Category: %s", comp.Category),
	}
	for _, l := range comp.Locations {
		details = append(details, fmt.Sprintf("Initial Stock: %d at %s", l.Quantity, l.LocationName))
	}

	rec := newRecord(domain.TxComponentCreation, details)
	if err := s.txlog.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	s.logger.Info("component created", "component", comp.ID, "locations", len(comp.Locations))
	return &rec, nil
}
