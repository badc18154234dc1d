package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

// SettlementService resolves a project's bill of materials against the ledger
// and commits production runs. A run is checked first, then committed; the
// commit re-validates every entry through conditional writes, so a stale check
// surfaces as port.ErrConflict instead of silently overwriting.
type SettlementService struct {
	ledger   port.Ledger
	projects port.BOMRepository
	txlog    port.TransactionLog
	notifier port.StockNotifier
	logger   *slog.Logger
}

func NewSettlementService(ledger port.Ledger, projects port.BOMRepository, txlog port.TransactionLog, notifier port.StockNotifier, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		ledger:   ledger,
		projects: projects,
		txlog:    txlog,
		notifier: notifier,
		logger:   logger,
	}
}

// Check expands the project's BOM at the requested multiplier and annotates
// every line with the stock currently at its location. Lines whose component
// or location cannot be resolved are degraded (available 0, unsatisfied)
// rather than aborting the check.
func (s *SettlementService) Check(ctx context.Context, projectID string, multiplier int) (*domain.StockCheck, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	lines, err := domain.ExpandBOM(project.BOM, multiplier)
	if err != nil {
		return nil, err
	}

	check := &domain.StockCheck{
		ProjectID:    project.ID,
		ProjectName:  project.Name,
		Multiplier:   multiplier,
		AllSatisfied: true,
	}

	for _, line := range lines {
		comp, err := s.ledger.GetComponent(ctx, line.ComponentID)
		if errors.Is(err, port.ErrNotFound) {
			line.Problem = domain.ProblemComponentNotFound
			check.AllSatisfied = false
			check.Lines = append(check.Lines, line)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read stock for %s: %w", line.ComponentID, err)
		}

		line.ComponentName = comp.Name
		entry, ok := comp.StockAt(line.LocationID)
		if !ok {
			line.Problem = domain.ProblemLocationNotFound
			check.AllSatisfied = false
			check.Lines = append(check.Lines, line)
			continue
		}

		line.LocationName = entry.LocationName
		line.Available = entry.Quantity
		line.Satisfied = entry.Quantity >= line.Required
		if !line.Satisfied {
			check.AllSatisfied = false
		}
		check.Lines = append(check.Lines, line)
	}

	return check, nil
}

// Commit decrements every checked line and appends one Production Run record.
// It refuses to run unless the check was fully satisfied; insufficient stock
// goes through ForceCommit after explicit confirmation.
func (s *SettlementService) Commit(ctx context.Context, check *domain.StockCheck) (*domain.TransactionRecord, error) {
	if check == nil || len(check.Lines) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	// Satisfaction is re-derived from the quantities, not read from the
	// check's flags: a check that crossed an API boundary may carry flags
	// that no longer match its own numbers.
	for _, line := range check.Lines {
		if line.Problem != domain.ProblemNone || line.Available < line.Required {
			return nil, ErrInsufficientStock
		}
	}

	writes := make([]domain.StockWrite, 0, len(check.Lines))
	details := []string{
		fmt.Sprintf("Project: %s", check.ProjectName),
		fmt.Sprintf("Quantity Produced: %d", check.Multiplier),
		"Components Used:",
	}
	for _, line := range check.Lines {
		writes = append(writes, domain.StockWrite{
			ComponentID: line.ComponentID,
			LocationID:  line.LocationID,
			Expected:    line.Available,
			New:         line.Available - line.Required,
		})
		details = append(details, fmt.Sprintf("- %s: Used %d from %s", line.DisplayName(), line.Required, line.LocationName))
	}

	return s.commit(ctx, domain.TxProductionRun, writes, details)
}

// ForceCommit proceeds despite insufficient stock: a shorted line consumes all
// available quantity and is driven to exactly zero, never negative. Lines
// whose component or location could not be resolved are skipped. The record
// preserves required/available/consumed per shorted line as the audit trail of
// the shortfall.
func (s *SettlementService) ForceCommit(ctx context.Context, check *domain.StockCheck) (*domain.TransactionRecord, error) {
	if check == nil || len(check.Lines) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	writes := make([]domain.StockWrite, 0, len(check.Lines))
	details := []string{
		fmt.Sprintf("Project: %s", check.ProjectName),
		fmt.Sprintf("Quantity Produced: %d", check.Multiplier),
		"Components Used (FORCED RUN):",
	}
	for _, line := range check.Lines {
		if line.Problem != domain.ProblemNone {
			details = append(details, fmt.Sprintf("- %s: skipped (%s)", line.DisplayName(), line.Problem))
			continue
		}

		consumed := line.Required
		if line.Available < line.Required {
			consumed = line.Available
		}
		writes = append(writes, domain.StockWrite{
			ComponentID: line.ComponentID,
			LocationID:  line.LocationID,
			Expected:    line.Available,
			New:         line.Available - consumed,
		})
		if line.Available >= line.Required {
			details = append(details, fmt.Sprintf("- %s: Used %d from %s", line.DisplayName(), line.Required, line.LocationName))
		} else {
			details = append(details, fmt.Sprintf("- %s: required %d, available %d, consumed %d from %s (forced, stock set to 0)",
				line.DisplayName(), line.Required, line.Available, consumed, line.LocationName))
		}
	}
	if len(writes) == 0 {
		return nil, ErrNothingToCommit
	}

	return s.commit(ctx, domain.TxForcedProductionRun, writes, details)
}

func (s *SettlementService) commit(ctx context.Context, typ domain.TransactionType, writes []domain.StockWrite, details []string) (*domain.TransactionRecord, error) {
	if err := s.ledger.ApplyStockWrites(ctx, writes); err != nil {
		return nil, fmt.Errorf("apply stock writes: %w", err)
	}

	rec := newRecord(typ, details)
	if err := s.txlog.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	notifyStockChanged(ctx, s.notifier, s.logger, writes)
	s.logger.Info("settlement committed", "type", typ, "lines", len(writes), "transaction_id", rec.ID)
	return &rec, nil
}
