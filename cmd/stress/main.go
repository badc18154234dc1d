// Stress driver for the settlement engine: many operators race to settle
// production runs over the same component, and the conditional-write ledger
// must hand out exactly the available stock, never more.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/core/service"
	"github.com/rl1809/parts-ledger/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
	maxRetries    = 100
)

// casLedger is an in-process ledger with the same verify-then-apply contract
// the real adapters implement.
type casLedger struct {
	mu        sync.Mutex
	component domain.Component
	project   domain.Project
	records   []domain.TransactionRecord
}

func (l *casLedger) GetComponent(ctx context.Context, componentID string) (*domain.Component, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if componentID != l.component.ID {
		return nil, port.ErrNotFound
	}
	cp := l.component
	cp.Locations = append([]domain.LocationStock(nil), l.component.Locations...)
	return &cp, nil
}

func (l *casLedger) ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range writes {
		entry, ok := l.component.StockAt(w.LocationID)
		if !ok || w.ComponentID != l.component.ID {
			return port.ErrNotFound
		}
		if entry.Quantity != w.Expected {
			return port.ErrConflict
		}
	}
	for _, w := range writes {
		for i := range l.component.Locations {
			if l.component.Locations[i].LocationID == w.LocationID {
				l.component.Locations[i].Quantity = w.New
			}
		}
	}
	return nil
}

func (l *casLedger) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if projectID != l.project.ID {
		return nil, port.ErrNotFound
	}
	cp := l.project
	return &cp, nil
}

func (l *casLedger) Append(ctx context.Context, rec domain.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *casLedger) List(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.TransactionRecord(nil), l.records...), nil
}

func main() {
	ctx := context.Background()

	ledger := &casLedger{
		component: domain.Component{
			ID:   "flash-part",
			Name: "Flash Part",
			Locations: []domain.LocationStock{
				{LocationID: "loc-1", LocationName: "Shelf A", Quantity: initialStock},
			},
		},
		project: domain.Project{
			ID:   "proj-stress",
			Name: "Stress",
			BOM:  []domain.BOMLine{{ComponentID: "flash-part", LocationID: "loc-1", UnitQuantity: 1}},
		},
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	settlements := service.NewSettlementService(ledger, ledger, ledger, nil, quiet)

	var successCount, shortCount, giveUpCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// re-run the whole check-then-commit sequence on conflict,
			// exactly what a caller is expected to do
			for attempt := 0; attempt < maxRetries; attempt++ {
				check, err := settlements.Check(ctx, "proj-stress", 1)
				if err != nil {
					giveUpCount.Add(1)
					return
				}
				if !check.AllSatisfied {
					shortCount.Add(1)
					return
				}

				_, err = settlements.Commit(ctx, check)
				if err == nil {
					successCount.Add(1)
					return
				}
				if !errors.Is(err, port.ErrConflict) {
					giveUpCount.Add(1)
					return
				}
			}
			giveUpCount.Add(1)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	short := shortCount.Load()
	gaveUp := giveUpCount.Load()

	finalStock := 0
	if comp, err := ledger.GetComponent(ctx, "flash-part"); err == nil {
		if entry, ok := comp.StockAt("loc-1"); ok {
			finalStock = entry.Quantity
		}
	}
	records, _ := ledger.List(ctx, totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:     %d\n", initialStock)
	fmt.Printf("Total Requests:    %d\n", totalRequests)
	fmt.Printf("Committed:         %d\n", success)
	fmt.Printf("Out of Stock:      %d\n", short)
	fmt.Printf("Gave Up:           %d\n", gaveUp)
	fmt.Printf("Final Stock:       %d\n", finalStock)
	fmt.Printf("Records Appended:  %d\n", len(records))
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && finalStock == 0 && len(records) == initialStock && gaveUp == 0 {
		fmt.Printf("PASS: exactly %d runs committed, stock depleted to 0\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d commits and stock 0, got %d commits, stock %d, %d gave up\n",
			initialStock, success, finalStock, gaveUp)
	}
}
