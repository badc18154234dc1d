package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

const mysqlDuplicateEntry = 1062

// MySQLAdapter is the authoritative ledger over MySQL. Expected tables:
//
//	components          (id, name, category, manufacturer, part_number, unit_price)
//	component_locations (component_id, location_id, location_name, quantity)
//	projects            (id, name)
//	bom_lines           (project_id, position, component_id, location_id, unit_quantity)
//	transactions        (id, type, created_at, details)
//
// Stock writes are conditional UPDATEs guarded by the quantity observed at
// check time; a single stale row aborts the whole transaction. The DSN must
// carry clientFoundRows=true so RowsAffected counts matched rows, not changed
// rows; otherwise a write that keeps the quantity unchanged looks stale.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetComponent(ctx context.Context, componentID string) (*domain.Component, error) {
	var c domain.Component
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, category, manufacturer, part_number, unit_price
		FROM components WHERE id = ?`, componentID,
	).Scan(&c.ID, &c.Name, &c.Category, &c.Manufacturer, &c.PartNumber, &c.UnitPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query component: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT location_id, location_name, quantity
		FROM component_locations WHERE component_id = ?
		ORDER BY location_id`, componentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query component locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.LocationStock
		if err := rows.Scan(&l.LocationID, &l.LocationName, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		c.Locations = append(c.Locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		if w.New < 0 {
			return fmt.Errorf("stock write for %s at %s would go negative", w.ComponentID, w.LocationID)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE component_locations
			SET quantity = ?
			WHERE component_id = ? AND location_id = ? AND quantity = ?`,
			w.New, w.ComponentID, w.LocationID, w.Expected,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return port.ErrConflict
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) CreateComponent(ctx context.Context, c domain.Component) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO components (id, name, category, manufacturer, part_number, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Category, c.Manufacturer, c.PartNumber, c.UnitPrice,
	)
	if isDuplicateEntry(err) {
		return port.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert component: %w", err)
	}

	for _, l := range c.Locations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO component_locations (component_id, location_id, location_name, quantity)
			VALUES (?, ?, ?, ?)`,
			c.ID, l.LocationID, l.LocationName, l.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert component location: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := m.db.QueryRowContext(ctx,
		`SELECT id, name FROM projects WHERE id = ?`, projectID,
	).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT component_id, location_id, unit_quantity
		FROM bom_lines WHERE project_id = ?
		ORDER BY position`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bom: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.BOMLine
		if err := rows.Scan(&b.ComponentID, &b.LocationID, &b.UnitQuantity); err != nil {
			return nil, fmt.Errorf("scan bom line: %w", err)
		}
		p.BOM = append(p.BOM, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bom: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) Append(ctx context.Context, rec domain.TransactionRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, created_at, details)
		VALUES (?, ?, ?, ?)`,
		rec.ID, string(rec.Type), rec.Timestamp, details,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) List(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, type, created_at, details
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var details []byte
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Timestamp, &details); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
