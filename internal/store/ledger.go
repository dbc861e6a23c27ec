package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var ledgerSchema string

// Ledger is the append-only inventory log kept in PostgreSQL.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger connects to the ledger database
func NewLedger(databaseURL string) (*Ledger, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Migrate creates the ledger tables if missing
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

// Ping checks the connection, used by readiness probes
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

const insertLog = `
	INSERT INTO inventory_logs
		(product_id, user_id, type, quantity_change, previous_quantity, new_quantity, reason, order_id)
	VALUES
		(:product_id, :user_id, :type, :quantity_change, :previous_quantity, :new_quantity, :reason, :order_id)
	RETURNING id, created_at`

// Append writes log rows in one transaction and fills their id and created_at
func (l *Ledger) Append(ctx context.Context, logs ...*models.InventoryLog) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := appendLogs(ctx, tx, logs); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendForEvent writes logs once per event id. A replayed event is a no-op.
func (l *Ledger) AppendForEvent(ctx context.Context, eventID, eventType string, logs ...*models.InventoryLog) (bool, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if err := appendLogs(ctx, tx, logs); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func appendLogs(ctx context.Context, tx *sqlx.Tx, logs []*models.InventoryLog) error {
	stmt, err := tx.PrepareNamedContext(ctx, insertLog)
	if err != nil {
		return fmt.Errorf("failed to prepare inventory log insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range logs {
		if err := stmt.QueryRowxContext(ctx, entry).Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to append inventory log for product %s: %w", entry.ProductID, err)
		}
	}
	return nil
}

// ListByProduct returns a product's log rows, newest first
func (l *Ledger) ListByProduct(ctx context.Context, productID string) ([]models.InventoryLog, error) {
	logs := []models.InventoryLog{}
	err := l.db.SelectContext(ctx, &logs,
		"SELECT * FROM inventory_logs WHERE product_id = $1 ORDER BY created_at DESC, id DESC", productID)
	return logs, err
}

// IsEventProcessed checks if an event has been processed
func (l *Ledger) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := l.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (l *Ledger) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
