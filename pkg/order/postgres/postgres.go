// Package postgres records accepted orders in a PostgreSQL audit table.
// The journal is write-only from the server's point of view; the registry
// is never rebuilt from it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"orderhub/pkg/order"
)

// Schema creates the journal table.
const Schema = `CREATE TABLE IF NOT EXISTS order_events (
	id          UUID PRIMARY KEY,
	business_id INT NOT NULL,
	name        TEXT NOT NULL,
	item        INT NOT NULL,
	quantity    INT NOT NULL,
	created     BOOLEAN NOT NULL DEFAULT FALSE,
	session     TEXT NOT NULL DEFAULT '',
	accepted_at TIMESTAMPTZ NOT NULL
)`

// migrations bring tables made by older schemas up to date.
var migrations = []string{
	"ALTER TABLE order_events ADD COLUMN IF NOT EXISTS created BOOLEAN NOT NULL DEFAULT FALSE",
}

// Journal appends accepted orders to PostgreSQL.
type Journal struct {
	db *sql.DB
}

// New creates a PostgreSQL journal.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Init creates the journal table if needed.
func (j *Journal) Init(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create order_events: %w", err)
	}
	for _, m := range migrations {
		if _, err := j.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate order_events: %w", err)
		}
	}
	return nil
}

// Publish inserts the event.
func (j *Journal) Publish(ctx context.Context, e order.Event) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO order_events (id,business_id,name,item,quantity,created,session,accepted_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)",
		e.ID, e.Order.BusinessID, e.Order.Name, int(e.Order.Item), e.Order.Quantity, e.Created, e.Session, e.At)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}
