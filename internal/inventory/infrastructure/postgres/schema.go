package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_ledgers (
		id            TEXT PRIMARY KEY,
		product_id    TEXT NOT NULL UNIQUE,
		sku           TEXT NOT NULL,
		available     INT NOT NULL CHECK (available >= 0),
		reserved      INT NOT NULL CHECK (reserved >= 0),
		total         INT NOT NULL CHECK (total >= 0),
		reorder_level INT NOT NULL DEFAULT 0,
		reorder_qty   INT NOT NULL DEFAULT 0,
		version       BIGINT NOT NULL DEFAULT 1,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		CHECK (available + reserved = total)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id           UUID PRIMARY KEY,
		ledger_id    TEXT NOT NULL REFERENCES inventory_ledgers(id),
		order_id     TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		quantity     INT NOT NULL CHECK (quantity > 0),
		status       TEXT NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		UNIQUE (order_id, ledger_id)
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_expiry_idx
		ON reservations (expires_at) WHERE status = 'ACTIVE'`,
	`CREATE INDEX IF NOT EXISTS reservations_order_idx ON reservations (order_id)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		id         BIGSERIAL PRIMARY KEY,
		ledger_id  TEXT NOT NULL REFERENCES inventory_ledgers(id),
		type       TEXT NOT NULL,
		quantity   INT NOT NULL,
		reference  TEXT NOT NULL DEFAULT '',
		notes      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS stock_transactions_ledger_idx
		ON stock_transactions (ledger_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id          BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		type        TEXT NOT NULL,
		payload     JSONB NOT NULL,
		headers     JSONB,
		traceparent TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		relay_id    TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		last_error  TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending'`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
