package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. BIGSERIAL keys give the sequential ids
// starting at 1 that the record surface promises.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		seller_id TEXT NOT NULL REFERENCES sellers(id),
		name TEXT NOT NULL,
		price_cents BIGINT NOT NULL,
		stock INT NOT NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE,
		sold_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT UNIQUE,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		total_cents BIGINT NOT NULL,
		shipping_fee_cents BIGINT NOT NULL,
		status TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		tracking_info TEXT NOT NULL DEFAULT '',
		disputed BOOLEAN NOT NULL DEFAULT FALSE,
		dispute_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status_updated ON orders(status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id BIGINT NOT NULL REFERENCES orders(id),
		product_id BIGINT NOT NULL REFERENCES products(id),
		qty INT NOT NULL,
		price_cents BIGINT NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS escrows (
		order_id BIGINT PRIMARY KEY REFERENCES orders(id),
		amount_cents BIGINT NOT NULL,
		developer_fee_cents BIGINT NOT NULL,
		seller_amount_cents BIGINT NOT NULL,
		claimable BOOLEAN NOT NULL DEFAULT FALSE,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		released BOOLEAN NOT NULL DEFAULT FALSE,
		refunded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		released_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS disputes (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		initiator TEXT NOT NULL,
		reason TEXT NOT NULL,
		resolution TEXT NOT NULL DEFAULT '',
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_accounts (
		account TEXT PRIMARY KEY,
		balance_cents BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_postings (
		id BIGSERIAL PRIMARY KEY,
		from_account TEXT NOT NULL,
		to_account TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		paused BOOLEAN NOT NULL DEFAULT FALSE,
		developer_account TEXT NOT NULL DEFAULT 'developer'
	)`,
	`INSERT INTO settings (id) VALUES (1) ON CONFLICT DO NOTHING`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
