package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		title VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		location VARCHAR(100) NOT NULL,
		price_per_night DECIMAL(10,2) NOT NULL CHECK (price_per_night >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		listing_id UUID NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		guest_name VARCHAR(100) NOT NULL,
		guest_email VARCHAR(254) NOT NULL,
		check_in DATE NOT NULL,
		check_out DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_listing_id ON bookings(listing_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY,
		listing_id UUID NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		reviewer_name VARCHAR(100) NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_listing_id ON reviews(listing_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		booking_ref VARCHAR(64) NOT NULL,
		booking_id UUID REFERENCES bookings(id) ON DELETE SET NULL,
		tx_ref VARCHAR(128) NOT NULL UNIQUE,
		provider_txn_id VARCHAR(128) NOT NULL DEFAULT '',
		amount DECIMAL(12,2) NOT NULL,
		currency VARCHAR(8) NOT NULL DEFAULT 'ETB',
		customer_email VARCHAR(254) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		raw_init_response JSONB,
		raw_verify_response JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_booking_ref ON payments(booking_ref)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
// Every statement is idempotent so Migrate is safe to run on each deploy.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
