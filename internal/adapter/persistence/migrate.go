package persistence

import (
	"database/sql"
	"fmt"
)

// schema is applied by the server's -migrate flag. Statements are
// idempotent so migrating an already-initialized database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id   uuid PRIMARY KEY,
		kind text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouses (
		id         uuid PRIMARY KEY REFERENCES entities(id),
		name       text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS shelves (
		id           uuid PRIMARY KEY REFERENCES entities(id),
		code         text NOT NULL UNIQUE,
		warehouse_id uuid,
		created_at   timestamptz NOT NULL DEFAULT now(),
		updated_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id         uuid PRIMARY KEY REFERENCES entities(id),
		code       text NOT NULL UNIQUE,
		shelf_id   uuid,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS shipments (
		id               uuid PRIMARY KEY REFERENCES entities(id),
		code             text NOT NULL UNIQUE,
		supplier         text,
		expected_pallets bigint,
		expected_boxes   bigint,
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pallets (
		id          uuid PRIMARY KEY REFERENCES entities(id),
		code        text NOT NULL UNIQUE,
		status      text,
		shipment_id uuid,
		slot_id     uuid,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS boxes (
		id          uuid PRIMARY KEY REFERENCES entities(id),
		code        text NOT NULL UNIQUE,
		contents    text,
		pallet_id   uuid,
		shipment_id uuid,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id         uuid PRIMARY KEY REFERENCES entities(id),
		code       text NOT NULL UNIQUE,
		title      text,
		box_id     uuid,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		seq       bigserial PRIMARY KEY,
		ts        timestamptz NOT NULL DEFAULT now(),
		actor     text NOT NULL,
		action    text NOT NULL,
		kind      text NOT NULL,
		entity_id uuid NOT NULL,
		before    jsonb,
		after     jsonb NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log (entity_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_pallets_shipment ON pallets (shipment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_boxes_shipment ON boxes (shipment_id)`,
}

// Migrate applies the schema.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}
