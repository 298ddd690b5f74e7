package storage

import (
	"context"
	"fmt"
)

const migrationSQL = `
CREATE TABLE IF NOT EXISTS supply_samples (
    id              BIGSERIAL PRIMARY KEY,
    bucket_ts       TIMESTAMPTZ NOT NULL UNIQUE,
    token           TEXT NOT NULL,
    observed_supply NUMERIC(78, 0),
    threshold       NUMERIC(78, 0),
    encoded         BYTEA,
    status          TEXT NOT NULL,
    error           TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS supply_alerts (
    id         BIGSERIAL PRIMARY KEY,
    sample_ts  TIMESTAMPTZ NOT NULL UNIQUE,
    token      TEXT NOT NULL,
    old_supply NUMERIC(78, 0) NOT NULL,
    new_supply NUMERIC(78, 0) NOT NULL,
    threshold  NUMERIC(78, 0) NOT NULL,
    payload    BYTEA NOT NULL,
    channels   TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS supply_alerts_created_at_idx ON supply_alerts (created_at);
`

// Migrate creates the tables used by the store.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
