package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS facilities (
    id              BIGSERIAL PRIMARY KEY,
    source_id       TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    facility_type   TEXT NOT NULL,
    website         TEXT NOT NULL DEFAULT '',
    email           TEXT NOT NULL DEFAULT '',
    phone           TEXT NOT NULL DEFAULT '',
    address_line1   TEXT NOT NULL DEFAULT '',
    city            TEXT NOT NULL DEFAULT '',
    province        TEXT NOT NULL DEFAULT '',
    country         TEXT NOT NULL DEFAULT '',
    latitude        DOUBLE PRECISION,
    longitude       DOUBLE PRECISION,
    services        JSONB,
    hours           JSONB,
    availability    JSONB,
    enrichment      JSONB,
    status          TEXT NOT NULL DEFAULT 'active',
    last_seen_at    TIMESTAMPTZ NOT NULL,
    last_updated_at TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_facilities_type ON facilities (facility_type);
CREATE INDEX IF NOT EXISTS idx_facilities_status_seen ON facilities (status, last_seen_at);
CREATE INDEX IF NOT EXISTS idx_facilities_updated ON facilities (last_updated_at);

CREATE TABLE IF NOT EXISTS facility_observations (
    id           BIGSERIAL PRIMARY KEY,
    source_id    TEXT NOT NULL,
    observed_at  TIMESTAMPTZ NOT NULL,
    availability JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_source ON facility_observations (source_id);
CREATE INDEX IF NOT EXISTS idx_observations_observed_at ON facility_observations (observed_at);

CREATE TABLE IF NOT EXISTS crawl_state (
    mode                TEXT NOT NULL,
    segment             INTEGER NOT NULL,
    run_id              UUID NOT NULL,
    total_pages         INTEGER NOT NULL,
    last_completed_page INTEGER NOT NULL,
    status              TEXT NOT NULL,
    started_at          TIMESTAMPTZ NOT NULL,
    completed_at        TIMESTAMPTZ,
    updated_at          TIMESTAMPTZ NOT NULL,
    version             INTEGER NOT NULL,
    PRIMARY KEY (mode, segment)
);

CREATE TABLE IF NOT EXISTS failed_pages (
    id               BIGSERIAL PRIMARY KEY,
    mode             TEXT NOT NULL,
    segment          INTEGER NOT NULL,
    page             INTEGER NOT NULL,
    failure_reason   TEXT NOT NULL DEFAULT '',
    http_status_code INTEGER NOT NULL DEFAULT 0,
    attempt_count    INTEGER NOT NULL DEFAULT 1,
    last_attempt_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (mode, segment, page)
);
`

// EnsureSchema applies the idempotent DDL for every table the adapters
// touch. Called once at startup before any repository is used.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
