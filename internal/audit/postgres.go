package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlCorrections is idempotent and safe to run on every start.
const ddlCorrections = `
CREATE TABLE IF NOT EXISTS reading_corrections (
    id                 BIGSERIAL    PRIMARY KEY,
    run_id             TEXT         NOT NULL,
    surface            TEXT         NOT NULL,
    tier               TEXT         NOT NULL,
    baseline_readings  TEXT[]       NOT NULL DEFAULT '{}',
    engine_readings    TEXT[]       NOT NULL DEFAULT '{}',
    verdict            TEXT         NOT NULL,
    corrected_reading  TEXT         NOT NULL DEFAULT '',
    reject             TEXT         NOT NULL DEFAULT '',
    occurrences        INT          NOT NULL DEFAULT 0,
    patched_aligned    INT          NOT NULL DEFAULT 0,
    patched_clipped    INT          NOT NULL DEFAULT 0,
    timestamp          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reading_corrections_run_id
    ON reading_corrections (run_id);

CREATE INDEX IF NOT EXISTS idx_reading_corrections_surface
    ON reading_corrections (surface);

CREATE INDEX IF NOT EXISTS idx_reading_corrections_timestamp
    ON reading_corrections (timestamp);
`

// PostgresSink persists audit records in a reading_corrections table.
// All methods are safe for concurrent use.
type PostgresSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink establishes a connection pool to the database at dsn
// and ensures the reading_corrections table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlCorrections); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: migrate: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

// Write inserts rec into the reading_corrections table.
func (p *PostgresSink) Write(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO reading_corrections
		    (run_id, surface, tier, baseline_readings, engine_readings,
		     verdict, corrected_reading, reject, occurrences,
		     patched_aligned, patched_clipped, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := p.pool.Exec(ctx, q,
		rec.RunID,
		rec.Surface,
		rec.Tier,
		rec.BaselineReadings,
		rec.EngineReadings,
		rec.Verdict,
		rec.CorrectedReading,
		rec.Reject,
		rec.Occurrences,
		rec.PatchedAligned,
		rec.PatchedClipped,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit postgres: write: %w", err)
	}
	return nil
}

// Ping verifies the pool can still reach the database. Used by
// readiness checks.
func (p *PostgresSink) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (p *PostgresSink) Close(context.Context) error {
	p.pool.Close()
	return nil
}
