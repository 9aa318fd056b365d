// FilePath: server/watchdog/internal/repository/postgres/postgres.baserepo.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	"github.com/lib/pq"
)

type PostgresBaseRepo struct {
	db database.DB
}

func (r *PostgresBaseRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

func (r *PostgresBaseRepo) Ping(ctx context.Context) error {
	if err := r.db.GetDB().PingContext(ctx); err != nil {
		return errors.NewUnavailableError("app database unreachable", err)
	}
	return nil
}

// wrapGetError maps a failed single-row lookup. repository.ErrNotFound stays
// reachable through errors.Is.
func wrapGetError(err error, what string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError(what+" not found", fmt.Errorf("%w: %v", repository.ErrNotFound, err))
	}
	return errors.NewDatabaseError("failed to get "+what, err)
}

// wrapWriteError maps a failed insert or update by postgres error code.
func wrapWriteError(err error, what string) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return errors.NewConflictError(what+" already exists", fmt.Errorf("%w: %v", repository.ErrDuplicate, err))
		case "23503", "23502", "22P02": // foreign_key_violation, not_null_violation, invalid_text_representation
			return errors.NewValidationError("invalid "+what, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err))
		}
	}
	return errors.NewDatabaseError("failed to write "+what, err)
}

func notFound(what string) error {
	return errors.NewNotFoundError(what+" not found", repository.ErrNotFound)
}

// InitializeSchema creates the app tables the watchdog reads and writes.
func InitializeSchema(ctx context.Context, db database.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			min_temperature DOUBLE PRECISION,
			max_temperature DOUBLE PRECISION,
			notify_email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL REFERENCES locations(id),
			name TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			retired BOOLEAN NOT NULL DEFAULT FALSE,
			exclude_from_inactivity BOOLEAN NOT NULL DEFAULT FALSE,
			inactivity_minutes INTEGER NOT NULL DEFAULT 0,
			battery_ok_level DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS leak_devices (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL REFERENCES locations(id),
			name TEXT NOT NULL UNIQUE,
			retired BOOLEAN NOT NULL DEFAULT FALSE,
			inactivity_minutes INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_location ON devices(location_id)`,
	}
	for _, query := range queries {
		if _, err := db.GetDB().ExecContext(ctx, query); err != nil {
			return errors.NewDatabaseError("failed to initialize app schema", err)
		}
	}
	return nil
}
