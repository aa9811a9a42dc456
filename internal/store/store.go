// Package store implements the Postgres persistence layer behind the
// import, assignment, and attendance subsystems. Consumers depend on narrow
// interfaces declared on their side; this package provides the pgx-backed
// implementations and the schema bootstrap.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cohort/internal/identity"
)

// Sentinel errors mapped from storage conditions, aliased from the shared
// model package so domain code can branch without importing store.
var (
	ErrNotFound  = identity.ErrNotFound
	ErrDuplicate = identity.ErrDuplicate
)

// Store bundles the repositories over one connection pool.
type Store struct {
	pool *pgxpool.Pool

	Identities  *IdentityRepo
	Assignments *AssignmentRepo
	Attendance  *AttendanceRepo
}

// New wraps an established pool. The pool is owned by the caller.
func New(pool *pgxpool.Pool) *Store {
	s := &Store{pool: pool}
	s.Identities = &IdentityRepo{pool: pool}
	s.Assignments = &AssignmentRepo{pool: pool}
	s.Attendance = &AttendanceRepo{pool: pool}
	return s
}

// LedgerStore combines the identity and assignment repositories into the
// surface the assignment ledger consumes.
type LedgerStore struct {
	*IdentityRepo
	*AssignmentRepo
}

// ForAssignments returns the combined repository view.
func (s *Store) ForAssignments() LedgerStore {
	return LedgerStore{s.Identities, s.Assignments}
}

// Ping verifies connectivity. Used at startup so an unreachable database is
// a fatal pre-batch error rather than a run of per-row failures.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables if they do not exist.
//
// The assignment relation is stored on both sides on purpose: the
// participant row carries assigned_mentor and the mentor_assignees table
// carries the mentor's set. Writes touch both inside one transaction; the
// ledger's repair pass heals any one-sided leftovers.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id              UUID PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			mobile          TEXT NOT NULL DEFAULT '',
			institution     TEXT NOT NULL DEFAULT '',
			role            TEXT NOT NULL,
			active          BOOLEAN NOT NULL DEFAULT TRUE,
			password_hash   TEXT NOT NULL DEFAULT '',
			description     TEXT NOT NULL DEFAULT '',
			skills          TEXT[] NOT NULL DEFAULT '{}',
			assigned_mentor TEXT NOT NULL DEFAULT '',
			registered_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS mentor_assignees (
			mentor_email      TEXT NOT NULL,
			participant_email TEXT NOT NULL,
			assigned_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (mentor_email, participant_email)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id                UUID NOT NULL,
			participant_email TEXT NOT NULL,
			day               DATE NOT NULL,
			status            TEXT NOT NULL,
			marked_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (participant_email, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_identities_role ON identities (role)`,
		`CREATE INDEX IF NOT EXISTS idx_assignees_participant ON mentor_assignees (participant_email)`,
	}

	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// mapError converts driver errors to the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
