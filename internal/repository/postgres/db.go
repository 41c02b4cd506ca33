// Package postgres implements the repository layer on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"shuttle/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repositories returns repositories bound to the connection pool.
func (s *Store) Repositories() repository.Repositories {
	return reposFor(s.db)
}

// WithinTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, reposFor(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func reposFor(q Querier) repository.Repositories {
	return repository.Repositories{
		Locations:     &LocationRepository{q: q},
		Trips:         &TripRepository{q: q},
		TripInstances: &TripInstanceRepository{q: q},
		Bookings:      &BookingRepository{q: q},
		Shuttles:      &ShuttleRepository{q: q},
		Assignments:   &AssignmentRepository{q: q},
		CheckIns:      &CheckInTokenRepository{q: q},
	}
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// translate maps driver errors onto repository errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

// expectOne turns an UPDATE or DELETE that touched no row into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
