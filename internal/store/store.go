package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by every lookup that matches no booking.
var ErrNotFound = errors.New("booking not found")

// ErrStale is returned by conditional updates whose expected updated_at
// no longer matches; the caller raced another writer and must refetch.
var ErrStale = errors.New("booking was modified concurrently")

// ErrRefCodeExhausted means three consecutive generated reference codes
// collided, which indicates something badly wrong with the generator or
// the table, not bad luck.
var ErrRefCodeExhausted = errors.New("reference code generation exhausted retries")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
