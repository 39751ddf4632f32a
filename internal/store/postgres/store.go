// Package postgres persists carts in PostgreSQL through pgx. Owner and line
// uniqueness are enforced by the schema, and mutating transactions lock the
// cart row before recomputing aggregates.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-cart/internal/cart"
)

// Store implements cart.Store and cart.ProductLookup on a pgx pool.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Queries: NewQueries(pool), pool: pool}
}

// WithTx runs fn inside a read-committed transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(cart.Queries) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewQueries(tx))
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
