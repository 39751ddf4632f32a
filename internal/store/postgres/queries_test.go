package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
)

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name     string
		err      error
		notFound error
		want     error
	}{
		{"no rows", pgx.ErrNoRows, cart.ErrCartNotFound, cart.ErrCartNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), cart.ErrCartItemNotFound, cart.ErrCartItemNotFound},
		{"no rows kept", pgx.ErrNoRows, nil, pgx.ErrNoRows},
		{"product fk", &pgconn.PgError{Code: "23503", ConstraintName: "cart_items_product_id_fkey"}, nil, cart.ErrProductNotFound},
		{"cart fk", &pgconn.PgError{Code: "23503", ConstraintName: "cart_items_cart_id_fkey"}, nil, cart.ErrCartNotFound},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "cart_items_amount_check"}, nil, cart.ErrInvalidQuantity},
		{"ceiling check", &pgconn.PgError{Code: "23514", ConstraintName: "cart_items_amount_ceiling"}, nil, cart.ErrInvalidQuantity},
		{"integer out of range", &pgconn.PgError{Code: "22003", Message: "integer out of range"}, nil, cart.ErrInvalidQuantity},
		{"other", boom, cart.ErrCartNotFound, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, mapError(tc.err, tc.notFound), tc.want)
		})
	}
	require.NoError(t, mapError(nil, cart.ErrCartNotFound))
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/cart?sslmode=disable", migrateURL("postgres://u:p@db:5432/cart?sslmode=disable"))
	require.Equal(t, "pgx5://db/cart", migrateURL("postgresql://db/cart"))
	require.Equal(t, "pgx5://db/cart", migrateURL("pgx5://db/cart"))
}

func TestMalformedIDsShortCircuit(t *testing.T) {
	q := NewQueries(nil)
	ctx := context.Background()

	_, err := q.LockCart(ctx, "not-a-uuid")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
	_, err = q.SetCartItemAmount(ctx, "not-a-uuid", "x", 2)
	require.ErrorIs(t, err, cart.ErrCartItemNotFound)
	require.ErrorIs(t, q.DeleteCartItem(ctx, "00000000-0000-0000-0000-000000000001", "x"), cart.ErrCartItemNotFound)
	items, err := q.ListCartItems(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestUpsertRejectsNonPositiveAmount(t *testing.T) {
	q := NewQueries(nil)
	_, err := q.UpsertCartItem(context.Background(), "00000000-0000-0000-0000-000000000001", "prod-A", 0)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	_, err = q.SetCartItemAmount(context.Background(), "00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002", -1)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestAmountsAboveCeilingNeverReachTheDatabase(t *testing.T) {
	q := NewQueries(nil)
	ctx := context.Background()
	_, err := q.UpsertCartItem(ctx, "00000000-0000-0000-0000-000000000001", "prod-A", cart.AmountCeiling+1)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	_, err = q.SetCartItemAmount(ctx, "00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002", math.MaxInt)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Contains(t, names, "000001_cart.up.sql")
	require.Contains(t, names, "000001_cart.down.sql")
	require.Contains(t, names, "000002_cart_item_amount_ceiling.up.sql")
	require.Contains(t, names, "000002_cart_item_amount_ceiling.down.sql")

	up, err := migrationsFS.ReadFile("migrations/000002_cart_item_amount_ceiling.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(up), fmt.Sprintf("amount <= %d", cart.AmountCeiling))
}
