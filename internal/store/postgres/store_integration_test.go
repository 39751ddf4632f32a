package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/store/postgres"
)

// Runs against a disposable database named by CART_TEST_DATABASE_URL.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("CART_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CART_TEST_DATABASE_URL not set")
	}
	require.NoError(t, postgres.Migrate(url))
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), "TRUNCATE cart_items, carts, products")
	require.NoError(t, err)

	st := postgres.New(pool)
	ctx := context.Background()
	require.NoError(t, st.UpsertProduct(ctx, cart.Product{ID: "prod-A", Name: "Lamp", Price: 1000}))
	require.NoError(t, st.UpsertProduct(ctx, cart.Product{ID: "prod-B", Name: "Chair", Price: 500}))
	return st
}

func newService(st *postgres.Store) *cart.Service {
	return &cart.Service{
		Store:    st,
		Products: st,
		Defaults: cart.Defaults{TaxRate: decimal.RequireFromString("0.08"), ShippingFee: 500},
	}
}

func TestPostgresScenario(t *testing.T) {
	st := openStore(t)
	svc := newService(st)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "u1", "prod-A", 2)
	require.NoError(t, err)
	c, err := svc.AddToCart(ctx, "u1", "prod-B", 1)
	require.NoError(t, err)

	require.Equal(t, 3, c.NumItemsInCart)
	require.EqualValues(t, 2500, c.CartTotal)
	require.EqualValues(t, 200, c.Tax)
	require.EqualValues(t, 500, c.Shipping)
	require.EqualValues(t, 3200, c.OrderTotal)
	require.Len(t, c.Items, 2)
	require.Equal(t, "prod-A", c.Items[0].ProductID)
	require.True(t, c.TaxRate.Equal(decimal.RequireFromString("0.08")))

	_, err = svc.AddToCart(ctx, "u1", "missing", 1)
	require.ErrorIs(t, err, cart.ErrProductNotFound)
}

func TestPostgresConcurrentAdds(t *testing.T) {
	st := openStore(t)
	svc := newService(st)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.AddToCart(ctx, "u2", "prod-A", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	c, err := svc.FetchOrCreateCart(ctx, "u2", cart.FetchOptions{FailIfMissing: true})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 8, c.Items[0].Amount)
	require.Equal(t, 8, c.NumItemsInCart)
	require.EqualValues(t, 8000, c.CartTotal)
}
