package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
)

type countingLookup struct {
	products map[string]cart.Product
	calls    int
}

func (c *countingLookup) GetProduct(_ context.Context, id string) (cart.Product, error) {
	c.calls++
	p, ok := c.products[id]
	if !ok {
		return cart.Product{}, cart.ErrProductNotFound
	}
	return p, nil
}

func newLookup(t *testing.T) (*CachedLookup, *countingLookup, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingLookup{products: map[string]cart.Product{
		"prod-A": {ID: "prod-A", Name: "Lamp", Price: 1000},
	}}
	return &CachedLookup{Next: next, Cache: NewCache(client, time.Minute)}, next, mr
}

func TestCachedLookupServesHits(t *testing.T) {
	l, next, _ := newLookup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := l.GetProduct(ctx, "prod-A")
		require.NoError(t, err)
		require.EqualValues(t, 1000, p.Price)
	}
	require.Equal(t, 1, next.calls)
}

func TestCachedLookupDoesNotCacheMisses(t *testing.T) {
	l, next, mr := newLookup(t)
	ctx := context.Background()

	_, err := l.GetProduct(ctx, "missing")
	require.ErrorIs(t, err, cart.ErrProductNotFound)
	require.Empty(t, mr.Keys())

	next.products["missing"] = cart.Product{ID: "missing", Price: 5}
	p, err := l.GetProduct(ctx, "missing")
	require.NoError(t, err)
	require.EqualValues(t, 5, p.Price)
}

func TestCachedLookupExpiresAndInvalidates(t *testing.T) {
	l, next, mr := newLookup(t)
	ctx := context.Background()

	_, err := l.GetProduct(ctx, "prod-A")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = l.GetProduct(ctx, "prod-A")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)

	require.NoError(t, l.Invalidate(ctx, "prod-A"))
	_, err = l.GetProduct(ctx, "prod-A")
	require.NoError(t, err)
	require.Equal(t, 3, next.calls)
}

func TestCachedLookupDegradesWithoutRedis(t *testing.T) {
	next := &countingLookup{products: map[string]cart.Product{"prod-A": {ID: "prod-A", Price: 1}}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()
	l := &CachedLookup{Next: next, Cache: NewCache(client, time.Minute)}

	p, err := l.GetProduct(context.Background(), "prod-A")
	require.NoError(t, err)
	require.EqualValues(t, 1, p.Price)
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewCache(client, 0)
	require.NoError(t, c.Put(context.Background(), cart.Product{ID: "prod-A", Price: 1}))
	_, found, err := c.Get(context.Background(), "prod-A")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, mr.Keys())
}
