package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-cart/internal/cart"
)

const keyPrefix = "cart:product:"

// Cache stores product snapshots in Redis as JSON. A nil client or a
// non-positive TTL turns every read into a miss and every write into a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a product cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the cached product and whether it was present.
func (c *Cache) Get(ctx context.Context, productID string) (cart.Product, bool, error) {
	if !c.enabled() || productID == "" {
		return cart.Product{}, false, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+productID).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Product{}, false, nil
	}
	if err != nil {
		return cart.Product{}, false, err
	}
	var p cart.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return cart.Product{}, false, err
	}
	return p, true, nil
}

// Put stores p until the TTL elapses.
func (c *Cache) Put(ctx context.Context, p cart.Product) error {
	if !c.enabled() || p.ID == "" {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+p.ID, raw, c.ttl).Err()
}

// Evict drops a product snapshot.
func (c *Cache) Evict(ctx context.Context, productID string) error {
	if c == nil || c.client == nil || productID == "" {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+productID).Err()
}
