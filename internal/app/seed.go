package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/noah-isme/toko-cart/internal/cart"
)

// LoadProducts reads a JSON array of catalog products from path.
func LoadProducts(path string) ([]cart.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var products []cart.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("seed product %d: id is required", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("seed product %s: price must not be negative", p.ID)
		}
	}
	return products, nil
}

type invalidator interface {
	Invalidate(ctx context.Context, productID string) error
}

// SeedCatalog writes products through seed. When lookup caches products, each
// seeded product is evicted so a changed price is read from the store.
func SeedCatalog(ctx context.Context, products []cart.Product, seed func(context.Context, cart.Product) error, lookup cart.ProductLookup) error {
	cache, _ := lookup.(invalidator)
	for _, p := range products {
		if err := seed(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		if cache == nil {
			continue
		}
		if err := cache.Invalidate(ctx, p.ID); err != nil {
			return fmt.Errorf("evict product %s: %w", p.ID, err)
		}
	}
	return nil
}
