// Package catalog fronts product lookups with a Redis read-through cache.
package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/obs"
)

// CachedLookup decorates a cart.ProductLookup. Only hits are cached so a
// product created after a miss becomes visible immediately. Cache errors
// degrade to the underlying lookup.
type CachedLookup struct {
	Next   cart.ProductLookup
	Cache  *Cache
	Logger *zerolog.Logger
}

// GetProduct implements cart.ProductLookup.
func (l *CachedLookup) GetProduct(ctx context.Context, productID string) (cart.Product, error) {
	cached, found, err := l.Cache.Get(ctx, productID)
	switch {
	case err != nil:
		obs.ObserveProductCache("error")
		l.warn(err, productID, "product cache read failed")
	case found:
		obs.ObserveProductCache("hit")
		return cached, nil
	default:
		obs.ObserveProductCache("miss")
	}

	p, err := l.Next.GetProduct(ctx, productID)
	if err != nil {
		return cart.Product{}, err
	}
	if err := l.Cache.Put(ctx, p); err != nil {
		l.warn(err, productID, "product cache write failed")
	}
	return p, nil
}

// Invalidate evicts a product, used after catalog price changes.
func (l *CachedLookup) Invalidate(ctx context.Context, productID string) error {
	return l.Cache.Evict(ctx, productID)
}

func (l *CachedLookup) warn(err error, productID, msg string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Warn().Err(err).Str("product_id", productID).Msg(msg)
}
