package cart

import (
	"context"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// ProductLookup resolves catalog products. Implementations return
// ErrProductNotFound when the id is unknown.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// Queries is the set of cart persistence operations. Implementations report
// missing rows with ErrCartNotFound / ErrCartItemNotFound.
type Queries interface {
	// FindCartByOwner returns the owner's cart, with items when includeItems is set.
	FindCartByOwner(ctx context.Context, ownerID string, includeItems bool) (Cart, error)
	// CreateCart inserts an empty cart for ownerID. When a concurrent caller
	// won the race the existing cart is returned instead of an error.
	CreateCart(ctx context.Context, ownerID string, defaults Defaults) (Cart, error)
	// LockCart re-reads the cart row and serializes writers on it until the
	// surrounding transaction ends.
	LockCart(ctx context.Context, cartID string) (Cart, error)
	FindCartItem(ctx context.Context, cartID, productID string) (Item, error)
	// UpsertCartItem adds amount to the (cartID, productID) line, inserting it when absent.
	UpsertCartItem(ctx context.Context, cartID, productID string, amount int) (Item, error)
	SetCartItemAmount(ctx context.Context, cartID, itemID string, amount int) (Item, error)
	DeleteCartItem(ctx context.Context, cartID, itemID string) error
	DeleteCartItems(ctx context.Context, cartID string) error
	// ListCartItems returns every line of the cart joined with product data, oldest first.
	ListCartItems(ctx context.Context, cartID string) ([]Item, error)
	UpdateCartAggregates(ctx context.Context, cartID string, totals pricing.Totals) (Cart, error)
}

// Store runs Queries, optionally inside a transaction. fn's writes are
// committed only when it returns nil.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(Queries) error) error
}
