package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Service owns the cart lifecycle: find-or-create, line item merges and
// aggregate recomputation. It holds no locks of its own; the Store's
// uniqueness constraints and row locks arbitrate concurrent writers.
type Service struct {
	Store    Store
	Products ProductLookup
	Defaults Defaults
	Logger   *zerolog.Logger
	Tracer   trace.Tracer
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Products == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

func (s *Service) logger() *zerolog.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (s *Service) tracer() trace.Tracer {
	if s != nil && s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer("cart")
}

// observe wraps an operation with a span, metrics and failure logging.
func (s *Service) observe(ctx context.Context, op, ownerID string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer().Start(ctx, "cart."+op, trace.WithAttributes(attrs...))
	defer span.End()
	start := time.Now()

	err := fn(ctx)

	obs.ObserveCartOperation(op, resultLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Message(err))
		evt := s.logger().Debug()
		if errors.Is(err, ErrPersistence) {
			evt = s.logger().Error()
		}
		evt.Err(err).Str("operation", op).Str("owner_id", ownerID).Msg("cart operation failed")
	}
	return err
}

func (s *Service) checkAmount(amount, floor int) error {
	if limit := s.Defaults.maxLineAmount(); amount < floor || amount > limit {
		return fmt.Errorf("amount %d outside [%d, %d]: %w", amount, floor, limit, ErrInvalidQuantity)
	}
	return nil
}

func normalizeOwner(ownerID string) (string, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return "", ErrInvalidOwner
	}
	return owner, nil
}

// FetchOrCreateCart returns the owner's cart with its items. When the owner
// has no cart one is created, unless opts.FailIfMissing is set in which case
// ErrCartNotFound is returned.
func (s *Service) FetchOrCreateCart(ctx context.Context, ownerID string, opts FetchOptions) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "fetch_or_create", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		c, err := s.Store.FindCartByOwner(ctx, owner, true)
		if err == nil {
			out = withItems(c)
			return nil
		}
		if !errors.Is(err, ErrCartNotFound) {
			return storeError("find cart", err)
		}
		if opts.FailIfMissing {
			return ErrCartNotFound
		}
		c, err = s.Store.CreateCart(ctx, owner, s.Defaults)
		if err != nil {
			return storeError("create cart", err)
		}
		out = withItems(c)
		return nil
	}, attribute.Bool("cart.fail_if_missing", opts.FailIfMissing))
	return out, err
}

// AddToCart merges amount units of productID into the owner's cart, creating
// the cart on first use, and returns the recomputed cart. Adding a product
// that is already in the cart increments its amount.
func (s *Service) AddToCart(ctx context.Context, ownerID, productID string, amount int) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "add_item", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		if err := s.checkAmount(amount, 1); err != nil {
			return err
		}
		productID = strings.TrimSpace(productID)
		if productID == "" {
			return ErrProductNotFound
		}
		product, err := s.Products.GetProduct(ctx, productID)
		if err != nil {
			return storeError("get product", err)
		}
		out, err = s.mutate(ctx, owner, true, func(q Queries, c Cart) error {
			it, err := q.UpsertCartItem(ctx, c.ID, product.ID, amount)
			if err != nil {
				return err
			}
			if limit := s.Defaults.maxLineAmount(); it.Amount > limit {
				return fmt.Errorf("merged amount %d exceeds %d: %w", it.Amount, limit, ErrInvalidQuantity)
			}
			return nil
		})
		return err
	}, attribute.String("cart.product_id", productID), attribute.Int("cart.amount", amount))
	return out, err
}

// UpdateCartItemAmount sets an explicit amount on an existing line. An amount
// of zero removes the line.
func (s *Service) UpdateCartItemAmount(ctx context.Context, ownerID, itemID string, amount int) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "update_item", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		if err := s.checkAmount(amount, 0); err != nil {
			return err
		}
		itemID = strings.TrimSpace(itemID)
		if itemID == "" {
			return ErrCartItemNotFound
		}
		out, err = s.mutate(ctx, owner, false, func(q Queries, c Cart) error {
			if amount == 0 {
				return q.DeleteCartItem(ctx, c.ID, itemID)
			}
			_, err := q.SetCartItemAmount(ctx, c.ID, itemID, amount)
			return err
		})
		return err
	}, attribute.String("cart.item_id", itemID), attribute.Int("cart.amount", amount))
	return out, err
}

// RemoveCartItem deletes a line from the owner's cart.
func (s *Service) RemoveCartItem(ctx context.Context, ownerID, itemID string) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "remove_item", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		itemID = strings.TrimSpace(itemID)
		if itemID == "" {
			return ErrCartItemNotFound
		}
		out, err = s.mutate(ctx, owner, false, func(q Queries, c Cart) error {
			return q.DeleteCartItem(ctx, c.ID, itemID)
		})
		return err
	}, attribute.String("cart.item_id", itemID))
	return out, err
}

// ClearCart removes every line. The cart itself is kept so the owner never
// ends up with a second one.
func (s *Service) ClearCart(ctx context.Context, ownerID string) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "clear", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		out, err = s.mutate(ctx, owner, false, func(q Queries, c Cart) error {
			return q.DeleteCartItems(ctx, c.ID)
		})
		return err
	})
	return out, err
}

// RecomputeCart re-derives and persists the aggregates from the stored lines.
func (s *Service) RecomputeCart(ctx context.Context, ownerID string) (Cart, error) {
	var out Cart
	err := s.observe(ctx, "recompute", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		out, err = s.mutate(ctx, owner, false, nil)
		return err
	})
	return out, err
}

// ItemCount reports the number of units in the owner's cart, zero when the
// owner has none. It never creates a cart.
func (s *Service) ItemCount(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.observe(ctx, "item_count", ownerID, func(ctx context.Context) error {
		if err := s.ready(); err != nil {
			return err
		}
		owner, err := normalizeOwner(ownerID)
		if err != nil {
			return err
		}
		c, err := s.Store.FindCartByOwner(ctx, owner, false)
		if err != nil {
			if errors.Is(err, ErrCartNotFound) {
				return nil
			}
			return storeError("find cart", err)
		}
		count = c.NumItemsInCart
		return nil
	})
	return count, err
}

// mutate runs change against the owner's cart and recomputes the aggregates
// in the same transaction. The cart row is locked before change runs so the
// recomputation always sees the full, latest item set.
func (s *Service) mutate(ctx context.Context, owner string, create bool, change func(Queries, Cart) error) (Cart, error) {
	var out Cart
	err := s.Store.WithTx(ctx, func(q Queries) error {
		var (
			c   Cart
			err error
		)
		if create {
			c, err = findOrCreate(ctx, q, owner, s.Defaults)
		} else {
			c, err = q.FindCartByOwner(ctx, owner, false)
		}
		if err != nil {
			return err
		}
		locked, err := q.LockCart(ctx, c.ID)
		if err != nil {
			return err
		}
		if change != nil {
			if err := change(q, locked); err != nil {
				return err
			}
		}
		out, err = recompute(ctx, q, locked)
		return err
	})
	if err != nil {
		return Cart{}, storeError("update cart", err)
	}
	return out, nil
}

func findOrCreate(ctx context.Context, q Queries, owner string, defaults Defaults) (Cart, error) {
	c, err := q.FindCartByOwner(ctx, owner, false)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return Cart{}, err
	}
	return q.CreateCart(ctx, owner, defaults)
}

// recompute derives the aggregates from every stored line of c and persists them.
func recompute(ctx context.Context, q Queries, c Cart) (Cart, error) {
	items, err := q.ListCartItems(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	totals, err := pricing.Compute(lines(items), c.TaxRate, c.ShippingFee)
	if err != nil {
		return Cart{}, fmt.Errorf("recompute cart %s: %w: %w", c.ID, ErrInvalidQuantity, err)
	}
	updated, err := q.UpdateCartAggregates(ctx, c.ID, totals)
	if err != nil {
		return Cart{}, err
	}
	updated.Items = items
	return withItems(updated), nil
}

func withItems(c Cart) Cart {
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c
}
