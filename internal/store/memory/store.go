// Package memory provides an in-process cart store. Transactions hold the
// store mutex and work on a copy of the state that replaces the live state
// only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Store implements cart.Store and cart.ProductLookup in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	Now func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type state struct {
	carts    map[string]cart.Cart
	owners   map[string]string
	items    map[string]cart.Item
	order    map[string]int64
	products map[string]cart.Product
	seq      int64
}

func newState() *state {
	return &state{
		carts:    map[string]cart.Cart{},
		owners:   map[string]string{},
		items:    map[string]cart.Item{},
		order:    map[string]int64{},
		products: map[string]cart.Product{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.carts {
		out.carts[k] = v
	}
	for k, v := range s.owners {
		out.owners[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.order {
		out.order[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	out.seq = s.seq
	return out
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) view() *view {
	if s.st == nil {
		s.st = newState()
	}
	return &view{st: s.st, now: s.now}
}

// PutProduct inserts or replaces a catalog product.
func (s *Store) PutProduct(p cart.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view().st.products[p.ID] = p
}

// DeleteProduct removes a product together with every cart line referencing it.
func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.view().st
	delete(st.products, id)
	for itemID, it := range st.items {
		if it.ProductID == id {
			delete(st.items, itemID)
			delete(st.order, itemID)
		}
	}
}

// GetProduct implements cart.ProductLookup.
func (s *Store) GetProduct(ctx context.Context, productID string) (cart.Product, error) {
	if err := ctx.Err(); err != nil {
		return cart.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.view().st.products[productID]
	if !ok {
		return cart.Product{}, cart.ErrProductNotFound
	}
	return p, nil
}

// WithTx runs fn against a private copy of the state and publishes it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(cart.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.view()
	tx := &view{st: live.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) FindCartByOwner(ctx context.Context, ownerID string, includeItems bool) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindCartByOwner(ctx, ownerID, includeItems)
}

func (s *Store) CreateCart(ctx context.Context, ownerID string, defaults cart.Defaults) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateCart(ctx, ownerID, defaults)
}

func (s *Store) LockCart(ctx context.Context, cartID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().LockCart(ctx, cartID)
}

func (s *Store) FindCartItem(ctx context.Context, cartID, productID string) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindCartItem(ctx, cartID, productID)
}

func (s *Store) UpsertCartItem(ctx context.Context, cartID, productID string, amount int) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpsertCartItem(ctx, cartID, productID, amount)
}

func (s *Store) SetCartItemAmount(ctx context.Context, cartID, itemID string, amount int) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SetCartItemAmount(ctx, cartID, itemID, amount)
}

func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteCartItem(ctx, cartID, itemID)
}

func (s *Store) DeleteCartItems(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteCartItems(ctx, cartID)
}

func (s *Store) ListCartItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListCartItems(ctx, cartID)
}

func (s *Store) UpdateCartAggregates(ctx context.Context, cartID string, totals pricing.Totals) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateCartAggregates(ctx, cartID, totals)
}

// view executes queries against one state snapshot. Callers hold Store.mu.
type view struct {
	st  *state
	now func() time.Time
}

func (v *view) FindCartByOwner(ctx context.Context, ownerID string, includeItems bool) (cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return cart.Cart{}, err
	}
	id, ok := v.st.owners[ownerID]
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	c := v.st.carts[id]
	if includeItems {
		c.Items = v.list(id)
	}
	return c, nil
}

func (v *view) CreateCart(ctx context.Context, ownerID string, defaults cart.Defaults) (cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return cart.Cart{}, err
	}
	if id, ok := v.st.owners[ownerID]; ok {
		c := v.st.carts[id]
		c.Items = v.list(id)
		return c, nil
	}
	now := v.now()
	c := cart.Cart{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		TaxRate:     defaults.TaxRate,
		ShippingFee: defaults.ShippingFee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.st.carts[c.ID] = c
	v.st.owners[ownerID] = c.ID
	c.Items = []cart.Item{}
	return c, nil
}

func (v *view) LockCart(ctx context.Context, cartID string) (cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return cart.Cart{}, err
	}
	c, ok := v.st.carts[cartID]
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	return c, nil
}

func (v *view) FindCartItem(ctx context.Context, cartID, productID string) (cart.Item, error) {
	if err := ctx.Err(); err != nil {
		return cart.Item{}, err
	}
	for _, it := range v.st.items {
		if it.CartID == cartID && it.ProductID == productID {
			return v.join(it), nil
		}
	}
	return cart.Item{}, cart.ErrCartItemNotFound
}

func (v *view) UpsertCartItem(ctx context.Context, cartID, productID string, amount int) (cart.Item, error) {
	if err := ctx.Err(); err != nil {
		return cart.Item{}, err
	}
	if amount < 1 || amount > cart.AmountCeiling {
		return cart.Item{}, fmt.Errorf("amount %d: %w", amount, cart.ErrInvalidQuantity)
	}
	if _, ok := v.st.carts[cartID]; !ok {
		return cart.Item{}, cart.ErrCartNotFound
	}
	if _, ok := v.st.products[productID]; !ok {
		return cart.Item{}, cart.ErrProductNotFound
	}
	now := v.now()
	for id, it := range v.st.items {
		if it.CartID == cartID && it.ProductID == productID {
			if it.Amount > cart.AmountCeiling-amount {
				return cart.Item{}, fmt.Errorf("amount %d + %d: %w", it.Amount, amount, cart.ErrInvalidQuantity)
			}
			it.Amount += amount
			it.UpdatedAt = now
			v.st.items[id] = it
			return v.join(it), nil
		}
	}
	it := cart.Item{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.st.seq++
	v.st.items[it.ID] = it
	v.st.order[it.ID] = v.st.seq
	return v.join(it), nil
}

func (v *view) SetCartItemAmount(ctx context.Context, cartID, itemID string, amount int) (cart.Item, error) {
	if err := ctx.Err(); err != nil {
		return cart.Item{}, err
	}
	if amount < 1 || amount > cart.AmountCeiling {
		return cart.Item{}, fmt.Errorf("amount %d: %w", amount, cart.ErrInvalidQuantity)
	}
	it, ok := v.st.items[itemID]
	if !ok || it.CartID != cartID {
		return cart.Item{}, cart.ErrCartItemNotFound
	}
	it.Amount = amount
	it.UpdatedAt = v.now()
	v.st.items[itemID] = it
	return v.join(it), nil
}

func (v *view) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it, ok := v.st.items[itemID]
	if !ok || it.CartID != cartID {
		return cart.ErrCartItemNotFound
	}
	delete(v.st.items, itemID)
	delete(v.st.order, itemID)
	return nil
}

func (v *view) DeleteCartItems(ctx context.Context, cartID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, it := range v.st.items {
		if it.CartID == cartID {
			delete(v.st.items, id)
			delete(v.st.order, id)
		}
	}
	return nil
}

func (v *view) ListCartItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.list(cartID), nil
}

func (v *view) UpdateCartAggregates(ctx context.Context, cartID string, totals pricing.Totals) (cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return cart.Cart{}, err
	}
	c, ok := v.st.carts[cartID]
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	c.NumItemsInCart = totals.NumItems
	c.CartTotal = totals.CartTotal
	c.Tax = totals.Tax
	c.Shipping = totals.Shipping
	c.OrderTotal = totals.OrderTotal
	c.UpdatedAt = v.now()
	v.st.carts[cartID] = c
	return c, nil
}

func (v *view) list(cartID string) []cart.Item {
	out := make([]cart.Item, 0)
	for _, it := range v.st.items {
		if it.CartID == cartID {
			out = append(out, v.join(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return v.st.order[out[i].ID] < v.st.order[out[j].ID]
	})
	return out
}

func (v *view) join(it cart.Item) cart.Item {
	it.Product = v.st.products[it.ProductID]
	return it
}
