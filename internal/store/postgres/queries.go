package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const cartColumns = `id, owner_id, num_items_in_cart, cart_total, tax, tax_rate::text,
	shipping, shipping_fee, order_total, created_at, updated_at`

const itemColumns = `ci.id, ci.cart_id, ci.product_id, ci.amount, ci.created_at, ci.updated_at,
	p.id, p.name, p.price, p.image`

const (
	findCartByOwnerSQL = `SELECT ` + cartColumns + ` FROM carts WHERE owner_id = $1`

	createCartSQL = `INSERT INTO carts (id, owner_id, tax_rate, shipping_fee)
VALUES ($1, $2, $3::numeric, $4)
ON CONFLICT (owner_id) DO NOTHING
RETURNING ` + cartColumns

	lockCartSQL = `SELECT ` + cartColumns + ` FROM carts WHERE id = $1 FOR UPDATE`

	findCartItemSQL = `SELECT ` + itemColumns + `
FROM cart_items ci JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1 AND ci.product_id = $2`

	upsertCartItemSQL = `WITH up AS (
	INSERT INTO cart_items (id, cart_id, product_id, amount)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cart_id, product_id)
	DO UPDATE SET amount = cart_items.amount + EXCLUDED.amount, updated_at = now()
	RETURNING id, cart_id, product_id, amount, created_at, updated_at
)
SELECT up.id, up.cart_id, up.product_id, up.amount, up.created_at, up.updated_at,
	p.id, p.name, p.price, p.image
FROM up JOIN products p ON p.id = up.product_id`

	setCartItemAmountSQL = `WITH up AS (
	UPDATE cart_items SET amount = $3, updated_at = now()
	WHERE id = $1 AND cart_id = $2
	RETURNING id, cart_id, product_id, amount, created_at, updated_at
)
SELECT up.id, up.cart_id, up.product_id, up.amount, up.created_at, up.updated_at,
	p.id, p.name, p.price, p.image
FROM up JOIN products p ON p.id = up.product_id`

	deleteCartItemSQL  = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`
	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	listCartItemsSQL = `SELECT ` + itemColumns + `
FROM cart_items ci JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.seq`

	updateCartAggregatesSQL = `UPDATE carts
SET num_items_in_cart = $2, cart_total = $3, tax = $4, shipping = $5, order_total = $6, updated_at = now()
WHERE id = $1
RETURNING ` + cartColumns

	getProductSQL    = `SELECT id, name, price, image FROM products WHERE id = $1`
	upsertProductSQL = `INSERT INTO products (id, name, price, image)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, image = EXCLUDED.image, updated_at = now()`
)

// Queries implements cart.Queries on top of any DBTX.
type Queries struct {
	db DBTX
}

// NewQueries binds the cart queries to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) FindCartByOwner(ctx context.Context, ownerID string, includeItems bool) (cart.Cart, error) {
	c, err := scanCart(q.db.QueryRow(ctx, findCartByOwnerSQL, ownerID))
	if err != nil {
		return cart.Cart{}, mapError(err, cart.ErrCartNotFound)
	}
	if includeItems {
		if c.Items, err = q.ListCartItems(ctx, c.ID); err != nil {
			return cart.Cart{}, err
		}
	}
	return c, nil
}

func (q *Queries) CreateCart(ctx context.Context, ownerID string, defaults cart.Defaults) (cart.Cart, error) {
	c, err := scanCart(q.db.QueryRow(ctx, createCartSQL,
		uuid.New(), ownerID, defaults.TaxRate.String(), int64(defaults.ShippingFee)))
	if errors.Is(err, pgx.ErrNoRows) {
		// Another writer created the cart first.
		return q.FindCartByOwner(ctx, ownerID, true)
	}
	if err != nil {
		return cart.Cart{}, mapError(err, nil)
	}
	c.Items = []cart.Item{}
	return c, nil
}

func (q *Queries) LockCart(ctx context.Context, cartID string) (cart.Cart, error) {
	id, ok := parseID(cartID)
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	c, err := scanCart(q.db.QueryRow(ctx, lockCartSQL, id))
	if err != nil {
		return cart.Cart{}, mapError(err, cart.ErrCartNotFound)
	}
	return c, nil
}

func (q *Queries) FindCartItem(ctx context.Context, cartID, productID string) (cart.Item, error) {
	id, ok := parseID(cartID)
	if !ok {
		return cart.Item{}, cart.ErrCartItemNotFound
	}
	it, err := scanItem(q.db.QueryRow(ctx, findCartItemSQL, id, productID))
	if err != nil {
		return cart.Item{}, mapError(err, cart.ErrCartItemNotFound)
	}
	return it, nil
}

func (q *Queries) UpsertCartItem(ctx context.Context, cartID, productID string, amount int) (cart.Item, error) {
	if amount < 1 || amount > cart.AmountCeiling {
		return cart.Item{}, fmt.Errorf("amount %d: %w", amount, cart.ErrInvalidQuantity)
	}
	id, ok := parseID(cartID)
	if !ok {
		return cart.Item{}, cart.ErrCartNotFound
	}
	it, err := scanItem(q.db.QueryRow(ctx, upsertCartItemSQL, uuid.New(), id, productID, amount))
	if err != nil {
		return cart.Item{}, mapError(err, cart.ErrProductNotFound)
	}
	return it, nil
}

func (q *Queries) SetCartItemAmount(ctx context.Context, cartID, itemID string, amount int) (cart.Item, error) {
	if amount < 1 || amount > cart.AmountCeiling {
		return cart.Item{}, fmt.Errorf("amount %d: %w", amount, cart.ErrInvalidQuantity)
	}
	cid, ok1 := parseID(cartID)
	iid, ok2 := parseID(itemID)
	if !ok1 || !ok2 {
		return cart.Item{}, cart.ErrCartItemNotFound
	}
	it, err := scanItem(q.db.QueryRow(ctx, setCartItemAmountSQL, iid, cid, amount))
	if err != nil {
		return cart.Item{}, mapError(err, cart.ErrCartItemNotFound)
	}
	return it, nil
}

func (q *Queries) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	cid, ok1 := parseID(cartID)
	iid, ok2 := parseID(itemID)
	if !ok1 || !ok2 {
		return cart.ErrCartItemNotFound
	}
	tag, err := q.db.Exec(ctx, deleteCartItemSQL, iid, cid)
	if err != nil {
		return mapError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrCartItemNotFound
	}
	return nil
}

func (q *Queries) DeleteCartItems(ctx context.Context, cartID string) error {
	id, ok := parseID(cartID)
	if !ok {
		return cart.ErrCartNotFound
	}
	if _, err := q.db.Exec(ctx, deleteCartItemsSQL, id); err != nil {
		return mapError(err, nil)
	}
	return nil
}

func (q *Queries) ListCartItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	id, ok := parseID(cartID)
	if !ok {
		return []cart.Item{}, nil
	}
	rows, err := q.db.Query(ctx, listCartItemsSQL, id)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	items := make([]cart.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, mapError(err, nil)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, nil)
	}
	return items, nil
}

func (q *Queries) UpdateCartAggregates(ctx context.Context, cartID string, totals pricing.Totals) (cart.Cart, error) {
	id, ok := parseID(cartID)
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	c, err := scanCart(q.db.QueryRow(ctx, updateCartAggregatesSQL, id,
		totals.NumItems, int64(totals.CartTotal), int64(totals.Tax), int64(totals.Shipping), int64(totals.OrderTotal)))
	if err != nil {
		return cart.Cart{}, mapError(err, cart.ErrCartNotFound)
	}
	return c, nil
}

// GetProduct implements cart.ProductLookup.
func (q *Queries) GetProduct(ctx context.Context, productID string) (cart.Product, error) {
	var (
		p     cart.Product
		price int64
	)
	if err := q.db.QueryRow(ctx, getProductSQL, productID).Scan(&p.ID, &p.Name, &price, &p.Image); err != nil {
		return cart.Product{}, mapError(err, cart.ErrProductNotFound)
	}
	p.Price = pricing.Money(price)
	return p, nil
}

// UpsertProduct inserts or updates a catalog product.
func (q *Queries) UpsertProduct(ctx context.Context, p cart.Product) error {
	if _, err := q.db.Exec(ctx, upsertProductSQL, p.ID, p.Name, int64(p.Price), p.Image); err != nil {
		return mapError(err, nil)
	}
	return nil
}

func scanCart(row pgx.Row) (cart.Cart, error) {
	var (
		c    cart.Cart
		id   uuid.UUID
		rate string

		total, tax, shipping, shippingFee, orderTotal int64
	)
	err := row.Scan(&id, &c.OwnerID, &c.NumItemsInCart, &total, &tax, &rate,
		&shipping, &shippingFee, &orderTotal, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return cart.Cart{}, err
	}
	if c.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return cart.Cart{}, fmt.Errorf("decode tax rate %q: %w", rate, err)
	}
	c.ID = id.String()
	c.CartTotal = pricing.Money(total)
	c.Tax = pricing.Money(tax)
	c.Shipping = pricing.Money(shipping)
	c.ShippingFee = pricing.Money(shippingFee)
	c.OrderTotal = pricing.Money(orderTotal)
	return c, nil
}

func scanItem(row pgx.Row) (cart.Item, error) {
	var (
		it         cart.Item
		id, cartID uuid.UUID
		price      int64
	)
	err := row.Scan(&id, &cartID, &it.ProductID, &it.Amount, &it.CreatedAt, &it.UpdatedAt,
		&it.Product.ID, &it.Product.Name, &price, &it.Product.Image)
	if err != nil {
		return cart.Item{}, err
	}
	it.ID = id.String()
	it.CartID = cartID.String()
	it.Product.Price = pricing.Money(price)
	return it, nil
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	return id, err == nil
}

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNumericOutOfRange   = "22003"
)

// mapError converts driver errors into cart sentinels. notFound is returned
// for pgx.ErrNoRows; nil leaves ErrNoRows untouched.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "cart_items_cart_id_fkey" {
				return cart.ErrCartNotFound
			}
			return cart.ErrProductNotFound
		case pgCheckViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, cart.ErrInvalidQuantity)
		case pgNumericOutOfRange:
			return fmt.Errorf("%s: %w", pgErr.Message, cart.ErrInvalidQuantity)
		}
	}
	return err
}
