package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Product is the read-only catalog data a cart line needs.
type Product struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
	Image string        `json:"image,omitempty"`
}

// Item is a single product line inside a cart.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Amount    int
	Product   Product
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cart is the per-owner cart together with its derived aggregates.
//
// Shipping is the fee actually charged (zero for an empty cart) while
// ShippingFee is the flat fee captured when the cart was created.
type Cart struct {
	ID             string
	OwnerID        string
	NumItemsInCart int
	CartTotal      pricing.Money
	Tax            pricing.Money
	Shipping       pricing.Money
	ShippingFee    pricing.Money
	OrderTotal     pricing.Money
	TaxRate        decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []Item
}

// Totals returns the aggregate fields of the cart.
func (c Cart) Totals() pricing.Totals {
	return pricing.Totals{
		NumItems:   c.NumItemsInCart,
		CartTotal:  c.CartTotal,
		Tax:        c.Tax,
		Shipping:   c.Shipping,
		OrderTotal: c.OrderTotal,
	}
}

// AmountCeiling is the largest line amount any store accepts.
const AmountCeiling = 1_000_000

// Defaults holds the pricing parameters stamped on newly created carts and the
// per-line amount limit enforced on every write. A zero MaxLineAmount means
// AmountCeiling.
type Defaults struct {
	TaxRate       decimal.Decimal
	ShippingFee   pricing.Money
	MaxLineAmount int
}

func (d Defaults) maxLineAmount() int {
	if d.MaxLineAmount <= 0 || d.MaxLineAmount > AmountCeiling {
		return AmountCeiling
	}
	return d.MaxLineAmount
}

// FetchOptions tunes FetchOrCreateCart.
type FetchOptions struct {
	FailIfMissing bool
}

func lines(items []Item) []pricing.Line {
	out := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Line{Amount: it.Amount, Price: it.Product.Price})
	}
	return out
}
