package cart

import (
	"time"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// ItemView is the JSON representation of a cart line.
type ItemView struct {
	ID        string        `json:"id"`
	ProductID string        `json:"productId"`
	Amount    int           `json:"amount"`
	Product   Product       `json:"product"`
	Subtotal  pricing.Money `json:"subtotal"`
}

// CartView is the JSON representation of a cart.
type CartView struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"ownerId"`
	NumItemsInCart int           `json:"numItemsInCart"`
	CartTotal      pricing.Money `json:"cartTotal"`
	Tax            pricing.Money `json:"tax"`
	TaxRate        string        `json:"taxRate"`
	Shipping       pricing.Money `json:"shipping"`
	OrderTotal     pricing.Money `json:"orderTotal"`
	Items          []ItemView    `json:"items"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// NewCartView converts a cart into its response shape.
func NewCartView(c Cart) CartView {
	items := make([]ItemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, ItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Amount:    it.Amount,
			Product:   it.Product,
			Subtotal:  pricing.Money(it.Amount) * it.Product.Price,
		})
	}
	return CartView{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		NumItemsInCart: c.NumItemsInCart,
		CartTotal:      c.CartTotal,
		Tax:            c.Tax,
		TaxRate:        c.TaxRate.String(),
		Shipping:       c.Shipping,
		OrderTotal:     c.OrderTotal,
		Items:          items,
		UpdatedAt:      c.UpdatedAt,
	}
}
