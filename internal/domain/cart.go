package domain

import "strings"

// Placeholders rendered when the cart service omits descriptive fields.
const (
	UnknownBrand = "Unknown Brand"
	UnknownModel = "Unknown Model"
)

// CartItem mirrors one line of the remote cart. Price is in minor units.
type CartItem struct {
	ListingID   string      `json:"listingId"`
	Quantity    int         `json:"quantity"`
	Brand       string      `json:"brand"`
	Model       string      `json:"model"`
	Price       int64       `json:"price"`
	Currency    string      `json:"currency"`
	ListingType ListingType `json:"listingType"`
	Image       string      `json:"image,omitempty"`
}

// CartSummary is computed by the cart service and is authoritative over any
// local arithmetic.
type CartSummary struct {
	ItemCount  int    `json:"itemCount"`
	TotalValue int64  `json:"totalValue"`
	Currency   string `json:"currency"`
}

// Cart is the local mirror of the remote cart.
type Cart struct {
	Items   []CartItem  `json:"items"`
	Summary CartSummary `json:"summary"`
}

// EmptyCart is what an anonymous visitor sees.
func EmptyCart() Cart {
	return Cart{
		Items:   []CartItem{},
		Summary: CartSummary{Currency: DefaultCurrency},
	}
}

// Normalize fills display placeholders so nothing renders blank.
func (c CartItem) Normalize() CartItem {
	if strings.TrimSpace(c.Brand) == "" {
		c.Brand = UnknownBrand
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = UnknownModel
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Quantity < 0 {
		c.Quantity = 0
	}
	return c
}

// Without returns a copy of the cart minus every line for listingID. The
// summary is left untouched; the next fetch replaces it.
func (c Cart) Without(listingID string) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.ListingID != listingID {
			items = append(items, it)
		}
	}
	c.Items = items
	return c
}

// Contains reports whether the cart mirrors a line for listingID.
func (c Cart) Contains(listingID string) bool {
	for _, it := range c.Items {
		if it.ListingID == listingID {
			return true
		}
	}
	return false
}

// Clone returns a copy whose item slice is not shared.
func (c Cart) Clone() Cart {
	c.Items = append([]CartItem{}, c.Items...)
	return c
}
