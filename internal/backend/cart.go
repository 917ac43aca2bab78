package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yardline/marketclient/internal/domain"
)

// The cart service may send null for any numeric or string field, and
// numeric listing ids.
type wireCartItem struct {
	ListingID   domain.FlexibleID `json:"listingId"`
	Quantity    *int              `json:"quantity"`
	Brand       *string           `json:"brand"`
	Model       *string           `json:"model"`
	Price       *float64          `json:"price"`
	Currency    *string           `json:"currency"`
	ListingType *string           `json:"listingType"`
	Image       *string           `json:"image"`
}

type wireCart struct {
	Items   []wireCartItem `json:"items"`
	Summary *struct {
		ItemCount  *int     `json:"itemCount"`
		TotalValue *float64 `json:"totalValue"`
		Currency   *string  `json:"currency"`
	} `json:"summary"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (w wireCart) toDomain() domain.Cart {
	cart := domain.EmptyCart()
	for _, it := range w.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ListingID:   string(it.ListingID),
			Quantity:    deref(it.Quantity),
			Brand:       deref(it.Brand),
			Model:       deref(it.Model),
			Price:       domain.ToMinor(deref(it.Price)),
			Currency:    deref(it.Currency),
			ListingType: domain.ListingType(deref(it.ListingType)),
			Image:       deref(it.Image),
		}.Normalize())
	}
	if s := w.Summary; s != nil {
		cart.Summary.ItemCount = deref(s.ItemCount)
		cart.Summary.TotalValue = domain.ToMinor(deref(s.TotalValue))
		if cur := deref(s.Currency); cur != "" {
			cart.Summary.Currency = cur
		}
	}
	return cart
}

// FetchCart returns the authoritative cart for token.
func (c *Client) FetchCart(ctx context.Context, token string) (domain.Cart, error) {
	var out wireCart
	if err := c.call(ctx, http.MethodGet, "/api/cart", token, nil, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.toDomain(), nil
}

// RemoveCartItem deletes every line for listingID from the remote cart.
func (c *Client) RemoveCartItem(ctx context.Context, token, listingID string) error {
	return c.call(ctx, http.MethodDelete, "/api/cart/remove/"+url.PathEscape(listingID), token, nil, nil)
}
