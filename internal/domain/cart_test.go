package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyCart(t *testing.T) {
	c := EmptyCart()
	assert.NotNil(t, c.Items)
	assert.Empty(t, c.Items)
	assert.Equal(t, CartSummary{ItemCount: 0, TotalValue: 0, Currency: "KES"}, c.Summary)
}

func TestCartItem_Normalize(t *testing.T) {
	it := CartItem{ListingID: "x", Brand: "  ", Quantity: -1}.Normalize()
	assert.Equal(t, UnknownBrand, it.Brand)
	assert.Equal(t, UnknownModel, it.Model)
	assert.Equal(t, "KES", it.Currency)
	assert.Equal(t, 0, it.Quantity)

	kept := CartItem{Brand: "Caterpillar", Model: "320D", Currency: "USD"}.Normalize()
	assert.Equal(t, "Caterpillar", kept.Brand)
	assert.Equal(t, "320D", kept.Model)
	assert.Equal(t, "USD", kept.Currency)
}

func TestCart_Without(t *testing.T) {
	c := Cart{
		Items:   []CartItem{{ListingID: "a"}, {ListingID: "b"}, {ListingID: "a"}},
		Summary: CartSummary{ItemCount: 3, TotalValue: 900, Currency: "KES"},
	}

	out := c.Without("a")
	assert.Equal(t, []CartItem{{ListingID: "b"}}, out.Items)
	assert.Equal(t, 3, out.Summary.ItemCount)
	assert.Len(t, c.Items, 3)
	assert.False(t, out.Contains("a"))
	assert.True(t, c.Contains("a"))
}

func TestCart_CloneDoesNotShareItems(t *testing.T) {
	c := Cart{Items: []CartItem{{ListingID: "a"}}}
	cl := c.Clone()
	cl.Items[0].ListingID = "z"
	assert.Equal(t, "a", c.Items[0].ListingID)
}
