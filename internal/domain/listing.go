package domain

// ListingType says whether a listing is sold outright or rented per unit.
type ListingType string

const (
	ListingSale ListingType = "Sale"
	ListingRent ListingType = "Rent"
)

// Delivery options offered on listings.
const (
	DeliveryNationwide = "Nationwide Delivery"
	DeliveryCollection = "Collection Only"
)

// DefaultCurrency is used whenever the backend omits a currency.
const DefaultCurrency = "KES"

// SellerProfile describes the party behind a listing.
type SellerProfile struct {
	Name     string  `json:"name"`
	Verified bool    `json:"verified"`
	Rating   float64 `json:"rating,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Location string  `json:"location,omitempty"`
}

// MarketItem is an immutable listing descriptor. Price is in minor units.
type MarketItem struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Brand           string            `json:"brand"`
	Model           string            `json:"model"`
	Category        string            `json:"category,omitempty"`
	Year            int               `json:"year,omitempty"`
	Condition       string            `json:"condition,omitempty"`
	Price           int64             `json:"price"`
	Currency        string            `json:"currency"`
	PriceUnit       string            `json:"priceUnit,omitempty"`
	ListingType     ListingType       `json:"listingType"`
	Images          []string          `json:"images,omitempty"`
	Location        string            `json:"location,omitempty"`
	DeliveryOptions string            `json:"deliveryOptions,omitempty"`
	Seller          SellerProfile     `json:"seller"`
	Specifications  map[string]string `json:"specifications,omitempty"`
}

// IsRental reports whether the listing is priced per rental unit.
func (m MarketItem) IsRental() bool {
	return m.ListingType == ListingRent
}

// Clone returns a deep copy of the listing.
func (m MarketItem) Clone() MarketItem {
	if m.Images != nil {
		m.Images = append([]string(nil), m.Images...)
	}
	if m.Specifications != nil {
		specs := make(map[string]string, len(m.Specifications))
		for k, v := range m.Specifications {
			specs[k] = v
		}
		m.Specifications = specs
	}
	return m
}
