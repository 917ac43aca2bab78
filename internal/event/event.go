package event

import (
	"time"

	"github.com/yardline/marketclient/internal/domain"
)

// Topic names a kind of client-side signal.
type Topic string

// Topics carried on the bus.
const (
	TopicSessionChanged     Topic = "session.changed"
	TopicCartChanged        Topic = "cart.changed"
	TopicCheckoutConfirmed  Topic = "checkout.confirmed"
	TopicOperatorPortalOpen Topic = "portal.operator.open"
	TopicSellerPortalOpen   Topic = "portal.seller.open"
)

// Event is one signal on the bus. Subject names what the event is about (a
// user id or an order reference) and keys the Kafka message when forwarded.
type Event struct {
	Topic         Topic     `json:"topic"`
	Subject       string    `json:"subject,omitempty"`
	At            time.Time `json:"at"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Data          any       `json:"data,omitempty"`
}

// SessionChanged is published on every login and logout. It never carries
// the token.
type SessionChanged struct {
	Authenticated bool               `json:"authenticated"`
	Mode          domain.SessionMode `json:"mode"`
	UserID        string             `json:"userId,omitempty"`
	Username      string             `json:"username,omitempty"`
	Role          domain.Role        `json:"role,omitempty"`
}

// NewSessionChanged describes s without its token.
func NewSessionChanged(s domain.Session) SessionChanged {
	out := SessionChanged{Authenticated: s.IsAuthenticated(), Mode: s.Mode}
	if s.User != nil {
		out.UserID = s.User.ID
		out.Username = s.User.Username
		out.Role = s.User.Role
	}
	return out
}

// CartChanged tells observers such as a cart badge to refresh.
type CartChanged struct {
	ItemCount  int    `json:"itemCount"`
	TotalValue int64  `json:"totalValue"`
	Currency   string `json:"currency"`
	RemovedID  string `json:"removedId,omitempty"`
}

// CheckoutConfirmed is published once a payment succeeds.
type CheckoutConfirmed struct {
	OrderReference string               `json:"orderReference"`
	ListingID      string               `json:"listingId"`
	Total          int64                `json:"total"`
	Currency       string               `json:"currency"`
	PaymentMethod  domain.PaymentMethod `json:"paymentMethod"`
	PaymentID      string               `json:"paymentId"`
}

// PortalOpen asks the UI to open the operator or seller overlay.
type PortalOpen struct {
	UserID string `json:"userId,omitempty"`
}
