package payment

import (
	"context"

	"github.com/yardline/marketclient/internal/domain"
)

// QuoteInput describes what the buyer is about to pay for.
type QuoteInput struct {
	Item                domain.MarketItem
	RentalDurationUnits int
}

// Quote is the collaborator's authoritative price for an order.
type Quote struct {
	QuoteID   string `json:"quoteId,omitempty"`
	BasePrice int64  `json:"basePrice"`
	Tax       int64  `json:"tax"`
	Logistics int64  `json:"logistics"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// ChargeInput holds the parameters for charging a payment. IdempotencyKey
// must be stable across retries of the same order. BuyerToken is empty for
// anonymous and offline buyers.
type ChargeInput struct {
	OrderID        string
	BuyerToken     string
	IdempotencyKey string
	QuoteID        string
	Amount         int64
	Currency       string
	Method         domain.PaymentMethod
	Buyer          domain.BuyerDetails
	Description    string
}

// ChargeResult holds the result of a successful charge.
type ChargeResult struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// StatusSucceeded is the only status a ChargeResult carries; declines are
// returned as apperrors.ErrPaymentFailed.
const StatusSucceeded = "succeeded"

// Provider is the payment/escrow collaborator.
//
// Charge returns an error matching apperrors.ErrPaymentFailed when the
// charge was declined, and a transport error (apperrors.IsTransport) when
// the collaborator never answered. A timeout is apperrors.IsTimeout.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "escrow").
	Name() string

	// Quote returns the authoritative total for the order.
	Quote(ctx context.Context, input *QuoteInput) (*Quote, error)

	// Charge processes a payment through the provider.
	Charge(ctx context.Context, input *ChargeInput) (*ChargeResult, error)
}
