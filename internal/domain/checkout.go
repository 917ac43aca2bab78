package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TaxRatePercent is the fixed VAT rate applied to the base price.
const TaxRatePercent = 16

// NationwideLogisticsCost is charged iff delivery is "Nationwide Delivery".
// Minor units.
const NationwideLogisticsCost int64 = 15000_00

// MaxRentalDurationUnits caps a rental at ten years of days.
const MaxRentalDurationUnits = 3650

// MaxAmount is the largest base price a checkout accepts, in minor units.
// Tax and logistics on top of it stay well inside int64.
const MaxAmount int64 = 1_000_000_000_000_00

// ErrAmountOutOfRange is returned when a price cannot be computed exactly.
var ErrAmountOutOfRange = errors.New("amount out of range")

// CheckoutStep is one of the four wizard steps.
type CheckoutStep int

const (
	StepReview       CheckoutStep = 1
	StepDetails      CheckoutStep = 2
	StepPayment      CheckoutStep = 3
	StepConfirmation CheckoutStep = 4
)

func (s CheckoutStep) String() string {
	switch s {
	case StepReview:
		return "review"
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// PaymentMethod is the buyer's chosen way to pay.
type PaymentMethod string

const (
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMobileMoney || m == PaymentBankTransfer
}

// CheckoutStatus tracks the payment outcome of an order.
type CheckoutStatus string

const (
	CheckoutInProgress     CheckoutStatus = "in_progress"
	CheckoutSubmitting     CheckoutStatus = "submitting"
	CheckoutFailed         CheckoutStatus = "failed"
	CheckoutPaymentTimeout CheckoutStatus = "payment_timeout"
	CheckoutConfirmed      CheckoutStatus = "confirmed"
	CheckoutCancelled      CheckoutStatus = "cancelled"
)

// BuyerDetails is collected on the details step.
type BuyerDetails struct {
	FullName        string `json:"fullName" validate:"required,min=2,max=120"`
	Phone           string `json:"phone" validate:"required,min=7,max=20"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Company         string `json:"company,omitempty" validate:"max=120"`
	DeliveryAddress string `json:"deliveryAddress,omitempty" validate:"max=255"`
	Notes           string `json:"notes,omitempty" validate:"max=1000"`
}

// Pricing is derived from the item and duration; never stored.
type Pricing struct {
	BasePrice int64  `json:"basePrice"`
	Tax       int64  `json:"tax"`
	Logistics int64  `json:"logistics"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// Quote computes pricing for item at the given rental duration. Duration is
// ignored for sale listings and treated as at least 1 for rentals. Negative
// prices, durations above MaxRentalDurationUnits and base prices above
// MaxAmount return ErrAmountOutOfRange.
func Quote(item MarketItem, durationUnits int) (Pricing, error) {
	currency := item.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if item.Price < 0 || item.Price > MaxAmount {
		return Pricing{Currency: currency}, ErrAmountOutOfRange
	}

	base := item.Price
	if item.IsRental() {
		if durationUnits < 1 {
			durationUnits = 1
		}
		if durationUnits > MaxRentalDurationUnits || item.Price > MaxAmount/int64(durationUnits) {
			return Pricing{Currency: currency}, ErrAmountOutOfRange
		}
		base = item.Price * int64(durationUnits)
	}

	var logistics int64
	if item.DeliveryOptions == DeliveryNationwide {
		logistics = NationwideLogisticsCost
	}

	tax := taxOn(base)
	return Pricing{
		BasePrice: base,
		Tax:       tax,
		Logistics: logistics,
		Total:     base + tax + logistics,
		Currency:  currency,
	}, nil
}

// taxOn rounds half up to the nearest minor unit. base is never negative.
func taxOn(base int64) int64 {
	return (base*TaxRatePercent + 50) / 100
}

// ClampDuration parses user input for the rental duration. Anything that is
// not a whole number of at least 1 becomes 1, and larger numbers are capped
// at MaxRentalDurationUnits.
func ClampDuration(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case errors.Is(err, strconv.ErrRange) && n > 0:
		return MaxRentalDurationUnits
	case err != nil || n < 1:
		return 1
	case n > MaxRentalDurationUnits:
		return MaxRentalDurationUnits
	}
	return n
}

// CheckoutOrder is the state of the active checkout wizard.
type CheckoutOrder struct {
	ID                  string         `json:"id"`
	Item                MarketItem     `json:"item"`
	RentalDurationUnits int            `json:"rentalDurationUnits"`
	Step                CheckoutStep   `json:"step"`
	Buyer               BuyerDetails   `json:"buyer"`
	PaymentMethod       PaymentMethod  `json:"paymentMethod,omitempty"`
	Status              CheckoutStatus `json:"status"`
	OrderReference      string         `json:"orderReference,omitempty"`
	PaymentID           string         `json:"paymentId,omitempty"`
	FailureReason       string         `json:"failureReason,omitempty"`
	StartedAt           time.Time      `json:"startedAt"`
	ConfirmedAt         *time.Time     `json:"confirmedAt,omitempty"`
}

// Pricing recomputes the order totals from the current duration.
func (o *CheckoutOrder) Pricing() (Pricing, error) {
	return Quote(o.Item, o.RentalDurationUnits)
}

// IsTerminal reports whether the wizard can only exit to done.
func (o *CheckoutOrder) IsTerminal() bool {
	return o.Step == StepConfirmation
}

// Clone returns a deep copy safe to hand to callers.
func (o *CheckoutOrder) Clone() *CheckoutOrder {
	if o == nil {
		return nil
	}
	c := *o
	c.Item = o.Item.Clone()
	if o.ConfirmedAt != nil {
		t := *o.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}
