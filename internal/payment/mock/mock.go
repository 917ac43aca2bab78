package mock

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/payment"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// Outcome selects how the mock answers a charge.
type Outcome string

const (
	OutcomeSucceed Outcome = "succeed"
	OutcomeDecline Outcome = "decline"
	// OutcomeHang never answers; the caller's deadline decides.
	OutcomeHang Outcome = "hang"
)

// Provider is a local payment provider for development and testing. Quotes
// use the same formula as the client, and charges are replayed for a
// repeated idempotency key.
type Provider struct {
	mu      sync.Mutex
	outcome Outcome
	delay   time.Duration
	charges map[string]*payment.ChargeResult
}

// NewProvider creates a mock provider that succeeds after delay.
func NewProvider(delay time.Duration) *Provider {
	return &Provider{
		outcome: OutcomeSucceed,
		delay:   delay,
		charges: make(map[string]*payment.ChargeResult),
	}
}

// SetOutcome changes how later charges are answered.
func (p *Provider) SetOutcome(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = o
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Quote prices the order locally. Orders that cannot be priced exactly are
// rejected.
func (p *Provider) Quote(_ context.Context, input *payment.QuoteInput) (*payment.Quote, error) {
	pr, err := domain.Quote(input.Item, input.RentalDurationUnits)
	if err != nil {
		return nil, apperrors.Remote(http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", "the order total is out of range")
	}
	return &payment.Quote{
		QuoteID:   "mock_quote_" + uuid.New().String(),
		BasePrice: pr.BasePrice,
		Tax:       pr.Tax,
		Logistics: pr.Logistics,
		Total:     pr.Total,
		Currency:  pr.Currency,
	}, nil
}

// Charge simulates a payment charge.
func (p *Provider) Charge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	p.mu.Lock()
	outcome := p.outcome
	if prev, ok := p.charges[input.IdempotencyKey]; ok {
		p.mu.Unlock()
		res := *prev
		return &res, nil
	}
	p.mu.Unlock()

	if outcome == OutcomeHang {
		<-ctx.Done()
		return nil, apperrors.Timeout("the payment provider did not respond in time", ctx.Err())
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, apperrors.Timeout("the payment provider did not respond in time", ctx.Err())
	}

	if outcome == OutcomeDecline {
		return nil, apperrors.PaymentFailed("payment was declined by the provider")
	}

	res := &payment.ChargeResult{
		PaymentID: "mock_pay_" + uuid.New().String(),
		Status:    payment.StatusSucceeded,
	}

	if input.IdempotencyKey != "" {
		p.mu.Lock()
		p.charges[input.IdempotencyKey] = res
		p.mu.Unlock()
	}

	out := *res
	return &out, nil
}
