package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	"github.com/yardline/marketclient/internal/payment"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/validator"
)

// idempotencyNamespace seeds payment idempotency keys.
var idempotencyNamespace = uuid.MustParse("0b9e5d3a-7c21-5f84-8e6d-41a2c9f07b33")

// CheckoutView is an order together with its derived pricing.
type CheckoutView struct {
	Order      *domain.CheckoutOrder `json:"order"`
	Pricing    domain.Pricing        `json:"pricing"`
	Submitting bool                  `json:"submitting"`
}

// CheckoutOrchestrator walks one order through Review, Details, Payment and
// Confirmation. Only one checkout is active at a time.
type CheckoutOrchestrator struct {
	provider payment.Provider
	sessions SessionSource
	bus      event.Publisher
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	mu         sync.Mutex
	order      *domain.CheckoutOrder
	submitting bool
	// attempt advances after a decline so the next charge gets a fresh
	// idempotency key. Timeouts keep the key: the charge may have landed.
	attempt int
}

// NewCheckoutOrchestrator creates an orchestrator whose payment calls are
// bounded by timeout.
func NewCheckoutOrchestrator(provider payment.Provider, sessions SessionSource, bus event.Publisher, timeout time.Duration, log *slog.Logger) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		provider: provider,
		sessions: sessions,
		bus:      bus,
		logger:   log,
		timeout:  timeout,
		now:      time.Now,
	}
}

// view snapshots the order. Callers hold c.mu. Start and SetDuration keep
// the order priceable, so the pricing error is not expected here.
func (c *CheckoutOrchestrator) view() *CheckoutView {
	pricing, _ := c.order.Pricing()
	return &CheckoutView{
		Order:      c.order.Clone(),
		Pricing:    pricing,
		Submitting: c.submitting,
	}
}

// active returns the open order or an error. Callers hold c.mu.
func (c *CheckoutOrchestrator) active() (*domain.CheckoutOrder, error) {
	if c.order == nil {
		return nil, apperrors.NotFound("checkout", "active")
	}
	return c.order, nil
}

// mutable returns the open order when it may still change. Callers hold c.mu.
func (c *CheckoutOrchestrator) mutable() (*domain.CheckoutOrder, error) {
	o, err := c.active()
	if err != nil {
		return nil, err
	}
	if c.submitting {
		return nil, errBusy()
	}
	if o.IsTerminal() {
		return nil, apperrors.Conflict("the order is confirmed; the checkout can only be closed")
	}
	return o, nil
}

// Start opens a checkout for item, replacing any unconfirmed one.
func (c *CheckoutOrchestrator) Start(item domain.MarketItem) (*CheckoutView, error) {
	if strings.TrimSpace(item.ID) == "" {
		return nil, apperrors.InvalidInput("listing id is required")
	}
	if item.Price < 0 {
		return nil, apperrors.InvalidInput("listing price cannot be negative")
	}
	if item.ListingType != domain.ListingSale && item.ListingType != domain.ListingRent {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown listing type %q", item.ListingType))
	}
	if _, err := domain.Quote(item, 1); err != nil {
		return nil, errAmountOutOfRange("the listing price is too large to check out")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return nil, errBusy()
	}
	if c.order != nil && c.order.IsTerminal() {
		return nil, apperrors.Conflict("close the confirmed checkout before starting another")
	}

	units := 0
	if item.IsRental() {
		units = 1
	}
	c.order = &domain.CheckoutOrder{
		ID:                  uuid.New().String(),
		Item:                item.Clone(),
		RentalDurationUnits: units,
		Step:                domain.StepReview,
		Status:              domain.CheckoutInProgress,
		StartedAt:           c.now().UTC(),
	}
	c.attempt = 0
	return c.view(), nil
}

// Current returns the active checkout.
func (c *CheckoutOrchestrator) Current() (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.active(); err != nil {
		return nil, err
	}
	return c.view(), nil
}

// SetDuration sets the rental duration from raw input. Anything that is not
// a whole number of at least one becomes one. A duration that would push the
// total out of range is refused and the previous one kept.
func (c *CheckoutOrchestrator) SetDuration(raw string) (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	if !o.Item.IsRental() {
		return nil, apperrors.InvalidInput("duration applies to rental listings only")
	}
	if o.Step != domain.StepReview {
		return nil, apperrors.Conflict("duration can only be changed on the review step")
	}
	units := domain.ClampDuration(raw)
	if _, err := domain.Quote(o.Item, units); err != nil {
		return c.view(), errAmountOutOfRange(fmt.Sprintf("a rental of %d units is too large to check out", units))
	}
	o.RentalDurationUnits = units
	return c.view(), nil
}

// SetDetails stores the buyer details. Invalid details are kept so the form
// can be corrected; the returned error lists the failing fields.
func (c *CheckoutOrchestrator) SetDetails(buyer domain.BuyerDetails) (*CheckoutView, error) {
	buyer.FullName = strings.TrimSpace(buyer.FullName)
	buyer.Phone = strings.TrimSpace(buyer.Phone)
	buyer.Email = strings.TrimSpace(buyer.Email)

	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	o.Buyer = buyer
	return c.view(), validator.Validate(buyer)
}

// SelectPaymentMethod records the method on the payment step.
func (c *CheckoutOrchestrator) SelectPaymentMethod(m domain.PaymentMethod) (*CheckoutView, error) {
	if !m.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", m))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	if o.Step != domain.StepPayment {
		return nil, apperrors.Conflict("a payment method is chosen on the payment step")
	}
	o.PaymentMethod = m
	return c.view(), nil
}

// Next advances one step. Details must be valid to reach Payment, and only
// SubmitPayment leaves Payment.
func (c *CheckoutOrchestrator) Next() (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	switch o.Step {
	case domain.StepReview:
		o.Step = domain.StepDetails
	case domain.StepDetails:
		if err := validator.Validate(o.Buyer); err != nil {
			return c.view(), err
		}
		o.Step = domain.StepPayment
	case domain.StepPayment:
		return nil, apperrors.Conflict("submit the payment to continue")
	}
	return c.view(), nil
}

// Back returns one step. It is refused on the first and the last step.
func (c *CheckoutOrchestrator) Back() (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	if o.Step == domain.StepReview {
		return nil, apperrors.Conflict("already on the first step")
	}
	o.Step--
	if o.Status != domain.CheckoutInProgress {
		o.Status = domain.CheckoutInProgress
		o.FailureReason = ""
	}
	return c.view(), nil
}

// Cancel abandons an unconfirmed checkout.
func (c *CheckoutOrchestrator) Cancel() (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.mutable()
	if err != nil {
		return nil, err
	}
	o.Status = domain.CheckoutCancelled
	v := c.view()
	c.order = nil
	return v, nil
}

// Done closes a confirmed checkout.
func (c *CheckoutOrchestrator) Done() (*CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := c.active()
	if err != nil {
		return nil, err
	}
	if !o.IsTerminal() {
		return nil, apperrors.Conflict("the order is not confirmed yet")
	}
	v := c.view()
	c.order = nil
	return v, nil
}

// SubmitPayment reconciles the client total with the provider's quote and
// then charges. Declines, timeouts and transport failures keep the order on
// the payment step with the outcome recorded in its status.
func (c *CheckoutOrchestrator) SubmitPayment(ctx context.Context) (*CheckoutView, error) {
	c.mu.Lock()
	o, err := c.mutable()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if o.Step != domain.StepPayment {
		c.mu.Unlock()
		return nil, apperrors.Conflict("the order is not on the payment step")
	}
	if !o.PaymentMethod.Valid() {
		c.mu.Unlock()
		return nil, apperrors.InvalidInput("choose a payment method first")
	}
	pricing, err := o.Pricing()
	if err != nil || pricing.Total <= 0 {
		c.mu.Unlock()
		return nil, errAmountOutOfRange("the order total must be a positive amount")
	}
	c.submitting = true
	o.Status = domain.CheckoutSubmitting
	o.FailureReason = ""
	snapshot := o.Clone()
	key := idempotencyKey(snapshot, pricing, c.attempt)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.logger.With(
		slog.String("order_id", snapshot.ID),
		slog.String("listing_id", snapshot.Item.ID),
		slog.String("provider", c.provider.Name()),
	)

	quote, err := c.provider.Quote(ctx, &payment.QuoteInput{
		Item:                snapshot.Item,
		RentalDurationUnits: snapshot.RentalDurationUnits,
	})
	if err != nil {
		log.WarnContext(ctx, "payment quote failed", slog.String("error", err.Error()))
		return c.settleFailure(err)
	}
	if quote.Total <= 0 || quote.Total != pricing.Total || !strings.EqualFold(quote.Currency, pricing.Currency) {
		log.ErrorContext(ctx, "price mismatch between client and payment provider",
			slog.Int64("client_total", pricing.Total),
			slog.Int64("provider_total", quote.Total),
			slog.String("client_currency", pricing.Currency),
			slog.String("provider_currency", quote.Currency),
		)
		msg := fmt.Sprintf("the payment provider quoted %s but the order shows %s",
			domain.FormatAmount(quote.Total, quote.Currency), domain.FormatAmount(pricing.Total, pricing.Currency))
		mismatch := &apperrors.AppError{
			Code:    "PRICE_MISMATCH",
			Message: msg,
			Status:  http.StatusConflict,
			Err:     apperrors.ErrConflict,
		}
		return c.settle(domain.CheckoutInProgress, mismatch, "price_mismatch", false)
	}

	result, err := c.provider.Charge(ctx, &payment.ChargeInput{
		OrderID:        snapshot.ID,
		BuyerToken:     remoteToken(c.sessions.Current()),
		IdempotencyKey: key,
		QuoteID:        quote.QuoteID,
		Amount:         pricing.Total,
		Currency:       pricing.Currency,
		Method:         snapshot.PaymentMethod,
		Buyer:          snapshot.Buyer,
		Description:    snapshot.Item.Title,
	})
	if err != nil {
		log.WarnContext(ctx, "payment charge failed", slog.String("error", err.Error()))
		return c.settleFailure(err)
	}

	return c.confirm(ctx, result, pricing)
}

func (c *CheckoutOrchestrator) confirm(ctx context.Context, result *payment.ChargeResult, pricing domain.Pricing) (*CheckoutView, error) {
	c.mu.Lock()
	c.submitting = false
	o := c.order
	now := c.now().UTC()
	o.Step = domain.StepConfirmation
	o.Status = domain.CheckoutConfirmed
	o.PaymentID = result.PaymentID
	o.OrderReference = NewOrderReference()
	o.ConfirmedAt = &now
	v := c.view()
	c.mu.Unlock()

	checkoutPayments.WithLabelValues(c.provider.Name(), "confirmed").Inc()
	c.logger.InfoContext(ctx, "order confirmed",
		slog.String("order_reference", v.Order.OrderReference),
		slog.String("payment_id", result.PaymentID),
		slog.Int64("total", pricing.Total),
	)

	c.bus.Publish(ctx, event.Event{
		Topic:   event.TopicCheckoutConfirmed,
		Subject: v.Order.OrderReference,
		Data: event.CheckoutConfirmed{
			OrderReference: v.Order.OrderReference,
			ListingID:      v.Order.Item.ID,
			Total:          pricing.Total,
			Currency:       pricing.Currency,
			PaymentMethod:  v.Order.PaymentMethod,
			PaymentID:      result.PaymentID,
		},
	})
	return v, nil
}

// settleFailure maps a provider error onto the order status.
func (c *CheckoutOrchestrator) settleFailure(err error) (*CheckoutView, error) {
	switch {
	case apperrors.IsTimeout(err):
		return c.settle(domain.CheckoutPaymentTimeout, err, "timeout", false)
	case apperrors.IsTransport(err):
		return c.settle(domain.CheckoutInProgress, err, "unreachable", false)
	case errors.Is(err, apperrors.ErrPaymentFailed):
		return c.settle(domain.CheckoutFailed, err, "declined", true)
	default:
		return c.settle(domain.CheckoutFailed, err, "rejected", true)
	}
}

func (c *CheckoutOrchestrator) settle(status domain.CheckoutStatus, err error, outcome string, newAttempt bool) (*CheckoutView, error) {
	checkoutPayments.WithLabelValues(c.provider.Name(), outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if newAttempt {
		c.attempt++
	}
	c.order.Status = status
	c.order.FailureReason = apperrors.Message(err)
	return c.view(), err
}

// idempotencyKey is stable for retries of the same order, amount and method
// within one attempt.
func idempotencyKey(o *domain.CheckoutOrder, p domain.Pricing, attempt int) string {
	name := fmt.Sprintf("%s:%d:%d:%s:%s", o.ID, attempt, p.Total, p.Currency, o.PaymentMethod)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// NewOrderReference returns a display reference such as ORD-7F3A91C2.
func NewOrderReference() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "ORD-" + strings.ToUpper(id[:8])
}
