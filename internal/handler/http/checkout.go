package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// CheckoutHandler drives the four-step checkout wizard.
type CheckoutHandler struct {
	checkout *service.CheckoutOrchestrator
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(checkout *service.CheckoutOrchestrator, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// DurationRequest carries the rental duration as typed by the buyer. The
// value is clamped to at least one unit.
type DurationRequest struct {
	Units string `json:"units"`
}

// PaymentMethodRequest selects how the buyer pays.
type PaymentMethodRequest struct {
	Method domain.PaymentMethod `json:"method"`
}

// Start handles POST /api/v1/checkout
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	var item domain.MarketItem
	if !decodeBody(w, r, &item, h.logger) {
		return
	}
	view, err := h.checkout.Start(item)
	if err != nil {
		h.write(w, r, view, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, view)
}

// Current handles GET /api/v1/checkout
func (h *CheckoutHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Current()
	h.write(w, r, view, err)
}

// SetDuration handles PUT /api/v1/checkout/duration
func (h *CheckoutHandler) SetDuration(w http.ResponseWriter, r *http.Request) {
	var req DurationRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	view, err := h.checkout.SetDuration(req.Units)
	h.write(w, r, view, err)
}

// SetDetails handles PUT /api/v1/checkout/details
func (h *CheckoutHandler) SetDetails(w http.ResponseWriter, r *http.Request) {
	var buyer domain.BuyerDetails
	if !decodeBody(w, r, &buyer, h.logger) {
		return
	}
	view, err := h.checkout.SetDetails(buyer)
	h.write(w, r, view, err)
}

// SelectPaymentMethod handles PUT /api/v1/checkout/payment-method
func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	view, err := h.checkout.SelectPaymentMethod(req.Method)
	h.write(w, r, view, err)
}

// Next handles POST /api/v1/checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Next()
	h.write(w, r, view, err)
}

// Back handles POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Back()
	h.write(w, r, view, err)
}

// Submit handles POST /api/v1/checkout/submit. A failed or timed-out payment
// still returns the order so the UI can show its status.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.SubmitPayment(r.Context())
	h.write(w, r, view, err)
}

// Cancel handles POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Cancel()
	h.write(w, r, view, err)
}

// Done handles POST /api/v1/checkout/done
func (h *CheckoutHandler) Done(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Done()
	h.write(w, r, view, err)
}

func (h *CheckoutHandler) write(w http.ResponseWriter, r *http.Request, view *service.CheckoutView, err error) {
	switch {
	case err != nil && view != nil:
		httputil.WriteErrorData(w, r, err, view, h.logger)
	case err != nil:
		httputil.WriteError(w, r, err, h.logger)
	default:
		httputil.WriteData(w, http.StatusOK, view)
	}
}
