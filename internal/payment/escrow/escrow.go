// Package escrow talks to the escrow collaborator that holds buyer funds
// until delivery is confirmed.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/payment"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/httpclient"
	"github.com/yardline/marketclient/pkg/tracing"
)

// HTTPDoer is satisfied by httpclient.Client and httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Provider charges through the escrow HTTP API.
type Provider struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewProvider creates an escrow provider rooted at baseURL.
func NewProvider(doer HTTPDoer, baseURL string, logger *slog.Logger) *Provider {
	return &Provider{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "escrow"
}

type quoteRequest struct {
	ListingID           string             `json:"listingId"`
	ListingType         domain.ListingType `json:"listingType"`
	Price               int64              `json:"price"`
	Currency            string             `json:"currency"`
	DeliveryOptions     string             `json:"deliveryOptions"`
	RentalDurationUnits int                `json:"rentalDurationUnits,omitempty"`
}

// Quote asks the escrow service for its total.
func (p *Provider) Quote(ctx context.Context, input *payment.QuoteInput) (*payment.Quote, error) {
	item := input.Item
	req := quoteRequest{
		ListingID:       item.ID,
		ListingType:     item.ListingType,
		Price:           item.Price,
		Currency:        item.Currency,
		DeliveryOptions: item.DeliveryOptions,
	}
	if item.IsRental() {
		req.RentalDurationUnits = input.RentalDurationUnits
	}

	var q payment.Quote
	if err := p.post(ctx, "/api/escrow/quote", "", "", req, &q); err != nil {
		return nil, err
	}
	if q.Currency == "" {
		q.Currency = item.Currency
	}
	return &q, nil
}

type chargeRequest struct {
	OrderID     string               `json:"orderId"`
	QuoteID     string               `json:"quoteId,omitempty"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
	Method      domain.PaymentMethod `json:"method"`
	Buyer       domain.BuyerDetails  `json:"buyer"`
	Description string               `json:"description,omitempty"`
}

type chargeResponse struct {
	PaymentID     string `json:"paymentId"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
}

// Charge creates an escrow payment. A 402 response or a non-succeeded status
// is a decline.
func (p *Provider) Charge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	req := chargeRequest{
		OrderID:     input.OrderID,
		QuoteID:     input.QuoteID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Method:      input.Method,
		Buyer:       input.Buyer,
		Description: input.Description,
	}

	var resp chargeResponse
	if err := p.post(ctx, "/api/escrow/payments", input.BuyerToken, input.IdempotencyKey, req, &resp); err != nil {
		return nil, err
	}

	if resp.Status != payment.StatusSucceeded {
		reason := resp.FailureReason
		if reason == "" {
			reason = fmt.Sprintf("payment %s", strings.ToLower(resp.Status))
		}
		return nil, apperrors.PaymentFailed(reason)
	}
	if resp.PaymentID == "" {
		return nil, apperrors.Remote(http.StatusBadGateway, "BAD_RESPONSE", "escrow confirmed a payment without an id")
	}

	return &payment.ChargeResult{PaymentID: resp.PaymentID, Status: resp.Status}, nil
}

func (p *Provider) post(ctx context.Context, path, token, idempotencyKey string, body, out any) (err error) {
	ctx, span := tracing.Start(ctx, "marketclient/escrow", "POST "+path,
		attribute.String("http.method", http.MethodPost))
	defer func() { tracing.End(span, err) }()

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.http.Do(ctx, req)
	if err != nil {
		err = apperrors.FromTransport(err)
		p.logger.WarnContext(ctx, "escrow call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, "escrow")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Remote(http.StatusBadGateway, "BAD_RESPONSE",
			fmt.Sprintf("escrow sent an unreadable response for %s", path))
	}
	return nil
}
