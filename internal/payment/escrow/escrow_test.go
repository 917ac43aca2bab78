package escrow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/payment"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/httpclient"
	"github.com/yardline/marketclient/pkg/logger"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewProvider(httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 2}), srv.URL, logger.Discard())
}

func roller() domain.MarketItem {
	return domain.MarketItem{
		ID:              "lst-7",
		Price:           5000_00,
		Currency:        "KES",
		ListingType:     domain.ListingRent,
		DeliveryOptions: domain.DeliveryCollection,
	}
}

func TestQuote_SendsListingAndDuration(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/escrow/quote", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "lst-7", body["listingId"])
		assert.Equal(t, float64(3), body["rentalDurationUnits"])
		_, _ = io.WriteString(w, `{"quoteId":"q-1","basePrice":1500000,"tax":240000,"logistics":0,"total":1740000}`)
	})

	q, err := p.Quote(context.Background(), &payment.QuoteInput{Item: roller(), RentalDurationUnits: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(17400_00), q.Total)
	assert.Equal(t, "q-1", q.QuoteID)
	assert.Equal(t, "KES", q.Currency)
}

func TestCharge_SendsIdempotencyKey(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/escrow/payments", r.URL.Path)
		assert.Equal(t, "order-1-key", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer jwt-buyer", r.Header.Get("Authorization"))
		var body chargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, domain.PaymentMobileMoney, body.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"paymentId":"esc-9","status":"succeeded"}`)
	})

	res, err := p.Charge(context.Background(), &payment.ChargeInput{
		OrderID:        "order-1",
		BuyerToken:     "jwt-buyer",
		IdempotencyKey: "order-1-key",
		Amount:         17400_00,
		Currency:       "KES",
		Method:         domain.PaymentMobileMoney,
	})
	require.NoError(t, err)
	assert.Equal(t, "esc-9", res.PaymentID)
}

func TestCharge_Declines(t *testing.T) {
	t.Run("402", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = io.WriteString(w, `{"detail":"Insufficient funds"}`)
		})
		_, err := p.Charge(context.Background(), &payment.ChargeInput{IdempotencyKey: "k"})
		assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
		assert.Equal(t, "Insufficient funds", apperrors.Message(err))
	})

	t.Run("status field", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"paymentId":"esc-1","status":"declined","failureReason":"Card blocked"}`)
		})
		_, err := p.Charge(context.Background(), &payment.ChargeInput{IdempotencyKey: "k"})
		assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
		assert.Equal(t, "Card blocked", apperrors.Message(err))
	})
}

func TestCharge_Timeout(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Charge(ctx, &payment.ChargeInput{IdempotencyKey: "k"})
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
}

func TestCharge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProvider(httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 1}), url, logger.Discard())
	_, err := p.Charge(context.Background(), &payment.ChargeInput{IdempotencyKey: "k"})
	assert.ErrorIs(t, err, apperrors.ErrUnreachable)
}
