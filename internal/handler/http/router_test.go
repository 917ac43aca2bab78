package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yardline/marketclient/internal/backend"
	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	"github.com/yardline/marketclient/internal/payment/mock"
	"github.com/yardline/marketclient/internal/repository/memory"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/health"
	"github.com/yardline/marketclient/pkg/httpclient"
	"github.com/yardline/marketclient/pkg/httputil"
	"github.com/yardline/marketclient/pkg/logger"
	"github.com/yardline/marketclient/pkg/middleware"
)

// --- Fake marketplace backend ---

type fakeBackend struct {
	mu        sync.Mutex
	cart      []string
	removed   []string
	logins    atomic.Int32
	registers atomic.Int32
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var creds domain.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		role := "BUYER"
		if creds.Identifier == "seller" {
			role = "SELLER"
		}
		_, _ = io.WriteString(w, `{"token":"jwt-`+creds.Identifier+`","user":{"id":"u-`+creds.Identifier+`","username":"`+creds.Identifier+`","role":"`+role+`"}}`)
	})

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		f.registers.Add(1)
		_, _ = io.WriteString(w, `{"message":"Code sent"}`)
	})

	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer jwt-"))
		f.mu.Lock()
		defer f.mu.Unlock()
		items := make([]map[string]any, 0, len(f.cart))
		for _, id := range f.cart {
			items = append(items, map[string]any{
				"listingId": id, "quantity": 1, "brand": "CAT", "model": "320",
				"price": 15000, "currency": "KES", "listingType": "Sale",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":   items,
			"summary": map[string]any{"itemCount": len(items), "totalValue": 15000 * len(items), "currency": "KES"},
		})
	})

	mux.HandleFunc("DELETE /api/cart/remove/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		f.removed = append(f.removed, id)
		kept := f.cart[:0]
		for _, c := range f.cart {
			if c != id {
				kept = append(kept, c)
			}
		}
		f.cart = kept
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"jwt-op","user":{"id":"op-1","username":"otieno"}}`)
	})

	mux.HandleFunc("POST /api/operator-logs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-op", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /api/service-request", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"SR-1","message":"We will call you"}`)
	})

	return mux
}

// --- Test environment ---

type testEnv struct {
	srv      *httptest.Server
	backend  *fakeBackend
	payments *mock.Provider
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newLimitedTestEnv(t, Limits{})
}

func newLimitedTestEnv(t *testing.T, limits Limits) *testEnv {
	t.Helper()
	log := logger.Discard()

	fb := &fakeBackend{cart: []string{"L1", "L2"}}
	backendSrv := httptest.NewServer(fb.handler(t))
	t.Cleanup(backendSrv.Close)

	client := backend.New(httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 4}), backendSrv.URL, log)
	bus := event.NewBus(log)
	sessions := service.NewSessionManager(memory.NewStore(), bus, log)
	payments := mock.NewProvider(0)

	svc := Services{
		Sessions:  sessions,
		Auth:      service.NewAuthFlow(client, sessions, bus, false, log),
		Cart:      service.NewCartSynchronizer(client, sessions, bus, log),
		Checkout:  service.NewCheckoutOrchestrator(payments, sessions, bus, 2*time.Second, log),
		Operator:  service.NewOperatorLogbook(client, memory.NewLogRepository(), false, log),
		Inquiries: service.NewInquiryService(client, sessions, log),
		Portals:   service.NewPortals(sessions, bus),
		Bus:       bus,
	}

	srv := httptest.NewServer(NewRouter(svc, health.NewHandler(), middleware.DefaultCORSConfig(), limits, log))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, backend: fb, payments: payments}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (e *testEnv) login(t *testing.T, identifier string) {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/v1/auth/login", domain.Credentials{Identifier: identifier, Password: "secret1"})
	require.Equal(t, http.StatusOK, status, env.Error)
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// --- Tests ---

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.srv.Client().Get(env.srv.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_SessionNeverExposesToken(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/auth/login", domain.Credentials{Identifier: "seller", Password: "secret1"})
	require.Equal(t, http.StatusOK, status)
	signedIn := decodeData[SignedInResponse](t, body)
	assert.True(t, signedIn.Session.Authenticated)
	assert.True(t, signedIn.Session.CanSell)
	assert.Equal(t, domain.SessionOnline, signedIn.Session.Mode)
	assert.False(t, signedIn.Auth.Open)
	assert.NotContains(t, string(body.Data), "jwt-seller")

	status, body = env.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	session := decodeData[SessionResponse](t, body)
	require.NotNil(t, session.User)
	assert.Equal(t, "u-seller", session.User.ID)

	status, body = env.do(t, http.MethodDelete, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decodeData[SessionResponse](t, body).Authenticated)
}

func TestLogin_RateLimitedBeforeBackend(t *testing.T) {
	env := newLimitedTestEnv(t, Limits{Auth: middleware.RateLimitConfig{RPS: 0.01, Burst: 2}})
	creds := domain.Credentials{Identifier: "amina", Password: "secret1"}

	for i := 0; i < 2; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", creds)
		require.Equal(t, http.StatusOK, status)
	}

	status, body := env.do(t, http.MethodPost, "/api/v1/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Equal(t, int32(2), env.backend.logins.Load())

	status, _ = env.do(t, http.MethodGet, "/api/v1/auth", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogin_ValidationErrorLandsInAuthState(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/auth/login", domain.Credentials{Password: "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.NotEmpty(t, decodeData[service.AuthState](t, body).Error)
}

func TestRegister_PasswordMismatchNeverCallsBackend(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/auth/register", domain.RegistrationDraft{
		Username: "wanjiru", Email: "wanjiru@example.co.ke", Phone: "+254700000001",
		Password: "secret1", ConfirmPassword: "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Passwords do not match", decodeData[service.AuthState](t, body).Error)
	assert.Equal(t, int32(0), env.backend.registers.Load())
}

func TestCart_AnonymousIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeData[service.CartState](t, body).Items)
}

func TestCart_RemoveRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodDelete, "/api/v1/cart/items/L1", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCart_RemoveThenRefetch(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "buyer")

	status, body := env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[service.CartState](t, body).Items, 2)

	status, body = env.do(t, http.MethodDelete, "/api/v1/cart/items/L1", nil)
	require.Equal(t, http.StatusOK, status)
	state := decodeData[service.CartState](t, body)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "L2", state.Items[0].ListingID)
	assert.Equal(t, 1, state.Summary.ItemCount)
	assert.Equal(t, []string{"L1"}, env.backend.removed)
}

func rentalListing() domain.MarketItem {
	return domain.MarketItem{
		ID:              "R-77",
		Title:           "Bomag BW 211 roller",
		Brand:           "Bomag",
		Model:           "BW 211",
		Price:           45000_00,
		Currency:        "KES",
		PriceUnit:       "day",
		ListingType:     domain.ListingRent,
		DeliveryOptions: domain.DeliveryNationwide,
	}
}

func walkToPayment(t *testing.T, env *testEnv) {
	t.Helper()
	status, _ := env.do(t, http.MethodPost, "/api/v1/checkout", rentalListing())
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodPut, "/api/v1/checkout/duration", DurationRequest{Units: "3"})
	require.Equal(t, http.StatusOK, status)
	pricing := decodeData[service.CheckoutView](t, body).Pricing
	assert.Equal(t, int64(135000_00), pricing.BasePrice)
	assert.Equal(t, int64(21600_00), pricing.Tax)
	assert.Equal(t, int64(15000_00), pricing.Logistics)
	assert.Equal(t, int64(171600_00), pricing.Total)

	status, _ = env.do(t, http.MethodPost, "/api/v1/checkout/next", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/checkout/next", nil)
	assert.Equal(t, http.StatusBadRequest, status, "details are required before payment")

	status, _ = env.do(t, http.MethodPut, "/api/v1/checkout/details", domain.BuyerDetails{FullName: "Wanjiru Kamau", Phone: "+254700000001"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/checkout/next", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPut, "/api/v1/checkout/payment-method", PaymentMethodRequest{Method: domain.PaymentMobileMoney})
	require.Equal(t, http.StatusOK, status)
}

func TestCheckout_RentalFlowConfirms(t *testing.T) {
	env := newTestEnv(t)
	walkToPayment(t, env)

	status, body := env.do(t, http.MethodPost, "/api/v1/checkout/submit", nil)
	require.Equal(t, http.StatusOK, status, body.Error)
	view := decodeData[service.CheckoutView](t, body)
	assert.Equal(t, domain.StepConfirmation, view.Order.Step)
	assert.Equal(t, domain.CheckoutConfirmed, view.Order.Status)
	assert.True(t, strings.HasPrefix(view.Order.OrderReference, "ORD-"))

	status, _ = env.do(t, http.MethodPost, "/api/v1/checkout/done", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCheckout_DeclineKeepsOrderOnPaymentStep(t *testing.T) {
	env := newTestEnv(t)
	walkToPayment(t, env)
	env.payments.SetOutcome(mock.OutcomeDecline)

	status, body := env.do(t, http.MethodPost, "/api/v1/checkout/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	view := decodeData[service.CheckoutView](t, body)
	assert.Equal(t, domain.StepPayment, view.Order.Step)
	assert.Equal(t, domain.CheckoutFailed, view.Order.Status)
	assert.NotEmpty(t, view.Order.FailureReason)
}

func TestPortals_SellerFollowsRole(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/portals/seller", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	env.login(t, "buyer")
	status, _ = env.do(t, http.MethodPost, "/api/v1/portals/seller", nil)
	assert.Equal(t, http.StatusForbidden, status)

	env.do(t, http.MethodDelete, "/api/v1/session", nil)
	env.login(t, "seller")
	status, body := env.do(t, http.MethodPost, "/api/v1/portals/seller", nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "seller", decodeData[PortalResponse](t, body).Portal)

	status, _ = env.do(t, http.MethodPost, "/api/v1/portals/operator", nil)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestEvents_StreamsPortalSignal(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/v1/events?topic=portal.operator.open", nil)
	require.NoError(t, err)
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Filtered out by topic.
	env.login(t, "buyer")
	status, _ := env.do(t, http.MethodPost, "/api/v1/portals/operator", nil)
	require.Equal(t, http.StatusAccepted, status)

	var eventLine, dataLine string
	timeout := time.After(3 * time.Second)
	for dataLine == "" {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			switch {
			case strings.HasPrefix(line, "event: "):
				eventLine = line
			case strings.HasPrefix(line, "data: "):
				dataLine = strings.TrimPrefix(line, "data: ")
			}
		case <-timeout:
			t.Fatal("no event received")
		}
	}

	assert.Equal(t, "event: portal.operator.open", eventLine)
	var e event.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &e))
	assert.Equal(t, event.TopicOperatorPortalOpen, e.Topic)
	assert.Equal(t, "u-buyer", e.Subject)
}

func TestContentTypeJSON_RejectsOtherBodies(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.srv.Client().Post(env.srv.URL+"/api/v1/auth/login", "text/plain", strings.NewReader("hi"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestOperator_SubmitAndList(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/operator/logs", domain.OperatorLogDraft{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodPost, "/api/v1/operator/login", OperatorLoginRequest{Username: "otieno", Password: "pw"})
	require.Equal(t, http.StatusOK, status)
	state := decodeData[service.OperatorState](t, body)
	assert.True(t, state.SignedIn)
	assert.False(t, state.Offline)

	draft := domain.OperatorLogDraft{
		MachineID:       "EX-07",
		OperatorName:    "Otieno",
		Date:            "2026-10-18",
		StartTime:       "07:00",
		EndTime:         "16:30",
		StartOdometer:   1200,
		EndOdometer:     1264.5,
		FuelAddedLiters: 40,
		Location:        "Athi River",
		Checklist:       domain.Checklist{Tires: true, Oil: true, Hydraulics: true, Brakes: true},
	}
	status, body = env.do(t, http.MethodPost, "/api/v1/operator/logs", draft)
	require.Equal(t, http.StatusCreated, status, body.Error)
	assert.True(t, strings.HasPrefix(decodeData[domain.OperatorLog](t, body).ID, "LOG-"))

	resp, err := env.srv.Client().Get(env.srv.URL + "/api/v1/operator/logs?page=1&per_page=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	var page struct {
		Data       []domain.OperatorLog `json:"data"`
		TotalCount int                  `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "EX-07", page.Data[0].MachineID)
}

func TestInquiry_ServiceRequest(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/inquiries/service-requests", domain.ServiceRequest{
		Name: "Baraka", Phone: "+254711000000", Email: "baraka@example.co.ke", ServiceType: "inspection",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "SR-1", decodeData[domain.Acknowledgement](t, body).ID)

	status, body = env.do(t, http.MethodPost, "/api/v1/inquiries/service-requests", domain.ServiceRequest{Name: "Baraka"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}
