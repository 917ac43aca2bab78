package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/yardline/marketclient/internal/backend"
	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	"github.com/yardline/marketclient/internal/payment"
	"github.com/yardline/marketclient/internal/repository/memory"
	"github.com/yardline/marketclient/pkg/logger"
)

// --- Mock Backends ---

type mockAuthBackend struct {
	mock.Mock
}

func (m *mockAuthBackend) Login(ctx context.Context, creds domain.Credentials) (*backend.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthResponse), args.Error(1)
}

func (m *mockAuthBackend) Register(ctx context.Context, draft domain.RegistrationDraft) (*backend.RegisterResponse, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.RegisterResponse), args.Error(1)
}

func (m *mockAuthBackend) VerifyOTP(ctx context.Context, email, code string) (*backend.AuthResponse, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthResponse), args.Error(1)
}

func (m *mockAuthBackend) GoogleAuth(ctx context.Context, credential string) (*backend.AuthResponse, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthResponse), args.Error(1)
}

type mockCartBackend struct {
	mock.Mock
}

func (m *mockCartBackend) FetchCart(ctx context.Context, token string) (domain.Cart, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.Cart), args.Error(1)
}

func (m *mockCartBackend) RemoveCartItem(ctx context.Context, token, listingID string) error {
	args := m.Called(ctx, token, listingID)
	return args.Error(0)
}

type mockOperatorBackend struct {
	mock.Mock
}

func (m *mockOperatorBackend) OperatorLogin(ctx context.Context, username, password string) (*backend.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthResponse), args.Error(1)
}

func (m *mockOperatorBackend) SubmitOperatorLog(ctx context.Context, token string, log *domain.OperatorLog) error {
	args := m.Called(ctx, token, log)
	return args.Error(0)
}

type mockInquiryBackend struct {
	mock.Mock
}

func (m *mockInquiryBackend) SubmitServiceRequest(ctx context.Context, token string, req domain.ServiceRequest) (*domain.Acknowledgement, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Acknowledgement), args.Error(1)
}

func (m *mockInquiryBackend) SubmitConsultation(ctx context.Context, token string, req domain.Consultation) (*domain.Acknowledgement, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Acknowledgement), args.Error(1)
}

func (m *mockInquiryBackend) AskConsultant(ctx context.Context, token, prompt string) (*domain.ConsultantAdvice, error) {
	args := m.Called(ctx, token, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConsultantAdvice), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "test" }

func (m *mockProvider) Quote(ctx context.Context, input *payment.QuoteInput) (*payment.Quote, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Quote), args.Error(1)
}

func (m *mockProvider) Charge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

// --- Test Helpers ---

// recorder collects every bus event.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func record(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(func(_ context.Context, e event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder) topics() []event.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Topic, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

func (r *recorder) last(topic event.Topic) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Topic == topic {
			return r.events[i], true
		}
	}
	return event.Event{}, false
}

// syncBuffer is a log sink safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newCapturingLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logger.NewWithWriter("marketd-test", "debug", "json", buf), buf
}

type fixture struct {
	bus      *event.Bus
	store    *memory.Store
	sessions *SessionManager
	events   *recorder
}

func newFixture() *fixture {
	bus := event.NewBus(logger.Discard())
	store := memory.NewStore()
	return &fixture{
		bus:      bus,
		store:    store,
		sessions: NewSessionManager(store, bus, logger.Discard()),
		events:   record(bus),
	}
}

func buyer() domain.User {
	return domain.User{ID: "u-100", Username: "wanjiku", Role: domain.RoleBuyer, Email: "wanjiku@example.co.ke"}
}

func seller() domain.User {
	return domain.User{ID: "u-200", Username: "otieno-plant", Role: domain.RoleSeller}
}
