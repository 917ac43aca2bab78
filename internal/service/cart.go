package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// CartState is the local mirror of the remote cart plus its sync status.
// Items survive a failed fetch; Error and Retryable describe the failure.
type CartState struct {
	Items     []domain.CartItem  `json:"items"`
	Summary   domain.CartSummary `json:"summary"`
	Error     string             `json:"error,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
	SyncedAt  *time.Time         `json:"syncedAt,omitempty"`
}

func emptyCartState() CartState {
	c := domain.EmptyCart()
	return CartState{Items: c.Items, Summary: c.Summary}
}

func (s CartState) clone() CartState {
	s.Items = domain.Cart{Items: s.Items}.Clone().Items
	if s.SyncedAt != nil {
		t := *s.SyncedAt
		s.SyncedAt = &t
	}
	return s
}

// CartSynchronizer mirrors the remote cart. Removals are applied locally
// first and then confirmed by an unconditional re-fetch.
type CartSynchronizer struct {
	backend  CartBackend
	sessions SessionSource
	bus      event.Publisher
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state CartState
	// epoch changes with the identity so a fetch that started under a
	// previous session cannot overwrite the reset mirror.
	epoch uint64
}

// NewCartSynchronizer creates an empty mirror that resets whenever the
// session changes.
func NewCartSynchronizer(backend CartBackend, sessions SessionSource, bus *event.Bus, log *slog.Logger) *CartSynchronizer {
	c := &CartSynchronizer{
		backend:  backend,
		sessions: sessions,
		bus:      bus,
		logger:   log,
		now:      time.Now,
		state:    emptyCartState(),
	}
	bus.Subscribe(c.onSessionChanged, event.TopicSessionChanged)
	return c
}

func (c *CartSynchronizer) onSessionChanged(context.Context, event.Event) {
	c.Reset()
}

// Reset empties the mirror.
func (c *CartSynchronizer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = emptyCartState()
}

// State returns the mirror without contacting the backend.
func (c *CartSynchronizer) State() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Fetch replaces the mirror with the remote cart. Without a session the
// cart is empty and that is not an error.
func (c *CartSynchronizer) Fetch(ctx context.Context) (CartState, error) {
	s := c.sessions.Current()
	if !s.IsAuthenticated() {
		c.mu.Lock()
		c.state = emptyCartState()
		c.mu.Unlock()
		return c.State(), nil
	}
	if s.IsOffline() {
		return c.recordFailure(ctx, errOfflineMode("the cart"))
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	cart, err := c.backend.FetchCart(ctx, s.Token)
	cartSyncs.WithLabelValues(resultLabel(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// The session changed while the request was in flight.
		return c.state.clone(), nil
	}
	if err != nil {
		c.markFailed(err)
		c.logger.WarnContext(ctx, "cart fetch failed",
			slog.Bool("retryable", c.state.Retryable),
			slog.String("error", err.Error()),
		)
		return c.state.clone(), err
	}

	now := c.now().UTC()
	c.state = CartState{
		Items:    cart.Items,
		Summary:  cart.Summary,
		SyncedAt: &now,
	}
	if c.state.Items == nil {
		c.state.Items = []domain.CartItem{}
	}
	return c.state.clone(), nil
}

func (c *CartSynchronizer) recordFailure(ctx context.Context, err error) (CartState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markFailed(err)
	c.logger.WarnContext(ctx, "cart unavailable", slog.String("error", err.Error()))
	return c.state.clone(), err
}

// markFailed keeps the items and records err. Callers hold c.mu.
func (c *CartSynchronizer) markFailed(err error) {
	c.state.Error = apperrors.Message(err)
	c.state.Retryable = apperrors.IsTransport(err)
}

// Remove drops listingID from the mirror immediately, asks the backend to
// delete it, then re-fetches. The re-fetch starts only after the delete
// returns and runs whether or not the delete succeeded.
func (c *CartSynchronizer) Remove(ctx context.Context, listingID string) (CartState, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return c.State(), apperrors.InvalidInput("listing id is required")
	}
	s := c.sessions.Current()
	if !s.IsAuthenticated() {
		return c.State(), apperrors.Unauthorized("sign in to manage your cart")
	}
	if s.IsOffline() {
		return c.recordFailure(ctx, errOfflineMode("the cart"))
	}

	c.mu.Lock()
	mirror := domain.Cart{Items: c.state.Items}
	held := mirror.Contains(listingID)
	c.state.Items = mirror.Without(listingID).Items
	c.mu.Unlock()

	if !held {
		c.logger.DebugContext(ctx, "removing a listing the mirror does not hold",
			slog.String("listing_id", listingID),
		)
	}

	delErr := c.backend.RemoveCartItem(ctx, s.Token, listingID)
	if delErr != nil {
		c.logger.WarnContext(ctx, "cart remove failed",
			slog.String("listing_id", listingID),
			slog.String("error", delErr.Error()),
		)
	}

	state, fetchErr := c.Fetch(ctx)
	if delErr != nil {
		c.mu.Lock()
		c.markFailed(delErr)
		state = c.state.clone()
		c.mu.Unlock()
	}

	c.bus.Publish(ctx, event.Event{
		Topic:   event.TopicCartChanged,
		Subject: s.User.ID,
		Data: event.CartChanged{
			ItemCount:  state.Summary.ItemCount,
			TotalValue: state.Summary.TotalValue,
			Currency:   state.Summary.Currency,
			RemovedID:  listingID,
		},
	})

	if delErr != nil {
		return state, delErr
	}
	return state, fetchErr
}
