package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yardline/marketclient/pkg/logger"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_events_published_total",
			Help: "Events published on the in-process bus",
		},
		[]string{"topic"},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_events_dropped_total",
			Help: "Events dropped because a stream subscriber was too slow",
		},
		[]string{"topic"},
	)
)

// Handler receives bus events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(ctx context.Context, e Event)

// Publisher is what components depend on to emit events.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	topics  map[Topic]struct{}
	handler Handler
}

func (s subscription) wants(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// Bus is the in-process event bus shared by the client components.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	order  []uint64
	nextID uint64
	logger *slog.Logger
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]subscription),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers handler for the given topics, or for every topic when
// none are given. The returned function removes the subscription.
func (b *Bus) Subscribe(handler Handler, topics ...Topic) (unsubscribe func()) {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = subscription{topics: set, handler: handler}
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every matching subscriber in subscription order.
// A panicking handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if s := b.subs[id]; s.wants(e.Topic) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	eventsPublished.WithLabelValues(string(e.Topic)).Inc()
	b.logger.DebugContext(ctx, "event published",
		slog.String("topic", string(e.Topic)),
		slog.Int("subscribers", len(handlers)),
	)

	for _, h := range handlers {
		b.deliver(ctx, h, e)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.ErrorContext(ctx, "event handler panicked",
				slog.String("topic", string(e.Topic)),
				slog.Any("panic", rec),
			)
		}
	}()
	h(ctx, e)
}

// Stream returns a channel fed with matching events until ctx is done. Slow
// readers lose events rather than stall publishers.
func (b *Bus) Stream(ctx context.Context, buffer int, topics ...Topic) <-chan Event {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := b.Subscribe(func(_ context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			eventsDropped.WithLabelValues(string(e.Topic)).Inc()
		}
	}, topics...)

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
