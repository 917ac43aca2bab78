package event

import (
	"context"
	"log/slog"
	"sync"

	pkgkafka "github.com/yardline/marketclient/pkg/kafka"
)

// DefaultKafkaTopic receives mirrored client events.
const DefaultKafkaTopic = "yardline.client.events"

// SourceMarketd identifies events that originate from the client daemon.
const SourceMarketd = "marketd"

// KafkaPublisher is satisfied by *pkgkafka.Producer.
type KafkaPublisher interface {
	Publish(ctx context.Context, topic string, env *pkgkafka.Envelope) error
}

// KafkaForwarder mirrors bus events to a Kafka topic. Delivery happens on a
// background goroutine so the bus never waits on a broker.
type KafkaForwarder struct {
	publisher KafkaPublisher
	topic     string
	logger    *slog.Logger
	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewKafkaForwarder creates a forwarder with a queue of the given size.
func NewKafkaForwarder(publisher KafkaPublisher, topic string, queueSize int, logger *slog.Logger) *KafkaForwarder {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &KafkaForwarder{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
}

// Attach subscribes the forwarder to every topic on bus.
func (f *KafkaForwarder) Attach(bus *Bus) (detach func()) {
	return bus.Subscribe(f.enqueue)
}

func (f *KafkaForwarder) enqueue(ctx context.Context, e Event) {
	select {
	case f.queue <- e:
	default:
		eventsDropped.WithLabelValues(string(e.Topic)).Inc()
		f.logger.WarnContext(ctx, "kafka forward queue full, dropping event",
			slog.String("topic", string(e.Topic)),
		)
	}
}

// Run drains the queue until Close is called. It publishes with ctx, so
// cancelling ctx aborts an in-flight write.
func (f *KafkaForwarder) Run(ctx context.Context) {
	defer close(f.done)
	for e := range f.queue {
		f.forward(ctx, e)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (f *KafkaForwarder) Close() {
	f.closeOnce.Do(func() {
		close(f.queue)
	})
	<-f.done
}

func (f *KafkaForwarder) forward(ctx context.Context, e Event) {
	msg, err := pkgkafka.NewEnvelope(string(e.Topic), e.Subject, subjectKind(e.Topic), SourceMarketd, e.At, e.Data)
	if err != nil {
		f.logger.ErrorContext(ctx, "encode event for kafka",
			slog.String("topic", string(e.Topic)),
			slog.String("error", err.Error()),
		)
		return
	}
	if e.CorrelationID != "" {
		msg.WithCorrelationID(e.CorrelationID)
	}
	// Publish logs its own failures; the bus event is not retried.
	_ = f.publisher.Publish(ctx, f.topic, msg)
}

func subjectKind(t Topic) string {
	switch t {
	case TopicSessionChanged:
		return "session"
	case TopicCartChanged:
		return "cart"
	case TopicCheckoutConfirmed:
		return "order"
	default:
		return "portal"
	}
}
