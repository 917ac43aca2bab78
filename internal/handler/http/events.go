package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yardline/marketclient/internal/event"
)

const (
	defaultStreamBuffer = 32
	defaultKeepAlive    = 15 * time.Second
)

// EventHandler streams bus events to the UI as Server-Sent Events.
type EventHandler struct {
	bus       *event.Bus
	buffer    int
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventHandler creates a new event stream handler.
func NewEventHandler(bus *event.Bus, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		bus:       bus,
		buffer:    defaultStreamBuffer,
		keepAlive: defaultKeepAlive,
		logger:    logger,
	}
}

// Stream handles GET /api/v1/events?topic=cart.changed&topic=...
// With no topic parameter every event is streamed.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var topics []event.Topic
	for _, t := range r.URL.Query()["topic"] {
		topics = append(topics, event.Topic(t))
	}

	// Subscribe before the headers go out so a client that saw the
	// response cannot miss an event.
	events := h.bus.Stream(r.Context(), h.buffer, topics...)

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "event stream cannot flush", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "failed to encode event",
					slog.String("topic", string(e.Topic)),
					slog.String("error", err.Error()),
				)
				continue
			}
			seq++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Topic, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
