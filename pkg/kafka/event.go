package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is bumped when the envelope layout changes.
const SchemaVersion = 1

// Envelope is the JSON record written to Kafka for one client event.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Subject       string          `json:"subject,omitempty"`
	SubjectKind   string          `json:"subject_kind"`
	Source        string          `json:"source"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data and stamps a fresh id. A zero at means now.
func NewEnvelope(eventType, subject, subjectKind, source string, at time.Time, data any) (*Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if at.IsZero() {
		at = time.Now()
	}

	return &Envelope{
		ID:            uuid.New().String(),
		Type:          eventType,
		Subject:       subject,
		SubjectKind:   subjectKind,
		Source:        source,
		SchemaVersion: SchemaVersion,
		OccurredAt:    at.UTC(),
		Data:          raw,
	}, nil
}

// WithCorrelationID ties the envelope to the request that caused it.
func (e *Envelope) WithCorrelationID(id string) *Envelope {
	e.CorrelationID = id
	return e
}

// Key is the partition key. Events about one subject stay ordered; events
// without a subject (an anonymous session) are grouped by type.
func (e *Envelope) Key() []byte {
	if e.Subject != "" {
		return []byte(e.Subject)
	}
	return []byte(e.Type)
}

// DecodeEnvelope parses a record written by Producer.Publish.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
