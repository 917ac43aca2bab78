package repository

import (
	"context"

	"github.com/yardline/marketclient/internal/domain"
)

// Fixed keys under which the session is persisted.
const (
	KeyToken = "token"
	KeyUser  = "user"

	// KeyLegacySellerToken was written by older seller-only flows. It is
	// never written again, only deleted.
	KeyLegacySellerToken = "sellerToken"
)

// SessionKeys lists every key a logout must clear.
var SessionKeys = []string{KeyToken, KeyUser, KeyLegacySellerToken}

// KeyValueStore is the durable local key/value storage of the client.
type KeyValueStore interface {
	// Get returns the value for key, or a NotFound error when absent.
	Get(ctx context.Context, key string) (string, error)

	// SetMany writes all pairs in one step.
	SetMany(ctx context.Context, pairs map[string]string) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error
}

// LogRepository keeps submitted operator logs, newest first.
type LogRepository interface {
	// Prepend stores log ahead of every existing entry.
	Prepend(ctx context.Context, log *domain.OperatorLog) error

	// List returns up to limit logs starting at offset, newest first.
	List(ctx context.Context, offset, limit int) ([]domain.OperatorLog, error)

	// Count returns the number of stored logs.
	Count(ctx context.Context) (int, error)
}
