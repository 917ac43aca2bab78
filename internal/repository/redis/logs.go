package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yardline/marketclient/internal/domain"
)

const logsKey = "operator:logs"

// LogRepository stores operator logs in a Redis list. LPUSH keeps the newest
// entry at index 0.
type LogRepository struct {
	client redis.UniversalClient
	key    string
}

// NewLogRepository creates a Redis-backed operator log repository.
func NewLogRepository(client redis.UniversalClient, prefix string) *LogRepository {
	return &LogRepository{client: client, key: prefix + logsKey}
}

// Prepend pushes log onto the head of the list.
func (r *LogRepository) Prepend(ctx context.Context, log *domain.OperatorLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal operator log: %w", err)
	}
	if err := r.client.LPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush operator log: %w", err)
	}
	return nil
}

// List returns a window of the list, newest first.
func (r *LogRepository) List(ctx context.Context, offset, limit int) ([]domain.OperatorLog, error) {
	if limit <= 0 {
		return []domain.OperatorLog{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	raw, err := r.client.LRange(ctx, r.key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange operator logs: %w", err)
	}

	logs := make([]domain.OperatorLog, 0, len(raw))
	for _, item := range raw {
		var l domain.OperatorLog
		if err := json.Unmarshal([]byte(item), &l); err != nil {
			return nil, fmt.Errorf("unmarshal operator log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Count returns the list length.
func (r *LogRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen operator logs: %w", err)
	}
	return int(n), nil
}
