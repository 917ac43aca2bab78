package memory

import (
	"context"
	"sync"

	"github.com/yardline/marketclient/internal/domain"
)

// LogRepository keeps operator logs in memory, newest first.
type LogRepository struct {
	mu   sync.RWMutex
	logs []domain.OperatorLog
}

// NewLogRepository creates an empty log repository.
func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

func (r *LogRepository) Prepend(_ context.Context, log *domain.OperatorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append([]domain.OperatorLog{*log}, r.logs...)
	return nil
}

func (r *LogRepository) List(_ context.Context, offset, limit int) ([]domain.OperatorLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(r.logs) || limit <= 0 {
		return []domain.OperatorLog{}, nil
	}
	end := min(offset+limit, len(r.logs))

	out := make([]domain.OperatorLog, end-offset)
	copy(out, r.logs[offset:end])
	return out, nil
}

func (r *LogRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs), nil
}
