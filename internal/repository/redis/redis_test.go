package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yardline/marketclient/internal/domain"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_SetManyAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewStore(client, "yardline:")
	ctx := context.Background()

	require.NoError(t, s.SetMany(ctx, map[string]string{
		"token": "jwt-abc",
		"user":  `{"id":"u1","username":"njeri","role":"SELLER"}`,
	}))

	got, err := mr.Get("yardline:token")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", got)

	v, err := s.Get(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","username":"njeri","role":"SELLER"}`, v)
}

func TestStore_GetMissingIsNotFound(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewStore(client, "yardline:")

	_, err := s.Get(context.Background(), "token")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_DeleteClearsLegacyKey(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewStore(client, "yardline:")
	ctx := context.Background()

	require.NoError(t, mr.Set("yardline:sellerToken", "old"))
	require.NoError(t, mr.Set("yardline:token", "new"))

	require.NoError(t, s.Delete(ctx, "token", "user", "sellerToken"))
	assert.False(t, mr.Exists("yardline:sellerToken"))
	assert.False(t, mr.Exists("yardline:token"))
	assert.NoError(t, s.Delete(ctx))
}

func TestStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewStore(client, "")
	mr.Close()

	_, err := s.Get(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Error(t, s.Ping(context.Background()))
}

// ---------------------------------------------------------------------------
// LogRepository
// ---------------------------------------------------------------------------

func TestLogRepository_PrependAndList(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewLogRepository(client, "yardline:")
	ctx := context.Background()

	for i, id := range []string{"LOG-1", "LOG-2", "LOG-3"} {
		require.NoError(t, r.Prepend(ctx, &domain.OperatorLog{
			ID:          id,
			SubmittedAt: time.UnixMilli(int64(i)).UTC(),
			OperatorLogDraft: domain.OperatorLogDraft{
				MachineID:    "EX-200",
				OperatorName: "Kiprono",
				EndOdometer:  float64(100 * (i + 1)),
			},
		}))
	}

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	logs, err := r.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "LOG-3", logs[0].ID)
	assert.Equal(t, "LOG-2", logs[1].ID)
	assert.Equal(t, "EX-200", logs[0].MachineID)
	assert.Equal(t, float64(300), logs[0].EndOdometer)

	empty, err := r.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLogRepository_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewLogRepository(client, "")

	_, err := mr.Lpush("operator:logs", "{not json")
	require.NoError(t, err)

	_, err = r.List(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal operator log")
}
