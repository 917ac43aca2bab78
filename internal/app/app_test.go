package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yardline/marketclient/internal/config"
	"github.com/yardline/marketclient/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(backend.Close)

	return &config.Config{
		Environment:           "test",
		HTTPHost:              "127.0.0.1",
		HTTPPort:              8090,
		BackendBaseURL:        backend.URL,
		BackendTimeoutSeconds: 2,
		CBMaxRequests:         1,
		CBInterval:            60,
		CBTimeout:             30,
		CBFailureRatio:        0.5,
		CBMinRequests:         5,
		SessionStore:          config.StoreMemory,
		RedisPrefix:           "yardline:",
		PaymentProvider:       config.PaymentMock,
		EscrowBaseURL:         "http://localhost:8010",
		PaymentTimeoutSeconds: 5,
		CORSAllowedOrigins:    []string{"http://localhost:5173"},
	}
}

type sessionBody struct {
	Data struct {
		Authenticated bool   `json:"authenticated"`
		Mode          string `json:"mode"`
		User          *struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

func getSession(t *testing.T, a *App) sessionBody {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body sessionBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNewApp_MemoryStoreStartsAnonymous(t *testing.T) {
	a, err := NewApp(testConfig(t), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	body := getSession(t, a)
	assert.False(t, body.Data.Authenticated)
	assert.Equal(t, "anonymous", body.Data.Mode)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_RestoresSessionFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("yardline:token", "opaque-token"))
	require.NoError(t, mr.Set("yardline:user", `{"id":"u-9","username":"njeri","role":"SELLER"}`))
	require.NoError(t, mr.Set("yardline:sellerToken", "legacy"))

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.SessionStore = config.StoreRedis
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = port

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	body := getSession(t, a)
	assert.True(t, body.Data.Authenticated)
	assert.Equal(t, "online", body.Data.Mode)
	require.NotNil(t, body.Data.User)
	assert.Equal(t, "u-9", body.Data.User.ID)
	assert.False(t, mr.Exists("yardline:sellerToken"))
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	cfg := testConfig(t)
	cfg.SessionStore = config.StoreRedis
	cfg.RedisHost = host
	cfg.RedisPort = port

	_, err = NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_FileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionStore = config.StoreFile
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")
	cfg.PaymentProvider = config.PaymentEscrow

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.False(t, getSession(t, a).Data.Authenticated)
}
