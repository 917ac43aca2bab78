package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yardline/marketclient/internal/backend"
	"github.com/yardline/marketclient/internal/config"
	"github.com/yardline/marketclient/internal/event"
	handler "github.com/yardline/marketclient/internal/handler/http"
	"github.com/yardline/marketclient/internal/payment"
	"github.com/yardline/marketclient/internal/payment/escrow"
	"github.com/yardline/marketclient/internal/payment/mock"
	"github.com/yardline/marketclient/internal/repository"
	filerepo "github.com/yardline/marketclient/internal/repository/file"
	"github.com/yardline/marketclient/internal/repository/memory"
	redisrepo "github.com/yardline/marketclient/internal/repository/redis"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/database"
	"github.com/yardline/marketclient/pkg/health"
	"github.com/yardline/marketclient/pkg/httpclient"
	pkgkafka "github.com/yardline/marketclient/pkg/kafka"
	"github.com/yardline/marketclient/pkg/logger"
	"github.com/yardline/marketclient/pkg/middleware"
	"github.com/yardline/marketclient/pkg/tracing"
)

const (
	serviceName      = "marketd"
	mockPaymentDelay = 800 * time.Millisecond
	forwardQueueSize = 256
)

// App wires together all dependencies and runs the client daemon.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	forwarder      *event.KafkaForwarder
	detach         func()
	handler        http.Handler
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies
// and restoring the persisted session.
func NewApp(cfg *config.Config, log *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: log}

	// Tracing. The propagator is installed even when export is off.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	shutdownTracer, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	// Marketplace backend behind retries and a circuit breaker.
	backendHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(a.httpConfig(cfg.BackendTimeout())),
		a.breakerConfig("backend"),
		log,
	)
	backendClient := backend.New(backendHTTP, cfg.BackendBaseURL, log)

	// Local persistence.
	store, logs, err := a.openStores(ctx)
	if err != nil {
		a.closeClients()
		return nil, err
	}

	// Event bus and optional Kafka mirror.
	bus := event.NewBus(log)
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		a.forwarder = event.NewKafkaForwarder(a.producer, cfg.KafkaTopic, forwardQueueSize, log)
		a.detach = a.forwarder.Attach(bus)
		// Shutdown drains the queue, so the forwarder is not tied to a
		// request or signal context.
		go a.forwarder.Run(context.Background())
		log.Info("kafka event forwarding enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	provider := a.paymentProvider()
	log.Info("payment provider selected", slog.String("provider", provider.Name()))

	if cfg.OfflineFallback {
		logger.WithChannel(log, logger.ChannelOfflineFallback).Warn(
			"offline fallback is enabled; unreachable backends will mint local identities")
	}

	// Build the dependency graph.
	sessions := service.NewSessionManager(store, bus, log)
	svc := handler.Services{
		Sessions:  sessions,
		Auth:      service.NewAuthFlow(backendClient, sessions, bus, cfg.OfflineFallback, log),
		Cart:      service.NewCartSynchronizer(backendClient, sessions, bus, log),
		Checkout:  service.NewCheckoutOrchestrator(provider, sessions, bus, cfg.PaymentTimeout(), log),
		Operator:  service.NewOperatorLogbook(backendClient, logs, cfg.OfflineFallback, log),
		Inquiries: service.NewInquiryService(backendClient, sessions, log),
		Portals:   service.NewPortals(sessions, bus),
		Bus:       bus,
	}

	restored := sessions.Restore(ctx)
	log.Info("session restored",
		slog.String("mode", string(restored.Mode)),
		slog.Bool("authenticated", restored.IsAuthenticated()),
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("session_store", store.Ping)
	healthHandler.RegisterOptional("backend", backendClient.Ping)
	if a.producer != nil {
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	// HTTP router.
	limits := handler.Limits{
		Auth:       middleware.RateLimitConfig{RPS: cfg.AuthRateLimitRPS, Burst: cfg.AuthRateLimitBurst},
		Consultant: middleware.RateLimitConfig{RPS: cfg.ConsultantRateLimitRPS, Burst: cfg.ConsultantRateLimitBurst},
	}
	a.handler = handler.NewRouter(svc, healthHandler, cors, limits, log)

	// No WriteTimeout: the event stream stays open for the life of the UI.
	// API routes are bounded by the router's own timeout.
	a.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

func (a *App) httpConfig(timeout time.Duration) httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = timeout
	hc.MaxRetries = a.cfg.BackendMaxRetries
	return hc
}

func (a *App) breakerConfig(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  a.cfg.CBMaxRequests,
		Interval:     time.Duration(a.cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(a.cfg.CBTimeout) * time.Second,
		FailureRatio: a.cfg.CBFailureRatio,
		MinRequests:  a.cfg.CBMinRequests,
	}
}

// openStores picks the session store and the operator log repository. Logs
// share Redis when the session lives there and stay in memory otherwise.
func (a *App) openStores(ctx context.Context) (repository.KeyValueStore, repository.LogRepository, error) {
	switch a.cfg.SessionStore {
	case config.StoreRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Host = a.cfg.RedisHost
		rcfg.Port = a.cfg.RedisPort
		rcfg.Password = a.cfg.RedisPass
		rcfg.DB = a.cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", rcfg.Addr()),
			slog.Int("db", rcfg.DB),
		)
		return redisrepo.NewStore(rdb, a.cfg.RedisPrefix), redisrepo.NewLogRepository(rdb, a.cfg.RedisPrefix), nil

	case config.StoreFile:
		a.logger.Info("session persisted to file", slog.String("path", a.cfg.SessionFile))
		return filerepo.NewStore(a.cfg.SessionFile), memory.NewLogRepository(), nil

	default:
		a.logger.Warn("session store is in memory; sign-ins will not survive a restart")
		return memory.NewStore(), memory.NewLogRepository(), nil
	}
}

func (a *App) paymentProvider() payment.Provider {
	if a.cfg.PaymentProvider == config.PaymentEscrow {
		escrowHTTP := httpclient.NewCircuitBreakerClient(
			httpclient.New(a.httpConfig(a.cfg.PaymentTimeout())),
			a.breakerConfig("escrow"),
			a.logger,
		)
		return escrow.NewProvider(escrowHTTP, a.cfg.EscrowBaseURL, a.logger)
	}
	return mock.NewProvider(mockPaymentDelay)
}

// Handler returns the daemon's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeClients()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if a.detach != nil {
		a.detach()
		a.forwarder.Close()
		a.detach = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
}
