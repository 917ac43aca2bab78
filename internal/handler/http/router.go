package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/health"
	"github.com/yardline/marketclient/pkg/middleware"
)

const serviceName = "marketd"

// Services bundles the state machines the router exposes.
type Services struct {
	Sessions  *service.SessionManager
	Auth      *service.AuthFlow
	Cart      *service.CartSynchronizer
	Checkout  *service.CheckoutOrchestrator
	Operator  *service.OperatorLogbook
	Inquiries *service.InquiryService
	Portals   *service.Portals
	Bus       *event.Bus
}

// Limits throttles the routes that sign in or ask the AI consultant.
type Limits struct {
	Auth       middleware.RateLimitConfig
	Consultant middleware.RateLimitConfig
}

// NewRouter creates a chi router with all daemon routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	cors middleware.CORSConfig,
	limits Limits,
	logger *slog.Logger,
) http.Handler {
	identify := SessionIdentity(svc.Sessions)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cors))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger, identify))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// The event stream is long-lived; it must not be compressed or cut off
	// by the request timeout.
	eventHandler := NewEventHandler(svc.Bus, logger)
	r.Get("/api/v1/events", eventHandler.Stream)

	sessionHandler := NewSessionHandler(svc.Sessions, logger)
	authHandler := NewAuthHandler(svc.Auth, logger)
	cartHandler := NewCartHandler(svc.Cart, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, logger)
	operatorHandler := NewOperatorHandler(svc.Operator, logger)
	inquiryHandler := NewInquiryHandler(svc.Inquiries, logger)
	portalHandler := NewPortalHandler(svc.Portals, logger)

	limits.Auth.Scope = "auth"
	limits.Consultant.Scope = "consultant"
	authLimit := middleware.RateLimit(limits.Auth, logger)
	consultantLimit := middleware.RateLimit(limits.Consultant, logger)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(ContentTypeJSON)

		r.Route("/api/v1/session", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.Logout)
		})

		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Get("/", authHandler.State)
			r.Post("/open", authHandler.Open)
			r.Post("/close", authHandler.Close)
			r.Put("/view", authHandler.SwitchView)

			r.Group(func(r chi.Router) {
				r.Use(authLimit)
				r.Post("/login", authHandler.Login)
				r.Post("/register", authHandler.Register)
				r.Post("/verify-otp", authHandler.VerifyOTP)
				r.Post("/google", authHandler.Google)
			})
		})

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Get("/state", cartHandler.GetState)
			r.With(middleware.RequireIdentity(identify)).
				Delete("/items/{listingId}", cartHandler.RemoveItem)
		})

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Start)
			r.Get("/", checkoutHandler.Current)
			r.Put("/duration", checkoutHandler.SetDuration)
			r.Put("/details", checkoutHandler.SetDetails)
			r.Put("/payment-method", checkoutHandler.SelectPaymentMethod)
			r.Post("/next", checkoutHandler.Next)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/submit", checkoutHandler.Submit)
			r.Post("/cancel", checkoutHandler.Cancel)
			r.Post("/done", checkoutHandler.Done)
		})

		r.Route("/api/v1/operator", func(r chi.Router) {
			r.Get("/", operatorHandler.State)
			r.With(authLimit).Post("/login", operatorHandler.Login)
			r.Post("/logout", operatorHandler.Logout)
			r.Post("/logs", operatorHandler.SubmitLog)
			r.Get("/logs", operatorHandler.ListLogs)
		})

		r.Route("/api/v1/inquiries", func(r chi.Router) {
			r.Post("/service-requests", inquiryHandler.SubmitServiceRequest)
			r.Post("/consultations", inquiryHandler.SubmitConsultation)
			r.With(consultantLimit).Post("/consultant", inquiryHandler.AskConsultant)
		})

		r.Route("/api/v1/portals", func(r chi.Router) {
			r.Post("/operator", portalHandler.OpenOperator)
			r.With(middleware.RequireRole(identify, string(domain.RoleSeller), string(domain.RoleAdmin))).
				Post("/seller", portalHandler.OpenSeller)
		})
	})

	return r
}
