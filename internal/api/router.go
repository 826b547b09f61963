package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/tarot-booking/internal/checkout"
	redisclient "github.com/hackgods/tarot-booking/internal/redis"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

type RouterConfig struct {
	Scheduling  *scheduling.Service
	Checkout    *checkout.Service
	Health      *HealthHandler
	Metrics     prometheus.Gatherer
	RateLimiter *redisclient.RateLimiter
	Logger      *logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler("", "")
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware(logger, true))
		}

		svc := cfg.Scheduling
		r.Route("/availability", func(r chi.Router) {
			r.Get("/", listWindowsHandler(svc, logger))
			r.Post("/", proposeWindowHandler(svc, logger))
			r.Put("/{id}", updateWindowHandler(svc, logger))
			r.Delete("/{id}", deleteWindowHandler(svc, logger))

			r.Get("/proposals/{id}", getProposalHandler(svc, logger))
			r.Post("/proposals/{id}/confirm", confirmProposalHandler(svc, logger))
			r.Post("/proposals/{id}/discard", discardProposalHandler(svc, logger))
		})

		r.Get("/slots", listSlotsHandler(svc, logger))
		r.Post("/blocks", blockHandler(svc, logger))

		r.Get("/services", listServicesHandler(cfg.Checkout))
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", checkoutHandler(cfg.Checkout, logger))
			r.Get("/", listBookingsHandler(svc, logger))
			r.Get("/{id}", getBookingHandler(svc, logger))
			r.Delete("/{id}", cancelBookingHandler(cfg.Checkout, logger))
		})
	})

	return otelhttp.NewHandler(r, "tarot-api")
}
