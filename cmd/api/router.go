package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-engine/internal/analytics"
	"github.com/noah-isme/pos-engine/internal/app"
	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/config"
	"github.com/noah-isme/pos-engine/internal/events"
	"github.com/noah-isme/pos-engine/internal/health"
	"github.com/noah-isme/pos-engine/internal/obs"
	"github.com/noah-isme/pos-engine/internal/payment"
	"github.com/noah-isme/pos-engine/internal/ratelimit"
	"github.com/noah-isme/pos-engine/internal/reconcile"
	"github.com/noah-isme/pos-engine/internal/sale"
	"github.com/noah-isme/pos-engine/internal/security"
)

type routerDeps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Deps    *app.Dependencies
	Metrics *obs.HTTPMetrics
	Limiter *ratelimit.Limiter
	Now     func() time.Time
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	logger := d.Logger
	store := d.Deps.Store

	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger},
		events.MetricsNotifier{Counter: obs.DomainEventsTotal},
	}}

	saleLogger := logger.With().Str("component", "sale").Logger()
	saleSvc := &sale.Service{
		Store:       store,
		Bus:         bus,
		Logger:      &saleLogger,
		Now:         d.Now,
		StrictStock: cfg.SaleStrictStock,
	}
	saleHandler := &sale.Handler{Svc: saleSvc, Location: cfg.ReportLocation}

	reconcileHandler := &reconcile.Handler{
		Svc:          &reconcile.Service{Q: store, Location: cfg.ReportLocation},
		DefaultRange: cfg.ReportsDefaultRangeDays,
		Now:          d.Now,
	}
	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Q:            store,
		R:            d.Deps.Redis,
		TTL:          cfg.ReportsCacheTTL,
		DefaultRange: cfg.ReportsDefaultRangeDays,
		Location:     cfg.ReportLocation,
		Now:          d.Now,
	}}
	paymentHandler := &payment.Handler{Svc: &payment.Service{Q: store}}

	idem := common.Idem{R: d.Deps.Redis, TTL: cfg.IdempotencyTTL}
	throttle := ratelimit.Handler{
		Limiter: d.Limiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(security.BodyLimit{Max: security.DefaultMaxBody}.Middleware)
	r.Use(obs.SpanRouteMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", obs.RegisterHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: health.Probe{Pool: d.Deps.DB, Redis: d.Deps.Redis}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/sales", func(s chi.Router) {
			s.Get("/", saleHandler.List)
			s.Get("/{id}", saleHandler.Get)
			s.Group(func(w chi.Router) {
				w.Use(throttle.Middleware, idem.Middleware)
				w.Post("/", saleHandler.Create)
				w.Post("/{id}/void", saleHandler.Void)
				w.Post("/{id}/unvoid", saleHandler.Unvoid)
			})
		})
		v.With(throttle.Middleware, idem.Middleware).Post("/returns", saleHandler.CreateReturn)

		v.Get("/payment-methods", paymentHandler.List)

		v.Route("/reports", func(rep chi.Router) {
			rep.Get("/tax-reconciliation", reconcileHandler.Items)
			rep.Get("/tax-reconciliation/daily", reconcileHandler.Daily)
			rep.Get("/summary", analyticsHandler.Summary)
			rep.Get("/by-payment", analyticsHandler.ByPayment)
			rep.Get("/top-products", analyticsHandler.TopProducts)
			rep.Get("/daily-sales", analyticsHandler.DailySales)
			rep.Get("/product-sales", analyticsHandler.ProductSales)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
