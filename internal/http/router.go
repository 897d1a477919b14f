// Package httpapi assembles the booking API: module handlers, the shared
// middleware stack and the auth boundaries between public, student and admin
// routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	avhandler "tutorly/internal/availability/handler"
	bookinghandler "tutorly/internal/booking/handler"
	paymenthandler "tutorly/internal/payment/handler"
	"tutorly/internal/platform/config"
	"tutorly/internal/platform/metrics"
	"tutorly/internal/platform/ratelimit"
	receiptshandler "tutorly/internal/receipts/handler"
	"tutorly/pkg/platform/httputil"
	"tutorly/pkg/platform/middleware/admin"
	"tutorly/pkg/platform/middleware/auth"
	"tutorly/pkg/platform/middleware/request"
	"tutorly/pkg/platform/middleware/requesttime"
)

const probePath = "/slots/probe"

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces NewRouter mounts. Metrics, RateLimit and Health are optional.
type Deps struct {
	Logger     *slog.Logger
	Tokens     auth.TokenValidator
	AdminToken string

	Metrics   *metrics.Metrics
	RateLimit *ratelimit.Middleware
	Limits    config.RateLimitConfig
	Health    HealthCheck

	Availability *avhandler.Handler
	Bookings     *bookinghandler.Handler
	Payments     *paymenthandler.Handler
	Receipts     *receiptshandler.Handler
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(metrics.LatencyMiddleware(d.Metrics))
		r.Handle("/metrics", metrics.Handler())
	}
	r.Get("/healthz", healthHandler(d.Health))

	// public
	d.Availability.Register(r)
	d.Receipts.RegisterPublic(r)

	// student
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Tokens, log))
		if d.RateLimit != nil {
			r.Use(limitByRoute(d.RateLimit, d.Limits))
		}
		d.Receipts.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(request.ContentTypeJSON)
			d.Bookings.Register(r)
			d.Payments.Register(r)
		})
	})

	// back office
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, log))
		r.Use(request.ContentTypeJSON)
		d.Availability.RegisterAdmin(r)
		d.Bookings.RegisterAdmin(r)
		d.Payments.RegisterAdmin(r)
	})
	return r
}

// limitByRoute gives probes their own budget so polling the picker cannot
// starve booking writes.
func limitByRoute(rl *ratelimit.Middleware, limits config.RateLimitConfig) func(http.Handler) http.Handler {
	probes := rl.PerStudent("probe", limits.ProbesPerMin, time.Minute)
	writes := rl.PerStudent("write", limits.WritesPerMin, time.Minute)
	return func(next http.Handler) http.Handler {
		probeNext := probes(next)
		writeNext := writes(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == probePath:
				probeNext.ServeHTTP(w, r)
			case r.Method == http.MethodPost:
				writeNext.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
