package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	blocklisthandler "senderguard/internal/blocklist/handler"
	"senderguard/internal/platform/metrics"
	rlmiddleware "senderguard/internal/ratelimit/middleware"
	rlmodels "senderguard/internal/ratelimit/models"
	id "senderguard/pkg/domain"
	"senderguard/pkg/platform/httputil"
	"senderguard/pkg/platform/middleware/admin"
	"senderguard/pkg/platform/middleware/auth"
	"senderguard/pkg/platform/middleware/metadata"
	"senderguard/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	validator    auth.TokenValidator
	rateLimit    *rlmiddleware.Middleware
	blocklist    *blocklisthandler.Handler
	healthChecks map[string]func(r *http.Request) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(d.metrics.Instrument)

	r.Handle("/metrics", d.metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range d.healthChecks {
			if err := check(r); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.validator, d.logger))
		r.Use(d.rateLimit.RateLimit(rlmodels.PolicyAPI))
		d.blocklist.Register(r)
	})
	return r
}

// matchRouteMiddleware restricts on-demand matching to privileged roles and
// the cron policy.
func matchRouteMiddleware(rl *rlmiddleware.Middleware, roles []id.Role, logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		admin.RequireRole(roles, logger),
		rl.RateLimit(rlmodels.PolicyCron),
	}
}
