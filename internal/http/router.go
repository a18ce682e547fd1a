// Package httpapi assembles the chi router: shared middleware, health and
// metrics endpoints, and the public, authenticated and operator route groups.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"instantverify/internal/platform/metrics"
	"instantverify/internal/ratelimit"
	"instantverify/pkg/platform/httputil"
	adminmw "instantverify/pkg/platform/middleware/admin"
	auth "instantverify/pkg/platform/middleware/auth"
	"instantverify/pkg/platform/middleware/device"
	"instantverify/pkg/platform/middleware/metadata"
	request "instantverify/pkg/platform/middleware/request"
	"instantverify/pkg/platform/middleware/requesttime"
)

const probeTimeout = 2 * time.Second

// Registrar mounts routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that need no session.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// Dependencies collects everything the router mounts.
type Dependencies struct {
	Validator     auth.JWTValidator
	AdminToken    string
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Probes        map[string]Probe
	RateLimiter   *ratelimit.Middleware
	IPLimit       ratelimit.Limit
	UserLimit     ratelimit.Limit
	Public        []PublicRegistrar
	Authenticated []Registrar
	Admin         []Registrar
}

// NewRouter wires middleware and routes. Routes under /api require a bearer
// token; /admin requires the operator token. API routes are rate limited per
// client IP, and authenticated ones per user as well.
func NewRouter(logger *slog.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(deps.Metrics))

	r.Get("/healthz", healthHandler(logger, deps.Probes))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.PerIP(deps.IPLimit))
		for _, p := range deps.Public {
			p.RegisterPublic(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.Validator, logger))
			r.Use(deps.RateLimiter.PerUser(deps.UserLimit))
			for _, reg := range deps.Authenticated {
				reg.Register(r)
			}
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(deps.AdminToken, logger))
		for _, reg := range deps.Admin {
			reg.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, probes map[string]Probe) http.HandlerFunc {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		status := http.StatusOK
		resp := healthResponse{Status: "ok"}
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := probes[name](ctx); err != nil {
				logger.ErrorContext(ctx, "health probe failed", "probe", name, "error", err)
				status = http.StatusServiceUnavailable
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
