// Package httptransport assembles the HTTP surface: the ownership routes,
// health, and metrics.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubhub/internal/transport/http/shared"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Registrar mounts a feature's routes onto the root router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the root router. Feature handlers bring their own
// middleware chains; only health and metrics live here.
func NewRouter(checks map[string]HealthChecker, registrars ...Registrar) http.Handler {
	root := chi.NewRouter()

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"failed": name,
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, reg := range registrars {
		reg.Register(root)
	}
	return root
}
