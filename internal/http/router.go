// Package httpapi assembles the service router: middleware chain, health and
// metrics endpoints, and the EVV vertical's routes.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	evvhandler "carebridge/internal/evv/handler"
	"carebridge/pkg/platform/middleware/requestid"
	"carebridge/pkg/platform/middleware/requesttime"
)

// NewRouter wires the middleware chain and mounts all endpoints. Handlers
// delegate to domain services; no business logic lives here.
func NewRouter(evv *evvhandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	evv.Register(r)
	return r
}
