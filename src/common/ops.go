package common

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OpsRouter serves /readyz (backed by ready) and /metrics.
func OpsRouter(ready func(ctx context.Context) error) http.Handler {
	r := HealthRouter(ready)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HealthRouter serves only /readyz.
func HealthRouter(ready func(ctx context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// StartHealthServer exposes /readyz alone on addr, for health checks that should not
// reach the metrics port. An empty addr disables it.
func StartHealthServer(addr string, ready func(ctx context.Context) error, logger *zap.Logger) {
	if addr == "" {
		return
	}
	go func() {
		if err := http.ListenAndServe(addr, HealthRouter(ready)); err != nil {
			logger.Error("health check server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

// StartOpsServer serves the ops router on addr in the background. An empty
// addr disables it.
func StartOpsServer(addr string, ready func(ctx context.Context) error, logger *zap.Logger) {
	if addr == "" {
		return
	}
	go func() {
		if err := http.ListenAndServe(addr, OpsRouter(ready)); err != nil {
			logger.Error("ops server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
