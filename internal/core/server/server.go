package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nnar1o/meteoride/internal/core/health"
	middleware "github.com/nnar1o/meteoride/internal/core/middleware"
	"github.com/nnar1o/meteoride/internal/core/router"
	"github.com/nnar1o/meteoride/internal/metrics"
)

type Deps struct {
	Logger   *slog.Logger
	Version  string
	Assessor router.Assessor
	Store    health.Pinger
	Metrics  *metrics.Provider
}

// NewRouter mounts the service routes behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.CORS())

	r.Get("/health", health.Liveness(d.Version))
	if d.Store != nil {
		r.Get("/readyz", health.Readiness(d.Store, time.Second))
	}
	if d.Metrics != nil && d.Metrics.Enabled() {
		r.Method(http.MethodGet, d.Metrics.Path(), d.Metrics.Handler())
	}
	r.Get(router.RideSafetyRoute, router.HandleRideSafety(d.Logger, d.Assessor))
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, d Deps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.Logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
