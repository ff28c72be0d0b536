// Package server wires the HTTP surface and runs it until the context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/elevation-index/internal/core/config"
	"github.com/mohammed-shakir/elevation-index/internal/core/health"
	middleware "github.com/mohammed-shakir/elevation-index/internal/core/middleware"
	"github.com/mohammed-shakir/elevation-index/internal/core/router"
)

type Deps struct {
	Batcher router.Batcher
	// Store and Ready feed /readyz; either may be nil.
	Store   health.Pinger
	Ready   health.ReadinessReporter
	Metrics http.Handler
}

func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Store, d.Ready))
	if d.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		r.Method(http.MethodGet, cfg.Metrics.Path, d.Metrics)
	}
	r.Get(cfg.APIURL, router.HandleGet(logger, cfg.APIURL, d.Batcher))
	r.Post(cfg.APIURL, router.HandlePost(logger, cfg.APIURL, d.Batcher))
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully. Metrics get
// their own listener when METRICS_ADDR is set.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := newHTTPServer(cfg.Addr, NewHandler(cfg, logger, d))
	servers := []*http.Server{srv}

	if d.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, d.Metrics)
		servers = append(servers, newHTTPServer(cfg.Metrics.Addr, mux))
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("http listen", "addr", s.Addr)
			if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(s)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		for _, s := range servers {
			_ = s.Close()
		}
		return err
	}
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
