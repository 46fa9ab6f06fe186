package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ghascaler/internal/config"
	"ghascaler/internal/fleet"
	"ghascaler/internal/scaler"
	"ghascaler/pkg/logging"
)

// Server is the HTTP frontend over the reconciliation core.
type Server struct {
	cfg     config.ServerConfig
	tracker *fleet.Tracker
	scaler  *scaler.Scaler
	httpSrv *http.Server

	// runnerNamePrefix is what runner registrations prepend to the runner
	// id; webhook deliveries report the prefixed name.
	runnerNamePrefix string
}

// New builds the Server and its router. gatherer serves /metrics.
func New(cfg config.ServerConfig, tracker *fleet.Tracker, sc *scaler.Scaler, gatherer prometheus.Gatherer, runnerNamePrefix string) *Server {
	s := &Server{
		cfg:              cfg,
		tracker:          tracker,
		scaler:           sc,
		runnerNamePrefix: runnerNamePrefix,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/reconcile", s.handleReconcile)
		r.Post("/runners/{id}/reset", s.handleRunnerReset)
		r.Post("/machines/{id}/drain", s.handleMachineDrain)
		r.Post("/machines/{id}/undrain", s.handleMachineUndrain)
	})

	r.Post("/webhook/github", s.handleWebhook)

	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "HTTP server listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	logging.Info("Server", "HTTP server stopped")
	return <-errCh
}
