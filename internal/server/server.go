// Package server hosts the webhook, health and metrics endpoints and runs
// the background transports under one lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Config wires the HTTP surface.
type Config struct {
	Port        int
	WebhookPath string       // default /callback
	Webhook     http.Handler // LINE callback handler
	MetricsPath string       // default /metrics
	Metrics     http.Handler // nil disables the endpoint
	Logger      *slog.Logger
}

// Worker is a long-running task stopped by cancelling its context.
type Worker func(ctx context.Context) error

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: cfg.Logger.With("component", "server"),
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// NewRouter builds the chi router.
func NewRouter(cfg Config) chi.Router {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/callback"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthy)
	r.Get("/health/live", healthy)

	if cfg.Webhook != nil {
		r.Method(http.MethodPost, cfg.WebhookPath, cfg.Webhook)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}
	return r
}

func healthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run serves HTTP and runs workers until ctx is cancelled, a SIGINT or
// SIGTERM arrives, or any of them fails. The HTTP server is then shut down
// gracefully, letting in-flight webhooks finish their replies.
func (s *Server) Run(ctx context.Context, workers ...Worker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w(gCtx)
		})
	}

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			s.logger.Info("received shutdown signal", "signal", sig.String())
		case <-gCtx.Done():
			s.logger.Info("context cancelled, initiating shutdown")
		}
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("server error", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
