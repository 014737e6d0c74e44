// Package frontend hosts the public surface of the server. The websocket
// endpoint, the read-only REST API and the Prometheus scrape endpoint share
// one listener.
package frontend

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alger-org/alger/internal/build"
	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/service/frontend/api"
	"github.com/alger-org/alger/internal/service/frontend/metrics"
	"github.com/alger-org/alger/internal/service/frontend/session"
)

// Server bundles the HTTP surface around a single store.
type Server struct {
	config     *config.Config
	store      models.Store
	collector  *metrics.Collector
	registry   *prometheus.Registry
	api        *api.API
	sessions   *session.Handler
	httpServer *http.Server
	listener   net.Listener // Optional pre-bound listener (for tests)
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithListener sets a pre-bound listener for the server.
// When set, the server will use this listener instead of creating its own.
// This is useful for tests to avoid race conditions with port allocation.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = l
	}
}

// NewServer wires the websocket handler, the REST API and the metrics
// registry around the given store.
func NewServer(cfg *config.Config, store models.Store, opts ...ServerOption) *Server {
	collector := metrics.NewCollector(build.Version, store)
	srv := &Server{
		config:    cfg,
		store:     store,
		collector: collector,
		registry:  metrics.NewRegistry(collector),
		api:       api.New(cfg, store),
		sessions:  session.NewHandler(cfg, store, session.StateFromConfig(cfg), collector),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Serve starts the HTTP server and blocks until the context is cancelled or
// a termination signal arrives.
func (srv *Server) Serve(ctx context.Context) error {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             srv.config.Global.LogFormat == "json",
		Concise:          true,
		MessageFieldName: "msg",
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   srv.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RedirectSlashes)

	r.Route("/api/v1", srv.api.ConfigureRoutes)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(srv.registry))
	r.Get("/ws", srv.sessions.ServeHTTP)

	srv.httpServer = &http.Server{
		Handler:           r,
		Addr:              srv.config.Server.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	logger.Info(ctx, "Server is starting", tag.Addr(srv.httpServer.Addr), tag.Version(build.Version))

	go srv.startServer(ctx)

	srv.waitForShutdown(ctx)
	return nil
}

func (srv *Server) allowedOrigins() []string {
	if len(srv.config.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return srv.config.Server.AllowedOrigins
}

// startServer serves on the configured address or the pre-bound listener.
func (srv *Server) startServer(ctx context.Context) {
	var err error
	if srv.listener != nil {
		logger.Info(ctx, "Starting server on pre-bound listener", tag.Addr(srv.listener.Addr().String()))
		err = srv.httpServer.Serve(srv.listener)
	} else {
		err = srv.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		logger.Error(ctx, "Server failed to start or unexpected shutdown", tag.Error(err))
	}
}

// Shutdown gracefully shuts down the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	logger.Info(ctx, "Server is shutting down", tag.Addr(srv.httpServer.Addr))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	return srv.httpServer.Shutdown(shutdownCtx)
}

// waitForShutdown blocks until the context is done or SIGINT/SIGTERM is
// received, then drains the server.
func (srv *Server) waitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	case sig := <-quit:
		logger.Info(ctx, "Received shutdown signal", tag.Signal(sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Failed to shutdown server gracefully", tag.Error(err))
	}
}
