package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy/registry"
	"mercator-hq/bulwark/pkg/telemetry"
	"mercator-hq/bulwark/pkg/telemetry/health"
)

// Reloader reloads the resilience configuration on request.
// *manager.Manager implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Server is the admin HTTP server. It exposes probes, metrics and a
// read-only view of the installed resilience policies.
type Server struct {
	config         *config.ServerConfig
	telemetryCfg   *config.TelemetryConfig
	propertyPrefix string
	registry       *registry.Registry
	telemetry      *telemetry.Telemetry
	history        history.Store
	reloader       Reloader
	logger         *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         string
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves install history from store.
func WithHistory(store history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithReloader enables POST /v1/reload.
func WithReloader(r Reloader) Option {
	return func(s *Server) {
		s.reloader = r
	}
}

// NewServer creates an admin server for reg. tel supplies the logger,
// metrics, tracer and health checker.
func NewServer(cfg *config.Config, reg *registry.Registry, tel *telemetry.Telemetry, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if tel == nil {
		return nil, fmt.Errorf("telemetry cannot be nil")
	}

	s := &Server{
		config:         &cfg.Server,
		telemetryCfg:   &cfg.Telemetry,
		propertyPrefix: cfg.Registry.PropertyPrefix,
		registry:       reg,
		telemetry:      tel,
		logger:         tel.Logger.With("component", "admin_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting admin server", "address", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, srv := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("Initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("Admin server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.telemetryCfg.Health.Enabled {
		mux.Handle(s.telemetryCfg.Health.LivenessPath, s.telemetry.Health.LivenessHandler())
		mux.Handle(s.telemetryCfg.Health.ReadinessPath, s.telemetry.Health.ReadinessHandler())
	}
	if s.telemetryCfg.Metrics.Enabled {
		mux.Handle("GET "+s.telemetryCfg.Metrics.Path, s.telemetry.Metrics.Handler())
	}
	mux.Handle("/version", health.VersionHandler(s.telemetry.Version))

	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /v1/commands", s.handleCommands)
	mux.HandleFunc("GET /v1/commands/{name}", s.handleCommand)
	mux.HandleFunc("GET /v1/properties", s.handleProperties)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/history/{id}", s.handleHistoryEntry)
	mux.HandleFunc("POST /v1/reload", s.handleReload)

	return chain(mux,
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware,
		s.telemetry.Tracer.HTTPMiddleware,
		LoggingMiddleware(s.logger),
	)
}
