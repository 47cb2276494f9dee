package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-tplguard/pkg/codec"
	"github.com/goliatone/go-tplguard/pkg/registry"
	"github.com/goliatone/go-tplguard/pkg/render/template"
)

// Service is the runtime the server exposes. *orchestrator.Orchestrator
// satisfies it.
type Service interface {
	RegisterEncoded(ctx context.Context, name string, format codec.Format, raw []byte) error
	Component(name string) (registry.Component, bool)
	Components() []string
	CompileTemplates(ctx context.Context, entities []map[string]any) error
	Template(name string) (template.Info, bool)
	Templates() []string
	RenderTemplateEncoded(ctx context.Context, name string, format codec.Format, raw []byte) (string, error)
}

// Option customises a Server.
type Option func(*Server)

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithLogger sets the logger used for request and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server represents the HTTP server
type Server struct {
	config      *Config
	service     Service
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	mu          sync.RWMutex
	ready       bool
	logger      *slog.Logger
}

// New creates a server exposing service.
func New(service Service, options ...Option) *Server {
	s := &Server{
		config:  NewConfig(),
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.rateLimiter = rate.NewLimiter(s.config.RequestsPerSecond, s.config.Burst)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// System endpoints (no rate limiting)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	// API endpoints with middleware
	mux.Handle("PUT /v1/components/{name}", s.api(s.handlePutComponent))
	mux.Handle("GET /v1/components", s.api(s.handleListComponents))
	mux.Handle("GET /v1/components/{name}", s.api(s.handleGetComponent))
	mux.Handle("POST /v1/templates", s.api(s.handleCompile))
	mux.Handle("GET /v1/templates", s.api(s.handleListTemplates))
	mux.Handle("GET /v1/templates/{name}", s.api(s.handleGetTemplate))
	mux.Handle("POST /v1/templates/{name}/render", s.api(s.handleRender))

	return mux
}

// SetReady marks the server as ready to serve traffic
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.SetReady(true)
	s.logger.Info("starting server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Run serves service until SIGINT or SIGTERM.
func Run(ctx context.Context, service Service, options ...Option) error {
	server := New(service, options...)
	if err := server.config.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	server.logger.Info("server config",
		"name", server.config.Name,
		"version", server.config.Version,
		"address", server.httpServer.Addr,
		"requestsPerSecond", float64(server.config.RequestsPerSecond),
		"burst", server.config.Burst,
		"readTimeout", server.config.ReadTimeout,
		"writeTimeout", server.config.WriteTimeout,
		"idleTimeout", server.config.IdleTimeout,
		"shutdownTimeout", server.config.ShutdownTimeout,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	server.logger.Info("server stopped gracefully")
	return nil
}
