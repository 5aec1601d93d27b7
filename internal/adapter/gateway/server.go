package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/config"
	"canvas-copilot/internal/infra/middleware"
	"canvas-copilot/internal/usecase"
)

// Server is the HTTP gateway exposing the command API.
type Server struct {
	cfg       config.GatewayConfig
	limits    config.LimitsConfig
	handler   *CommandHandler
	tools     domain.ToolExecutor
	provider  domain.LLMProvider
	metrics   *Metrics
	logger    *slog.Logger
	httpSrv   *http.Server
	boundAddr string
	startTime time.Time
}

// NewServer creates a gateway server around the command orchestrator.
func NewServer(cfg config.GatewayConfig, limits config.LimitsConfig, orch *usecase.Orchestrator, tools domain.ToolExecutor, provider domain.LLMProvider, logger *slog.Logger) *Server {
	metrics := &Metrics{}
	auth := NewStaticTokenAuth(cfg.Auth.Tokens)
	return &Server{
		cfg:      cfg,
		limits:   limits,
		handler:  NewCommandHandler(orch, auth, metrics, cfg.AllowedOrigins, cfg.Production, logger),
		tools:    tools,
		provider: provider,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start begins serving. Blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.startTime = time.Now()

	mux := http.NewServeMux()
	mux.Handle("/api/v1/command", s.handler)
	mux.HandleFunc("/api/v1/status", statusHandler(s.startTime, s.metrics, s.tools, s.provider))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	rateLimit := middleware.RateLimit(ctx, middleware.RateLimitConfig{
		RequestsPerMin: s.limits.IPRequestsPerMin,
		BurstSize:      s.limits.IPBurst,
		TrustedProxies: s.cfg.TrustedProxies,
	})
	var root http.Handler = mux
	root = rateLimit(root)
	root = middleware.SecurityHeaders(root)

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid
// after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
