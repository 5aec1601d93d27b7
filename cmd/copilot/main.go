package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"canvas-copilot/internal/adapter/gateway"
	"canvas-copilot/internal/adapter/llm"
	"canvas-copilot/internal/adapter/store"
	"canvas-copilot/internal/adapter/tool"
	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/config"
	"canvas-copilot/internal/infra/logger"
	"canvas-copilot/internal/infra/tracer"
	"canvas-copilot/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`canvas-copilot - natural-language command engine for a shared canvas

USAGE:
    copilot [FLAGS]

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: CANVASAI_* variables override config

API:
    POST /api/v1/command   Execute a natural-language canvas command
    GET  /api/v1/status    Service counters and provider info
    GET  /healthz          Liveness probe`)
}

// configPath returns the --config flag value or the default.
func configPath() string {
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(os.Args[i], "--config=") {
			return strings.TrimPrefix(os.Args[i], "--config=")
		}
	}
	return "./config.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Document store
	docStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer docStore.Close()

	// 4. Model provider
	var provider domain.LLMProvider = llm.NewOpenAIProvider(cfg.LLM.Provider, log)
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}

	// 5. Tools
	ids := tool.NewULIDGenerator()
	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{
		tool.NewCreateTool(docStore, ids, log),
		tool.NewUpdateTool(docStore, log),
		tool.NewMoveTool(docStore, log),
		tool.NewDeleteTool(docStore, log),
		tool.NewArrangeTool(docStore, log),
		tool.NewQueryTool(docStore, log),
		tool.NewTemplateTool(docStore, ids, log),
		tool.NewBulkCreateTool(docStore, ids, log),
		tool.NewBulkUpdateTool(docStore, log),
		tool.NewUndoTool(docStore, docStore, log),
	} {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	// 6. Admission control
	limiter := tool.NewUserRateLimiter(cfg.Limits.UserRequests, cfg.Limits.UserWindow)
	go func() {
		ticker := time.NewTicker(cfg.Limits.UserWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	// 7. Orchestrator
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		LLM:         provider,
		Tools:       registry,
		Tracker:     usecase.NewTracker(docStore, ids, log),
		Limiter:     limiter,
		Logger:      log,
		MaxTokens:   cfg.LLM.Provider.MaxTokens,
		Temperature: cfg.LLM.Provider.Temperature,
	})

	// 8. Gateway
	srv := gateway.NewServer(cfg.Gateway, cfg.Limits, orch, registry, provider, log)

	log.Info("canvas-copilot starting",
		"addr", cfg.Gateway.Addr,
		"provider", provider.Name(),
		"model", cfg.LLM.Provider.Model,
		"store", cfg.Store.Path,
	)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	log.Info("canvas-copilot stopped")
	return nil
}
