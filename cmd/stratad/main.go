// Stratad is a multi-tenant retrieval daemon over a hierarchical knowledge
// base.
//
// Each organization under the knowledge root gets its own isolated vector
// store; questions are answered from the levels of the organization's
// hierarchy that apply to the requester.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	stratad
//
//	# Configure via file and environment
//	SERVER_PORT=9090 stratad -config stratad.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/veldtlabs/stratad/internal/completion"
	"github.com/veldtlabs/stratad/internal/config"
	"github.com/veldtlabs/stratad/internal/embeddings"
	"github.com/veldtlabs/stratad/internal/ingest"
	"github.com/veldtlabs/stratad/internal/logging"
	"github.com/veldtlabs/stratad/internal/planner"
	"github.com/veldtlabs/stratad/internal/registry"
	"github.com/veldtlabs/stratad/internal/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  stratad            Start the stratad daemon\n")
			fmt.Fprintf(os.Stderr, "  stratad version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("stratad by Veldt Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize structured logger
//  3. Create embedding and completion services
//  4. Build per-organization vector stores from the knowledge base
//  5. Start the HTTP server
//  6. Perform graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting stratad",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("knowledge_root", cfg.Knowledge.Root),
		zap.String("store_root", cfg.Store.Root),
		zap.Bool("api_auth", cfg.Server.APIKey.IsSet()),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}

	completer, err := completion.NewService(completion.Config{
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		APIKey:      cfg.Completion.APIKey.Value(),
		Temperature: cfg.Completion.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to create completion service: %w", err)
	}

	pipeline := ingest.NewPipeline(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap, logger)

	reg, err := registry.New(registry.Config{
		KnowledgeRoot: cfg.Knowledge.Root,
		StoreRoot:     cfg.Store.Root,
		Compress:      cfg.Store.Compress,
	}, pipeline, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to create store registry: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("failed to close store registry", zap.Error(err))
		}
	}()

	if err := reg.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize vector stores: %w", err)
	}

	logger.Info("Vector stores initialized",
		zap.Strings("organizations", reg.Organizations()))

	pl, err := planner.New(reg, pipeline, completer, cfg.Retrieval.TopK, logger)
	if err != nil {
		return fmt.Errorf("failed to create planner: %w", err)
	}

	srv, err := server.NewServer(pl, logger, &server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		APIKey:        cfg.Server.APIKey.Value(),
		KnowledgeRoot: cfg.Knowledge.Root,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
