// Glean server — multi-source query orchestration engine behind a
// conversational data-analysis frontend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/insightloop/glean/pkg/api"
	"github.com/insightloop/glean/pkg/config"
	"github.com/insightloop/glean/pkg/conversation"
	"github.com/insightloop/glean/pkg/events"
	"github.com/insightloop/glean/pkg/executor"
	"github.com/insightloop/glean/pkg/llm"
	"github.com/insightloop/glean/pkg/orchestrator"
	"github.com/insightloop/glean/pkg/registry"
	"github.com/insightloop/glean/pkg/repository"
	"github.com/insightloop/glean/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("GLEAN_CONFIG", "glean.yaml"),
		"Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, continuing with existing environment", "error", err)
	}

	slog.Info("Starting glean", "version", version.Version, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Configuration.
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Repository database.
	store, err := repository.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		slog.Error("Failed to open repository database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Error closing repository database", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		cancel()
		slog.Error("Repository database unreachable", "error", err)
		os.Exit(1)
	}
	cancel()
	slog.Info("Connected to repository database")

	// 3. Data source registry and plan executor.
	sourceRegistry := registry.New(store)
	defer func() {
		if err := sourceRegistry.Close(); err != nil {
			slog.Error("Error closing data source adapters", "error", err)
		}
	}()
	planExecutor := executor.New(sourceRegistry)

	// 4. Event hub, providers, conversation state.
	hub := events.NewHub(0)
	providers := llm.NewFactory(cfg.Providers)
	conversations := conversation.NewManager(store, cfg.ConversationTTL)
	conversations.StartCleanup(ctx, cfg.CleanupInterval)

	// 5. Orchestrator and HTTP front.
	orch := orchestrator.New(store, sourceRegistry, providers, planExecutor,
		conversations, hub, cfg.DefaultProvider)

	server := api.NewServer(cfg.Server, hub, orch, sourceRegistry, cfg.Providers)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}

	slog.Info("Glean stopped")
}
