package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/bookwise/internal/agent"
	"github.com/kalambet/bookwise/internal/api"
	"github.com/kalambet/bookwise/internal/auth"
	"github.com/kalambet/bookwise/internal/config"
	"github.com/kalambet/bookwise/internal/ingest"
	"github.com/kalambet/bookwise/internal/intent"
	"github.com/kalambet/bookwise/internal/ollama"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/session"
	"github.com/kalambet/bookwise/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bookwise server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "bookwise version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness; pull anything missing, keep the intent model warm.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	models := []string{cfg.Ollama.ChatModel, cfg.Ollama.IntentModel, cfg.Ollama.EmbedModel}
	if err := ollama.EnsureReady(ctx, ollamaClient, models, cfg.Ollama.IntentModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Session backend: Redis when configured, process memory otherwise.
	var sessions session.Store
	if cfg.Session.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.TTL, cfg.Session.MaxTurns)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("sessions backed by redis")
	} else {
		sessions = session.NewMemoryStore(cfg.Session.MaxTurns)
		logger.Info("sessions held in memory")
	}

	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	classifier := intent.NewClassifier(ollamaClient, cfg.Ollama.IntentModel, 0)

	assistant := agent.New(agent.Options{
		Sessions:   sessions,
		Classifier: classifier,
		Model:      ollamaClient,
		ChatModel:  cfg.Ollama.ChatModel,
		Retriever:  retriever,
		Store:      store,
		TopK:       cfg.Retrieval.TopK,
		Timeout:    cfg.Ollama.CallTimeout,
		Logger:     logger,
	})

	tokens := auth.New(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	handler := api.NewRouter(store, assistant, tokens, logger)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Catalog worker keeps the vector index in step with book writes.
	worker := ingest.NewWorker(store, embedder, vectorStore, 2*time.Second)
	go worker.Run(ctx)

	// MCP server over stdio for local agents.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Retriever: retriever,
		Vectors:   vectorStore,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP stdio server error", "error", err)
		}
	}()
	logger.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "bookwise listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
