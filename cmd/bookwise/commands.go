package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/bookwise/internal/config"
	"github.com/kalambet/bookwise/internal/ingest"
	"github.com/kalambet/bookwise/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bookwise system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a catalog file (text or PDF) into the bookstore",
	Long: `Import a catalog file into the bookstore.

Each line describes one book as pipe-separated fields:

  Title | Author | Genre | Rating | Year | Description

PDF files are reduced to plain text first. Missing authors are created;
duplicate books are skipped. Imported books are embedded into the search
index by the running server's catalog worker.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(args[0])
	},
}

func runImport(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	stats, err := ingest.ImportFile(context.Background(), store, path)
	if err != nil {
		return err
	}

	printSuccess("Imported %d books (%d new authors, %d skipped)", stats.Books, stats.Authors, stats.Skipped)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	printStatus("Intent model", "%s", cfg.Ollama.IntentModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err == nil {
		defer store.Close()
		if stats, err := store.Stats(context.Background()); err == nil {
			printStatus("Books", "%d", stats.Books)
			printStatus("Authors", "%d", stats.Authors)
			printStatus("Users", "%d", stats.Users)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Session.RedisURL != "" {
		printStatus("Sessions", "redis")
	} else {
		printStatus("Sessions", "memory")
	}
	return nil
}
