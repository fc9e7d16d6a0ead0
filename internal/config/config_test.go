package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Session.MaxTurns != 200 {
		t.Errorf("MaxTurns = %d, want 200", cfg.Session.MaxTurns)
	}
	if cfg.Session.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.Session.RedisURL)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("TopK = %d, want 4", cfg.Retrieval.TopK)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")
	t.Setenv("BOOKWISE_PORT", "9191")
	t.Setenv("BOOKWISE_CHAT_MODEL", "llama3.1")
	t.Setenv("BOOKWISE_CALL_TIMEOUT", "5s")
	t.Setenv("BOOKWISE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "llama3.1" {
		t.Errorf("ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.CallTimeout != 5*time.Second {
		t.Errorf("CallTimeout = %v, want 5s", cfg.Ollama.CallTimeout)
	}
	if cfg.Session.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.Session.RedisURL)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("BOOKWISE_AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing auth secret")
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")
	t.Setenv("BOOKWISE_SESSION_MAX_TURNS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.MaxTurns != 200 {
		t.Errorf("MaxTurns = %d, want default 200", cfg.Session.MaxTurns)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")
	t.Setenv("BOOKWISE_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
