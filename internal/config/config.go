package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Session   SessionConfig
	Retrieval RetrievalConfig
	Auth      AuthConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type OllamaConfig struct {
	BaseURL     string
	ChatModel   string
	IntentModel string
	EmbedModel  string
	CallTimeout time.Duration
}

type StorageConfig struct {
	DataDir string
}

type SessionConfig struct {
	// RedisURL selects the Redis session backend when non-empty;
	// otherwise sessions live in process memory.
	RedisURL string
	MaxTurns int
	TTL      time.Duration
}

type RetrievalConfig struct {
	TopK int
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			ChatModel:   "mistral-nemo",
			IntentModel: "phi3.5",
			EmbedModel:  "nomic-embed-text",
			CallTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Session: SessionConfig{
			MaxTurns: 200,
			TTL:      24 * time.Hour,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Auth: AuthConfig{
			TokenTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from environment variables, applying defaults for
// anything unset. A .env file in the working directory is loaded first when
// present (it never overrides variables already in the environment).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	cfg.Server.Port = getEnvInt("BOOKWISE_PORT", cfg.Server.Port)
	cfg.Ollama.BaseURL = getEnv("BOOKWISE_OLLAMA_URL", cfg.Ollama.BaseURL)
	cfg.Ollama.ChatModel = getEnv("BOOKWISE_CHAT_MODEL", cfg.Ollama.ChatModel)
	cfg.Ollama.IntentModel = getEnv("BOOKWISE_INTENT_MODEL", cfg.Ollama.IntentModel)
	cfg.Ollama.EmbedModel = getEnv("BOOKWISE_EMBED_MODEL", cfg.Ollama.EmbedModel)
	cfg.Ollama.CallTimeout = getEnvDuration("BOOKWISE_CALL_TIMEOUT", cfg.Ollama.CallTimeout)
	cfg.Storage.DataDir = getEnv("BOOKWISE_DATA_DIR", cfg.Storage.DataDir)
	cfg.Session.RedisURL = getEnv("BOOKWISE_REDIS_URL", "")
	cfg.Session.MaxTurns = getEnvInt("BOOKWISE_SESSION_MAX_TURNS", cfg.Session.MaxTurns)
	cfg.Session.TTL = getEnvDuration("BOOKWISE_SESSION_TTL", cfg.Session.TTL)
	cfg.Retrieval.TopK = getEnvInt("BOOKWISE_RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
	cfg.Auth.Secret = getEnv("BOOKWISE_AUTH_SECRET", "")
	cfg.Auth.TokenTTL = getEnvDuration("BOOKWISE_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Log.Level = getEnv("BOOKWISE_LOG_LEVEL", cfg.Log.Level)

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("BOOKWISE_PORT must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("BOOKWISE_OLLAMA_URL cannot be empty")
	}
	if c.Session.MaxTurns < 2 {
		return fmt.Errorf("BOOKWISE_SESSION_MAX_TURNS must be >= 2, got %d", c.Session.MaxTurns)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("BOOKWISE_RETRIEVAL_TOP_K must be > 0, got %d", c.Retrieval.TopK)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("missing required config: BOOKWISE_AUTH_SECRET")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
