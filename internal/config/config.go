// Package config loads service configuration from defaults, an optional .env
// file, and CONNECTU_* environment variables (highest precedence).
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig
	Qdrant     QdrantConfig
	Index      IndexConfig
	Storage    StorageConfig
	Processing ProcessingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Bind     string
	Port     int
	APIToken string
}

type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int
	Temperature     float64
	// Summary word band passed to the synthesizer prompt. A soft target for
	// the model, not a hard output contract.
	SummaryMinWords int
	SummaryMaxWords int
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type IndexConfig struct {
	// Backend selects the vector index implementation: "sqlite" or "qdrant".
	Backend string
}

type StorageConfig struct {
	DataDir string
}

type ProcessingConfig struct {
	// Concurrency bounds how many respondents are processed in parallel
	// within one form batch.
	Concurrency int
	WorkerPoll  time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o-mini",
			EmbedModel:      "text-embedding-3-large",
			EmbedDimensions: 1536,
			Temperature:     0.7,
			SummaryMinWords: 150,
			SummaryMaxWords: 200,
		},
		Qdrant: QdrantConfig{
			Collection: "connectu_responses",
		},
		Index: IndexConfig{
			Backend: "sqlite",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Processing: ProcessingConfig{
			Concurrency: 4,
			WorkerPoll:  500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, a .env file in the working
// directory (if present), and CONNECTU_* environment variables.
func Load() (Config, error) {
	// A missing .env file is not an error; env vars alone are fine.
	godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("missing required config: OpenAI API key (set CONNECTU_OPENAI_API_KEY)")
	}
	if cfg.Server.APIToken == "" {
		return fmt.Errorf("missing required config: API bearer token (set CONNECTU_API_TOKEN)")
	}
	if cfg.OpenAI.EmbedDimensions <= 0 {
		return fmt.Errorf("invalid config: embedding dimensions must be positive, got %d", cfg.OpenAI.EmbedDimensions)
	}
	switch cfg.Index.Backend {
	case "sqlite":
	case "qdrant":
		if cfg.Qdrant.URL == "" {
			return fmt.Errorf("missing required config: Qdrant URL (set CONNECTU_QDRANT_URL)")
		}
	default:
		return fmt.Errorf("invalid config: unknown index backend %q (expected sqlite or qdrant)", cfg.Index.Backend)
	}
	if cfg.OpenAI.SummaryMinWords > cfg.OpenAI.SummaryMaxWords {
		return fmt.Errorf("invalid config: summary word band %d-%d is inverted",
			cfg.OpenAI.SummaryMinWords, cfg.OpenAI.SummaryMaxWords)
	}
	return nil
}
