package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "CONNECTU_SERVER_BIND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.Bind = v.(string) },
	},
	{
		env: "CONNECTU_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "CONNECTU_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "CONNECTU_OPENAI_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
	},
	{
		env: "CONNECTU_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		env: "CONNECTU_OPENAI_CHAT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
	},
	{
		env: "CONNECTU_OPENAI_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "CONNECTU_OPENAI_EMBED_DIMENSIONS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedDimensions = v.(int) },
	},
	{
		env: "CONNECTU_OPENAI_TEMPERATURE", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.OpenAI.Temperature = v.(float64) },
	},
	{
		env: "CONNECTU_SUMMARY_MIN_WORDS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.OpenAI.SummaryMinWords = v.(int) },
	},
	{
		env: "CONNECTU_SUMMARY_MAX_WORDS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.OpenAI.SummaryMaxWords = v.(int) },
	},
	{
		env: "CONNECTU_QDRANT_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Qdrant.URL = v.(string) },
	},
	{
		env: "CONNECTU_QDRANT_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Qdrant.APIKey = v.(string) },
	},
	{
		env: "CONNECTU_QDRANT_COLLECTION", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Qdrant.Collection = v.(string) },
	},
	{
		env: "CONNECTU_INDEX_BACKEND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Index.Backend = v.(string) },
	},
	{
		env: "CONNECTU_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "CONNECTU_PROCESSING_CONCURRENCY", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Processing.Concurrency = v.(int) },
	},
	{
		env: "CONNECTU_WORKER_POLL", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Processing.WorkerPoll = v.(time.Duration) },
	},
	{
		env: "CONNECTU_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "connectu")
	}
	return filepath.Join(".", "connectu-data")
}
