package config

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string // legacy env names from the Django deployment
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "BOOKWISE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "BOOKWISE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.cors_origins", typ: kString, env: "BOOKWISE_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "server.rate_limit", typ: kInt, env: "BOOKWISE_SERVER_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimit },
	},
	{
		key: "server.admin_token", typ: kString, env: "BOOKWISE_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "llm.provider", typ: kString, env: "BOOKWISE_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "BOOKWISE_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "BOOKWISE_LLM_API_KEY", aliases: []string{"GMS_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.chat_model", typ: kString, env: "BOOKWISE_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.embed_model", typ: kString, env: "BOOKWISE_LLM_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "catalog.db_path", typ: kString, env: "BOOKWISE_CATALOG_DB_PATH", aliases: []string{"DB_FILE_PATH"},
		apply:   func(cfg *Config, v any) { cfg.Catalog.DBPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.DBPath },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BOOKWISE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.retention", typ: kString, env: "BOOKWISE_STORAGE_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Storage.Retention = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Retention },
	},
	{
		key: "index.path", typ: kString, env: "BOOKWISE_INDEX_PATH",
		apply:   func(cfg *Config, v any) { cfg.Index.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Path },
	},
	{
		key: "aladin.base_url", typ: kString, env: "BOOKWISE_ALADIN_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Aladin.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Aladin.BaseURL },
	},
	{
		key: "aladin.ttb_key", typ: kString, env: "BOOKWISE_ALADIN_TTB_KEY", aliases: []string{"ALADIN_TTB_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Aladin.TTBKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Aladin.TTBKey },
	},
	{
		key: "aladin.max_results", typ: kInt, env: "BOOKWISE_ALADIN_MAX_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Aladin.MaxResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Aladin.MaxResults },
	},
	{
		key: "recommend.threshold", typ: kFloat, env: "BOOKWISE_RECOMMEND_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Recommend.Threshold },
	},
	{
		key: "recommend.default_category", typ: kString, env: "BOOKWISE_RECOMMEND_DEFAULT_CATEGORY",
		apply:   func(cfg *Config, v any) { cfg.Recommend.DefaultCategory = v.(string) },
		extract: func(cfg Config) any { return cfg.Recommend.DefaultCategory },
	},
	{
		key: "recommend.timeout", typ: kString, env: "BOOKWISE_RECOMMEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Recommend.Timeout },
	},
	{
		key: "log.level", typ: kString, env: "BOOKWISE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the primary env var and
// its aliases.
func (s keySpec) lookupEnv() (string, string) {
	if v := os.Getenv(s.env); v != "" {
		return s.env, v
	}
	for _, a := range s.aliases {
		if v := os.Getenv(a); v != "" {
			return a, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name, raw := s.lookupEnv()
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
				zap.L().Warn("could not parse integer from env var, using default",
					zap.String("env", name), zap.String("value", raw), zap.Error(err))
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				zap.L().Warn("could not parse float from env var, using default",
					zap.String("env", name), zap.String("value", raw), zap.Error(err))
			}
		}
	}
}
