package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Catalog   CatalogConfig
	Storage   StorageConfig
	Index     IndexConfig
	Aladin    AladinConfig
	Recommend RecommendConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins string // comma-separated
	RateLimit   int    // recommend requests per minute per IP; 0 disables
	AdminToken  string
}

// LLMConfig selects the chat/embedding backend. Provider is "openai" for any
// OpenAI-compatible endpoint or "ollama" for a local Ollama server.
type LLMConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type CatalogConfig struct {
	DBPath string
}

type StorageConfig struct {
	DataDir   string
	Retention string // history retention as a duration; "0" keeps everything
}

// IndexConfig locates the persisted category index. An empty Path means
// category_index.bin inside Storage.DataDir.
type IndexConfig struct {
	Path string
}

type AladinConfig struct {
	BaseURL    string
	TTBKey     string
	MaxResults int
}

type RecommendConfig struct {
	Threshold       float64
	DefaultCategory string
	Timeout         string
}

type LogConfig struct {
	Level string
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			CORSOrigins: "http://localhost:5173",
			RateLimit:   30,
		},
		LLM: LLMConfig{
			Provider:   ProviderOpenAI,
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Catalog: CatalogConfig{
			DBPath: "db.sqlite3",
		},
		Storage: StorageConfig{
			DataDir:   dataDir,
			Retention: "720h",
		},
		Aladin: AladinConfig{
			BaseURL:    "http://www.aladin.co.kr/ttb/api",
			MaxResults: 5,
		},
		Recommend: RecommendConfig{
			Threshold:       1.3,
			DefaultCategory: "일반",
			Timeout:         "60s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/bookwise/config.yaml (or BOOKWISE_CONFIG when set),
// then applies BOOKWISE_* environment overrides.
//
// Secrets (llm.api_key, aladin.ttb_key, server.admin_token) are read from the
// environment only.
func Load() (Config, error) {
	return loadFromPath(configFilePath())
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("missing required config: LLM API key. " +
				"Set it via environment variable BOOKWISE_LLM_API_KEY (or GMS_KEY)")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("invalid llm.provider %q (supported: openai, ollama)", c.LLM.Provider)
	}
	if c.Recommend.Threshold <= 0 {
		return fmt.Errorf("recommend.threshold must be positive, got %v", c.Recommend.Threshold)
	}
	return nil
}

// RetentionPeriod parses Storage.Retention. Zero or an unparsable value
// disables pruning.
func (c Config) RetentionPeriod() time.Duration {
	d, err := time.ParseDuration(c.Storage.Retention)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// RecommendTimeout parses Recommend.Timeout, falling back to 60s.
func (c Config) RecommendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Recommend.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// IndexPath returns the category index file location.
func (c Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.Storage.DataDir, "category_index.bin")
}

// CORSOriginList splits Server.CORSOrigins into trimmed, non-empty origins.
func (c Config) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "bookwise-data"
		}
	}
	return filepath.Join(dir, "bookwise")
}

func configFilePath() string {
	if p := os.Getenv("BOOKWISE_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "bookwise", "config.yaml")
}
