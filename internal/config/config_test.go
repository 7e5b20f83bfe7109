package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every env var the loader consults so host settings do not
// leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
		for _, a := range s.aliases {
			t.Setenv(a, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKWISE_LLM_API_KEY", "test-key")

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, ProviderOpenAI)
	}
	if cfg.LLM.ChatModel != "gpt-4o-mini" {
		t.Errorf("LLM.ChatModel = %q, want gpt-4o-mini", cfg.LLM.ChatModel)
	}
	if cfg.LLM.EmbedModel != "text-embedding-3-small" {
		t.Errorf("LLM.EmbedModel = %q, want text-embedding-3-small", cfg.LLM.EmbedModel)
	}
	if cfg.Recommend.Threshold != 1.3 {
		t.Errorf("Recommend.Threshold = %v, want 1.3", cfg.Recommend.Threshold)
	}
	if cfg.Recommend.DefaultCategory != "일반" {
		t.Errorf("Recommend.DefaultCategory = %q, want 일반", cfg.Recommend.DefaultCategory)
	}
	if cfg.Aladin.MaxResults != 5 {
		t.Errorf("Aladin.MaxResults = %d, want 5", cfg.Aladin.MaxResults)
	}
	if cfg.Catalog.DBPath != "db.sqlite3" {
		t.Errorf("Catalog.DBPath = %q, want db.sqlite3", cfg.Catalog.DBPath)
	}
}

func TestYAMLFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `server:
  port: 9090
  cors_origins: "http://a.test, http://b.test"
llm:
  provider: ollama
  base_url: http://localhost:11434
  chat_model: llama3
recommend:
  threshold: 0.8
  timeout: 15s
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("LLM.Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.LLM.ChatModel != "llama3" {
		t.Errorf("LLM.ChatModel = %q, want llama3", cfg.LLM.ChatModel)
	}
	if cfg.Recommend.Threshold != 0.8 {
		t.Errorf("Recommend.Threshold = %v, want 0.8", cfg.Recommend.Threshold)
	}
	if got := cfg.RecommendTimeout().String(); got != "15s" {
		t.Errorf("RecommendTimeout = %s, want 15s", got)
	}
	origins := cfg.CORSOriginList()
	if len(origins) != 2 || origins[1] != "http://b.test" {
		t.Errorf("CORSOriginList = %v", origins)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 9090\n")
	t.Setenv("BOOKWISE_LLM_API_KEY", "k")
	t.Setenv("BOOKWISE_SERVER_PORT", "7070")
	t.Setenv("BOOKWISE_RECOMMEND_THRESHOLD", "2.5")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Recommend.Threshold != 2.5 {
		t.Errorf("Recommend.Threshold = %v, want 2.5", cfg.Recommend.Threshold)
	}
}

func TestLegacyEnvAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("GMS_KEY", "gms")
	t.Setenv("ALADIN_TTB_KEY", "ttb")
	t.Setenv("DB_FILE_PATH", "/data/db.sqlite3")

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "gms" {
		t.Errorf("LLM.APIKey = %q, want gms", cfg.LLM.APIKey)
	}
	if cfg.Aladin.TTBKey != "ttb" {
		t.Errorf("Aladin.TTBKey = %q, want ttb", cfg.Aladin.TTBKey)
	}
	if cfg.Catalog.DBPath != "/data/db.sqlite3" {
		t.Errorf("Catalog.DBPath = %q", cfg.Catalog.DBPath)
	}
}

func TestPrimaryEnvWinsOverAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("GMS_KEY", "legacy")
	t.Setenv("BOOKWISE_LLM_API_KEY", "primary")

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "primary" {
		t.Errorf("LLM.APIKey = %q, want primary", cfg.LLM.APIKey)
	}
}

func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "llm:\n  api_key: from-file\n")

	_, err := loadFromPath(path)
	if err == nil {
		t.Fatal("expected missing API key error, file secrets must be ignored")
	}
}

func TestMissingAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "BOOKWISE_LLM_API_KEY") {
		t.Errorf("error should name the env var, got: %v", err)
	}
}

func TestOllamaNeedsNoKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKWISE_LLM_PROVIDER", "ollama")
	if _, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKWISE_LLM_PROVIDER", "bard")
	if _, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestInvalidIntInFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKWISE_LLM_API_KEY", "k")
	path := writeTempConfig(t, "server:\n  port: eighty\n")
	if _, err := loadFromPath(path); err == nil {
		t.Fatal("expected error for non-integer port")
	}
}

func TestIndexPath(t *testing.T) {
	cfg := Config{Storage: StorageConfig{DataDir: "/var/lib/bookwise"}}
	if got := cfg.IndexPath(); got != filepath.Join("/var/lib/bookwise", "category_index.bin") {
		t.Errorf("IndexPath = %q", got)
	}
	cfg.Index.Path = "/tmp/idx.bin"
	if got := cfg.IndexPath(); got != "/tmp/idx.bin" {
		t.Errorf("IndexPath = %q, want override", got)
	}
}

func TestRetentionPeriod(t *testing.T) {
	cases := map[string]time.Duration{
		"720h":  720 * time.Hour,
		"0":     0,
		"-1h":   0,
		"never": 0,
	}
	for in, want := range cases {
		cfg := Config{Storage: StorageConfig{Retention: in}}
		if got := cfg.RetentionPeriod(); got != want {
			t.Errorf("RetentionPeriod(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	b := newFileBackend(path)

	if err := setKeyWith(b, "server.port", "5000"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := setKeyWith(b, "recommend.default_category", "소설"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 5000 {
		t.Errorf("server.port = %d ok=%v err=%v, want 5000", port, ok, err)
	}
	cat, ok, _ := reloaded.GetString("recommend.default_category")
	if !ok || cat != "소설" {
		t.Errorf("default_category = %q, want 소설", cat)
	}
}

func TestSetKeyRejects(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))
	cases := []struct {
		key, value string
	}{
		{"server.port", "abc"},
		{"recommend.threshold", "high"},
		{"llm.api_key", "secret"},
		{"no.such.key", "x"},
	}
	for _, tc := range cases {
		if err := setKeyWith(b, tc.key, tc.value); err == nil {
			t.Errorf("setKeyWith(%q, %q) expected error", tc.key, tc.value)
		}
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "hidden"
	for _, k := range ShowAll(cfg) {
		if k.Key == "llm.api_key" || k.Key == "aladin.ttb_key" || k.Key == "server.admin_token" {
			t.Errorf("ShowAll exposed secret key %s", k.Key)
		}
	}
	if len(ValidKeys()) != len(ShowAll(cfg)) {
		t.Error("ValidKeys and ShowAll disagree on key count")
	}
}
