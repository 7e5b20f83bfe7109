package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigBackend abstracts where persisted (non-secret) settings live. Keys
// use dotted paths such as "server.port".
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetFloat(key string) (val float64, ok bool, err error)
	Set(key, val string) error
	Delete(key string) error
}

// fileBackend stores config as nested YAML sections:
//
//	server:
//	  port: 8080
//	llm:
//	  provider: ollama
type fileBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("could not read config file, using defaults", zap.String("path", b.path), zap.Error(err))
		}
		return
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		zap.L().Warn("could not parse config file, using defaults", zap.String("path", b.path), zap.Error(err))
		return
	}
	if data != nil {
		b.data = data
	}
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := yaml.Marshal(b.data)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, out, 0o600)
}

// lookup walks the dotted key through nested sections.
func (b *fileBackend) lookup(key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = b.data
	for _, p := range parts {
		section, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = section[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok || v == nil {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("value %v for %s is not a valid integer", val, key)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type %T for %s", v, key)
	}
}

func (b *fileBackend) GetFloat(key string) (float64, bool, error) {
	v, ok := b.lookup(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		return val, true, nil
	case int:
		return float64(val), true, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, true, fmt.Errorf("invalid float for %s: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type %T for %s", v, key)
	}
}

// Set stores val under key, creating intermediate sections. Values are
// written as YAML scalars; numeric strings round-trip as numbers.
func (b *fileBackend) Set(key, val string) error {
	parts := strings.Split(key, ".")
	section := b.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := section[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			section[p] = next
		}
		section = next
	}
	section[parts[len(parts)-1]] = scalar(val)
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	parts := strings.Split(key, ".")
	section := b.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := section[p].(map[string]any)
		if !ok {
			return nil
		}
		section = next
	}
	delete(section, parts[len(parts)-1])
	return b.save()
}

func scalar(val string) any {
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}
