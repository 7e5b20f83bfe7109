package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CategorySource lists the catalog's categories.
type CategorySource interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
}

// TextEmbedder embeds category names in bulk and queries one at a time.
// Model names the embedding model, recorded in the persisted index.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// IndexManager owns the category index lifecycle: load the persisted file
// if present, otherwise build from the catalog and persist. A file built
// with a different embedding model, or in an older format, counts as absent.
// Concurrent builds within one process collapse into a single build and
// write.
type IndexManager struct {
	source   CategorySource
	embedder TextEmbedder
	path     string

	group singleflight.Group

	mu      sync.RWMutex
	current *CategoryIndex
}

func NewIndexManager(source CategorySource, embedder TextEmbedder, path string) *IndexManager {
	return &IndexManager{source: source, embedder: embedder, path: path}
}

func (m *IndexManager) Path() string { return m.path }

// Current returns the loaded index, or nil before a successful non-empty
// EnsureIndex or Rebuild.
func (m *IndexManager) Current() *CategoryIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *IndexManager) swap(idx *CategoryIndex) {
	m.mu.Lock()
	m.current = idx
	m.mu.Unlock()
	metrics.CategoryIndexSize.Set(float64(idx.Len()))
}

// EnsureIndex returns the category index, loading it from disk or building
// it on first use. A catalog with no eligible categories yields an empty
// index that is neither persisted nor cached, so a later call retries.
func (m *IndexManager) EnsureIndex(ctx context.Context) (*CategoryIndex, error) {
	if idx := m.Current(); idx != nil {
		return idx, nil
	}

	v, err, _ := m.group.Do("ensure", func() (any, error) {
		if idx := m.Current(); idx != nil {
			return idx, nil
		}

		idx, err := LoadCategoryIndex(m.path)
		switch {
		case err == nil && idx.Model() == m.embedder.Model():
			zap.L().Info("category index loaded", zap.String("path", m.path), zap.Int("categories", idx.Len()))
			m.swap(idx)
			return idx, nil
		case err == nil:
			zap.L().Info("category index built with another embedding model; rebuilding",
				zap.String("path", m.path),
				zap.String("index_model", idx.Model()),
				zap.String("model", m.embedder.Model()))
		case errors.Is(err, ErrStaleIndex):
			zap.L().Info("category index format is outdated; rebuilding", zap.String("path", m.path), zap.Error(err))
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("loading category index: %w", err)
		}

		return m.buildAndStore(context.WithoutCancel(ctx), false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CategoryIndex), nil
}

// Rebuild re-embeds the catalog categories, overwrites the persisted index
// and swaps it in. Requests in flight keep the index they already hold.
// When no category is eligible any more, the persisted file is removed and
// the manager holds no index until categories reappear.
func (m *IndexManager) Rebuild(ctx context.Context) (*CategoryIndex, error) {
	v, err, _ := m.group.Do("rebuild", func() (any, error) {
		return m.buildAndStore(context.WithoutCancel(ctx), true)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CategoryIndex), nil
}

func (m *IndexManager) buildAndStore(ctx context.Context, explicit bool) (*CategoryIndex, error) {
	start := time.Now()
	idx, err := m.build(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		zap.L().Warn("no eligible categories; category index not persisted", zap.String("path", m.path))
		if explicit {
			if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("removing stale category index: %w", err)
			}
			m.swap(nil)
		}
		return idx, nil
	}
	if err := idx.Save(m.path); err != nil {
		return nil, fmt.Errorf("persisting category index: %w", err)
	}
	m.swap(idx)
	zap.L().Info("category index built",
		zap.String("path", m.path),
		zap.Int("categories", idx.Len()),
		zap.Duration("took", time.Since(start)))
	return idx, nil
}

func (m *IndexManager) build(ctx context.Context) (*CategoryIndex, error) {
	cats, err := m.source.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}

	eligible := EligibleCategories(cats)
	if len(eligible) == 0 {
		return NewCategoryIndex(nil)
	}

	names := make([]string, len(eligible))
	for i, c := range eligible {
		names[i] = c.Name
	}
	vecs, err := m.embedder.EmbedBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("embedding categories: %w", err)
	}

	entries := make([]CategoryVector, len(eligible))
	for i, c := range eligible {
		entries[i] = CategoryVector{ID: c.ID, Name: c.Name, Embedding: vecs[i]}
	}
	idx, err := NewCategoryIndex(entries)
	if err != nil {
		return nil, err
	}
	idx.model = m.embedder.Model()
	return idx, nil
}

// EligibleCategories drops blank names and keeps the first id seen for each
// distinct name.
func EligibleCategories(cats []catalog.Category) []catalog.Category {
	seen := make(map[string]bool, len(cats))
	out := make([]catalog.Category, 0, len(cats))
	for _, c := range cats {
		if strings.TrimSpace(c.Name) == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

// IndexStatus describes the persisted and in-memory index.
type IndexStatus struct {
	Path       string    `json:"path"`
	Model      string    `json:"model,omitempty"`
	Persisted  bool      `json:"persisted"`
	ModTime    time.Time `json:"mod_time,omitempty"`
	Loaded     bool      `json:"loaded"`
	Categories int       `json:"categories"`
}

func (m *IndexManager) Status() IndexStatus {
	st := IndexStatus{Path: m.path}
	if fi, err := os.Stat(m.path); err == nil {
		st.Persisted = true
		st.ModTime = fi.ModTime()
	}
	if idx := m.Current(); idx != nil {
		st.Loaded = true
		st.Categories = idx.Len()
		st.Model = idx.Model()
	}
	return st
}
