package retrieval

import (
	"context"
	"errors"
	"testing"
)

type staticIndex struct{ idx *CategoryIndex }

func (s staticIndex) Current() *CategoryIndex { return s.idx }

func newGate(t *testing.T, query []float32, threshold float64) *Gate {
	t.Helper()
	idx, err := NewCategoryIndex([]CategoryVector{
		{ID: 1, Name: "Fiction", Embedding: []float32{0, 0}},
		{ID: 2, Name: "Science", Embedding: []float32{10, 10}},
	})
	if err != nil {
		t.Fatal(err)
	}
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": query}}
	return NewGate(staticIndex{idx}, emb, threshold)
}

func TestResolve_ConfidentWithinThreshold(t *testing.T) {
	// Squared distance 0.4 from Fiction.
	g := newGate(t, []float32{0.2, 0.6}, 1.3)
	m, err := g.Resolve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !m.Found || !m.Confident {
		t.Fatalf("match = %+v, want confident", m)
	}
	if m.Category.Name != "Fiction" || m.Category.ID != 1 {
		t.Errorf("category = %+v, want Fiction", m.Category)
	}
}

func TestResolve_AtThresholdIsConfident(t *testing.T) {
	g := newGate(t, []float32{1, 0}, 1.0)
	m, _ := g.Resolve(context.Background(), "q")
	if m.Distance != 1.0 || !m.Confident {
		t.Errorf("match = %+v, want distance 1 and confident", m)
	}
}

func TestResolve_BeyondThresholdNotConfident(t *testing.T) {
	// Squared distance 2.0 from Fiction, still the nearest category.
	g := newGate(t, []float32{1, 1}, 1.3)
	m, err := g.Resolve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !m.Found {
		t.Fatal("expected a nearest category")
	}
	if m.Confident {
		t.Errorf("match = %+v, want not confident", m)
	}
	if m.Category.Name != "Fiction" {
		t.Errorf("nearest = %q, want Fiction", m.Category.Name)
	}
}

func TestResolve_EmptyIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	g := NewGate(staticIndex{nil}, emb, 1.3)
	m, err := g.Resolve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Found || m.Confident {
		t.Errorf("match = %+v, want zero", m)
	}
	if emb.count() != 0 {
		t.Error("empty index must not embed the query")
	}
}

func TestResolve_EmbedError(t *testing.T) {
	idx, _ := NewCategoryIndex([]CategoryVector{{ID: 1, Name: "a", Embedding: []float32{0}}})
	g := NewGate(staticIndex{idx}, &fakeEmbedder{err: errors.New("timeout")}, 1.3)
	if _, err := g.Resolve(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewGate_DefaultThreshold(t *testing.T) {
	if g := NewGate(staticIndex{}, &fakeEmbedder{}, 0); g.Threshold() != DefaultThreshold {
		t.Errorf("Threshold = %v, want %v", g.Threshold(), DefaultThreshold)
	}
}
