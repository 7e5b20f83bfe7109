package retrieval

import (
	"context"
	"fmt"
)

// DefaultThreshold is the largest squared L2 distance still treated as a
// reliable category match.
const DefaultThreshold = 1.3

// IndexSource hands out the currently loaded category index.
type IndexSource interface {
	Current() *CategoryIndex
}

// QueryEmbedder embeds a single query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is the nearest category for a query. Found is false when the index
// is empty; Confident implies Found.
type Match struct {
	Category  CategoryVector
	Distance  float64
	Found     bool
	Confident bool
}

// Gate resolves a query to its single nearest category and decides whether
// the match is close enough to trust.
type Gate struct {
	index     IndexSource
	embedder  QueryEmbedder
	threshold float64
}

// NewGate returns a Gate. A non-positive threshold uses DefaultThreshold.
func NewGate(index IndexSource, embedder QueryEmbedder, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{index: index, embedder: embedder, threshold: threshold}
}

func (g *Gate) Threshold() float64 { return g.threshold }

// Resolve finds the nearest category to query. An empty index is not an
// error; it yields a zero Match.
func (g *Gate) Resolve(ctx context.Context, query string) (Match, error) {
	idx := g.index.Current()
	if idx.Len() == 0 {
		return Match{}, nil
	}

	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return Match{}, fmt.Errorf("embedding query: %w", err)
	}

	best, dist, ok, err := idx.Nearest(vec)
	if err != nil {
		return Match{}, err
	}
	if !ok {
		return Match{}, nil
	}
	return Match{
		Category:  best,
		Distance:  dist,
		Found:     true,
		Confident: dist <= g.threshold,
	}, nil
}
