package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/pipeline"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
)

const testToken = "test-token-12345"

type mockRecommender struct {
	rec      *pipeline.Recommendation
	err      error
	calls    int
	question string
	deadline bool
}

func (m *mockRecommender) Recommend(ctx context.Context, q string) (*pipeline.Recommendation, error) {
	m.calls++
	m.question = q
	_, m.deadline = ctx.Deadline()
	if m.err != nil {
		return nil, m.err
	}
	return m.rec, nil
}

type mockIndex struct {
	idx         *retrieval.CategoryIndex
	rebuildErr  error
	rebuildRuns int
}

func (m *mockIndex) Current() *retrieval.CategoryIndex { return m.idx }

func (m *mockIndex) Rebuild(ctx context.Context) (*retrieval.CategoryIndex, error) {
	m.rebuildRuns++
	if m.rebuildErr != nil {
		return nil, m.rebuildErr
	}
	return m.idx, nil
}

func (m *mockIndex) Status() retrieval.IndexStatus {
	return retrieval.IndexStatus{Path: "/tmp/idx.bin", Loaded: m.idx != nil, Categories: m.idx.Len()}
}

func newTestIndex(t *testing.T, names ...string) *retrieval.CategoryIndex {
	t.Helper()
	entries := make([]retrieval.CategoryVector, len(names))
	for i, n := range names {
		entries[i] = retrieval.CategoryVector{ID: int64(i + 1), Name: n, Embedding: []float32{float32(i), 1}}
	}
	idx, err := retrieval.NewCategoryIndex(entries)
	if err != nil {
		t.Fatalf("NewCategoryIndex: %v", err)
	}
	return idx
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecommendation() *pipeline.Recommendation {
	return &pipeline.Recommendation{
		ID:       "rec-1",
		Answer:   `{"recommendations":[{"title":"채식주의자","author":"한강","description":"강렬한 소설"}]}`,
		Category: "소설",
		Path:     pipeline.PathLocal,
		Items:    []catalog.Book{{Title: "채식주의자", Author: "한강", Source: catalog.SourceLocal}},
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
