package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
	"go.uber.org/zap"
)

func handleCategories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Index == nil {
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "category index is unavailable")
			return
		}
		cats := deps.Index.Current().Categories()
		writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
	}
}

func handleIndexStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Index == nil {
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "category index is unavailable")
			return
		}
		writeJSON(w, http.StatusOK, deps.Index.Status())
	}
}

func handleRebuildIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Index == nil {
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "category index is unavailable")
			return
		}
		idx, err := deps.Index.Rebuild(r.Context())
		if err != nil {
			zap.L().Error("index rebuild failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, errInternal, "rebuilding index: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"categories": idx.Len(),
			"status":     deps.Index.Status(),
		})
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "history is unavailable")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		recs, err := deps.History.RecentRecommendations(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, errInternal, "failed to list history: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.Recommendation{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleGetHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "history is unavailable")
			return
		}
		rec, err := deps.History.GetRecommendation(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, errNotFound, "recommendation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, errInternal, "failed to get recommendation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// parseIntParam reads a positive integer query parameter, falling back to
// def when absent or invalid and clamping to max when max > 0.
func parseIntParam(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

var _ IndexService = (*retrieval.IndexManager)(nil)
