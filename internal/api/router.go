// Package api serves the recommendation feature over HTTP and MCP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kalambet/bookwise/internal/pipeline"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiPrefix = "/api/v1/aifeatures"

type Recommender interface {
	Recommend(ctx context.Context, query string) (*pipeline.Recommendation, error)
}

type IndexService interface {
	Current() *retrieval.CategoryIndex
	Rebuild(ctx context.Context) (*retrieval.CategoryIndex, error)
	Status() retrieval.IndexStatus
}

type HistoryStore interface {
	RecentRecommendations(ctx context.Context, limit int) ([]storage.Recommendation, error)
	GetRecommendation(ctx context.Context, id string) (storage.Recommendation, error)
}

// Deps holds what the HTTP layer serves. A nil Recommender means the
// recommendation feature failed to start; its routes then answer 503 with
// InitErr while every other route keeps working. Index and History are
// optional.
type Deps struct {
	Recommender Recommender
	InitErr     error
	Index       IndexService
	History     HistoryStore

	AdminToken  string
	CORSOrigins []string
	RateLimit   int           // recommend requests per minute per IP
	Timeout     time.Duration // per recommendation; 0 means no extra deadline
}

// NewRouter returns the service's HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(corsMiddleware(deps.CORSOrigins))

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Route(apiPrefix, func(r chi.Router) {
		r.With(rateLimit("recommends", deps.RateLimit)).Post("/recommends", handleRecommend(deps))
		r.Get("/categories", handleCategories(deps))

		if deps.AdminToken != "" {
			r.Group(func(r chi.Router) {
				r.Use(BearerAuth(deps.AdminToken))
				r.Post("/index/rebuild", handleRebuildIndex(deps))
				r.Get("/index", handleIndexStatus(deps))
				r.Get("/history", handleListHistory(deps))
				r.Get("/history/{id}", handleGetHistory(deps))
			})
		}
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok", "recommend": "ready"}
		if deps.Recommender == nil {
			body["recommend"] = "unavailable"
			if deps.InitErr != nil {
				body["reason"] = deps.InitErr.Error()
			}
		}
		if deps.Index != nil {
			body["categories"] = deps.Index.Current().Len()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
