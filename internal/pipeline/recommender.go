// Package pipeline runs one book recommendation: resolve the question to a
// catalog category, gather candidate books locally or from the external
// search, and have the chat model pick from them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/composer"
	"github.com/kalambet/bookwise/internal/metrics"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
	"go.uber.org/zap"
)

// FailureText stands in for the book list when catalog rows cannot be read.
const FailureText = "책 정보를 가져오는 데 실패했습니다."

// DefaultCategory labels the prompt when no category matched confidently.
const DefaultCategory = "일반"

// Data paths recorded on each Recommendation.
const (
	PathLocal    = "local"
	PathFallback = "fallback"
)

var (
	ErrEmptyQuery = errors.New("question must not be empty")
	// ErrCompose wraps chat model failures in the final step.
	ErrCompose = errors.New("recommendation model failed")
)

type Gate interface {
	Resolve(ctx context.Context, query string) (retrieval.Match, error)
}

type BookLookup interface {
	BooksByCategory(ctx context.Context, categoryID int64) ([]catalog.Book, error)
}

type Searcher interface {
	Search(ctx context.Context, keyword string) ([]catalog.Book, error)
}

type KeywordExtractor interface {
	ExtractKeyword(ctx context.Context, query string) string
}

type Composer interface {
	Compose(ctx context.Context, p composer.Payload) (string, error)
}

// Recorder persists finished runs. Optional.
type Recorder interface {
	SaveRecommendation(ctx context.Context, r storage.Recommendation) error
}

// Recommendation is the result of one run. Items is never nil.
type Recommendation struct {
	ID       string         `json:"id"`
	Answer   string         `json:"answer"`
	Category string         `json:"category"`
	Path     string         `json:"path"`
	Keyword  string         `json:"keyword,omitempty"`
	Items    []catalog.Book `json:"items"`
	Distance *float64       `json:"distance,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Deps are the collaborators of a Recommender. All but Recorder are required.
type Deps struct {
	Gate      Gate
	Books     BookLookup
	Search    Searcher
	Extractor KeywordExtractor
	Composer  Composer
	Recorder  Recorder
}

type Recommender struct {
	deps            Deps
	defaultCategory string
}

// New returns a Recommender. An empty defaultCategory uses DefaultCategory.
func New(deps Deps, defaultCategory string) *Recommender {
	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}
	return &Recommender{deps: deps, defaultCategory: defaultCategory}
}

// Recommend runs the pipeline for query:
//  1. Resolve the nearest category (a gate failure counts as no match)
//  2. Confident match: load that category's books from the catalog
//  3. No confident match, or no local books: extract a keyword and search
//     externally (search failures yield no items)
//  4. Compose the answer from the category label, books and query
//
// Only an empty query, a catalog error other than a bad row, and a chat
// model failure in step 4 are returned as errors.
func (r *Recommender) Recommend(ctx context.Context, query string) (*Recommendation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	rec := &Recommendation{
		ID:       uuid.NewString(),
		Category: r.defaultCategory,
		Items:    []catalog.Book{},
	}

	match, err := r.deps.Gate.Resolve(ctx, query)
	if err != nil {
		metrics.RecommendationErrors.WithLabelValues("gate").Inc()
		zap.L().Warn("similarity gate failed; using external search", zap.Error(err))
		match = retrieval.Match{}
	}
	if match.Found {
		d := match.Distance
		rec.Distance = &d
		metrics.GateDistance.Observe(d)
		zap.L().Debug("nearest category",
			zap.String("category", match.Category.Name),
			zap.Float64("distance", d),
			zap.Bool("confident", match.Confident))
	}

	bookJSON := ""
	lookup := NotFound()
	if match.Confident {
		rec.Category = match.Category.Name
		rec.Path = PathLocal

		lookup, err = r.lookupLocal(ctx, match.Category.ID)
		var rowErr *catalog.RowMappingError
		switch {
		case errors.As(err, &rowErr):
			metrics.RecommendationErrors.WithLabelValues("row_mapping").Inc()
			zap.L().Warn("unreadable catalog row", zap.Error(err))
			bookJSON = FailureText
		case err != nil:
			metrics.RecommendationErrors.WithLabelValues("catalog").Inc()
			return nil, err
		}
	}

	switch {
	case bookJSON != "":
	case lookup.IsFound():
		rec.Items = lookup.Items()
	default:
		rec.Path = PathFallback
		rec.Keyword, rec.Items = r.fallback(ctx, query)
	}

	if bookJSON == "" {
		bookJSON, err = composer.RenderBooks(rec.Items)
		if err != nil {
			return nil, err
		}
	}

	answer, err := r.deps.Composer.Compose(ctx, composer.Payload{
		CategoryName: rec.Category,
		BookJSON:     bookJSON,
		UserQuery:    query,
	})
	if err != nil {
		metrics.RecommendationErrors.WithLabelValues("compose").Inc()
		return nil, fmt.Errorf("%w: %w", ErrCompose, err)
	}
	rec.Answer = answer
	rec.Duration = time.Since(start)

	metrics.RecordRecommendation(rec.Path, rec.Duration)
	zap.L().Info("recommendation complete",
		zap.String("id", rec.ID),
		zap.String("path", rec.Path),
		zap.String("category", rec.Category),
		zap.Int("items", len(rec.Items)),
		zap.Duration("took", rec.Duration))

	r.record(ctx, query, rec)
	return rec, nil
}

func (r *Recommender) lookupLocal(ctx context.Context, categoryID int64) (Lookup, error) {
	books, err := r.deps.Books.BooksByCategory(ctx, categoryID)
	if err != nil {
		return NotFound(), fmt.Errorf("looking up category %d: %w", categoryID, err)
	}
	if len(books) == 0 {
		zap.L().Info("no local books for category; using external search", zap.Int64("category_id", categoryID))
		return NotFound(), nil
	}
	return Found(books), nil
}

// fallback extracts a search keyword and queries the external catalog. It
// never fails; errors become an empty item list.
func (r *Recommender) fallback(ctx context.Context, query string) (string, []catalog.Book) {
	keyword := r.deps.Extractor.ExtractKeyword(ctx, query)
	books, err := r.deps.Search.Search(ctx, keyword)
	if err != nil {
		metrics.RecommendationErrors.WithLabelValues("search").Inc()
		zap.L().Warn("external search failed; composing without books",
			zap.String("keyword", keyword), zap.Error(err))
		return keyword, []catalog.Book{}
	}
	if books == nil {
		books = []catalog.Book{}
	}
	return keyword, books
}

func (r *Recommender) record(ctx context.Context, query string, rec *Recommendation) {
	if r.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := r.deps.Recorder.SaveRecommendation(ctx, storage.Recommendation{
		ID:        rec.ID,
		CreatedAt: time.Now().UTC(),
		Question:  query,
		Category:  rec.Category,
		Path:      rec.Path,
		Keyword:   rec.Keyword,
		ItemCount: len(rec.Items),
		Answer:    rec.Answer,
		Duration:  rec.Duration,
		Distance:  rec.Distance,
	})
	if err != nil {
		zap.L().Warn("failed to record recommendation", zap.String("id", rec.ID), zap.Error(err))
	}
}
