// Package intent reduces a free-text book request to a single search
// keyword for the external book search.
package intent

import (
	"context"
	"strings"
	"time"

	"github.com/kalambet/bookwise/internal/engine"
	"go.uber.org/zap"
)

const extractionTimeout = 15 * time.Second

// Chatter is the subset of engine.Engine the extractor needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Extractor asks a chat model for the keyword.
type Extractor struct {
	client Chatter
	model  string
}

func NewExtractor(client Chatter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// ExtractKeyword returns the model's answer with surrounding whitespace
// trimmed and otherwise unchanged; multi-word answers pass through as-is.
// On a model error or blank answer it returns query itself so the search
// still has something to look for.
func (e *Extractor) ExtractKeyword(ctx context.Context, query string) string {
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(query), nil)
	if err != nil {
		zap.L().Warn("keyword extraction failed, searching with the raw query", zap.Error(err))
		return query
	}

	keyword := strings.TrimSpace(raw)
	if keyword == "" {
		zap.L().Warn("keyword extraction returned nothing, searching with the raw query")
		return query
	}
	zap.L().Debug("search keyword extracted", zap.String("keyword", keyword))
	return keyword
}
