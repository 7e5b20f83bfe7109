// Package composer renders the book recommendation prompt and asks the chat
// model for an answer.
package composer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/engine"
	"github.com/kalambet/bookwise/internal/metrics"
	"go.uber.org/zap"
)

// EmptyAnswer replaces a blank model answer so callers always get a body.
const EmptyAnswer = `{"recommendations": []}`

const recommendTemplate = `당신은 최고의 도서 추천 전문가입니다. 
다음은 알라딘에서 가져온 '{category_name}' 카테고리의 추천 도서 목록입니다.

목록: {book_json}

사용자의 요청({user_query})에 부합하는 책을 선정하여 친절하게 추천해 주세요.
책의 제목, 저자, 간단한 특징을 포함해야 합니다. 링크는 포함하지 말아주세요.

3개 까지 추천해 주셨으면 좋겠어요.

JSON 형식 예시: {
    "recommendations": [
        {
            "title": "책 제목",
            "author": "저자 이름",
            "description": "추천 이유 및 특징"
        }
    ]
}

반드시 마크다운 기호(예: ` + "```json" + `) 없이 순수한 JSON 내용만 응답하세요.`

// Payload is what gets substituted into the recommendation template.
type Payload struct {
	CategoryName string
	BookJSON     string
	UserQuery    string
}

// RenderBooks encodes books as a JSON array with non-ASCII text kept as is.
// A nil or empty list renders as [].
func RenderBooks(books []catalog.Book) (string, error) {
	if len(books) == 0 {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(books); err != nil {
		return "", fmt.Errorf("encoding books: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// BuildMessages renders p into the template as a single user message. Each
// placeholder is replaced once, in one pass, so braces or placeholder names
// inside the user's text are left alone.
func BuildMessages(p Payload) []engine.Message {
	r := strings.NewReplacer(
		"{category_name}", p.CategoryName,
		"{book_json}", p.BookJSON,
		"{user_query}", p.UserQuery,
	)
	return []engine.Message{{Role: engine.RoleUser, Content: r.Replace(recommendTemplate)}}
}

// RecommendationSchema constrains local models to the answer shape the
// prompt asks for. Hosted engines ignore it.
func RecommendationSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"recommendations": {
				Type: "array",
				Items: &engine.SchemaProperty{
					Type: "object",
					Properties: map[string]engine.SchemaProperty{
						"title":       {Type: "string"},
						"author":      {Type: "string"},
						"description": {Type: "string"},
					},
				},
			},
		},
		Required: []string{"recommendations"},
	}
}

// Chatter is the slice of engine.Engine the composer needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, schema *engine.Schema) (string, error)
}

// Composer asks the chat model to pick books from a payload.
type Composer struct {
	chat  Chatter
	model string
}

func New(chat Chatter, model string) *Composer {
	return &Composer{chat: chat, model: model}
}

// Compose returns the model's raw answer for p. A blank answer becomes
// EmptyAnswer; a model failure is returned as an error.
func (c *Composer) Compose(ctx context.Context, p Payload) (string, error) {
	start := time.Now()
	answer, err := c.chat.Chat(ctx, c.model, BuildMessages(p), RecommendationSchema())
	metrics.RecordLLMCall("compose", start)
	if err != nil {
		return "", fmt.Errorf("composing recommendation: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		zap.L().Warn("chat model returned an empty recommendation", zap.String("category", p.CategoryName))
		return EmptyAnswer, nil
	}
	return answer, nil
}
