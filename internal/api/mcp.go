package api

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/bookwise/internal/composer"
	"github.com/kalambet/bookwise/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server. Recommender may be nil when
// the feature failed to start; Index and History are optional.
type MCPDeps struct {
	Recommender Recommender
	InitErr     error
	Index       IndexService
	History     HistoryStore
	Timeout     time.Duration
	Version     string
}

// NewMCPServer creates an MCP server exposing book recommendation tools and
// the recent history resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"bookwise",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bookwise recommends books from a local library catalog, falling back to the Aladin book search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend_book",
			mcp.WithDescription("Recommend up to three books for a free-text request, in Korean or English."),
			mcp.WithString("question", mcp.Description("What the reader is looking for"), mcp.Required()),
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List the catalog categories a request can be matched against."),
		),
		mcpListCategories(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Recommendations",
			mcp.WithResourceDescription("Last 10 recommendation runs (question, category, path)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpRecommend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Recommender == nil {
			msg := "recommendation feature is unavailable"
			if deps.InitErr != nil {
				msg += ": " + deps.InitErr.Error()
			}
			return mcpError(msg), nil
		}

		raw, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		question, err := checkQuestion(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
			defer cancel()
		}

		rec, err := deps.Recommender.Recommend(ctx, question)
		if errors.Is(err, pipeline.ErrEmptyQuery) {
			return mcpError("question is required"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		// Prefer a tidy JSON rendering; fall back to the raw model answer.
		picks, perr := composer.ParseRecommendations(rec.Answer)
		if perr != nil {
			return mcpText(rec.Answer), nil
		}
		b, err := json.Marshal(map[string]any{
			"category":        rec.Category,
			"source":          rec.Path,
			"recommendations": picks,
		})
		if err != nil {
			return mcpText(rec.Answer), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListCategories(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Index == nil {
			return mcpError("category index is unavailable"), nil
		}
		cats := deps.Index.Current().Categories()
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.Name
		}
		b, err := json.Marshal(names)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal categories: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.History == nil {
			return nil, errors.New("history is unavailable")
		}
		recs, err := deps.History.RecentRecommendations(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent recommendations: %w", err)
		}

		type runSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Category  string `json:"category"`
			Path      string `json:"path"`
		}

		summaries := make([]runSummary, len(recs))
		for i, rec := range recs {
			q := rec.Question
			if utf8.RuneCountInString(q) > 200 {
				q = string([]rune(q)[:200]) + "..."
			}
			summaries[i] = runSummary{
				ID:        rec.ID,
				CreatedAt: rec.CreatedAt.Format(time.RFC3339),
				Question:  q,
				Category:  rec.Category,
				Path:      rec.Path,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
