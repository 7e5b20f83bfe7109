package api

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/bookwise/internal/storage"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(MCPDeps{}); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_Recommend(t *testing.T) {
	m := &mockRecommender{rec: sampleRecommendation()}
	handler := mcpRecommend(MCPDeps{Recommender: m, Timeout: time.Minute})

	result, err := handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{
		"question": "슬픈 소설",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var out struct {
		Category        string `json:"category"`
		Source          string `json:"source"`
		Recommendations []struct {
			Title string `json:"title"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("decoding tool output: %v", err)
	}
	if out.Category != "소설" || out.Source != "local" || len(out.Recommendations) != 1 {
		t.Errorf("output = %+v", out)
	}
	if m.question != "슬픈 소설" || !m.deadline {
		t.Errorf("question = %q, deadline = %v", m.question, m.deadline)
	}
}

func TestMCPTool_Recommend_RawAnswer(t *testing.T) {
	rec := sampleRecommendation()
	rec.Answer = "추천할 만한 책이 없습니다."
	handler := mcpRecommend(MCPDeps{Recommender: &mockRecommender{rec: rec}})

	result, _ := handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{"question": "q"}))
	if result.IsError || toolText(t, result) != rec.Answer {
		t.Errorf("result = %+v", result)
	}
}

func TestMCPTool_Recommend_Errors(t *testing.T) {
	handler := mcpRecommend(MCPDeps{Recommender: &mockRecommender{rec: sampleRecommendation()}})
	result, _ := handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{}))
	if !result.IsError {
		t.Error("missing question should be a tool error")
	}

	handler = mcpRecommend(MCPDeps{InitErr: errors.New("catalog database missing")})
	result, _ = handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{"question": "q"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "catalog database missing") {
		t.Errorf("unavailable result = %+v", result)
	}

	handler = mcpRecommend(MCPDeps{Recommender: &mockRecommender{err: errors.New("boom")}})
	result, _ = handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{"question": "q"}))
	if !result.IsError {
		t.Error("pipeline failure should be a tool error")
	}
}

func TestMCPTool_Recommend_SameRulesAsHTTP(t *testing.T) {
	cases := []struct {
		name     string
		question string
		wantErr  string
	}{
		{"blank", "   ", "question is required"},
		{"too long", strings.Repeat("가", 501), "at most 500 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockRecommender{rec: sampleRecommendation()}
			handler := mcpRecommend(MCPDeps{Recommender: m})
			result, err := handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{
				"question": tc.question,
			}))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if !result.IsError || !strings.Contains(toolText(t, result), tc.wantErr) {
				t.Errorf("result = %q, want error containing %q", toolText(t, result), tc.wantErr)
			}
			if m.calls != 0 {
				t.Errorf("recommender called %d times, want 0", m.calls)
			}
		})
	}

	m := &mockRecommender{rec: sampleRecommendation()}
	handler := mcpRecommend(MCPDeps{Recommender: m})
	result, _ := handler(context.Background(), makeCallToolRequest("recommend_book", map[string]interface{}{
		"question": "  " + strings.Repeat("가", 500) + " ",
	}))
	if result.IsError {
		t.Fatalf("500 characters should pass: %s", toolText(t, result))
	}
	if m.question != strings.Repeat("가", 500) {
		t.Error("question should reach the recommender trimmed")
	}
}

func TestCheckQuestion(t *testing.T) {
	if q, err := checkQuestion("  소설 추천  "); err != nil || q != "소설 추천" {
		t.Errorf("checkQuestion = %q, %v", q, err)
	}
	if _, err := checkQuestion(""); err == nil || err.Error() != "question is required" {
		t.Errorf("empty question err = %v", err)
	}
}

func TestMCPTool_ListCategories(t *testing.T) {
	handler := mcpListCategories(MCPDeps{Index: &mockIndex{idx: newTestIndex(t, "소설", "역사")}})

	result, err := handler(context.Background(), makeCallToolRequest("list_categories", nil))
	if err != nil || result.IsError {
		t.Fatalf("result = %+v, err = %v", result, err)
	}
	if got := toolText(t, result); got != `["소설","역사"]` {
		t.Errorf("categories = %s", got)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	store := newTestStore(t)
	long := strings.Repeat("책", 250)
	if err := store.SaveRecommendation(context.Background(), storage.Recommendation{
		ID: "r1", Question: long, Category: "일반", Path: "fallback", Answer: "{}",
	}); err != nil {
		t.Fatal(err)
	}

	handler := mcpResourceRecent(MCPDeps{History: store})
	contents, err := handler(context.Background(), makeReadResourceRequest("history://recent"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	trc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if trc.URI != "history://recent" || trc.MIMEType != "application/json" {
		t.Errorf("uri = %q, mime = %q", trc.URI, trc.MIMEType)
	}

	var runs []struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		Path     string `json:"path"`
	}
	if err := json.Unmarshal([]byte(trc.Text), &runs); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(runs) != 1 || runs[0].Path != "fallback" {
		t.Fatalf("runs = %+v", runs)
	}
	if !strings.HasSuffix(runs[0].Question, "...") || len([]rune(runs[0].Question)) != 203 {
		t.Errorf("question not truncated to 200 runes: %d", len([]rune(runs[0].Question)))
	}
}
