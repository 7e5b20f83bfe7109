package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/kalambet/bookwise/internal/pipeline"
)

const recommendPath = "/api/v1/aifeatures/recommends/"

func TestRecommend_Created(t *testing.T) {
	m := &mockRecommender{rec: sampleRecommendation()}
	h := NewRouter(Deps{Recommender: m, Timeout: time.Minute})

	rr := serve(h, authReq(http.MethodPost, recommendPath, `{"question":"  슬픈 소설 추천해줘 "}`, ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["answer"] != m.rec.Answer {
		t.Errorf("answer = %q, want raw recommendation", resp["answer"])
	}
	if len(resp) != 1 {
		t.Errorf("response has extra fields: %v", resp)
	}
	if m.question != "슬픈 소설 추천해줘" {
		t.Errorf("question = %q, want trimmed", m.question)
	}
	if !m.deadline {
		t.Error("expected a request deadline")
	}
	if rr.Header().Get("X-Recommendation-ID") != "rec-1" {
		t.Errorf("X-Recommendation-ID = %q", rr.Header().Get("X-Recommendation-ID"))
	}
}

func TestRecommend_WithoutTrailingSlash(t *testing.T) {
	h := NewRouter(Deps{Recommender: &mockRecommender{rec: sampleRecommendation()}})
	rr := serve(h, authReq(http.MethodPost, strings.TrimSuffix(recommendPath, "/"), `{"question":"q"}`, ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
}

func TestRecommend_ValidationErrors(t *testing.T) {
	bodies := map[string]string{
		"missing":   `{}`,
		"blank":     `{"question":"   "}`,
		"malformed": `{"question":`,
		"too long":  fmt.Sprintf(`{"question":%q}`, strings.Repeat("가", 501)),
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			m := &mockRecommender{rec: sampleRecommendation()}
			h := NewRouter(Deps{Recommender: m})
			rr := serve(h, authReq(http.MethodPost, recommendPath, body, ""))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
			}
			if m.calls != 0 {
				t.Error("pipeline must not run for invalid input")
			}
			if !strings.Contains(rr.Body.String(), errInvalidRequest) {
				t.Errorf("body = %s, want error envelope", rr.Body.String())
			}
		})
	}
}

func TestRecommend_MaxLengthCountsCharacters(t *testing.T) {
	h := NewRouter(Deps{Recommender: &mockRecommender{rec: sampleRecommendation()}})
	body := fmt.Sprintf(`{"question":%q}`, strings.Repeat("가", 500))
	if rr := serve(h, authReq(http.MethodPost, recommendPath, body, "")); rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 for 500 Korean characters", rr.Code)
	}
}

func TestRecommend_Unavailable(t *testing.T) {
	h := NewRouter(Deps{InitErr: errors.New("catalog database missing")})

	rr := serve(h, authReq(http.MethodPost, recommendPath, `{"question":"q"}`, ""))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "catalog database missing") {
		t.Errorf("body = %s", rr.Body.String())
	}

	// Other routes stay up.
	if rr := serve(h, authReq(http.MethodGet, "/health", "", "")); rr.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", rr.Code)
	}
}

func TestRecommend_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"compose", fmt.Errorf("%w: boom", pipeline.ErrCompose), http.StatusBadGateway},
		{"timeout", fmt.Errorf("looking up: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"empty", pipeline.ErrEmptyQuery, http.StatusBadRequest},
		{"catalog", errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(Deps{Recommender: &mockRecommender{err: tc.err}})
			rr := serve(h, authReq(http.MethodPost, recommendPath, `{"question":"q"}`, ""))
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestRecommend_RateLimited(t *testing.T) {
	h := NewRouter(Deps{Recommender: &mockRecommender{rec: sampleRecommendation()}, RateLimit: 1})

	first := serve(h, authReq(http.MethodPost, recommendPath, `{"question":"q"}`, ""))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	second := serve(h, authReq(http.MethodPost, recommendPath, `{"question":"q"}`, ""))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
}

func TestRecommend_CORSPreflight(t *testing.T) {
	h := NewRouter(Deps{Recommender: &mockRecommender{rec: sampleRecommendation()}, CORSOrigins: []string{"http://localhost:5173"}})

	req := authReq(http.MethodOptions, recommendPath, "", "")
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := serve(h, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
