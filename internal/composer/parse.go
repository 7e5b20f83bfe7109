package composer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Pick is one recommended book as the model describes it.
type Pick struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// ParseRecommendations reads a model answer leniently: surrounding markdown
// code fences and any prose before the first '{' or after the last '}' are
// ignored. The HTTP surface never calls this; answers go out raw.
func ParseRecommendations(answer string) ([]Pick, error) {
	s := strings.TrimSpace(answer)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in answer")
	}

	var out struct {
		Recommendations []Pick `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parsing recommendations: %w", err)
	}
	if out.Recommendations == nil {
		return []Pick{}, nil
	}
	return out.Recommendations, nil
}
