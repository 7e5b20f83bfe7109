package intent

import (
	"strings"

	"github.com/kalambet/bookwise/internal/engine"
)

const keywordPromptTemplate = `사용자의 요청({user_input})을 기반으로 책을 찾을 때 사용할 핵심 검색어 1개를 단 1개의 단어 형태로 응답하세요.
(예시: 심리학, 에세이, 파이썬)`

// BuildPrompt renders the keyword instruction around query as a single user
// message.
func BuildPrompt(query string) []engine.Message {
	content := strings.Replace(keywordPromptTemplate, "{user_input}", query, 1)
	return []engine.Message{{Role: engine.RoleUser, Content: content}}
}
