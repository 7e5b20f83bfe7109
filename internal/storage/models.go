package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Recommendation is the audit record of one pipeline run.
type Recommendation struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Question  string        `json:"question"`
	Category  string        `json:"category"`
	Path      string        `json:"path"` // "local" or "fallback"
	Keyword   string        `json:"keyword,omitempty"`
	ItemCount int           `json:"item_count"`
	Answer    string        `json:"answer"`
	Duration  time.Duration `json:"duration_ns"`
	// Distance is nil when the similarity gate produced no candidate.
	Distance *float64 `json:"distance,omitempty"`
}
