// Package aladin searches the Aladin open book API for recommendation
// candidates when the local catalog has nothing usable.
package aladin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/metrics"
)

const (
	DefaultBaseURL    = "http://www.aladin.co.kr/ttb/api"
	DefaultMaxResults = 5
	apiVersion        = "20131101"
	requestTimeout    = 10 * time.Second
	maxRetries        = 3
	initialBackoff    = 500 * time.Millisecond
)

// ErrNoKey is returned by Search when no TTB key is configured.
var ErrNoKey = errors.New("aladin: ttb key not configured")

// Client calls the ItemSearch endpoint.
type Client struct {
	baseURL    string
	ttbKey     string
	maxResults int
	httpClient *http.Client
}

// New returns a Client. An empty baseURL uses DefaultBaseURL and a
// non-positive maxResults uses DefaultMaxResults.
func New(baseURL, ttbKey string, maxResults int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttbKey:     ttbKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Search looks keyword up and returns at most maxResults books, all tagged
// catalog.SourceExternal. A response without items yields an empty slice.
func (c *Client) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	if c.ttbKey == "" {
		return nil, ErrNoKey
	}

	var lastErr error
	for attempt := range maxRetries {
		books, err := c.doSearch(ctx, keyword)
		if err == nil {
			metrics.ExternalSearchResults.Observe(float64(len(books)))
			return books, nil
		}

		var rl *rateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("aladin: unexpected status %d: %s", e.Status, e.Body)
}

func (c *Client) doSearch(ctx context.Context, keyword string) ([]catalog.Book, error) {
	q := url.Values{}
	q.Set("ttbkey", c.ttbKey)
	q.Set("Query", keyword)
	q.Set("QueryType", "Keyword")
	q.Set("MaxResults", strconv.Itoa(c.maxResults))
	q.Set("output", "js")
	q.Set("Version", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ItemSearch.aspx?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if sr.ErrorCode != 0 {
		return nil, fmt.Errorf("aladin: error %d: %s", sr.ErrorCode, sr.ErrorMessage)
	}

	n := min(len(sr.Items), c.maxResults)
	books := make([]catalog.Book, 0, n)
	for _, it := range sr.Items[:n] {
		books = append(books, it.book())
	}
	return books, nil
}
