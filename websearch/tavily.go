package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTavilyBaseURL is the public Tavily API endpoint.
const DefaultTavilyBaseURL = "https://api.tavily.com"

// TavilyOptions configure the Tavily client.
type TavilyOptions struct {
	APIKey        string
	BaseURL       string
	MaxResults    int
	SearchDepth   string // basic or advanced
	IncludeAnswer bool
	HTTPClient    *http.Client
}

// Tavily is a Provider backed by the Tavily search API.
type Tavily struct {
	opts TavilyOptions
}

// NewTavily creates a Tavily client.
func NewTavily(optFns ...func(o *TavilyOptions)) (*Tavily, error) {
	opts := TavilyOptions{
		BaseURL:       DefaultTavilyBaseURL,
		MaxResults:    5,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, errors.New("tavily: api key is required")
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Tavily{opts: opts}, nil
}

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements Provider.
func (t *Tavily) Search(ctx context.Context, query string) (*Result, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:         query,
		MaxResults:    t.opts.MaxResults,
		SearchDepth:   t.opts.SearchDepth,
		IncludeAnswer: t.opts.IncludeAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.opts.APIKey)

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	result := &Result{
		Query:   query,
		Answer:  decoded.Answer,
		Results: make([]Hit, 0, len(decoded.Results)),
	}
	for _, r := range decoded.Results {
		result.Results = append(result.Results, Hit{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}

	return result, nil
}
