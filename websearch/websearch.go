// Package websearch defines the external web-search provider contract used by
// the web_search tool, a Tavily client implementing it and a cache-aside
// decorator.
package websearch

import (
	"context"
	"strings"
)

// Hit is a single web search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Result is the outcome of a web search. Answer holds a provider-generated
// short answer when the provider supports it.
type Result struct {
	Query   string `json:"query"`
	Answer  string `json:"answer,omitempty"`
	Results []Hit  `json:"results"`
}

// Provider performs web searches.
type Provider interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, query string) (*Result, error)

// Search calls f.
func (f ProviderFunc) Search(ctx context.Context, query string) (*Result, error) {
	return f(ctx, query)
}

// NormalizeQuery trims and lowercases a query and collapses inner whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
