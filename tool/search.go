package tool

import (
	"context"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/websearch"
)

// Names of the built-in search tools.
const (
	KnowledgeSearchToolName = "knowledge_search"
	WebSearchToolName       = "web_search"
)

// KnowledgeSearcher retrieves passages from the knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) ([]core.SearchResult, error)
}

// KnowledgeSearcherFunc adapts a function to KnowledgeSearcher.
type KnowledgeSearcherFunc func(ctx context.Context, query string) ([]core.SearchResult, error)

// Search calls f.
func (f KnowledgeSearcherFunc) Search(ctx context.Context, query string) ([]core.SearchResult, error) {
	return f(ctx, query)
}

type searchArgs struct {
	Query string `json:"query" description:"The search query"`
}

// NewKnowledgeSearchTool exposes searcher as the knowledge_search tool. An
// empty hit list is a valid result and encodes as [].
func NewKnowledgeSearchTool(searcher KnowledgeSearcher) *FunctionTool {
	return NewTypedTool(KnowledgeSearchToolName,
		"Search the internal knowledge base and return the most relevant passages for the query.",
		func(ctx context.Context, in searchArgs) (any, error) {
			results, err := searcher.Search(ctx, in.Query)
			if err != nil {
				return nil, err
			}
			if results == nil {
				results = []core.SearchResult{}
			}
			return results, nil
		})
}

// NewWebSearchTool exposes provider as the web_search tool.
func NewWebSearchTool(provider websearch.Provider) *FunctionTool {
	return NewTypedTool(WebSearchToolName,
		"Search the web for up-to-date information about the query.",
		func(ctx context.Context, in searchArgs) (any, error) {
			return provider.Search(ctx, in.Query)
		})
}
