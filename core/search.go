package core

// SearchResult is a retrieved knowledge chunk with its relevance score and
// arbitrary metadata.
type SearchResult struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
