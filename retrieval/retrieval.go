package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

// Document is a unit of ingestion.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a stored slice of a Document.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]any
}

// Store persists chunks and ranks them against a query.
type Store interface {
	Add(ctx context.Context, chunks []Chunk) error
	// Search returns at most k results ordered by descending score.
	Search(ctx context.Context, query string, k int) ([]core.SearchResult, error)
}

// Embedder turns texts into vectors for vector backed stores.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Options configure a Service.
type Options struct {
	// TopK is the number of results returned by Search.
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Logger       logging.Logger
}

// Service ingests and searches documents.
type Service struct {
	store Store
	opts  Options
}

// NewService creates a Service backed by store.
func NewService(store Store, optFns ...func(o *Options)) (*Service, error) {
	opts := Options{
		TopK:         1,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if store == nil {
		return nil, errors.New("retrieval: store is required")
	}
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("retrieval: top-k must be positive, got %d", opts.TopK)
	}
	if opts.ChunkSize <= 0 || opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("retrieval: invalid chunking size=%d overlap=%d", opts.ChunkSize, opts.ChunkOverlap)
	}

	return &Service{store: store, opts: opts}, nil
}

// Ingest chunks doc and stores the chunks. It returns the chunk count.
func (s *Service) Ingest(ctx context.Context, doc Document) (int, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return 0, &core.InputError{Field: "content", Reason: "must not be empty"}
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	start := time.Now()
	texts := ChunkText(doc.Content, s.opts.ChunkSize, s.opts.ChunkOverlap)

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		md := make(map[string]any, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		md["document_id"] = doc.ID
		md["chunk_index"] = i

		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			Metadata:   md,
		})
	}

	if err := s.store.Add(ctx, chunks); err != nil {
		s.opts.Logger.Error("retrieval.ingest.error", "document_id", doc.ID, "error", err.Error())
		return 0, fmt.Errorf("retrieval: store chunks: %w", err)
	}

	s.opts.Logger.Info("retrieval.ingest.done",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return len(chunks), nil
}

// Search returns the top-k chunks for query. No match is an empty, non-nil
// result.
func (s *Service) Search(ctx context.Context, query string) ([]core.SearchResult, error) {
	results, err := s.store.Search(ctx, query, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	if results == nil {
		results = []core.SearchResult{}
	}

	s.opts.Logger.Debug("retrieval.search", "query", query, "results", len(results))

	return results, nil
}
