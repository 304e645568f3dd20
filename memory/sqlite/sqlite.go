// Package sqlite provides a persistent retrieval.Store backed by SQLite and
// the sqlite-vec extension. Chunks live in a regular table, their embeddings
// in a vec0 virtual table using cosine distance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

// Options configure a Store.
type Options struct {
	Logger logging.Logger
}

// Store is a vector retrieval.Store.
type Store struct {
	db       *sql.DB
	embedder retrieval.Embedder
	logger   logging.Logger
}

// New opens (or creates) the database at path. Use ":memory:" for a
// transient store.
func New(path string, embedder retrieval.Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if path == "" {
		return nil, errors.New("database path is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if embedder.Dimension() <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", embedder.Dimension())
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every pooled connection would otherwise see its own in-memory database
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		logger:   logging.OrNoOp(opts.Logger),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.embedder.Dimension())

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Add embeds and stores chunks in one transaction. Existing ids are replaced.
func (s *Store) Add(ctx context.Context, chunks []retrieval.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for i, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO chunks (id, document_id, chunk_index, content, metadata) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.DocumentID, c.Index, c.Content, string(metadata),
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		embeddingJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}

		// vec0 tables do not support INSERT OR REPLACE
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE chunk_id = ?", c.ID); err != nil {
			return fmt.Errorf("failed to replace embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO embeddings (chunk_id, embedding) VALUES (?, ?)",
			c.ID, string(embeddingJSON),
		); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("sqlite.add", "chunks", len(chunks))

	return nil
}

// Search returns the k chunks closest to query. Score is the cosine
// similarity, 1 - distance.
func (s *Store) Search(ctx context.Context, query string, k int) ([]core.SearchResult, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []core.SearchResult{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}

	embeddingJSON, err := json.Marshal(vectors[0])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.content,
			c.metadata,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		ORDER BY distance ASC, c.id ASC
		LIMIT ?
	`, string(embeddingJSON), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]core.SearchResult, 0, k)
	for rows.Next() {
		var (
			id, content string
			metadata    sql.NullString
			distance    float64
		)
		if err := rows.Scan(&id, &content, &metadata, &distance); err != nil {
			return nil, err
		}

		var md map[string]any
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
			}
		}

		results = append(results, core.SearchResult{
			ID:       id,
			Content:  content,
			Score:    1.0 - distance,
			Metadata: md,
		})
	}

	return results, rows.Err()
}

// DeleteDocument removes every chunk of documentID and returns how many were removed.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)", documentID,
	); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), tx.Commit()
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
