package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/ragmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	t.Run("paragraphs", func(t *testing.T) {
		got := ChunkText("first paragraph\n\n\n  second paragraph  \n \nthird", 100, 10)
		assert.Equal(t, []string{"first paragraph", "second paragraph", "third"}, got)
	})

	t.Run("long paragraph windows overlap", func(t *testing.T) {
		text := strings.Repeat("a", 25)
		got := ChunkText(text, 10, 2)
		require.Len(t, got, 3)
		assert.Len(t, got[0], 10)
		assert.Len(t, got[1], 10)
		assert.Len(t, got[2], 9)
	})

	t.Run("multibyte", func(t *testing.T) {
		got := ChunkText(strings.Repeat("é", 12), 10, 0)
		require.Len(t, got, 2)
		assert.Equal(t, strings.Repeat("é", 10), got[0])
		assert.Equal(t, strings.Repeat("é", 2), got[1])
	})

	t.Run("blank", func(t *testing.T) {
		assert.Empty(t, ChunkText(" \n\n ", 10, 2))
	})
}

type recordingStore struct {
	chunks  []Chunk
	results []core.SearchResult
	k       int
	err     error
}

func (s *recordingStore) Add(_ context.Context, chunks []Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *recordingStore) Search(_ context.Context, _ string, k int) ([]core.SearchResult, error) {
	s.k = k
	return s.results, s.err
}

func TestService_Ingest(t *testing.T) {
	store := &recordingStore{}
	svc, err := NewService(store, func(o *Options) {
		o.ChunkSize = 20
		o.ChunkOverlap = 5
	})
	require.NoError(t, err)

	n, err := svc.Ingest(context.Background(), Document{
		Content:  "short one\n\n" + strings.Repeat("x", 30),
		Metadata: map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, store.chunks, 3)

	docID := store.chunks[0].DocumentID
	assert.NotEmpty(t, docID)
	for i, c := range store.chunks {
		assert.Equal(t, docID, c.DocumentID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "test", c.Metadata["source"])
		assert.Equal(t, i, c.Metadata["chunk_index"])
	}
	assert.Equal(t, docID+"#1", store.chunks[1].ID)
}

func TestService_IngestRejectsEmpty(t *testing.T) {
	svc, err := NewService(&recordingStore{})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), Document{Content: "  "})
	var inputErr *core.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestService_IngestStoreError(t *testing.T) {
	boom := errors.New("disk full")
	svc, err := NewService(&recordingStore{err: boom})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), Document{Content: "text"})
	assert.ErrorIs(t, err, boom)
}

func TestService_Search(t *testing.T) {
	store := &recordingStore{}
	svc, err := NewService(store)
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, 1, store.k)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)

	_, err = NewService(&recordingStore{}, func(o *Options) { o.TopK = 0 })
	assert.Error(t, err)

	_, err = NewService(&recordingStore{}, func(o *Options) { o.ChunkOverlap = o.ChunkSize })
	assert.Error(t, err)
}
