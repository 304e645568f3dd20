package memory

import (
	"context"
	"testing"

	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Search(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []retrieval.Chunk{
		{ID: "d1#0", DocumentID: "d1", Content: "Berlin is the capital of Germany."},
		{ID: "d2#0", DocumentID: "d2", Content: "Paris is the capital of France.", Metadata: map[string]any{"source": "atlas"}},
		{ID: "d3#0", DocumentID: "d3", Content: "Bananas are yellow."},
	}))

	res, err := store.Search(ctx, "What is the capital of France?", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "d2#0", res[0].ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "atlas", res[0].Metadata["source"])
	assert.Equal(t, "d1#0", res[1].ID)
	assert.InDelta(t, 0.5, res[1].Score, 1e-9)
}

func TestInMemoryStore_NoMatchIsEmpty(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	res, err := store.Search(ctx, "capital", 1)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	res, err = store.Search(ctx, "the of", 1)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestInMemoryStore_TiesKeepInsertionOrder(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Add(ctx, []retrieval.Chunk{{ID: id, DocumentID: id, Content: "same words"}}))
	}

	res, err := store.Search(ctx, "words", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{res[0].ID, res[1].ID, res[2].ID})
}

func TestInMemoryStore_DeleteDocument(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []retrieval.Chunk{
		{ID: "d1#0", DocumentID: "d1", Content: "one"},
		{ID: "d1#1", DocumentID: "d1", Content: "two"},
		{ID: "d2#0", DocumentID: "d2", Content: "three"},
	}))

	n, err := store.DeleteDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_WithService(t *testing.T) {
	store := NewInMemoryStore()
	svc, err := retrieval.NewService(store)
	require.NoError(t, err)

	ctx := context.Background()
	n, err := svc.Ingest(ctx, retrieval.Document{ID: "geo", Content: "Paris is the capital of France.\n\nRome is the capital of Italy."})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := svc.Search(ctx, "capital of Italy")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Rome is the capital of Italy.", res[0].Content)
	assert.Equal(t, "geo", res[0].Metadata["document_id"])
}
