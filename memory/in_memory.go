package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/retrieval"
)

// storedChunk is the internal representation persisted by InMemoryStore.
type storedChunk struct {
	chunk retrieval.Chunk
	terms map[string]struct{}
	seq   int
}

// InMemoryStore is a naive process-local retrieval.Store.
//
// Concurrency: protected by RWMutex.
// Search: linear scan scoring each chunk by the fraction of distinct query
// terms it contains. Ties keep insertion order, so results are deterministic.
// Chunks without any matching term are never returned.
type InMemoryStore struct {
	mu      sync.RWMutex
	storage map[string]*storedChunk // chunkID -> chunk
	seq     int
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		storage: make(map[string]*storedChunk),
	}
}

// Add stores chunks. A chunk with an existing id replaces the old one.
func (m *InMemoryStore) Add(_ context.Context, chunks []retrieval.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		m.seq++
		m.storage[c.ID] = &storedChunk{chunk: c, terms: termSet(c.Content), seq: m.seq}
	}

	return nil
}

// Search returns at most k chunks ranked by term overlap with query.
func (m *InMemoryStore) Search(ctx context.Context, query string, k int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := termSet(query)
	if len(queryTerms) == 0 || k <= 0 {
		return []core.SearchResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		stored *storedChunk
		score  float64
	}

	hits := make([]hit, 0)
	for _, stored := range m.storage {
		matched := 0
		for term := range queryTerms {
			if _, ok := stored.terms[term]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, hit{stored: stored, score: float64(matched) / float64(len(queryTerms))})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].stored.seq < hits[j].stored.seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, h := range hits {
		md := make(map[string]any, len(h.stored.chunk.Metadata))
		for key, v := range h.stored.chunk.Metadata {
			md[key] = v
		}
		results = append(results, core.SearchResult{
			ID:       h.stored.chunk.ID,
			Content:  h.stored.chunk.Content,
			Score:    h.score,
			Metadata: md,
		})
	}

	return results, nil
}

// DeleteDocument removes every chunk of documentID and returns how many were removed.
func (m *InMemoryStore) DeleteDocument(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, stored := range m.storage {
		if stored.chunk.DocumentID == documentID {
			delete(m.storage, id)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored chunks.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.storage)
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "was": true, "what": true, "which": true,
	"who": true, "with": true,
}
