package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavily_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "capital of France", body["query"])
		assert.EqualValues(t, 3, body["max_results"])
		assert.Equal(t, true, body["include_answer"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "capital of France",
			"answer": "Paris",
			"results": [{"title": "France", "url": "https://example.org/fr", "content": "Paris is the capital.", "score": 0.9}],
			"response_time": 0.4
		}`))
	}))
	defer srv.Close()

	tv, err := NewTavily(func(o *TavilyOptions) {
		o.APIKey = "tvly-test"
		o.BaseURL = srv.URL + "/"
		o.MaxResults = 3
	})
	require.NoError(t, err)

	res, err := tv.Search(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.Equal(t, "Paris", res.Answer)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "https://example.org/fr", res.Results[0].URL)
	assert.InDelta(t, 0.9, res.Results[0].Score, 1e-9)
}

func TestTavily_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv, err := NewTavily(func(o *TavilyOptions) {
		o.APIKey = "bad"
		o.BaseURL = srv.URL
	})
	require.NoError(t, err)

	_, err = tv.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid key")
}

func TestTavily_RequiresKey(t *testing.T) {
	_, err := NewTavily()
	assert.Error(t, err)
}

type mapCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestCachedProvider_HitsCacheForNormalizedQuery(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(_ context.Context, q string) (*Result, error) {
		calls++
		return &Result{Query: q, Answer: "Paris"}, nil
	})

	cache := &mapCache{data: map[string]string{}}
	p := NewCachedProvider(next, cache)

	first, err := p.Search(context.Background(), "Capital of  France")
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "capital of france ")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Len(t, cache.data, 1)
}

func TestCachedProvider_CacheFailureFallsThrough(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(_ context.Context, q string) (*Result, error) {
		calls++
		return &Result{Query: q}, nil
	})

	p := NewCachedProvider(next, &mapCache{data: map[string]string{}, getErr: errors.New("down")})
	_, err := p.Search(context.Background(), "q")
	require.NoError(t, err)
	_, err = p.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedProvider_ProviderErrorNotCached(t *testing.T) {
	boom := errors.New("boom")
	cache := &mapCache{data: map[string]string{}}
	p := NewCachedProvider(ProviderFunc(func(context.Context, string) (*Result, error) { return nil, boom }), cache)

	_, err := p.Search(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, cache.data)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "capital of france", NormalizeQuery("  Capital\tof   FRANCE "))
}
