package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/websearch"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Model.Provider = "mock"
	cfg.Log.Level = "debug"
	return cfg
}

func TestNew_OfflineRun(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(offlineConfig(), func(o *Options) { o.LogOutput = &logs })
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Mesh.Ingest(context.Background(), retrieval.Document{ID: "atlas", Content: "Paris is the capital of France."})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runID, answer, err := a.Runner.Run(context.Background(), "", "What is the capital of France?")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	assert.Equal(t, 8, answer.Steps)
	assert.True(t, strings.HasPrefix(answer.Answer, "FINAL ANSWER"))
	assert.Contains(t, answer.Answer, "Documents:")
	assert.Contains(t, answer.Answer, "Paris is the capital of France.")
	assert.Contains(t, answer.Answer, "Web:")

	assert.Contains(t, logs.String(), runID)
}

func TestNew_CachedWebSearch(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := offlineConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = mr.Addr()

	var calls atomic.Int32
	web := websearch.ProviderFunc(func(_ context.Context, q string) (*websearch.Result, error) {
		calls.Add(1)
		return &websearch.Result{Query: q, Answer: "Paris"}, nil
	})

	a, err := New(cfg, func(o *Options) {
		o.LogOutput = &bytes.Buffer{}
		o.WebSearch = web
	})
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 2; i++ {
		_, answer, err := a.Runner.Run(context.Background(), "", "What is the capital of France?")
		require.NoError(t, err)
		assert.Contains(t, answer.Answer, "Paris")
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, mr.Keys())
}

func TestHandler_ServesRunsAndMetrics(t *testing.T) {
	a, err := New(offlineConfig(), func(o *Options) { o.LogOutput = &bytes.Buffer{} })
	require.NoError(t, err)
	defer a.Close()

	h := a.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"question":"What is the capital of France?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FINAL ANSWER")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ragmesh_runs_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `ragmesh_node_visits_total{node="Coordinator"} 2`)
}

func TestNew_RecursionLimitFromConfig(t *testing.T) {
	cfg := offlineConfig()
	cfg.Engine.RecursionLimit = 3

	a, err := New(cfg, func(o *Options) { o.LogOutput = &bytes.Buffer{} })
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 3, a.Mesh.RecursionLimit())

	_, _, err = a.Runner.Run(context.Background(), "", "What is the capital of France?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursion limit of 3 steps exceeded")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = ""

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key")
}
