// Package app assembles a ragmesh deployment from a config.Config: models,
// knowledge store, web search, cache, callbacks, metrics and the runner.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ragmesh"
	rediscache "github.com/hupe1980/ragmesh/cache/redis"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/memory"
	"github.com/hupe1980/ragmesh/memory/sqlite"
	"github.com/hupe1980/ragmesh/metrics"
	"github.com/hupe1980/ragmesh/model"
	anthropicmodel "github.com/hupe1980/ragmesh/model/anthropic"
	openaimodel "github.com/hupe1980/ragmesh/model/openai"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/runner"
	"github.com/hupe1980/ragmesh/server"
	"github.com/hupe1980/ragmesh/websearch"
)

// Options override parts of the assembly.
type Options struct {
	// LogOutput receives log entries (default os.Stderr).
	LogOutput io.Writer
	// WebSearch replaces the configured provider. The cache still applies.
	WebSearch websearch.Provider
	// Registry receives the metrics (default a fresh registry).
	Registry *prometheus.Registry
}

// App is an assembled deployment.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	Mesh     *ragmesh.RagMesh
	Runner   *runner.Runner
	Registry *prometheus.Registry

	closers []io.Closer
}

// New validates cfg and assembles an App. Close releases its resources.
func New(cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    opts.LogOutput,
		Component: "ragmesh",
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Registry: opts.Registry}
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
	}

	if err := a.build(opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) build(opts Options) error {
	cfg := a.Config

	knowledge, err := a.knowledge()
	if err != nil {
		return err
	}

	web, err := a.webSearch(opts.WebSearch)
	if err != nil {
		return err
	}

	cm := engine.NewCallbackManager()
	engine.RegisterLogging(cm, a.Logger)

	collector, err := metrics.New(a.Registry)
	if err != nil {
		return err
	}
	collector.Register(cm)

	models := make(map[engine.NodeID]model.Model, 3)
	for _, id := range []engine.NodeID{ragmesh.NodeCoordinator, ragmesh.NodeRag, ragmesh.NodeTavily} {
		models[id] = a.model(string(id))
	}

	mesh, err := ragmesh.New(func(o *ragmesh.Options) {
		o.CoordinatorModel = models[ragmesh.NodeCoordinator]
		o.RagModel = models[ragmesh.NodeRag]
		o.TavilyModel = models[ragmesh.NodeTavily]
		o.Knowledge = knowledge
		o.WebSearch = web
		o.RecursionLimit = cfg.Engine.RecursionLimit
		o.Sentinel = cfg.Engine.Sentinel
		o.RequireSpecialistAnswers = cfg.Engine.RequireSpecialistAnswers
		o.Callbacks = cm
		o.Logger = a.Logger
	})
	if err != nil {
		return err
	}
	a.Mesh = mesh

	a.Runner = runner.New(mesh, func(o *runner.Options) {
		o.MaxConcurrentRuns = cfg.Server.MaxConcurrentRuns
		o.RunTimeout = cfg.Engine.RunTimeout
		o.Logger = a.Logger
	})

	return nil
}

func (a *App) model(agentName string) model.Model {
	cfg := a.Config
	id := cfg.ModelFor(agentName)

	switch cfg.Model.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(id)
			o.Temperature = cfg.Model.Temperature
			if cfg.Model.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.Model.MaxTokens)
			}
			o.APIKey = cfg.Anthropic.APIKey
			o.BaseURL = cfg.Anthropic.BaseURL
		})
	case "mock":
		return model.NewOfflineModel(func(o *model.OfflineOptions) {
			o.Sentinel = cfg.Engine.Sentinel
			o.Sections = []model.Section{
				{Agent: string(ragmesh.NodeRag), Heading: "Documents"},
				{Agent: string(ragmesh.NodeTavily), Heading: "Web"},
			}
		})
	default:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = id
			o.Temperature = cfg.Model.Temperature
			if cfg.Model.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.Model.MaxTokens)
			}
			o.APIKey = cfg.OpenAI.APIKey
			o.BaseURL = cfg.OpenAI.BaseURL
		})
	}
}

func (a *App) knowledge() (*retrieval.Service, error) {
	cfg := a.Config.Retrieval

	var store retrieval.Store
	switch cfg.Backend {
	case "sqlite":
		embedder := openaimodel.NewEmbedder(func(o *openaimodel.EmbedderOptions) {
			o.Model = cfg.EmbeddingModel
			o.Dimensions = cfg.EmbeddingDimensions
			o.APIKey = a.Config.OpenAI.APIKey
			o.BaseURL = a.Config.OpenAI.BaseURL
		})
		s, err := sqlite.New(cfg.Path, embedder, func(o *sqlite.Options) { o.Logger = a.Logger })
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		store = s
	default:
		store = memory.NewInMemoryStore()
	}

	return retrieval.NewService(store, func(o *retrieval.Options) {
		o.TopK = cfg.TopK
		o.ChunkSize = cfg.ChunkSize
		o.ChunkOverlap = cfg.ChunkOverlap
		o.Logger = a.Logger
	})
}

func (a *App) webSearch(override websearch.Provider) (websearch.Provider, error) {
	cfg := a.Config

	provider := override
	if provider == nil {
		if cfg.Tavily.APIKey == "" {
			provider = offlineWebSearch()
		} else {
			t, err := websearch.NewTavily(func(o *websearch.TavilyOptions) {
				o.APIKey = cfg.Tavily.APIKey
				o.BaseURL = cfg.Tavily.BaseURL
				o.MaxResults = cfg.Tavily.MaxResults
				o.SearchDepth = cfg.Tavily.SearchDepth
			})
			if err != nil {
				return nil, err
			}
			provider = t
		}
	}

	if !cfg.Cache.Enabled {
		return provider, nil
	}

	cache := rediscache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
		rediscache.WithTTL(cfg.Cache.TTL),
		rediscache.WithPrefix(cfg.Cache.Prefix),
	)
	a.closers = append(a.closers, cache)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		a.Logger.Warn("app.cache.unreachable", "addr", cfg.Cache.Addr, "error", err.Error())
	}

	return websearch.NewCachedProvider(provider, cache, func(o *websearch.CachedOptions) {
		o.TTL = cfg.Cache.TTL
		o.Logger = a.Logger
	}), nil
}

// offlineWebSearch answers every query with an empty result so the mock
// provider works without a Tavily key.
func offlineWebSearch() websearch.Provider {
	return websearch.ProviderFunc(func(_ context.Context, q string) (*websearch.Result, error) {
		return &websearch.Result{Query: q, Results: []websearch.Hit{}}, nil
	})
}

// Handler returns the HTTP handler of the App.
func (a *App) Handler() http.Handler {
	return server.NewHandler(a.Runner, func(o *server.Options) {
		o.Ingester = a.Mesh
		o.Metrics = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
		o.Logger = a.Logger
	})
}

// Close releases stores and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
