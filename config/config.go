// Package config loads ragmesh settings from an optional YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, RAGMESH_*
// variables (nested keys joined with "_", e.g. RAGMESH_ENGINE_RECURSION_LIMIT)
// and the provider variables OPENAI_API_KEY, ANTHROPIC_API_KEY and
// TAVILY_API_KEY.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/logging"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Tavily    TavilyConfig    `mapstructure:"tavily" yaml:"tavily"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json or text
}

// ModelConfig selects the model provider and per-agent model ids. Empty
// per-agent ids fall back to Default.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"` // openai, anthropic or mock
	Default     string  `mapstructure:"default" yaml:"default"`
	Coordinator string  `mapstructure:"coordinator" yaml:"coordinator"`
	Rag         string  `mapstructure:"rag" yaml:"rag"`
	Tavily      string  `mapstructure:"tavily" yaml:"tavily"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// OpenAIConfig holds OpenAI credentials. The embedder always uses OpenAI.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// AnthropicConfig holds Anthropic credentials.
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// TavilyConfig configures the web search provider.
type TavilyConfig struct {
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	MaxResults  int    `mapstructure:"max_results" yaml:"max_results"`
	SearchDepth string `mapstructure:"search_depth" yaml:"search_depth"`
}

// RetrievalConfig configures the knowledge base.
type RetrievalConfig struct {
	Backend             string `mapstructure:"backend" yaml:"backend"` // memory or sqlite
	Path                string `mapstructure:"path" yaml:"path"`
	ChunkSize           int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap        int    `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	TopK                int    `mapstructure:"top_k" yaml:"top_k"`
	EmbeddingModel      string `mapstructure:"embedding_model" yaml:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions" yaml:"embedding_dimensions"`
}

// CacheConfig configures the Redis web search cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// EngineConfig configures runs.
type EngineConfig struct {
	RecursionLimit           int           `mapstructure:"recursion_limit" yaml:"recursion_limit"`
	RunTimeout               time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	Sentinel                 string        `mapstructure:"sentinel" yaml:"sentinel"`
	RequireSpecialistAnswers bool          `mapstructure:"require_specialist_answers" yaml:"require_specialist_answers"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Model: ModelConfig{
			Provider:    "openai",
			Default:     "gpt-4o-mini",
			Temperature: 0,
		},
		Tavily: TavilyConfig{
			BaseURL:     "https://api.tavily.com",
			MaxResults:  5,
			SearchDepth: "basic",
		},
		Retrieval: RetrievalConfig{
			Backend:             "memory",
			Path:                "ragmesh.db",
			ChunkSize:           1000,
			ChunkOverlap:        200,
			TopK:                1,
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "ragmesh:",
			TTL:    time.Hour,
		},
		Engine: EngineConfig{
			RecursionLimit: 25,
			RunTimeout:     2 * time.Minute,
			Sentinel:       "FINAL ANSWER",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			MaxConcurrentRuns: 10,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

// envAliases maps config keys to additional environment variables.
var envAliases = map[string][]string{
	"openai.api_key":    {"OPENAI_API_KEY"},
	"anthropic.api_key": {"ANTHROPIC_API_KEY"},
	"tavily.api_key":    {"TAVILY_API_KEY"},
	"cache.addr":        {"RAGMESH_REDIS_ADDR"},
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("RAGMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{"RAGMESH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// ModelFor returns the model id of an agent.
func (c *Config) ModelFor(agent string) string {
	var id string
	switch strings.ToLower(agent) {
	case "coordinator":
		id = c.Model.Coordinator
	case "rag":
		id = c.Model.Rag
	case "tavily":
		id = c.Model.Tavily
	}
	if id == "" {
		return c.Model.Default
	}
	return id
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	switch c.Model.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required for the openai provider"))
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key is required for the anthropic provider"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("model.provider must be openai, anthropic or mock, got %q", c.Model.Provider))
	}

	if c.Model.Provider != "mock" {
		if c.Model.Default == "" {
			errs = append(errs, errors.New("model.default is required"))
		}
		if c.Tavily.APIKey == "" {
			errs = append(errs, errors.New("tavily.api_key is required"))
		}
	}

	switch c.Retrieval.Backend {
	case "memory":
	case "sqlite":
		if c.Retrieval.Path == "" {
			errs = append(errs, errors.New("retrieval.path is required for the sqlite backend"))
		}
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required for sqlite embeddings"))
		}
		if c.Retrieval.EmbeddingDimensions <= 0 {
			errs = append(errs, errors.New("retrieval.embedding_dimensions must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("retrieval.backend must be memory or sqlite, got %q", c.Retrieval.Backend))
	}

	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, errors.New("retrieval.chunk_size must be positive"))
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, errors.New("retrieval.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be positive"))
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required when the cache is enabled"))
	}

	if c.Engine.RecursionLimit <= 0 {
		errs = append(errs, errors.New("engine.recursion_limit must be positive"))
	}
	if c.Engine.RunTimeout < 0 {
		errs = append(errs, errors.New("engine.run_timeout must not be negative"))
	}
	if strings.TrimSpace(c.Engine.Sentinel) == "" {
		errs = append(errs, errors.New("engine.sentinel must not be empty"))
	}

	if c.Server.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("server.max_concurrent_runs must not be negative"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	out.Anthropic.APIKey = mask(c.Anthropic.APIKey)
	out.Tavily.APIKey = mask(c.Tavily.APIKey)
	out.Cache.Password = mask(c.Cache.Password)
	return &out
}

// YAML encodes the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
