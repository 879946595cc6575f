package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uspq/neko-ai/internal/types"
)

// Config is the top-level configuration for the memory engine.
// It is loaded once at process start and read-only during operation.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" json:"database" mapstructure:"database"`
	Vector     VectorConfig     `yaml:"vector" json:"vector" mapstructure:"vector"`
	Graph      GraphConfig      `yaml:"graph" json:"graph" mapstructure:"graph"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval" mapstructure:"retrieval"`
	Forgetting ForgettingConfig `yaml:"forgetting" json:"forgetting" mapstructure:"forgetting"`
	Embedder   EmbedderConfig   `yaml:"embedder" json:"embedder" mapstructure:"embedder"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank" mapstructure:"rerank"`
}

// DatabaseConfig configures the SQLite database backing the history log and
// conversation records.
type DatabaseConfig struct {
	Path            string        `yaml:"path" json:"path" mapstructure:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	BusyTimeout     time.Duration `yaml:"busy_timeout" json:"busy_timeout" mapstructure:"busy_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Validate performs validation on the DatabaseConfig.
func (c *DatabaseConfig) Validate() error {
	if c.Path == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "database path cannot be empty")
	}
	if c.MaxOpenConns <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("database max_open_conns must be positive, got %d", c.MaxOpenConns))
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *DatabaseConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "neko.db"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

// VectorConfig configures the vector index backend.
type VectorConfig struct {
	Backend     string `yaml:"backend" json:"backend" mapstructure:"backend"`
	StoragePath string `yaml:"storage_path" json:"storage_path" mapstructure:"storage_path"`
	Dimensions  int    `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`
}

// Validate performs validation on the VectorConfig.
func (c *VectorConfig) Validate() error {
	validBackends := map[string]bool{
		"embedded": true, // chromem-go, in-process
		"sqlite":   true, // persistent, brute-force cosine over indexed rows
	}
	if c.Backend != "" && !validBackends[c.Backend] {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid vector backend '%s', must be one of: embedded, sqlite", c.Backend))
	}
	if c.Backend == "sqlite" && c.StoragePath == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"storage_path is required for sqlite vector backend")
	}
	if c.Dimensions <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("vector dimensions must be positive, got %d", c.Dimensions))
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *VectorConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "embedded"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1024
	}
}

// GraphConfig configures the relationship graph backend.
type GraphConfig struct {
	Backend  string `yaml:"backend" json:"backend" mapstructure:"backend"`
	URI      string `yaml:"uri" json:"uri" mapstructure:"uri"`
	Username string `yaml:"username" json:"username" mapstructure:"username"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
	Database string `yaml:"database" json:"database" mapstructure:"database"`
}

// Validate performs validation on the GraphConfig.
func (c *GraphConfig) Validate() error {
	validBackends := map[string]bool{
		"embedded": true, // in-process adjacency store
		"neo4j":    true,
	}
	if c.Backend != "" && !validBackends[c.Backend] {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid graph backend '%s', must be one of: embedded, neo4j", c.Backend))
	}
	if c.Backend == "neo4j" {
		if c.URI == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "uri is required for neo4j graph backend")
		}
		if c.Username == "" || c.Password == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED,
				"username and password are required for neo4j graph backend")
		}
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *GraphConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "embedded"
	}
	if c.Backend == "neo4j" && c.URI == "" {
		c.URI = "bolt://localhost:7687"
	}
}

// RetrievalConfig controls the fusion engine and the write pipeline's
// relationship building.
type RetrievalConfig struct {
	// MinSimilarity is the same-conversation similarity floor for vector
	// search and edge creation.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity" mapstructure:"min_similarity"`

	// CrossThreshold is the similarity floor for cross-conversation edges.
	// Must be strictly greater than MinSimilarity.
	CrossThreshold float64 `yaml:"cross_threshold" json:"cross_threshold" mapstructure:"cross_threshold"`

	// GraphDepth bounds graph traversal during retrieval.
	GraphDepth int `yaml:"graph_depth" json:"graph_depth" mapstructure:"graph_depth"`

	// WindowSize is the history sliding-window size.
	WindowSize int `yaml:"window_size" json:"window_size" mapstructure:"window_size"`

	// TopK is how many vector neighbors to fetch per query.
	TopK int `yaml:"top_k" json:"top_k" mapstructure:"top_k"`

	// CrossEdgeCap caps how many cross-conversation edges a single turn may create.
	CrossEdgeCap int `yaml:"cross_edge_cap" json:"cross_edge_cap" mapstructure:"cross_edge_cap"`

	// MaxMemories bounds how many memories a fused context may contain.
	MaxMemories int `yaml:"max_memories" json:"max_memories" mapstructure:"max_memories"`

	// MaxTokens bounds the cumulative estimated token size of a fused context.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds the concurrent fan-out to the three stores.
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// Validate performs validation on the RetrievalConfig.
func (c *RetrievalConfig) Validate() error {
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("min_similarity must be in [0,1], got %f", c.MinSimilarity))
	}
	if c.CrossThreshold <= c.MinSimilarity || c.CrossThreshold > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("cross_threshold must be in (min_similarity,1], got %f", c.CrossThreshold))
	}
	if c.GraphDepth <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("graph_depth must be positive, got %d", c.GraphDepth))
	}
	if c.WindowSize <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("window_size must be positive, got %d", c.WindowSize))
	}
	if c.MaxMemories <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("max_memories must be positive, got %d", c.MaxMemories))
	}
	if c.MaxTokens <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
// The similarity thresholds are tunable parameters, not derived constants.
func (c *RetrievalConfig) ApplyDefaults() {
	if c.MinSimilarity == 0 {
		c.MinSimilarity = 0.7
	}
	if c.CrossThreshold == 0 {
		c.CrossThreshold = 0.8
	}
	if c.GraphDepth == 0 {
		c.GraphDepth = 2
	}
	if c.WindowSize == 0 {
		c.WindowSize = 15
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.CrossEdgeCap == 0 {
		c.CrossEdgeCap = 3
	}
	if c.MaxMemories == 0 {
		c.MaxMemories = 5
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// ForgettingConfig controls the time-based decay pass.
type ForgettingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// TTL is the minimum age before a memory becomes a decay candidate.
	TTL time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`

	// MinEdgeWeight protects memories with at least one edge at or above
	// this weight from decay.
	MinEdgeWeight float64 `yaml:"min_edge_weight" json:"min_edge_weight" mapstructure:"min_edge_weight"`

	// UsageFloor protects memories used at least this many times from decay.
	UsageFloor int `yaml:"usage_floor" json:"usage_floor" mapstructure:"usage_floor"`

	// KeepHistory retains the history log row as a cold record when a memory
	// is decayed out of the vector and graph stores.
	KeepHistory bool `yaml:"keep_history" json:"keep_history" mapstructure:"keep_history"`
}

// Validate performs validation on the ForgettingConfig.
func (c *ForgettingConfig) Validate() error {
	if c.TTL < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "forgetting ttl cannot be negative")
	}
	if c.MinEdgeWeight < 0 || c.MinEdgeWeight > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("min_edge_weight must be in [0,1], got %f", c.MinEdgeWeight))
	}
	if c.UsageFloor < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "usage_floor cannot be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *ForgettingConfig) ApplyDefaults() {
	if c.TTL == 0 {
		c.TTL = 30 * 24 * time.Hour
	}
	if c.MinEdgeWeight == 0 {
		c.MinEdgeWeight = 0.7
	}
	if c.UsageFloor == 0 {
		c.UsageFloor = 2
	}
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Provider   string `yaml:"provider" json:"provider" mapstructure:"provider"`
	Model      string `yaml:"model" json:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Dimensions int    `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`
}

// Validate performs validation on the EmbedderConfig.
func (c *EmbedderConfig) Validate() error {
	validProviders := map[string]bool{
		"openai": true,
		"mock":   true,
	}
	if c.Provider != "" && !validProviders[c.Provider] {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid embedder provider '%s', must be one of: openai, mock", c.Provider))
	}
	if c.Provider != "" && c.Provider != "mock" && c.Model == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("embedder model is required for provider '%s'", c.Provider))
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *EmbedderConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" && c.Provider == "openai" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1024
	}
}

// RerankConfig configures the optional re-ranking collaborator.
// The engine degrades gracefully when re-ranking is disabled or erroring.
type RerankConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" json:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	TopN     int    `yaml:"top_n" json:"top_n" mapstructure:"top_n"`
}

// Validate performs validation on the RerankConfig.
func (c *RerankConfig) Validate() error {
	if c.TopN < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "rerank top_n cannot be negative")
	}
	if c.Enabled && c.Provider == "http" && c.BaseURL == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"rerank base_url is required for the http provider")
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *RerankConfig) ApplyDefaults() {
	if c.Provider == "" {
		if c.Enabled {
			c.Provider = "http"
		} else {
			c.Provider = "noop"
		}
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-reranker-v2-m3"
	}
	if c.TopN == 0 {
		c.TopN = 5
	}
}

// Validate performs validation on the whole Config.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "database config validation failed", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "vector config validation failed", err)
	}
	if err := c.Graph.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "graph config validation failed", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "retrieval config validation failed", err)
	}
	if err := c.Forgetting.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "forgetting config validation failed", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "embedder config validation failed", err)
	}
	if err := c.Rerank.Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "rerank config validation failed", err)
	}
	return nil
}

// ApplyDefaults applies default values to all sections.
func (c *Config) ApplyDefaults() {
	c.Database.ApplyDefaults()
	c.Vector.ApplyDefaults()
	c.Graph.ApplyDefaults()
	c.Retrieval.ApplyDefaults()
	c.Forgetting.ApplyDefaults()
	c.Embedder.ApplyDefaults()
	c.Rerank.ApplyDefaults()
}

// NewDefaultConfig creates a Config with default values.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
