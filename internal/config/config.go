// Package config provides configuration loading for rulemap.
package config

import (
	"fmt"
	"runtime"
)

// Clustering methods accepted by the grouping engine.
const (
	MethodKMeans       = "kmeans"
	MethodDBSCAN       = "dbscan"
	MethodHierarchical = "hierarchical"
)

// Noise policies for density-based clustering. Drop preserves the
// deliberate exclusion of noise rules from grouping; isolate emits each
// noise rule as its own singleton group instead.
const (
	NoiseDrop    = "drop"
	NoiseIsolate = "isolate"
)

// Index providers.
const (
	IndexChromem = "chromem"
	IndexQdrant  = "qdrant"
)

// Enrichment adapters.
const (
	EnrichStub = "stub"
	EnrichLLM  = "llm"
)

// Config is the root configuration for a rulemap run.
type Config struct {
	Repository RepositoryConfig `koanf:"repository"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Enrichment EnrichmentConfig `koanf:"enrichment"`
	Clustering ClusteringConfig `koanf:"clustering"`
	Index      IndexConfig      `koanf:"index"`
	Secrets    SecretsConfig    `koanf:"secrets"`
	DMN        DMNConfig        `koanf:"dmn"`
	Output     OutputConfig     `koanf:"output"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RepositoryConfig controls which files ingestion considers.
type RepositoryConfig struct {
	// MaxFileSize is the per-file size ceiling in bytes. Larger files are
	// skipped before parsing begins.
	MaxFileSize int64 `koanf:"max_file_size"`

	// SQLExtensions route files to the SQL extractor.
	SQLExtensions []string `koanf:"sql_extensions"`

	// CodeExtensions route files to the application-code extractor,
	// keyed by surface language.
	CodeExtensions map[string][]string `koanf:"code_extensions"`

	// Ignore lists directory or file basenames and glob patterns that are
	// skipped during the walk.
	Ignore []string `koanf:"ignore"`
}

// PipelineConfig controls orchestration.
type PipelineConfig struct {
	// Workers bounds extraction fan-out. Zero means NumCPU.
	Workers int `koanf:"workers"`

	// MinConfidence drops rules below this threshold after normalization.
	MinConfidence float64 `koanf:"min_confidence"`
}

// EnrichmentConfig selects the enrichment adapter.
type EnrichmentConfig struct {
	// Provider is "stub" (deterministic, offline) or "llm".
	Provider string `koanf:"provider"`

	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Describe   DescribeConfig   `koanf:"describe"`

	// DisableConcepts turns off domain-concept tagging, which otherwise
	// always runs and feeds group category inference.
	DisableConcepts bool `koanf:"disable_concepts"`
}

// EmbeddingsConfig selects the embedding provider used by the llm
// enrichment adapter and by index queries.
type EmbeddingsConfig struct {
	// Provider is "stub", "fastembed", or "tei".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`
}

// DescribeConfig controls LLM-generated rule descriptions.
type DescribeConfig struct {
	Enabled bool   `koanf:"enabled"`
	Model   string `koanf:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `koanf:"api_key_env"`
}

// ClusteringConfig controls the grouping engine.
type ClusteringConfig struct {
	Method     string  `koanf:"method"`
	Clusters   int     `koanf:"clusters"`
	Eps        float64 `koanf:"eps"`
	MinSamples int     `koanf:"min_samples"`

	// NoisePolicy is "drop" or "isolate" (density-based noise handling).
	NoisePolicy string `koanf:"noise_policy"`
}

// IndexConfig controls the persistent rule index used for semantic search.
type IndexConfig struct {
	Enabled    bool         `koanf:"enabled"`
	Provider   string       `koanf:"provider"` // "chromem" or "qdrant"
	Path       string       `koanf:"path"`
	Collection string       `koanf:"collection"`
	Qdrant     QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig configures the optional qdrant index provider.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey string `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// SecretsConfig controls report-only secret flagging of extracted snippets.
type SecretsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// DMNConfig controls diagram generation.
type DMNConfig struct {
	// MaxTableRows caps decision-table rows per group.
	MaxTableRows int `koanf:"max_table_rows"`

	// Pretty enables indented XML output.
	Pretty bool `koanf:"pretty"`
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	Dir string `koanf:"dir"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults fills zero values with production-ready defaults.
func applyDefaults(cfg *Config) {
	if cfg.Repository.MaxFileSize == 0 {
		cfg.Repository.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.Repository.SQLExtensions) == 0 {
		cfg.Repository.SQLExtensions = []string{".sql", ".psql", ".pkb", ".pks", ".ddl"}
	}
	if len(cfg.Repository.CodeExtensions) == 0 {
		cfg.Repository.CodeExtensions = map[string][]string{
			"python":     {".py"},
			"java":       {".java"},
			"javascript": {".js", ".ts"},
		}
	}
	if len(cfg.Repository.Ignore) == 0 {
		cfg.Repository.Ignore = []string{
			".git", "node_modules", "vendor", "venv", ".venv",
			"dist", "build", "__pycache__",
		}
	}

	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.NumCPU()
	}
	if cfg.Pipeline.MinConfidence == 0 {
		cfg.Pipeline.MinConfidence = 0.5
	}

	if cfg.Enrichment.Provider == "" {
		cfg.Enrichment.Provider = EnrichStub
	}
	if cfg.Enrichment.Embeddings.Provider == "" {
		cfg.Enrichment.Embeddings.Provider = "stub"
	}
	if cfg.Enrichment.Embeddings.Model == "" {
		cfg.Enrichment.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Enrichment.Describe.Model == "" {
		cfg.Enrichment.Describe.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Enrichment.Describe.APIKeyEnv == "" {
		cfg.Enrichment.Describe.APIKeyEnv = "ANTHROPIC_API_KEY"
	}

	if cfg.Clustering.Method == "" {
		cfg.Clustering.Method = MethodKMeans
	}
	if cfg.Clustering.Clusters == 0 {
		cfg.Clustering.Clusters = 5
	}
	if cfg.Clustering.Eps == 0 {
		cfg.Clustering.Eps = 0.3
	}
	if cfg.Clustering.MinSamples == 0 {
		cfg.Clustering.MinSamples = 2
	}
	if cfg.Clustering.NoisePolicy == "" {
		cfg.Clustering.NoisePolicy = NoiseDrop
	}

	if cfg.Index.Provider == "" {
		cfg.Index.Provider = IndexChromem
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "~/.local/share/rulemap/index"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "rules"
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = "localhost"
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = 6334
	}

	if cfg.DMN.MaxTableRows == 0 {
		cfg.DMN.MaxTableRows = 10
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "rulemap-out"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the configuration for errors. Malformed configuration is
// fatal and reported before any processing begins.
func (c *Config) Validate() error {
	if c.Repository.MaxFileSize <= 0 {
		return fmt.Errorf("repository.max_file_size must be > 0, got %d", c.Repository.MaxFileSize)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return fmt.Errorf("pipeline.min_confidence must be in [0,1], got %f", c.Pipeline.MinConfidence)
	}

	switch c.Enrichment.Provider {
	case EnrichStub, EnrichLLM:
	default:
		return fmt.Errorf("enrichment.provider must be 'stub' or 'llm', got %q", c.Enrichment.Provider)
	}
	switch c.Enrichment.Embeddings.Provider {
	case "stub", "fastembed", "tei":
	default:
		return fmt.Errorf("enrichment.embeddings.provider must be 'stub', 'fastembed' or 'tei', got %q",
			c.Enrichment.Embeddings.Provider)
	}

	switch c.Clustering.Method {
	case MethodKMeans, MethodDBSCAN, MethodHierarchical:
	default:
		return fmt.Errorf("clustering.method must be one of kmeans, dbscan, hierarchical, got %q",
			c.Clustering.Method)
	}
	if c.Clustering.Clusters < 1 {
		return fmt.Errorf("clustering.clusters must be >= 1, got %d", c.Clustering.Clusters)
	}
	if c.Clustering.Eps <= 0 {
		return fmt.Errorf("clustering.eps must be > 0, got %f", c.Clustering.Eps)
	}
	if c.Clustering.MinSamples < 1 {
		return fmt.Errorf("clustering.min_samples must be >= 1, got %d", c.Clustering.MinSamples)
	}
	switch c.Clustering.NoisePolicy {
	case NoiseDrop, NoiseIsolate:
	default:
		return fmt.Errorf("clustering.noise_policy must be 'drop' or 'isolate', got %q", c.Clustering.NoisePolicy)
	}

	switch c.Index.Provider {
	case IndexChromem, IndexQdrant:
	default:
		return fmt.Errorf("index.provider must be 'chromem' or 'qdrant', got %q", c.Index.Provider)
	}
	if c.Index.Enabled && c.Index.Provider == IndexQdrant {
		if c.Index.Qdrant.Port <= 0 || c.Index.Qdrant.Port > 65535 {
			return fmt.Errorf("index.qdrant.port must be 1-65535, got %d", c.Index.Qdrant.Port)
		}
	}

	if c.DMN.MaxTableRows < 1 {
		return fmt.Errorf("dmn.max_table_rows must be >= 1, got %d", c.DMN.MaxTableRows)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
