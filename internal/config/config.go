// Package config loads and validates folder-mcp configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/folder-mcp/config.yaml)
//  3. Per-folder config (.folder-mcp.yaml in the folder root)
//  4. Environment variables (FOLDER_MCP_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractionStrategy selects the chunk semantic extractor.
type ExtractionStrategy string

const (
	// StrategyRich produces multi-word key phrases and domain topics with
	// confidence scores. Requires a capable model.
	StrategyRich ExtractionStrategy = "rich"
	// StrategySimilarityOnly scores candidate n-grams by embedding cosine
	// against the chunk centroid.
	StrategySimilarityOnly ExtractionStrategy = "similarity_only"
)

// Config is the complete folder-mcp configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Model     ModelConfig     `yaml:"model" json:"model"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PipelineConfig bounds pipeline concurrency and timing.
type PipelineConfig struct {
	// ParseConcurrency is the number of files parsed concurrently.
	ParseConcurrency int `yaml:"parse_concurrency" json:"parse_concurrency"`
	// EmbedWorkers is the number of embedding workers, each holding a
	// long-lived session.
	EmbedWorkers int `yaml:"embed_workers" json:"embed_workers"`
	// EmbedThreads is the intra-worker thread count passed to the
	// embedding service.
	EmbedThreads int `yaml:"embed_threads" json:"embed_threads"`
	// EmbedBatchSize is the texts per embedding request. Batch size 1 is
	// measurably superior to larger batches for ONNX-style models on this
	// workload; sizes above 10 are rejected by validation.
	EmbedBatchSize int `yaml:"embed_batch_size" json:"embed_batch_size"`
	// Debounce is the watcher debounce window.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// ModelConfig is the embedding model capability descriptor.
type ModelConfig struct {
	ID                    string             `yaml:"id" json:"id"`
	RequiresPrefix        bool               `yaml:"requires_prefix" json:"requires_prefix"`
	QueryPrefix           string             `yaml:"query_prefix" json:"query_prefix"`
	PassagePrefix         string             `yaml:"passage_prefix" json:"passage_prefix"`
	RequiresNormalization bool               `yaml:"requires_normalization" json:"requires_normalization"`
	ExtractionStrategy    ExtractionStrategy `yaml:"extraction_strategy" json:"extraction_strategy"`
	// Endpoint is the embedding service HTTP endpoint. Empty selects the
	// deterministic static embedder (tests, offline use).
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Dimensions is the embedding dimension (0 = detect from service).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// IndexConfig controls file discovery and hashing.
type IndexConfig struct {
	// IncludeExtensions restricts indexing to these extensions (with dot).
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`
	// IgnorePatterns are glob-ish patterns excluded from the walk.
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`
	// MaxHashBytes is the size above which files are fingerprinted by the
	// partial-hash fallback H(size, mtime, head, tail) instead of a full
	// content stream.
	MaxHashBytes int64 `yaml:"max_hash_bytes" json:"max_hash_bytes"`
	// PartialHashBytes is the head/tail window of the fallback hash.
	PartialHashBytes int64 `yaml:"partial_hash_bytes" json:"partial_hash_bytes"`
}

// RetrievalConfig holds the tuned scoring knobs of the retrieval engine.
type RetrievalConfig struct {
	// FilenameExactThreshold is the similarity above which a filename-chunk
	// hit is treated as an exact filename match.
	FilenameExactThreshold float64 `yaml:"filename_exact_threshold" json:"filename_exact_threshold"`
	// FilenamePartialThreshold is the lower rung of the filename boost ladder.
	FilenamePartialThreshold float64 `yaml:"filename_partial_threshold" json:"filename_partial_threshold"`
	// HybridMultiplier boosts semantic hits that also contain an exact
	// keyword match of a poorly-tokenizing query term.
	HybridMultiplier float64 `yaml:"hybrid_multiplier" json:"hybrid_multiplier"`
	// KeywordOnlyScore is the fixed score for pure keyword hits outside
	// the semantic top-K.
	KeywordOnlyScore float64 `yaml:"keyword_only_score" json:"keyword_only_score"`
	// KeywordBackend selects the keyword index: "sqlite" (FTS5, default)
	// or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultIncludeExtensions are the formats the parser dispatcher supports.
var DefaultIncludeExtensions = []string{
	".txt", ".md", ".markdown", ".rst",
	".pdf", ".docx", ".xlsx",
	".csv", ".json", ".yaml", ".yml",
}

// DefaultIgnorePatterns excludes common noise directories.
var DefaultIgnorePatterns = []string{
	".folder-mcp", ".git", "node_modules", ".DS_Store", "*.tmp", "*~",
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Pipeline: PipelineConfig{
			ParseConcurrency: 4,
			EmbedWorkers:     2,
			EmbedThreads:     2,
			EmbedBatchSize:   1,
			Debounce:         time.Second,
		},
		Model: ModelConfig{
			ID:                    "e5-large-v2",
			RequiresPrefix:        true,
			QueryPrefix:           "query: ",
			PassagePrefix:         "passage: ",
			RequiresNormalization: true,
			ExtractionStrategy:    StrategyRich,
			Dimensions:            0,
		},
		Index: IndexConfig{
			IncludeExtensions: append([]string(nil), DefaultIncludeExtensions...),
			IgnorePatterns:    append([]string(nil), DefaultIgnorePatterns...),
			MaxHashBytes:      32 * 1024 * 1024,
			PartialHashBytes:  64 * 1024,
		},
		Retrieval: RetrievalConfig{
			FilenameExactThreshold:   0.9,
			FilenamePartialThreshold: 0.7,
			HybridMultiplier:         1.3,
			KeywordOnlyScore:         0.75,
			KeywordBackend:           "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// UserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory convention.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "folder-mcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "folder-mcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "folder-mcp", "config.yaml")
}

// Load loads the configuration for a folder.
func Load(folder string) (*Config, error) {
	cfg := New()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	for _, name := range []string{".folder-mcp.yaml", ".folder-mcp.yml"} {
		path := filepath.Join(folder, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies FOLDER_MCP_* environment variables.
// Env vars take precedence over file configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOLDER_MCP_PARSE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.ParseConcurrency = n
		}
	}
	if v := os.Getenv("FOLDER_MCP_EMBED_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.EmbedWorkers = n
		}
	}
	if v := os.Getenv("FOLDER_MCP_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.EmbedBatchSize = n
		}
	}
	if v := os.Getenv("FOLDER_MCP_MODEL_ID"); v != "" {
		c.Model.ID = v
	}
	if v := os.Getenv("FOLDER_MCP_MODEL_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("FOLDER_MCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FOLDER_MCP_KEYWORD_BACKEND"); v != "" {
		c.Retrieval.KeywordBackend = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Pipeline.ParseConcurrency < 1 {
		return fmt.Errorf("pipeline.parse_concurrency must be >= 1, got %d", c.Pipeline.ParseConcurrency)
	}
	if c.Pipeline.EmbedWorkers < 1 {
		return fmt.Errorf("pipeline.embed_workers must be >= 1, got %d", c.Pipeline.EmbedWorkers)
	}
	if c.Pipeline.EmbedBatchSize < 1 {
		return fmt.Errorf("pipeline.embed_batch_size must be >= 1, got %d", c.Pipeline.EmbedBatchSize)
	}
	if c.Pipeline.EmbedBatchSize > 10 {
		return fmt.Errorf("pipeline.embed_batch_size %d exceeds 10; large batches are measurably slower on this workload", c.Pipeline.EmbedBatchSize)
	}
	if c.Pipeline.Debounce <= 0 {
		return fmt.Errorf("pipeline.debounce must be positive, got %s", c.Pipeline.Debounce)
	}
	switch c.Model.ExtractionStrategy {
	case StrategyRich, StrategySimilarityOnly:
	default:
		return fmt.Errorf("model.extraction_strategy must be %q or %q, got %q",
			StrategyRich, StrategySimilarityOnly, c.Model.ExtractionStrategy)
	}
	if c.Model.RequiresPrefix && (c.Model.QueryPrefix == "" || c.Model.PassagePrefix == "") {
		return fmt.Errorf("model.requires_prefix is set but query_prefix or passage_prefix is empty")
	}
	if t := c.Retrieval.FilenameExactThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("retrieval.filename_exact_threshold must be in (0,1], got %v", t)
	}
	if c.Retrieval.FilenamePartialThreshold >= c.Retrieval.FilenameExactThreshold {
		return fmt.Errorf("retrieval.filename_partial_threshold must be below filename_exact_threshold")
	}
	switch c.Retrieval.KeywordBackend {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("retrieval.keyword_backend must be \"sqlite\" or \"bleve\", got %q", c.Retrieval.KeywordBackend)
	}
	if c.Index.PartialHashBytes <= 0 || c.Index.PartialHashBytes > c.Index.MaxHashBytes {
		return fmt.Errorf("index.partial_hash_bytes must be positive and below max_hash_bytes")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
