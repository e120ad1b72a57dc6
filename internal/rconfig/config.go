// Package rconfig loads Recall's configuration file. The recognized option
// set is exhaustive (spec.md 6): store_path, chunk_tokens, overlap_tokens,
// embedding, embedding_dim, bm25_weight, vector_weight, max_limit. There is
// deliberately no room to add ad-hoc keys here the way a larger product
// config would.
package rconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full set of options Recall recognizes. Zero values are
// treated as "not set" during merge, and no field carries an explicit
// "is set" flag. OverlapTokens, BM25Weight and VectorWeight pass Validate
// at zero, but a zero for them in a config file leaves the earlier value
// in place.
type Config struct {
	StorePath     string  `yaml:"store_path"`
	ChunkTokens   int     `yaml:"chunk_tokens"`
	OverlapTokens int     `yaml:"overlap_tokens"`
	Embedding     string  `yaml:"embedding"`
	EmbeddingDim  int     `yaml:"embedding_dim"`
	BM25Weight    float64 `yaml:"bm25_weight"`
	VectorWeight  float64 `yaml:"vector_weight"`
	MaxLimit      int     `yaml:"max_limit"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		StorePath:     "recall.store",
		ChunkTokens:   256,
		OverlapTokens: 32,
		Embedding:     "static",
		EmbeddingDim:  384,
		BM25Weight:    0.5,
		VectorWeight:  0.5,
		MaxLimit:      200,
	}
}

// GetUserConfigPath returns the path to the OS-conventional user
// configuration file (spec.md 6: "located via the OS conventional config
// directory").
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "recall", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "recall", "config.yaml")
	}
	return filepath.Join(home, ".config", "recall", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration for dir, applying sources in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User config (GetUserConfigPath)
//  3. Project config (.recall.yaml or .recall.yml in dir)
//  4. Environment variables (RECALL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .recall.yaml or
// .recall.yml, in that order of preference. Absence of either is fine.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".recall.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".recall.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.StorePath != "" {
		c.StorePath = other.StorePath
	}
	if other.ChunkTokens != 0 {
		c.ChunkTokens = other.ChunkTokens
	}
	if other.OverlapTokens != 0 {
		c.OverlapTokens = other.OverlapTokens
	}
	if other.Embedding != "" {
		c.Embedding = other.Embedding
	}
	if other.EmbeddingDim != 0 {
		c.EmbeddingDim = other.EmbeddingDim
	}
	if other.BM25Weight != 0 {
		c.BM25Weight = other.BM25Weight
	}
	if other.VectorWeight != 0 {
		c.VectorWeight = other.VectorWeight
	}
	if other.MaxLimit != 0 {
		c.MaxLimit = other.MaxLimit
	}
}

// applyEnvOverrides applies RECALL_* environment variables, the highest
// precedence source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECALL_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("RECALL_CHUNK_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ChunkTokens = n
		}
	}
	if v := os.Getenv("RECALL_OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.OverlapTokens = n
		}
	}
	if v := os.Getenv("RECALL_EMBEDDING"); v != "" {
		c.Embedding = v
	}
	if v := os.Getenv("RECALL_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.EmbeddingDim = n
		}
	}
	if v := os.Getenv("RECALL_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 {
			c.BM25Weight = w
		}
	}
	if v := os.Getenv("RECALL_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 {
			c.VectorWeight = w
		}
	}
	if v := os.Getenv("RECALL_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxLimit = n
		}
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the loaded configuration for internally-inconsistent
// values. Weights are non-negative (spec.md 6); a weight of zero is legal
// and simply disables that source's contribution to fusion.
func (c *Config) Validate() error {
	if c.BM25Weight < 0 {
		return fmt.Errorf("bm25_weight must be non-negative, got %f", c.BM25Weight)
	}
	if c.VectorWeight < 0 {
		return fmt.Errorf("vector_weight must be non-negative, got %f", c.VectorWeight)
	}
	if c.BM25Weight == 0 && c.VectorWeight == 0 {
		return fmt.Errorf("bm25_weight and vector_weight cannot both be zero")
	}
	if c.ChunkTokens <= 0 {
		return fmt.Errorf("chunk_tokens must be positive, got %d", c.ChunkTokens)
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("overlap_tokens must be non-negative, got %d", c.OverlapTokens)
	}
	if c.OverlapTokens >= c.ChunkTokens {
		return fmt.Errorf("overlap_tokens must be less than chunk_tokens, got %d >= %d", c.OverlapTokens, c.ChunkTokens)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be positive, got %d", c.MaxLimit)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
