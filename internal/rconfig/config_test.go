package rconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "recall.store", cfg.StorePath)
	assert.Equal(t, 256, cfg.ChunkTokens)
	assert.Equal(t, 32, cfg.OverlapTokens)
	assert.Equal(t, "static", cfg.Embedding)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 0.5, cfg.BM25Weight)
	assert.Equal(t, 0.5, cfg.VectorWeight)
	assert.Equal(t, 200, cfg.MaxLimit)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".recall.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
store_path: project.store
bm25_weight: 0.7
vector_weight: 0.3
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "project.store", cfg.StorePath)
	assert.Equal(t, 0.7, cfg.BM25Weight)
	assert.Equal(t, 0.3, cfg.VectorWeight)
	// Untouched fields keep their defaults.
	assert.Equal(t, 256, cfg.ChunkTokens)
}

func TestLoad_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".recall.yml"), []byte("max_limit: 50\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".recall.yaml"), []byte("max_limit: 50\n"), 0o644))

	t.Setenv("RECALL_MAX_LIMIT", "999")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 999, cfg.MaxLimit)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestValidate_RejectsNegativeWeights(t *testing.T) {
	cfg := NewConfig()
	cfg.BM25Weight = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBothWeightsZero(t *testing.T) {
	cfg := NewConfig()
	cfg.BM25Weight = 0
	cfg.VectorWeight = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOverlapGreaterThanChunk(t *testing.T) {
	cfg := NewConfig()
	cfg.OverlapTokens = cfg.ChunkTokens
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveEmbeddingDim(t *testing.T) {
	cfg := NewConfig()
	cfg.EmbeddingDim = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveMaxLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestGetUserConfigPath_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")
	assert.Equal(t, "/custom/xdg/recall/config.yaml", GetUserConfigPath())
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")
	cfg := NewConfig()
	cfg.StorePath = "custom.store"
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, "custom.store", loaded.StorePath)
}
