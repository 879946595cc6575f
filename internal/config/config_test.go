package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 0.7, cfg.Retrieval.MinSimilarity)
	assert.Equal(t, 0.8, cfg.Retrieval.CrossThreshold)
	assert.Equal(t, 2, cfg.Retrieval.GraphDepth)
	assert.Equal(t, 15, cfg.Retrieval.WindowSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 4096, cfg.Retrieval.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, "embedded", cfg.Vector.Backend)
	assert.Equal(t, "embedded", cfg.Graph.Backend)
	assert.Equal(t, 30*24*time.Hour, cfg.Forgetting.TTL)
}

func TestRetrievalConfig_CrossThresholdMustExceedMin(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Retrieval.MinSimilarity = 0.8
	cfg.Retrieval.CrossThreshold = 0.8

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross_threshold")
}

func TestVectorConfig_Validate(t *testing.T) {
	cfg := VectorConfig{Backend: "faiss", Dimensions: 1024}
	assert.Error(t, cfg.Validate())

	cfg = VectorConfig{Backend: "sqlite", Dimensions: 1024}
	assert.Error(t, cfg.Validate(), "sqlite backend requires a storage path")

	cfg = VectorConfig{Backend: "sqlite", StoragePath: "/tmp/vectors", Dimensions: 1024}
	assert.NoError(t, cfg.Validate())
}

func TestGraphConfig_Neo4jRequiresCredentials(t *testing.T) {
	cfg := GraphConfig{Backend: "neo4j", URI: "bolt://localhost:7687"}
	assert.Error(t, cfg.Validate())

	cfg.Username = "neo4j"
	cfg.Password = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: ` + filepath.Join(dir, "neko.db") + `
retrieval:
  min_similarity: 0.65
  cross_threshold: 0.85
  window_size: 20
embedder:
  provider: mock
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.65, cfg.Retrieval.MinSimilarity)
	assert.Equal(t, 0.85, cfg.Retrieval.CrossThreshold)
	assert.Equal(t, 20, cfg.Retrieval.WindowSize)
	// Unset fields still get defaults.
	assert.Equal(t, 2, cfg.Retrieval.GraphDepth)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
