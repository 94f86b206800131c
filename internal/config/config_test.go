package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultTopK, cfg.Search.TopK)
	assert.InDelta(t, DefaultThreshold, cfg.Search.Threshold, 1e-9)
	assert.Equal(t, DefaultCallTimeout, cfg.Indexing.CallTimeout)
	assert.Equal(t, DefaultTranscription, cfg.Indexing.TranscriptionTimeout)
	assert.Equal(t, DefaultWorkers, cfg.Indexing.Workers)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "semdex.yaml")
	content := `
http_addr: ":9090"
db_path: /var/lib/semdex/index.db
inference:
  base_url: https://inference.example.com/v1
  caption_model: test-captioner
search:
  top_k: 5
  threshold: 0.7
indexing:
  workers: 2
  call_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/semdex/index.db", cfg.DBPath)
	assert.Equal(t, "https://inference.example.com/v1", cfg.Inference.BaseURL)
	assert.Equal(t, "test-captioner", cfg.Inference.CaptionModel)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.InDelta(t, 0.7, cfg.Search.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.Indexing.Workers)
	assert.Equal(t, Duration(10*time.Second), cfg.Indexing.CallTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "semdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9090\"\n"), 0o644))

	t.Setenv(EnvHTTPAddr, ":7070")
	t.Setenv("SEMDEX_SEARCH_TOP_K", "3")
	t.Setenv("SEMDEX_SEARCH_THRESHOLD", "0.8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.InDelta(t, 0.8, cfg.Search.Threshold, 1e-9)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
