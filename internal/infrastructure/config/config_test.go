package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "tfidf", cfg.Similarity.Method)
	assert.Equal(t, 10, cfg.Accumulator.Workers)
	assert.Equal(t, "avg", cfg.Evaluation.Mode)
	assert.Equal(t, 100, cfg.Corpus.Size)
	assert.Equal(t, 100*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "results/false_pairs.txt", cfg.Annotation.FalsePairsPath)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUBFIND_SIMILARITY_METHOD", "COSINE")
	t.Setenv("SUBFIND_ACCUMULATOR_WORKERS", "3")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "cosine", cfg.Similarity.Method)
	assert.Equal(t, 3, cfg.Accumulator.Workers)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := `
similarity:
  method: ratio
evaluation:
  mode: min
ranking:
  top_n: 5
  custom: [butter, salt]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ratio", cfg.Similarity.Method)
	assert.Equal(t, "min", cfg.Evaluation.Mode)
	assert.Equal(t, 5, cfg.Ranking.TopN)
	assert.Equal(t, []string{"butter", "salt"}, cfg.Ranking.Custom)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown method", "SUBFIND_SIMILARITY_METHOD", "jaccard"},
		{"zero workers", "SUBFIND_ACCUMULATOR_WORKERS", "0"},
		{"unknown mode", "SUBFIND_EVALUATION_MODE", "max"},
		{"unknown source", "SUBFIND_CORPUS_SOURCE", "mongo"},
		{"oversized query", "SUBFIND_CORPUS_SIZE", "20000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadConfig("does-not-exist.yaml")
	assert.Error(t, err)
}
