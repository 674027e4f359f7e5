package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"database": {"path": "/tmp/docqa.db"},
		"index": {"dir": "/tmp/indexes"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "sqlite", cfg.Index.Backend)
	require.Equal(t, 1000, cfg.Chunker.Size)
	require.Equal(t, 200, cfg.Chunker.Overlap)
	require.Equal(t, 4, cfg.Retrieval.TopK)
	require.Equal(t, 3, cfg.History.WindowTurns)
	require.Equal(t, "none", cfg.FileStore.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.StorageTimeoutSeconds)
}

func TestLoadYAMLAndEnvExpansion(t *testing.T) {
	t.Setenv("DOCQA_TEST_KEY", "secret-key")
	path := writeConfig(t, "config.yaml", `
port: 9000
database:
  path: /tmp/docqa.db
index:
  dir: /tmp/indexes
chunker:
  size: 10
  overlap: 2
ai:
  generator:
    - provider: gemini
      model: gemini-2.0-flash
      data:
        api_key: ${DOCQA_TEST_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 10, cfg.Chunker.Size)
	require.Equal(t, 2, cfg.Chunker.Overlap)
	require.Len(t, cfg.AI.Generators, 1)
	data, ok := cfg.AI.Generators[0].Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "secret-key", data["api_key"])
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[database]
driver = "postgres"
dsn = "postgres://localhost/docqa"

[index]
dir = "/tmp/indexes"

[retrieval]
top_k = 6
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 6, cfg.Retrieval.TopK)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "overlap not below size", content: `{"database":{"path":"a.db"},"index":{"dir":"i"},"chunker":{"size":10,"overlap":10}}`},
		{name: "missing sqlite path", content: `{"index":{"dir":"i"}}`},
		{name: "missing index dir", content: `{"database":{"path":"a.db"}}`},
		{name: "unknown backend", content: `{"database":{"path":"a.db"},"index":{"backend":"faiss","dir":"i"}}`},
		{name: "provider without model", content: `{"database":{"path":"a.db"},"index":{"dir":"i"},"ai":{"embedder":[{"provider":"openai"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
