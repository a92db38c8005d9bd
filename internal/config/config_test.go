package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("./data/annotab", "storage"), cfg.Storage.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown format", func(c *Config) { c.Format = "xlsx" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = StorageS3 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "annotab.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
data_dir: /srv/annotab
format: parquet
storage:
  type: s3
  s3:
    bucket: databases
    region: eu-central-1
log:
  level: debug
`), 0644))
	cfg, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "/srv/annotab", cfg.DataDir)
	assert.Equal(t, "parquet", cfg.Format)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "databases", cfg.Storage.S3.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	// unset fields keep their defaults
	assert.Equal(t, 4, cfg.Concurrency)
	require.NoError(t, cfg.Validate())

	jsonPath := filepath.Join(dir, "annotab.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"format": "sqlite", "concurrency": 8}`), 0644))
	cfg, err = LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Format)
	assert.Equal(t, 8, cfg.Concurrency)

	_, err = LoadFromFile(filepath.Join(dir, "annotab.toml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ANNOTAB_FORMAT", "parquet")
	t.Setenv("ANNOTAB_CONCURRENCY", "16")
	t.Setenv("ANNOTAB_STORAGE_TYPE", "s3")
	t.Setenv("ANNOTAB_S3_BUCKET", "bucket")
	t.Setenv("ANNOTAB_S3_USE_PATH_STYLE", "1")
	t.Setenv("ANNOTAB_LOG_PRETTY", "true")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, "parquet", cfg.Format)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "bucket", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ANNOTAB_TEST_DOTENV=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ANNOTAB_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("ANNOTAB_TEST_DOTENV"))
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Resolve()
	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.Storage.Path)
}
