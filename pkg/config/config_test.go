package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("GRAPH_SERVICE_URL", "http://graph.internal:8090")
	t.Setenv("DEFAULT_SAMPLE_SIZE", "500")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://graph.internal:8090", cfg.GraphServiceURL)
	assert.Equal(t, 500, cfg.DefaultSampleSize)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data/models", cfg.ModelDir)
	assert.Equal(t, "data/registry.db", cfg.RegistryPath)
	assert.Equal(t, 1000, cfg.DefaultSampleSize)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.RetrainSchedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: \"7070\"\nmodel_dir: /var/lib/materio/models\nretrain_schedule: \"0 3 * * *\"\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("MATERIO_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/var/lib/materio/models", cfg.ModelDir)
	assert.Equal(t, "0 3 * * *", cfg.RetrainSchedule)
	// Env defaults still apply for everything the file leaves out
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\n"), 0o644))

	t.Setenv("MATERIO_CONFIG", path)
	t.Setenv("PORT", "6060")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Port)
}

func TestLoadConfigInvalidSampleSize(t *testing.T) {
	t.Setenv("DEFAULT_SAMPLE_SIZE", "-5")

	_, err := LoadConfig()
	assert.Error(t, err)
}
