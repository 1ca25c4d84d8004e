package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "data_dir: /tmp/spiralmem-test\n")

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/spiralmem-test", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/spiralmem-test", "spiralmem.db"), cfg.DatabasePath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 400, cfg.ChunkSize)
	assert.Equal(t, 80, cfg.ChunkOverlap)
	assert.True(t, cfg.SentenceBreak)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestLoadRespectsExplicitDatabasePath(t *testing.T) {
	path := writeConfigFile(t, "data_dir: /tmp/spiralmem-test\ndatabase_path: /tmp/spiralmem-test/custom.db\n")

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/spiralmem-test/custom.db", cfg.DatabasePath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "data_dir: /tmp/spiralmem-test\nchunk_size: 400\n")
	t.Setenv("SPIRALMEM_CHUNK_SIZE", "999")

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)

	assert.Equal(t, 999, cfg.ChunkSize)
}

func TestConfigDirHelpers(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/audio", cfg.AudioDir())
	assert.Equal(t, "/data/transcripts", cfg.TranscriptsDir())
	assert.Equal(t, "/data/frames", cfg.FramesDir())
	assert.Equal(t, "/data/thumbnails", cfg.ThumbnailsDir())
	assert.Equal(t, "/data/temp", cfg.TempDir())
}

func TestEnsureDirsCreatesAllSubdirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{DataDir: filepath.Join(dir, "nested")}

	require.NoError(t, cfg.EnsureDirs())

	for _, sub := range []string{"audio", "transcripts", "frames", "thumbnails", "temp"} {
		info, err := os.Stat(filepath.Join(cfg.DataDir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
