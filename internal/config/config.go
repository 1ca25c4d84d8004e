// Package config loads spiralmem's configuration from a file, the
// environment, and CLI flags, in that increasing order of priority.
// It replaces the teacher's ad hoc getEnvOrDefault helpers with a
// single viper-backed loader, following the "ambient globals" redesign
// flag: callers receive a *Config value explicitly rather than reading
// package-level state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration for one spiralmem
// process (CLI invocation or worker).
type Config struct {
	// DataDir is the root directory holding the database file and the
	// sibling audio/, transcripts/, frames/, thumbnails/, temp/ dirs.
	DataDir string `mapstructure:"data_dir"`

	// DatabasePath is the single relational database file (spec.md §6).
	DatabasePath string `mapstructure:"database_path"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" | "json"
	Quiet     bool   `mapstructure:"quiet"`
	Verbose   bool   `mapstructure:"verbose"`

	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	YtDlpPath   string `mapstructure:"ytdlp_path"`

	TranscriberBinary string `mapstructure:"transcriber_binary"`
	TranscriberModel  string `mapstructure:"transcriber_model"`

	EmbedderEndpoint string `mapstructure:"embedder_endpoint"`
	EmbedderModel    string `mapstructure:"embedder_model"`
	EmbedderAPIKey   string `mapstructure:"embedder_api_key"`

	DefaultSpace string `mapstructure:"default_space"`

	// Chunking defaults (spec.md §4.4).
	ChunkSize      int  `mapstructure:"chunk_size"`
	ChunkOverlap   int  `mapstructure:"chunk_overlap"`
	SentenceBreak  bool `mapstructure:"sentence_break"`
	PreserveTimestamps bool `mapstructure:"preserve_timestamps"`

	// Concurrency / timeout defaults (spec.md §5).
	ConcurrentBatches    int           `mapstructure:"concurrent_batches"`
	ConcurrentProcessing int           `mapstructure:"concurrent_processing"`
	BatchItemTimeout     time.Duration `mapstructure:"batch_item_timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	FFmpegConcurrency    int           `mapstructure:"ffmpeg_concurrency"`

	// Platform API credentials, absent => adapter disabled not fatal.
	YouTubeAPIKey string `mapstructure:"youtube_api_key"`
}

// Load resolves configuration from (in increasing priority): built-in
// defaults, the config file at path (or the default location if path
// is empty), and SPIRALMEM_-prefixed environment variables, which
// include any an optional .env file sets, since .env is loaded into the
// process environment first. CLI flags are merged by the caller via v
// before calling Load, matching cobra/viper's BindPFlag convention.
func Load(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	// Teacher loads a sibling .env before reading process environment;
	// errors are non-fatal (no .env is the common case).
	_ = godotenv.Load()

	setDefaults(v)

	v.SetEnvPrefix("SPIRALMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "spiralmem"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; defaults + env carry us.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, ".local", "share", "spiralmem")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "spiralmem.db")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffprobe_path", "ffprobe")
	v.SetDefault("ytdlp_path", "yt-dlp")
	v.SetDefault("transcriber_binary", "whisper")
	v.SetDefault("transcriber_model", "base")
	v.SetDefault("embedder_model", "text-embedding-default")
	v.SetDefault("default_space", "default")
	v.SetDefault("chunk_size", 400)
	v.SetDefault("chunk_overlap", 80)
	v.SetDefault("sentence_break", true)
	v.SetDefault("preserve_timestamps", true)
	v.SetDefault("concurrent_batches", 2)
	v.SetDefault("concurrent_processing", 2)
	v.SetDefault("batch_item_timeout", 5*time.Minute)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay", 1*time.Second)
	v.SetDefault("ffmpeg_concurrency", 2)
}

// EnsureDirs creates DataDir and its sibling artifact directories.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		filepath.Join(c.DataDir, "audio"),
		filepath.Join(c.DataDir, "transcripts"),
		filepath.Join(c.DataDir, "frames"),
		filepath.Join(c.DataDir, "thumbnails"),
		filepath.Join(c.DataDir, "temp"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

func (c *Config) AudioDir() string       { return filepath.Join(c.DataDir, "audio") }
func (c *Config) TranscriptsDir() string { return filepath.Join(c.DataDir, "transcripts") }
func (c *Config) FramesDir() string      { return filepath.Join(c.DataDir, "frames") }
func (c *Config) ThumbnailsDir() string  { return filepath.Join(c.DataDir, "thumbnails") }
func (c *Config) TempDir() string        { return filepath.Join(c.DataDir, "temp") }
