// Package config resolves the runtime configuration from defaults, an
// optional TOML file, and CONTINUITY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".continuity"
	envPrefix  = "CONTINUITY"

	fileMode = 0o600
	dirMode  = 0o700
)

type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Session   SessionConfig   `toml:"session"`
	Assembler AssemblerConfig `toml:"assembler"`
	Journal   JournalConfig   `toml:"journal"`
	Embedding EmbeddingConfig `toml:"embedding"`
}

type StorageConfig struct {
	DataDir        string `toml:"data_dir"`
	IndexPath      string `toml:"index_path"`
	SessionDataDir string `toml:"session_data_dir"`
	ChunksPath     string `toml:"chunks_path"`
	EmbeddingsPath string `toml:"embeddings_path"`
	BinaryDir      string `toml:"binary_dir"`
	BinaryVectors  bool   `toml:"binary_vectors"`
}

type SessionConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

type AssemblerConfig struct {
	CacheTTL          time.Duration `toml:"cache_ttl"`
	CompressionMaxLen int           `toml:"compression_max_len"`
}

type JournalConfig struct {
	BufferMax     int           `toml:"buffer_max"`
	MaxBatchSize  int           `toml:"max_batch_size"`
	FlushInterval time.Duration `toml:"flush_interval"`
}

type EmbeddingConfig struct {
	BaseURL string        `toml:"base_url"`
	Model   string        `toml:"model"`
	Dim     int           `toml:"dim"`
	Timeout time.Duration `toml:"timeout"`
}

// Load resolves configuration. Precedence: env > config file > defaults.
// A missing config file is fine; an unreadable one is a startup error.
func Load(cfg *viper.Viper) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(homeDir, configDir)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(dataDir)
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	setDefaults(cfg, dataDir)

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return Config{
		Storage: StorageConfig{
			DataDir:        cfg.GetString("storage.data_dir"),
			IndexPath:      cfg.GetString("storage.index_path"),
			SessionDataDir: cfg.GetString("storage.session_data_dir"),
			ChunksPath:     cfg.GetString("storage.chunks_path"),
			EmbeddingsPath: cfg.GetString("storage.embeddings_path"),
			BinaryDir:      cfg.GetString("storage.binary_dir"),
			BinaryVectors:  cfg.GetBool("storage.binary_vectors"),
		},
		Session: SessionConfig{
			Timeout: cfg.GetDuration("session.timeout"),
		},
		Assembler: AssemblerConfig{
			CacheTTL:          cfg.GetDuration("assembler.cache_ttl"),
			CompressionMaxLen: cfg.GetInt("assembler.compression_max_len"),
		},
		Journal: JournalConfig{
			BufferMax:     cfg.GetInt("journal.buffer_max"),
			MaxBatchSize:  cfg.GetInt("journal.max_batch_size"),
			FlushInterval: cfg.GetDuration("journal.flush_interval"),
		},
		Embedding: EmbeddingConfig{
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
			Dim:     cfg.GetInt("embedding.dim"),
			Timeout: cfg.GetDuration("embedding.timeout"),
		},
	}, nil
}

func setDefaults(cfg *viper.Viper, dataDir string) {
	cfg.SetDefault("storage.data_dir", dataDir)
	cfg.SetDefault("storage.index_path", filepath.Join(dataDir, "sessions", "index.json"))
	cfg.SetDefault("storage.session_data_dir", filepath.Join(dataDir, "sessions", "data"))
	cfg.SetDefault("storage.chunks_path", filepath.Join(dataDir, "journal", "chunks.jsonl"))
	cfg.SetDefault("storage.embeddings_path", filepath.Join(dataDir, "journal", "embeddings.jsonl"))
	cfg.SetDefault("storage.binary_dir", filepath.Join(dataDir, "journal", "vectors"))
	cfg.SetDefault("storage.binary_vectors", false)
	cfg.SetDefault("session.timeout", "30m")
	cfg.SetDefault("assembler.cache_ttl", "5m")
	cfg.SetDefault("assembler.compression_max_len", 2000)
	cfg.SetDefault("journal.buffer_max", 1000)
	cfg.SetDefault("journal.max_batch_size", 1000)
	cfg.SetDefault("journal.flush_interval", "5s")
	cfg.SetDefault("embedding.base_url", "http://127.0.0.1:8756")
	cfg.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	cfg.SetDefault("embedding.dim", 384)
	cfg.SetDefault("embedding.timeout", "8s")
}

// WriteDefault writes the resolved defaults as a TOML file so users have a
// template to edit. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %q already exists", path)
	}

	resolved, err := Load(viper.New())
	if err != nil {
		return err
	}

	data, err := toml.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultPath is where `config init` writes and Load looks first.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDir, configName+"."+configType), nil
}
