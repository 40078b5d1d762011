// Package config resolves settings from defaults, an optional config file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DataDirEnv overrides the base data directory.
const DataDirEnv = "AGENT_KNOWLEDGE_DIR"

// EnvPrefix prefixes every other environment override, e.g.
// AGENT_KNOWLEDGE_VECTOR_BACKEND.
const EnvPrefix = "AGENT_KNOWLEDGE"

// Vector backends.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config is the resolved configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	LogLevel  string          `mapstructure:"log_level"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// VectorConfig selects the vector engine.
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	QdrantAddr string `mapstructure:"qdrant_addr"`
	Collection string `mapstructure:"collection"`
}

// EmbeddingConfig selects and reaches the embedding provider. The model is
// fixed per provider.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
}

// DBPath is the relational database file.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "knowledge.db")
}

// VectorDir is the directory holding the embedded vector index.
func (c Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// DefaultDataDir is ~/.agent-knowledge.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agent-knowledge"
	}
	return filepath.Join(home, ".agent-knowledge")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("vector.backend", BackendSQLite)
	v.SetDefault("vector.qdrant_addr", "http://localhost:6333")
	v.SetDefault("vector.collection", "agent_knowledge")
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.api_key", "")
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"log-level": "log_level",
	"config":    "config",
}

// Load resolves the configuration. flags may be nil. A config.yaml in the
// data directory is read when present; --config names another file.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("data_dir", DataDirEnv); err != nil {
		return Config{}, err
	}

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	path := v.GetString("config")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(expandHome(v.GetString("data_dir")), "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is empty")
	}
	switch c.Vector.Backend {
	case BackendSQLite:
	case BackendQdrant:
		if c.Vector.QdrantAddr == "" {
			return fmt.Errorf("vector.qdrant_addr is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("unknown vector.backend %q (use sqlite or qdrant)", c.Vector.Backend)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
