package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	active *viper.Viper
)

// envKeys are bound explicitly so overrides work without a config file.
var envKeys = []string{
	"server.port",
	"privacy.enabled",
	"router.cloud_threshold",
	"embeddings.backend",
	"embeddings.model_path",
	"embeddings.vocab_path",
	"embeddings.library_path",
	"embeddings.cache.enabled",
	"embeddings.cache.addr",
	"embeddings.cache.password",
	"corpus.source",
	"corpus.seed_file",
	"corpus.database.url",
	"logging.level",
	"logging.format",
	"rate_limit.enabled",
	"rate_limit.requests_per_min",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/secureclaw/")
	v.AddConfigPath("$HOME/.secureclaw/")

	// Environment variable overrides, e.g. SECURECLAW_LOGGING_LEVEL
	v.SetEnvPrefix("SECURECLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	active = v
	mu.Unlock()

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if _, err := config.Server.TrustedProxyNets(); err != nil {
		return err
	}

	if err := config.Router.Validate(); err != nil {
		return fmt.Errorf("invalid router config: %w", err)
	}

	switch config.Embeddings.Backend {
	case "none", "hash":
	case "onnx":
		if config.Embeddings.ModelPath == "" || config.Embeddings.VocabPath == "" {
			return fmt.Errorf("onnx backend requires model_path and vocab_path")
		}
	default:
		return fmt.Errorf("invalid embeddings backend: %s (must be none, hash, or onnx)", config.Embeddings.Backend)
	}

	if config.Embeddings.Backend == "hash" && config.Embeddings.Dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", config.Embeddings.Dimension)
	}

	switch config.Corpus.Source {
	case "builtin":
	case "file":
		if config.Corpus.SeedFile == "" {
			return fmt.Errorf("corpus source file requires seed_file")
		}
	case "postgres":
		if config.Corpus.Database.URL == "" {
			return fmt.Errorf("corpus source postgres requires database.url")
		}
	default:
		return fmt.Errorf("invalid corpus source: %s (must be builtin, file, or postgres)", config.Corpus.Source)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	return nil
}

// Watch starts watching the configuration file loaded by the last Load call
// and invokes callback with every valid new configuration. Invalid edits are
// logged and ignored.
func Watch(log *zap.Logger, callback func(*Config)) error {
	mu.Lock()
	v := active
	mu.Unlock()

	if v == nil {
		return fmt.Errorf("config not loaded")
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}
	if log == nil {
		log = zap.NewNop()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			log.Error("Failed to reload configuration", zap.String("file", e.Name), zap.Error(err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			log.Error("Rejected invalid configuration", zap.String("file", e.Name), zap.Error(err))
			return
		}

		log.Info("Configuration reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
