package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is read once at startup and passed by value to every component.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Import   ImportConfig   `mapstructure:"import"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SearchConfig tunes the result cache. A zero CacheSize disables it.
type SearchConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type ImportConfig struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	ProgressEvery int           `mapstructure:"progress_every"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// EnvPrefix prefixes environment overrides, e.g. WORDLE_TELEGRAM_TOKEN.
const EnvPrefix = "WORDLE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 10*time.Second)
	v.SetDefault("database.path", "wordle.db")
	v.SetDefault("search.cache_size", 256)
	v.SetDefault("search.cache_ttl", 10*time.Minute)
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.batch_size", 200)
	v.SetDefault("import.flush_interval", 500*time.Millisecond)
	v.SetDefault("import.progress_every", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.listen", "")
}

// Load reads configuration from path, or from config.yaml in the working
// directory when path is empty. A missing default file is not an error.
// Environment variables override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. The Telegram token is checked by the bot
// command only, so import runs without one.
func (c Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return errors.New("config: database.path must be set")
	case c.Search.CacheSize < 0:
		return fmt.Errorf("config: search.cache_size must not be negative, got %d", c.Search.CacheSize)
	case c.Search.CacheSize > 0 && c.Search.CacheTTL <= 0:
		return fmt.Errorf("config: search.cache_ttl must be positive, got %s", c.Search.CacheTTL)
	case c.Import.Workers <= 0:
		return fmt.Errorf("config: import.workers must be positive, got %d", c.Import.Workers)
	case c.Import.BatchSize <= 0:
		return fmt.Errorf("config: import.batch_size must be positive, got %d", c.Import.BatchSize)
	case c.Import.ProgressEvery < 0:
		return fmt.Errorf("config: import.progress_every must not be negative, got %d", c.Import.ProgressEvery)
	case c.Telegram.PollTimeout < 0:
		return fmt.Errorf("config: telegram.poll_timeout must not be negative, got %s", c.Telegram.PollTimeout)
	}
	return nil
}
