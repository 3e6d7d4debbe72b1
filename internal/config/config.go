package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/datespot/aggregator/internal/domain"
)

// Config holds all service settings, populated from environment variables
// (prefix DATESPOT) and an optional config.yaml.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

// ServerConfig holds HTTP, logging, and scheduling settings.
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RunInterval     time.Duration `mapstructure:"run_interval"`
}

// FeedConfig holds BlogTO event feed settings.
type FeedConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	FetchDays    int           `mapstructure:"fetch_days"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// GeocodingConfig holds Google Maps geocoding settings.
type GeocodingConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WeatherConfig holds Visual Crossing weather settings.
type WeatherConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ClassifierConfig holds settings for the external AI classifier.
type ClassifierConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BatchThreshold int           `mapstructure:"batch_threshold"`
}

// CacheConfig holds the persistent cache settings.
type CacheConfig struct {
	Path                  string   `mapstructure:"path"`
	GeocodingTTLDays      int      `mapstructure:"geocoding_ttl_days"`
	CategorizationTTLDays int      `mapstructure:"categorization_ttl_days"`
	ExcludedCategories    []string `mapstructure:"excluded_categories"`
}

// GitHubConfig holds the schema publication target. Publishing is enabled
// when a token is present, mirroring the feature-flag style used for Kafka.
type GitHubConfig struct {
	Token    string        `mapstructure:"token"`
	Repo     string        `mapstructure:"repo"`
	FilePath string        `mapstructure:"file_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds the optional schema sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	SinkTopic string   `mapstructure:"sink_topic"`
}

// GitHubEnabled reports whether the GitHub publisher should run.
func (c *Config) GitHubEnabled() bool { return c.GitHub.Token != "" }

// KafkaEnabled reports whether the Kafka schema sink should run.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// GeocodingTTL returns the geocoding cache time-to-live.
func (c *Config) GeocodingTTL() time.Duration {
	return time.Duration(c.Cache.GeocodingTTLDays) * 24 * time.Hour
}

// CategorizationTTL returns the categorization cache time-to-live.
func (c *Config) CategorizationTTL() time.Duration {
	return time.Duration(c.Cache.CategorizationTTLDays) * 24 * time.Hour
}

// Load reads configuration from environment variables and an optional
// config file, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/datespot/")

	v.SetEnvPrefix("DATESPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// An explicitly empty variable overrides the default, so operators can
	// blank out a value like the Kafka sink topic.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file; environment variables and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need one registered so
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("github.token", "")
	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.run_interval", "24h")

	v.SetDefault("feed.base_url", "https://www.blogto.com/api/v2/events/")
	v.SetDefault("feed.fetch_days", 7)
	v.SetDefault("feed.request_delay", "5s")
	v.SetDefault("feed.timeout", "30s")

	v.SetDefault("geocoding.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocoding.request_delay", "10ms")
	v.SetDefault("geocoding.timeout", "10s")

	v.SetDefault("weather.base_url", "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline")
	v.SetDefault("weather.timeout", "30s")

	v.SetDefault("classifier.model", "gemini-2.0-flash")
	v.SetDefault("classifier.timeout", "120s")
	v.SetDefault("classifier.batch_threshold", 100)

	v.SetDefault("cache.path", "datespot.db")
	v.SetDefault("cache.geocoding_ttl_days", 90)
	v.SetDefault("cache.categorization_ttl_days", 30)
	v.SetDefault("cache.excluded_categories", domain.DefaultExcludedCategories)

	v.SetDefault("github.repo", "datespot/schema")
	v.SetDefault("github.file_path", "api/schema.js")
	v.SetDefault("github.timeout", "30s")

	v.SetDefault("kafka.sink_topic", "datespot-schema")
}

func validate(cfg *Config) error {
	if cfg.Geocoding.APIKey == "" {
		return errors.New("geocoding API key is required (set DATESPOT_GEOCODING_API_KEY)")
	}
	if cfg.Weather.APIKey == "" {
		return errors.New("weather API key is required (set DATESPOT_WEATHER_API_KEY)")
	}
	if cfg.Classifier.APIKey == "" {
		return errors.New("classifier API key is required (set DATESPOT_CLASSIFIER_API_KEY)")
	}
	if cfg.Feed.FetchDays <= 0 || cfg.Feed.FetchDays > 31 {
		return fmt.Errorf("feed.fetch_days must be between 1 and 31, got %d", cfg.Feed.FetchDays)
	}
	if cfg.Classifier.BatchThreshold <= 0 {
		return fmt.Errorf("classifier.batch_threshold must be positive, got %d", cfg.Classifier.BatchThreshold)
	}
	if cfg.Cache.GeocodingTTLDays <= 0 || cfg.Cache.CategorizationTTLDays <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if cfg.Server.RunInterval <= 0 {
		return errors.New("server.run_interval must be positive")
	}
	if cfg.GitHubEnabled() && cfg.GitHub.Repo == "" {
		return errors.New("github.repo is required when a GitHub token is set")
	}
	if cfg.KafkaEnabled() && cfg.Kafka.SinkTopic == "" {
		return errors.New("kafka.sink_topic is required when brokers are set")
	}
	return nil
}
