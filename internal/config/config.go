// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Frontier FrontierConfig `mapstructure:"frontier"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Sink     SinkConfig     `mapstructure:"sink"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl run itself.
type CrawlerConfig struct {
	Seeds          []string          `mapstructure:"seeds"`
	AllowedDomains []string          `mapstructure:"allowed_domains"`
	MaxDepth       int               `mapstructure:"max_depth"`
	Workers        int               `mapstructure:"workers"`
	BatchSize      int               `mapstructure:"batch_size"`
	DefaultLang    string            `mapstructure:"default_lang"`
	LangRules      map[string]string `mapstructure:"lang_rules"`
}

// FrontierConfig selects and locates the durable URL store.
type FrontierConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	DBPath  string `mapstructure:"db_path"`
}

// FetchConfig selects the fetch variant and its transport knobs.
type FetchConfig struct {
	Mode                 string   `mapstructure:"mode"`
	UserAgent            string   `mapstructure:"user_agent"`
	TimeoutSeconds       int      `mapstructure:"timeout_seconds"`
	RenderWaitMs         int      `mapstructure:"render_wait_ms"`
	MaxConcurrentRenders int      `mapstructure:"max_concurrent_renders"`
	DomainQPS            float64  `mapstructure:"domain_qps"`
	CacheDir             string   `mapstructure:"cache_dir"`
	PostgresDSN          string   `mapstructure:"postgres_dsn"`
	PostgresTable        string   `mapstructure:"postgres_table"`
	DetectorMinBytes     int      `mapstructure:"detector_min_bytes"`
	DetectorSelectors    []string `mapstructure:"detector_selectors"`
	DetectorKeywords     []string `mapstructure:"detector_keywords"`
}

// ChunkingConfig controls the token-bounded segmenter.
type ChunkingConfig struct {
	TargetTokens int    `mapstructure:"target_tokens"`
	Encoding     string `mapstructure:"encoding"`
}

// SinkConfig selects where finished documents land.
type SinkConfig struct {
	Mode          string `mapstructure:"mode"`
	Dir           string `mapstructure:"dir"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
}

// PubSubConfig holds the optional chunk-emitted event stream settings.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// APIConfig controls the reporting HTTP server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. With an empty path it looks
// for harvester.yaml in the working directory; a missing default file is
// fine, a missing explicit file is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("harvester")
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
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.batch_size", 8)
	v.SetDefault("crawler.default_lang", "en")
	v.SetDefault("frontier.backend", "file")
	v.SetDefault("frontier.dir", "state")
	v.SetDefault("frontier.db_path", "state/frontier.db")
	v.SetDefault("fetch.mode", "static")
	v.SetDefault("fetch.user_agent", "harvester-bot/0.1")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.render_wait_ms", 500)
	v.SetDefault("fetch.max_concurrent_renders", 2)
	v.SetDefault("fetch.domain_qps", 2.0)
	v.SetDefault("fetch.postgres_table", "pages")
	v.SetDefault("fetch.detector_min_bytes", 2048)
	v.SetDefault("chunking.target_tokens", 512)
	v.SetDefault("chunking.encoding", "cl100k_base")
	v.SetDefault("sink.mode", "fs")
	v.SetDefault("sink.dir", "data")
	v.SetDefault("sink.postgres_table", "chunks")
	v.SetDefault("sink.gcs_prefix", "harvest")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.topic_name", "chunks")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Chunking.TargetTokens <= 0 {
		return fmt.Errorf("chunking.target_tokens must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	switch c.Frontier.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("frontier.backend must be file or sqlite, got %q", c.Frontier.Backend)
	}
	switch c.Fetch.Mode {
	case "live", "static", "static+promote", "cached", "database":
	default:
		return fmt.Errorf("fetch.mode must be one of live, static, static+promote, cached, database, got %q", c.Fetch.Mode)
	}
	if c.Fetch.Mode == "live" || c.Fetch.Mode == "static+promote" {
		if c.Fetch.MaxConcurrentRenders <= 0 {
			return fmt.Errorf("fetch.max_concurrent_renders must be > 0 when rendering is enabled")
		}
	}
	if c.Fetch.Mode == "cached" && c.Fetch.CacheDir == "" {
		return fmt.Errorf("fetch.cache_dir must be set for cached mode")
	}
	if c.Fetch.Mode == "database" && c.Fetch.PostgresDSN == "" {
		return fmt.Errorf("fetch.postgres_dsn must be set for database mode")
	}
	switch c.Sink.Mode {
	case "fs", "postgres", "gcs":
	default:
		return fmt.Errorf("sink.mode must be one of fs, postgres, gcs, got %q", c.Sink.Mode)
	}
	if c.Sink.Mode == "postgres" && c.Sink.PostgresDSN == "" {
		return fmt.Errorf("sink.postgres_dsn must be set for postgres sink")
	}
	if c.Sink.Mode == "gcs" && c.Sink.GCSBucket == "" {
		return fmt.Errorf("sink.gcs_bucket must be set for gcs sink")
	}
	if c.PubSub.Enabled {
		if c.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
		}
		if c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.topic_name must be set when pubsub is enabled")
		}
	}
	if c.API.Enabled && c.API.Port <= 0 {
		return fmt.Errorf("api.port must be > 0 when the api is enabled")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RenderWait converts the configured render settle time into a duration.
func (c Config) RenderWait() time.Duration {
	return time.Duration(c.Fetch.RenderWaitMs) * time.Millisecond
}
