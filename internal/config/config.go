// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/nace-crawler/internal/docrank"
	"github.com/JakeFAU/nace-crawler/internal/logging"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/textproc"
)

// Storage backends accepted in storage.backend.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Selector   SelectorConfig   `mapstructure:"selector"`
	Text       textproc.Config  `mapstructure:"text"`
	Rank       docrank.Config   `mapstructure:"rank"`
	Nace       NaceConfig       `mapstructure:"nace"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    logging.Config   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs a single crawl.
type CrawlerConfig struct {
	Workers             int    `mapstructure:"workers"`
	CrawlTimeoutSeconds int    `mapstructure:"crawl_timeout_seconds"`
	UserAgent           string `mapstructure:"user_agent"`
}

// HTTPConfig configures the direct fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the render fallback.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
	DomainBurst   int     `mapstructure:"domain_burst"`

	// PromoteShells also renders pages that load fine but look client-rendered.
	PromoteShells      bool `mapstructure:"promote_shells"`
	PromotionThreshold int  `mapstructure:"promotion_threshold"`
}

// SelectorConfig tunes About-Us link selection.
type SelectorConfig struct {
	MaxLinks        int  `mapstructure:"max_links"`
	IncludeSiteName bool `mapstructure:"include_site_name"`
	// KeywordsFile replaces the built-in keyword tiers with a YAML file.
	KeywordsFile string `mapstructure:"keywords_file"`
}

// NaceConfig tunes code aggregation and scoring.
type NaceConfig struct {
	MaxCodes       int          `mapstructure:"max_codes"`
	ScoreThreshold float64      `mapstructure:"score_threshold"`
	Weights        nace.Weights `mapstructure:"weights"`
}

// ClassifierConfig points at the prediction service.
type ClassifierConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// BatchConfig sizes the partner worker pool.
type BatchConfig struct {
	Concurrency           int `mapstructure:"concurrency"`
	QueueDepth            int `mapstructure:"queue_depth"`
	MaxAttempts           int `mapstructure:"max_attempts"`
	PartnerTimeoutSeconds int `mapstructure:"partner_timeout_seconds"`
}

// StorageConfig selects where crawl caches are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the result database. An empty DSN disables it.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	text := textproc.DefaultConfig()
	weights := nace.DefaultWeights()

	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("crawler.workers", 50)
	v.SetDefault("crawler.crawl_timeout_seconds", 120)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.domain_qps", 1.0)
	v.SetDefault("headless.domain_burst", 1)
	v.SetDefault("headless.promote_shells", true)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("selector.max_links", 3)
	v.SetDefault("selector.include_site_name", false)
	v.SetDefault("selector.keywords_file", "")
	v.SetDefault("text.stages", text.Stages)
	v.SetDefault("text.min_length", text.MinLength)
	v.SetDefault("text.split_length", text.SplitLength)
	v.SetDefault("text.banned_keywords", text.BannedKeywords)
	v.SetDefault("rank.stages", []string{})
	v.SetDefault("rank.max_documents", 5)
	v.SetDefault("rank.min_priority", 0)
	v.SetDefault("nace.max_codes", nace.DefaultMaxCodes)
	v.SetDefault("nace.score_threshold", nace.DefaultScoreThreshold)
	v.SetDefault("nace.weights.exact", weights.Exact)
	v.SetDefault("nace.weights.prefix3", weights.Prefix3)
	v.SetDefault("nace.weights.prefix2", weights.Prefix2)
	v.SetDefault("nace.weights.mismatch", weights.Mismatch)
	v.SetDefault("classifier.url", "http://localhost:5000/predict")
	v.SetDefault("classifier.timeout_seconds", 30)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.queue_depth", 16)
	v.SetDefault("batch.max_attempts", 3)
	v.SetDefault("batch.partner_timeout_seconds", 0)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "data/output")
	v.SetDefault("storage.prefix", "crawled")
	v.SetDefault("db.table", "partner_analysis")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Nace.MaxCodes <= 0 {
		return fmt.Errorf("nace.max_codes must be > 0")
	}
	if c.Nace.ScoreThreshold < 0 || c.Nace.ScoreThreshold > 1 {
		return fmt.Errorf("nace.score_threshold must be within [0, 1]")
	}
	if strings.TrimSpace(c.Classifier.URL) == "" {
		return fmt.Errorf("classifier.url is required")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be > 0")
	}
	if _, err := textproc.New(c.Text); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if _, err := docrank.New(c.Rank, nil); err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	return c.validateStorage()
}

func (c Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return errors.New("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.GCSBucket) == "" {
			return errors.New("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, local, gcs", c.Storage.Backend)
	}
	return nil
}

// CrawlTimeout bounds a whole crawl.
func (c Config) CrawlTimeout() time.Duration {
	return seconds(c.Crawler.CrawlTimeoutSeconds)
}

// FetchTimeout bounds one direct fetch.
func (c Config) FetchTimeout() time.Duration {
	return seconds(c.HTTP.TimeoutSeconds)
}

// NavTimeout bounds one headless navigation.
func (c Config) NavTimeout() time.Duration {
	return seconds(c.Headless.NavTimeoutSec)
}

// ClassifierTimeout bounds one classifier request.
func (c Config) ClassifierTimeout() time.Duration {
	return seconds(c.Classifier.TimeoutSeconds)
}

// PartnerTimeout bounds one partner analysis; zero means unbounded.
func (c Config) PartnerTimeout() time.Duration {
	return seconds(c.Batch.PartnerTimeoutSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
