// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent identifies requests as a desktop browser; the target site
// may reject clients that do not.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
	Walker    WalkerConfig    `mapstructure:"walker"`
	Enricher  EnricherConfig  `mapstructure:"enricher"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Output    OutputConfig    `mapstructure:"output"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CatalogueConfig names the site being crawled.
type CatalogueConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	PathSegment string `mapstructure:"path_segment"`
	MaxPages    int    `mapstructure:"max_pages"`
}

// WalkerConfig bounds the politeness pause between listing pages.
type WalkerConfig struct {
	DelayMin time.Duration `mapstructure:"delay_min"`
	DelayMax time.Duration `mapstructure:"delay_max"`
}

// EnricherConfig governs the detail-page worker pool.
type EnricherConfig struct {
	Workers           int     `mapstructure:"workers"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// OutputConfig sets where the export is written.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	File        string `mapstructure:"file"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls optional row persistence in Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith builds a Config using v, which may already carry bound CLI flags.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("SCRAPER")
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
	v.SetDefault("catalogue.base_url", "http://books.toscrape.com/")
	v.SetDefault("catalogue.path_segment", "catalogue/")
	v.SetDefault("catalogue.max_pages", 1)
	v.SetDefault("walker.delay_min", "500ms")
	v.SetDefault("walker.delay_max", "1500ms")
	v.SetDefault("enricher.workers", 5)
	v.SetDefault("enricher.requests_per_second", 0)
	v.SetDefault("enricher.burst", 1)
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.file", "books_enhanced.csv")
	v.SetDefault("output.content_type", "text/csv; charset=utf-8")
	v.SetDefault("output.gcs_bucket", "")
	// Optional sinks default to empty so their env vars are still picked up.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "catalogue_rows")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Catalogue.BaseURL) == "" {
		return fmt.Errorf("catalogue.base_url must be set")
	}
	if c.Catalogue.MaxPages < 0 {
		return fmt.Errorf("catalogue.max_pages must be >= 0")
	}
	if c.Walker.DelayMin < 0 || c.Walker.DelayMax < c.Walker.DelayMin {
		return fmt.Errorf("walker.delay_max must be >= walker.delay_min >= 0")
	}
	if c.Enricher.Workers <= 0 {
		return fmt.Errorf("enricher.workers must be > 0")
	}
	if c.Enricher.RequestsPerSecond < 0 {
		return fmt.Errorf("enricher.requests_per_second must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if strings.TrimSpace(c.Output.File) == "" {
		return fmt.Errorf("output.file must be set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// Destination splits the configured output into a directory and an object
// name. A bare file name lands in output.dir; anything containing a path
// separator is used as given. With a GCS bucket the file name is the object
// path and no directory is involved.
func (c Config) Destination() (dir string, object string) {
	file := c.Output.File
	if c.Output.GCSBucket != "" {
		return "", strings.TrimPrefix(filepath.ToSlash(file), "/")
	}
	if strings.ContainsRune(file, os.PathSeparator) || strings.Contains(file, "/") {
		return filepath.Dir(file), filepath.Base(file)
	}
	return c.Output.Dir, file
}
