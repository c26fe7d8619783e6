// Package app assembles growbook from configuration: it opens the configured
// document store and photo archive, builds the logger and metrics, and hands
// out repositories bound to a principal.
package app

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"growbook/internal/docstore"
	"growbook/internal/infra/docstore/postgres"
	"growbook/internal/infra/docstore/redis"
	"growbook/internal/infra/docstore/sqlite"
	photofs "growbook/internal/infra/photostore/fs"
	photos3 "growbook/internal/infra/photostore/s3"
	"growbook/internal/photos/archive"
)

// EnvPrefix prefixes every environment override, e.g. GROWBOOK_STORAGE_DRIVER.
const EnvPrefix = "GROWBOOK"

// Metrics exporters.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Config is the complete runtime configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" json:"storage" yaml:"storage"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite" json:"sqlite" yaml:"sqlite"`
	Postgres  PostgresConfig  `mapstructure:"postgres" json:"postgres" yaml:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis" json:"redis" yaml:"redis"`
	Firestore FirestoreConfig `mapstructure:"firestore" json:"firestore" yaml:"firestore"`
	Photo     PhotoConfig     `mapstructure:"photo" json:"photo" yaml:"photo"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer" json:"analyzer" yaml:"analyzer"`
	Log       LogConfig       `mapstructure:"log" json:"log" yaml:"log"`
	Trace     TraceConfig     `mapstructure:"trace" json:"trace" yaml:"trace"`
	Metrics   string          `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
	Principal string          `mapstructure:"principal" json:"principal" yaml:"principal"`

	// Source is the config file that was read, empty when none was found.
	Source string `mapstructure:"-" json:"source,omitempty" yaml:"source,omitempty"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	URL    string `mapstructure:"url" json:"url" yaml:"url"`
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// FirestoreConfig configures the firestore backend.
type FirestoreConfig struct {
	Project string `mapstructure:"project" json:"project" yaml:"project"`
}

// PhotoConfig selects and configures the photo archive.
type PhotoConfig struct {
	Driver      string `mapstructure:"driver" json:"driver" yaml:"driver"`
	FSRoot      string `mapstructure:"fs_root" json:"fsRoot" yaml:"fsRoot"`
	S3Bucket    string `mapstructure:"s3_bucket" json:"s3Bucket" yaml:"s3Bucket"`
	S3Region    string `mapstructure:"s3_region" json:"s3Region" yaml:"s3Region"`
	S3Endpoint  string `mapstructure:"s3_endpoint" json:"s3Endpoint" yaml:"s3Endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style" json:"s3PathStyle" yaml:"s3PathStyle"`
	MaxBytes    int    `mapstructure:"max_bytes" json:"maxBytes" yaml:"maxBytes"`
}

// AnalyzerConfig points at an optional photo analysis endpoint.
type AnalyzerConfig struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
}

// TraceConfig enables the JSON-lines repository tracer.
type TraceConfig struct {
	// File receives one JSON object per repository operation; empty disables
	// tracing.
	File string `mapstructure:"file" json:"file" yaml:"file"`
}

var defaults = map[string]any{
	"storage.driver":      string(docstore.DriverSQLite),
	"sqlite.path":         "./" + sqlite.DefaultPath,
	"postgres.dsn":        postgres.DefaultDSN,
	"redis.url":           "redis://localhost:6379/0",
	"redis.prefix":        redis.DefaultPrefix,
	"firestore.project":   "",
	"photo.driver":        string(archive.DriverFilesystem),
	"photo.fs_root":       photofs.DefaultRoot,
	"photo.s3_bucket":     "",
	"photo.s3_region":     photos3.DefaultRegion,
	"photo.s3_endpoint":   "",
	"photo.s3_path_style": false,
	"photo.max_bytes":     10 << 20,
	"analyzer.url":        "",
	"log.level":           "info",
	"trace.file":          "",
	"metrics":             MetricsNone,
	"principal":           "",
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("decode defaults: %v", err))
	}
	return cfg
}

// EnvVars lists the supported environment overrides, sorted by key.
func EnvVars() []string {
	out := make([]string, 0, len(defaults))
	for key := range defaults {
		out = append(out, envName(key))
	}
	sort.Strings(out)
	return out
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	return cfg, nil
}

// LoadConfig reads defaults, then the config file, then GROWBOOK_*
// environment variables, and validates the result. With an empty path a
// growbook.{yaml,toml,json} in the working directory is used when present.
func LoadConfig(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("growbook")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing required settings.
func (c Config) Validate() error {
	var errs []error
	switch docstore.Driver(c.Storage.Driver) {
	case docstore.DriverMemory:
	case docstore.DriverSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite driver"))
		}
	case docstore.DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres driver"))
		}
	case docstore.DriverRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			errs = append(errs, errors.New("redis.url is required for the redis driver"))
		}
	case docstore.DriverFirestore:
		if strings.TrimSpace(c.Firestore.Project) == "" {
			errs = append(errs, errors.New("firestore.project is required for the firestore driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch archive.Driver(c.Photo.Driver) {
	case archive.DriverMemory, archive.DriverFilesystem:
	case archive.DriverS3:
		if strings.TrimSpace(c.Photo.S3Bucket) == "" {
			errs = append(errs, errors.New("photo.s3_bucket is required for the s3 photo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown photo driver %q", c.Photo.Driver))
	}
	if c.Photo.MaxBytes < 0 {
		errs = append(errs, errors.New("photo.max_bytes must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Metrics {
	case MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics exporter %q", c.Metrics))
	}
	if c.Analyzer.URL != "" {
		if u, err := url.Parse(c.Analyzer.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("analyzer.url %q is not an absolute URL", c.Analyzer.URL))
		}
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print: credentials in URLs are masked.
func (c Config) Redacted() Config {
	c.Postgres.DSN = redactURL(c.Postgres.DSN)
	c.Redis.URL = redactURL(c.Redis.URL)
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
