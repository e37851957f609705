// Package config loads herdctl configuration from an optional YAML file and
// environment overrides. Every value has a default, and the merged result is
// validated before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"herdcore/internal/blob"
	"herdcore/internal/core"
	"herdcore/internal/logging"
	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

// Environment variables applied on top of the file.
const (
	EnvConfigPath          = "HERDCORE_CONFIG"
	EnvLogLevel            = "HERDCORE_LOG_LEVEL"
	EnvLogFormat           = "HERDCORE_LOG_FORMAT"
	EnvTrendMargin         = "HERDCORE_TREND_MARGIN"
	EnvTargetLactationDays = "HERDCORE_TARGET_LACTATION_DAYS"
)

// Config is the complete herdctl configuration.
type Config struct {
	Logging       LoggingConfig             `yaml:"logging"`
	Storage       StorageConfig             `yaml:"storage"`
	Blob          BlobConfig                `yaml:"blob"`
	Cache         CacheConfig               `yaml:"cache"`
	Observability ObservabilityConfig       `yaml:"observability"`
	Thresholds    analytics.Thresholds      `yaml:"thresholds"`
	GrowthTargets domain.GrowthTargetConfig `yaml:"growth_targets"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects where exported reports are written.
type BlobConfig struct {
	Driver string       `yaml:"driver"`
	FSRoot string       `yaml:"fs_root"`
	S3     BlobS3Config `yaml:"s3"`
}

// BlobS3Config holds the non-secret S3 settings; credentials come from the
// AWS default chain.
type BlobS3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// CacheConfig sizes the result cache. Size 0 selects the default.
type CacheConfig struct {
	Disabled bool `yaml:"disabled"`
	Size     int  `yaml:"size"`
}

// ObservabilityConfig names optional metric and trace sinks.
type ObservabilityConfig struct {
	// MetricsTextfile receives Prometheus text exposition after each command.
	MetricsTextfile string `yaml:"metrics_textfile"`
	// TraceFile receives one JSON line per finished span.
	TraceFile string `yaml:"trace_file"`
	// ExpvarFile receives the expvar operation snapshot as JSON after each command.
	ExpvarFile string `yaml:"expvar_file"`
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		Logging:       LoggingConfig{Level: "info", Format: logging.FormatText},
		Storage:       StorageConfig{Driver: string(core.StorageSQLite)},
		Blob:          BlobConfig{Driver: string(blob.DriverFilesystem)},
		Cache:         CacheConfig{Size: core.DefaultCacheSize},
		Thresholds:    analytics.DefaultThresholds(),
		GrowthTargets: domain.DefaultGrowthTargets(),
	}
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys. Lists replace the
// defaults; maps are merged key by key.
func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvLogLevel, &c.Logging.Level)
	str(EnvLogFormat, &c.Logging.Format)
	str(core.EnvStorageDriver, &c.Storage.Driver)
	str(core.EnvSQLitePath, &c.Storage.SQLitePath)
	str(core.EnvPostgresDSN, &c.Storage.PostgresDSN)
	str(blob.EnvDriver, &c.Blob.Driver)
	str(blob.EnvFSRoot, &c.Blob.FSRoot)
	str(blob.EnvS3Bucket, &c.Blob.S3.Bucket)
	str(blob.EnvS3Region, &c.Blob.S3.Region)
	str(blob.EnvS3Endpoint, &c.Blob.S3.Endpoint)
	str(blob.EnvS3Prefix, &c.Blob.S3.Prefix)
	if v, ok := lookup(blob.EnvS3PathStyle); ok && v != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}

	verr := &ValidationError{}
	if v, ok := lookup(EnvTrendMargin); ok && v != "" {
		margin, err := strconv.ParseFloat(v, 64)
		if err != nil {
			verr.add(EnvTrendMargin, "not a number: %q", v)
		} else {
			c.Thresholds.TrendMargin = margin
		}
	}
	if v, ok := lookup(EnvTargetLactationDays); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			verr.add(EnvTargetLactationDays, "not an integer: %q", v)
		} else {
			c.Thresholds.TargetLactationDays = days
		}
	}
	return verr.orNil()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	verr := &ValidationError{}
	if !logging.ValidLevel(c.Logging.Level) {
		verr.add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		verr.add("logging.format", "unknown format %q", c.Logging.Format)
	}
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		verr.add("storage.driver", "unknown driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			verr.add("blob.s3.bucket", "required when blob.driver is s3")
		}
	default:
		verr.add("blob.driver", "unknown driver %q", c.Blob.Driver)
	}
	if c.Cache.Size < 0 {
		verr.add("cache.size", "must not be negative")
	}
	c.validateThresholds(verr)
	if err := c.GrowthTargets.Validate(); err != nil {
		for _, e := range unjoin(err) {
			verr.add("growth_targets", "%s", e.Error())
		}
	}
	return verr.orNil()
}

func (c Config) validateThresholds(verr *ValidationError) {
	th := c.Thresholds
	for _, f := range []struct {
		field string
		value float64
	}{
		{"thresholds.trend_margin", th.TrendMargin},
		{"thresholds.classification_band", th.ClassificationBand},
		{"thresholds.degenerate_std_dev", th.DegenerateStdDev},
		{"thresholds.close_tolerance", th.CloseTolerance},
	} {
		if f.value < 0 {
			verr.add(f.field, "must not be negative")
		}
	}
	if th.CloseTolerance >= 1 {
		verr.add("thresholds.close_tolerance", "must be below 1")
	}
	if th.TargetLactationDays <= 0 {
		verr.add("thresholds.target_lactation_days", "must be positive")
	}
	if th.DryOffWindowStart < 0 || th.DryOffWindowEnd < 0 {
		verr.add("thresholds.dry_off_window", "offsets must not be negative")
	}
	if th.DryOffWindowStart < th.DryOffWindowEnd {
		verr.add("thresholds.dry_off_window", "start offset %d is smaller than end offset %d", th.DryOffWindowStart, th.DryOffWindowEnd)
	}
	if th.DryOffWindowStart > th.TargetLactationDays {
		verr.add("thresholds.dry_off_window", "start offset %d exceeds target lactation %d", th.DryOffWindowStart, th.TargetLactationDays)
	}
	if th.DeclineRun < 0 {
		verr.add("thresholds.decline_run", "must not be negative")
	}
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// StorageOptions converts the storage section for core.OpenRecordStore.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			Prefix:    c.Blob.S3.Prefix,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// PathFromEnv returns the config file named by HERDCORE_CONFIG, if any.
func PathFromEnv() string { return os.Getenv(EnvConfigPath) }
