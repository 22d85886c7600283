// Package config loads the ohlcv-sync configuration file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/planner"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

// Environment variables that override file values.
const (
	EnvPolygonAPIKey = "POLYGON_API_KEY"
	EnvStagingBucket = "OHLCV_STAGING_BUCKET"
	EnvWarehouseDSN  = "OHLCV_WAREHOUSE_DSN"
	EnvAWSRegion     = "AWS_REGION"
)

const (
	DefaultBucket       = "sp500-top-10-sector-leaders-ohlcv-s3bkt"
	DefaultRegion       = "us-east-1"
	DefaultRateInterval = 12500 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

// StagingBackend selects where artifacts are staged.
type StagingBackend string

const (
	StagingS3    StagingBackend = "s3"
	StagingLocal StagingBackend = "local"
)

// Config is the root of the configuration file.
type Config struct {
	Polygon   PolygonConfig    `yaml:"polygon" json:"polygon"`
	Sync      SyncConfig       `yaml:"sync" json:"sync"`
	Staging   StagingConfig    `yaml:"staging" json:"staging"`
	Warehouse warehouse.Config `yaml:"warehouse" json:"warehouse"`
	Log       LogConfig        `yaml:"log" json:"log"`
}

// PolygonConfig configures the upstream API client.
type PolygonConfig struct {
	APIKey string `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Polygon API key; POLYGON_API_KEY overrides it"`
	// Adjusted requests split-adjusted prices.
	Adjusted bool          `yaml:"adjusted" json:"adjusted" jsonschema:"default=true"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" validate:"min=0" jsonschema:"title=Request Timeout,description=Go duration; 0 disables the client timeout"`
	// RateInterval is the minimum spacing between two requests.
	RateInterval   time.Duration `yaml:"rate_interval" json:"rate_interval" validate:"min=0" jsonschema:"title=Rate Interval,description=Minimum spacing between requests as a Go duration"`
	MarketTimezone string        `yaml:"market_timezone" json:"market_timezone" validate:"required,timezone" jsonschema:"default=America/New_York"`
	BaseURL        string        `yaml:"base_url" json:"base_url,omitempty" validate:"omitempty,url" jsonschema:"description=Overrides the API host for gateways and proxies"`
}

// SyncConfig controls planning and partitioning.
type SyncConfig struct {
	Granularity  types.Granularity      `yaml:"granularity" json:"granularity" validate:"required,oneof=month year" jsonschema:"enum=month,enum=year,default=month"`
	Mode         orchestrator.FetchMode `yaml:"mode" json:"mode" validate:"required,oneof=window period" jsonschema:"enum=window,enum=period,default=window"`
	LookbackDays int                    `yaml:"lookback_days" json:"lookback_days" validate:"min=1" jsonschema:"minimum=1,default=730"`
	Encoder      writer.EncoderType     `yaml:"encoder" json:"encoder" validate:"required,oneof=parquet duckdb" jsonschema:"enum=parquet,enum=duckdb,default=parquet"`
	ScratchDir   string                 `yaml:"scratch_dir" json:"scratch_dir" jsonschema:"description=Directory for artifacts being encoded; defaults to the system temp dir"`
	// Tickers replaces the warehouse entity list when set.
	Tickers []string `yaml:"tickers" json:"tickers,omitempty" validate:"dive,required"`
}

// StagingConfig selects and configures the staging store.
type StagingConfig struct {
	Backend   StagingBackend `yaml:"backend" json:"backend" validate:"required,oneof=s3 local" jsonschema:"enum=s3,enum=local,default=s3"`
	Bucket    string         `yaml:"bucket" json:"bucket" validate:"required_if=Backend s3"`
	Region    string         `yaml:"region" json:"region"`
	Profile   string         `yaml:"profile" json:"profile,omitempty"`
	Endpoint  string         `yaml:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url" jsonschema:"description=Custom S3 endpoint for S3-compatible stores"`
	LocalRoot string         `yaml:"local_root" json:"local_root,omitempty" validate:"required_if=Backend local"`
	Prefix    string         `yaml:"prefix" json:"prefix,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"required,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format" json:"format" validate:"required,oneof=json console" jsonschema:"enum=json,enum=console,default=json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Polygon: PolygonConfig{
			Adjusted:       true,
			Timeout:        DefaultTimeout,
			RateInterval:   DefaultRateInterval,
			MarketTimezone: provider.DefaultMarketTimezone,
		},
		Sync: SyncConfig{
			Granularity:  types.GranularityMonth,
			Mode:         orchestrator.FetchModeWindow,
			LookbackDays: planner.DefaultLookbackDays,
			Encoder:      writer.EncoderParquet,
		},
		Staging: StagingConfig{
			Backend: StagingS3,
			Bucket:  DefaultBucket,
			Region:  DefaultRegion,
		},
		Warehouse: warehouse.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and validates the result.
// An empty path loads only defaults and environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config %s", path)
		}
	}

	config.applyEnv(lookup)
	config.normalize()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPolygonAPIKey); ok && v != "" {
		c.Polygon.APIKey = v
	}

	if v, ok := lookup(EnvStagingBucket); ok && v != "" {
		c.Staging.Bucket = v
	}

	if v, ok := lookup(EnvWarehouseDSN); ok && v != "" {
		c.Warehouse.DSN = v
	}

	if v, ok := lookup(EnvAWSRegion); ok && v != "" {
		c.Staging.Region = v
	}
}

// Validate checks field constraints and identifier safety.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	for _, name := range []string{c.Warehouse.Table, c.Warehouse.EntityTable, c.Warehouse.EntityColumn} {
		if err := warehouse.ValidateIdentifier(name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid warehouse configuration", err)
		}
	}

	return nil
}

func (c *Config) normalize() {
	for i, ticker := range c.Sync.Tickers {
		c.Sync.Tickers[i] = strings.ToUpper(strings.TrimSpace(ticker))
	}
}

// MarketLocation returns the configured market time zone.
func (c Config) MarketLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Polygon.MarketTimezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid market timezone %q", c.Polygon.MarketTimezone)
	}

	return loc, nil
}
