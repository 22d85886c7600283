package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) write(content string) string {
	path := filepath.Join(suite.dir, "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func noEnv(string) (string, bool) {
	return "", false
}

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]

		return v, ok
	}
}

func (suite *ConfigTestSuite) TestDefaults() {
	config, err := LoadWithEnv("", noEnv)
	suite.Require().NoError(err)

	suite.True(config.Polygon.Adjusted)
	suite.Equal(30*time.Second, config.Polygon.Timeout)
	suite.Equal(12500*time.Millisecond, config.Polygon.RateInterval)
	suite.Equal("America/New_York", config.Polygon.MarketTimezone)
	suite.Equal(types.GranularityMonth, config.Sync.Granularity)
	suite.Equal(orchestrator.FetchModeWindow, config.Sync.Mode)
	suite.Equal(730, config.Sync.LookbackDays)
	suite.Equal(writer.EncoderParquet, config.Sync.Encoder)
	suite.Equal(StagingS3, config.Staging.Backend)
	suite.Equal(DefaultBucket, config.Staging.Bucket)
	suite.Equal(warehouse.DriverDuckDB, config.Warehouse.Driver)
	suite.Equal("sp500_top10_sector_ohlcv_itbl", config.Warehouse.Table)
	suite.Equal("SP_SECTOR_COMPANIES", config.Warehouse.EntityTable)
	suite.Equal("TICKER_SYMBOL", config.Warehouse.EntityColumn)
}

func (suite *ConfigTestSuite) TestFileOverridesDefaults() {
	path := suite.write(`
polygon:
  api_key: from-file
  timeout: 10s
  rate_interval: 0s
sync:
  granularity: year
  mode: period
  lookback_days: 90
  encoder: duckdb
  tickers: [" aapl", "msft "]
staging:
  backend: local
  local_root: /tmp/staging
  prefix: ohlcv/
warehouse:
  driver: sqlite
  dsn: warehouse.sqlite
log:
  level: debug
  format: console
`)

	config, err := LoadWithEnv(path, noEnv)
	suite.Require().NoError(err)

	suite.Equal("from-file", config.Polygon.APIKey)
	suite.Equal(10*time.Second, config.Polygon.Timeout)
	suite.Equal(time.Duration(0), config.Polygon.RateInterval)
	suite.True(config.Polygon.Adjusted)
	suite.Equal(types.GranularityYear, config.Sync.Granularity)
	suite.Equal(orchestrator.FetchModePeriod, config.Sync.Mode)
	suite.Equal(90, config.Sync.LookbackDays)
	suite.Equal(writer.EncoderDuckDB, config.Sync.Encoder)
	suite.Equal([]string{"AAPL", "MSFT"}, config.Sync.Tickers)
	suite.Equal(StagingLocal, config.Staging.Backend)
	suite.Equal("ohlcv/", config.Staging.Prefix)
	suite.Equal(warehouse.DriverSQLite, config.Warehouse.Driver)
	suite.Equal("sp500_top10_sector_ohlcv_itbl", config.Warehouse.Table)
	suite.Equal("debug", config.Log.Level)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	path := suite.write("polygon:\n  api_key: from-file\n")

	config, err := LoadWithEnv(path, envOf(map[string]string{
		EnvPolygonAPIKey: "from-env",
		EnvStagingBucket: "other-bucket",
		EnvWarehouseDSN:  "/data/wh.duckdb",
		EnvAWSRegion:     "eu-west-1",
	}))
	suite.Require().NoError(err)

	suite.Equal("from-env", config.Polygon.APIKey)
	suite.Equal("other-bucket", config.Staging.Bucket)
	suite.Equal("/data/wh.duckdb", config.Warehouse.DSN)
	suite.Equal("eu-west-1", config.Staging.Region)
}

func (suite *ConfigTestSuite) TestValidationErrors() {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "granularity", content: "sync:\n  granularity: week\n"},
		{name: "mode", content: "sync:\n  mode: stream\n"},
		{name: "lookback", content: "sync:\n  lookback_days: 0\n"},
		{name: "encoder", content: "sync:\n  encoder: csv\n"},
		{name: "timezone", content: "polygon:\n  market_timezone: Mars/Olympus\n"},
		{name: "negative timeout", content: "polygon:\n  timeout: -1s\n"},
		{name: "local without root", content: "staging:\n  backend: local\n"},
		{name: "s3 without bucket", content: "staging:\n  bucket: \"\"\n"},
		{name: "bad endpoint", content: "staging:\n  endpoint: not a url\n"},
		{name: "driver", content: "warehouse:\n  driver: postgres\n"},
		{name: "table identifier", content: "warehouse:\n  table: \"bars; DROP TABLE x\"\n"},
		{name: "log level", content: "log:\n  level: trace\n"},
		{name: "malformed yaml", content: "sync: [\n"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := LoadWithEnv(suite.write(tc.content), noEnv)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestMissingFile() {
	_, err := LoadWithEnv(filepath.Join(suite.dir, "missing.yaml"), noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestMarketLocation() {
	config := Default()

	loc, err := config.MarketLocation()
	suite.Require().NoError(err)
	suite.Equal("America/New_York", loc.String())
}

func (suite *ConfigTestSuite) TestSchema() {
	data, err := json.Marshal(Schema())
	suite.Require().NoError(err)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal(data, &decoded))
	suite.Equal("ohlcv-sync-config", decoded["title"])

	properties, ok := decoded["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "polygon")
	suite.Contains(properties, "sync")
	suite.Contains(properties, "staging")
	suite.Contains(properties, "warehouse")

	polygon := properties["polygon"].(map[string]any)["properties"].(map[string]any)
	suite.Equal("string", polygon["timeout"].(map[string]any)["type"])
}
