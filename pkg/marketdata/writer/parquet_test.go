package writer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

func sampleBars() []types.PriceBar {
	var bars []types.PriceBar

	for day := 1; day <= 5; day++ {
		date := types.Date(2024, time.February, day)
		bars = append(bars, types.PriceBar{
			Ticker:    "AAPL",
			TradeDate: date,
			Open:      180 + float64(day),
			High:      182 + float64(day),
			Low:       179 + float64(day),
			Close:     181 + float64(day),
			Volume:    50_000_000 + float64(day),
			EventTime: date.Add(5 * time.Hour),
		})
	}

	return bars
}

type ParquetEncoderTestSuite struct {
	suite.Suite
	tempDir string
}

func TestParquetEncoderSuite(t *testing.T) {
	suite.Run(t, new(ParquetEncoderTestSuite))
}

func (suite *ParquetEncoderTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ParquetEncoderTestSuite) TestRoundTrip() {
	path := filepath.Join(suite.tempDir, "AAPL_2024_02.parquet")
	bars := sampleBars()

	suite.Require().NoError(NewParquetEncoder().Encode(path, bars))

	decoded, err := DecodeFile(path)
	suite.Require().NoError(err)
	suite.Equal(Columns, decoded.Columns)
	suite.Equal(SchemaVersion, decoded.SchemaVersion)
	suite.Equal(bars, decoded.Bars)
}

func (suite *ParquetEncoderTestSuite) TestDeterministicOutput() {
	first := filepath.Join(suite.tempDir, "first.parquet")
	second := filepath.Join(suite.tempDir, "second.parquet")

	suite.Require().NoError(NewParquetEncoder().Encode(first, sampleBars()))
	suite.Require().NoError(NewParquetEncoder().Encode(second, sampleBars()))

	a, err := os.ReadFile(first)
	suite.Require().NoError(err)
	b, err := os.ReadFile(second)
	suite.Require().NoError(err)
	suite.Equal(a, b)
}

func (suite *ParquetEncoderTestSuite) TestOverwritesExistingFile() {
	path := filepath.Join(suite.tempDir, "AAPL_2024_02.parquet")
	suite.Require().NoError(os.WriteFile(path, []byte("stale content that is longer than nothing"), 0644))

	suite.Require().NoError(NewParquetEncoder().Encode(path, sampleBars()[:1]))

	decoded, err := DecodeFile(path)
	suite.Require().NoError(err)
	suite.Len(decoded.Bars, 1)
}

func (suite *ParquetEncoderTestSuite) TestEncodeToMissingDirectory() {
	err := NewParquetEncoder().Encode(filepath.Join(suite.tempDir, "missing", "x.parquet"), sampleBars())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeArtifactEncodeFailed))
}

func (suite *ParquetEncoderTestSuite) TestDecodeGarbage() {
	path := filepath.Join(suite.tempDir, "garbage.parquet")
	suite.Require().NoError(os.WriteFile(path, []byte("not a parquet file"), 0644))

	_, err := DecodeFile(path)
	suite.True(errors.HasCode(err, errors.ErrCodeArtifactInvalid))

	_, err = DecodeFile(filepath.Join(suite.tempDir, "missing.parquet"))
	suite.True(errors.HasCode(err, errors.ErrCodeArtifactNotFound))
}

func (suite *ParquetEncoderTestSuite) TestRecordConversion() {
	bar := sampleBars()[0]
	record := RecordFromBar(bar)

	suite.Equal("AAPL", record.Ticker)
	suite.Equal(bar.TradeDate.UnixMicro(), record.OHLCDate)
	suite.Equal(bar.EventTime.UnixMicro(), record.OHLCTimestamp)
	suite.Equal(bar, record.Bar())
}

func (suite *ParquetEncoderTestSuite) TestNewEncoder() {
	enc, err := NewEncoder(EncoderParquet)
	suite.Require().NoError(err)
	suite.Equal(EncoderParquet, enc.Type())

	enc, err = NewEncoder("")
	suite.Require().NoError(err)
	suite.Equal(EncoderParquet, enc.Type())

	enc, err = NewEncoder(EncoderDuckDB)
	suite.Require().NoError(err)
	suite.Equal(EncoderDuckDB, enc.Type())

	_, err = NewEncoder("csv")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
