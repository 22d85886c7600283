// Package writer encodes daily bars into Parquet artifacts with a fixed schema.
//
// Column order and logical types are part of the contract with the warehouse:
//
//	TICKER          string
//	OHLC_DATE       timestamp(us)  trade date at midnight UTC
//	OPEN_PRICE      double
//	HIGH_PRICE      double
//	LOW_PRICE       double
//	CLOSE_PRICE     double
//	TRADING_VOLUME  double
//	OHLC_TIMESTAMP  timestamp(us)  event time of the bar
package writer

import (
	"time"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
)

// SchemaVersion is stamped into every artifact's key/value metadata.
const SchemaVersion = "1.0.0"

// SchemaVersionKey is the metadata key SchemaVersion is stored under.
const SchemaVersionKey = "ohlcv.schema_version"

// Columns lists the artifact columns in file order.
var Columns = []string{
	"TICKER",
	"OHLC_DATE",
	"OPEN_PRICE",
	"HIGH_PRICE",
	"LOW_PRICE",
	"CLOSE_PRICE",
	"TRADING_VOLUME",
	"OHLC_TIMESTAMP",
}

// EncoderType selects an ArtifactEncoder implementation.
type EncoderType string

const (
	EncoderParquet EncoderType = "parquet"
	EncoderDuckDB  EncoderType = "duckdb"
)

// ArtifactEncoder serializes one bucket of bars into a new file.
type ArtifactEncoder interface {
	// Encode writes bars to path, replacing anything already there.
	Encode(path string, bars []types.PriceBar) error
	// Type identifies the encoder in logs and configuration.
	Type() EncoderType
}

// NewEncoder returns the encoder for t.
func NewEncoder(t EncoderType) (ArtifactEncoder, error) {
	switch t {
	case EncoderParquet, "":
		return NewParquetEncoder(), nil
	case EncoderDuckDB:
		return NewDuckDBEncoder(), nil
	default:
		return nil, errUnsupportedEncoder(t)
	}
}

// Record is the on-disk row layout.
type Record struct {
	Ticker        string  `parquet:"TICKER,snappy"`
	OHLCDate      int64   `parquet:"OHLC_DATE,timestamp(microsecond),snappy"`
	OpenPrice     float64 `parquet:"OPEN_PRICE,snappy"`
	HighPrice     float64 `parquet:"HIGH_PRICE,snappy"`
	LowPrice      float64 `parquet:"LOW_PRICE,snappy"`
	ClosePrice    float64 `parquet:"CLOSE_PRICE,snappy"`
	TradingVolume float64 `parquet:"TRADING_VOLUME,snappy"`
	OHLCTimestamp int64   `parquet:"OHLC_TIMESTAMP,timestamp(microsecond),snappy"`
}

// RecordFromBar converts a bar to its on-disk row.
func RecordFromBar(bar types.PriceBar) Record {
	return Record{
		Ticker:        bar.Ticker,
		OHLCDate:      bar.TradeDate.UnixMicro(),
		OpenPrice:     bar.Open,
		HighPrice:     bar.High,
		LowPrice:      bar.Low,
		ClosePrice:    bar.Close,
		TradingVolume: bar.Volume,
		OHLCTimestamp: bar.EventTime.UnixMicro(),
	}
}

// Bar converts an on-disk row back to a bar.
func (r Record) Bar() types.PriceBar {
	return types.PriceBar{
		Ticker:    r.Ticker,
		TradeDate: types.TruncateDate(time.UnixMicro(r.OHLCDate).UTC()),
		Open:      r.OpenPrice,
		High:      r.HighPrice,
		Low:       r.LowPrice,
		Close:     r.ClosePrice,
		Volume:    r.TradingVolume,
		EventTime: time.UnixMicro(r.OHLCTimestamp).UTC(),
	}
}
