package writer

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// DuckDBEncoder stages bars in an in-memory DuckDB table and exports them with COPY.
type DuckDBEncoder struct{}

// NewDuckDBEncoder creates a DuckDBEncoder.
func NewDuckDBEncoder() *DuckDBEncoder {
	return &DuckDBEncoder{}
}

// Type implements ArtifactEncoder.
func (e *DuckDBEncoder) Type() EncoderType {
	return EncoderDuckDB
}

// Encode implements ArtifactEncoder.
func (e *DuckDBEncoder) Encode(path string, bars []types.PriceBar) (err error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactEncodeFailed, "failed to open DuckDB connection", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE bars (
			TICKER VARCHAR,
			OHLC_DATE TIMESTAMP,
			OPEN_PRICE DOUBLE,
			HIGH_PRICE DOUBLE,
			LOW_PRICE DOUBLE,
			CLOSE_PRICE DOUBLE,
			TRADING_VOLUME DOUBLE,
			OHLC_TIMESTAMP TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactEncodeFailed, "failed to create table", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactEncodeFailed, "failed to begin transaction", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO bars VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactEncodeFailed, "failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err = stmt.Exec(bar.Ticker, bar.TradeDate, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.EventTime)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeArtifactEncodeFailed, err, "failed to insert bar %s %s", bar.Ticker, bar.TradeDate.Format(types.DateLayout))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeArtifactEncodeFailed, "failed to commit transaction", err)
	}

	// COPY does not take bind parameters for its target.
	query := fmt.Sprintf(
		`COPY (SELECT * FROM bars ORDER BY OHLC_DATE, OHLC_TIMESTAMP) TO '%s' (FORMAT PARQUET, COMPRESSION SNAPPY, KV_METADATA {'%s': '%s'})`,
		strings.ReplaceAll(path, "'", "''"), SchemaVersionKey, SchemaVersion,
	)

	if _, err = db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactEncodeFailed, err, "failed to export parquet to %s", path)
	}

	return nil
}
