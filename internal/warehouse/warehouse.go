// Package warehouse reads high-water marks and the entity list from the downstream warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

const (
	DefaultTable        = "sp500_top10_sector_ohlcv_itbl"
	DefaultEntityTable  = "SP_SECTOR_COMPANIES"
	DefaultEntityColumn = "TICKER_SYMBOL"
)

// Driver names a database/sql driver the warehouse can run on.
type Driver string

const (
	DriverDuckDB Driver = "duckdb"
	DriverSQLite Driver = "sqlite"
)

// HighWaterMarkStore answers "what is the latest trade date already loaded for ticker".
type HighWaterMarkStore interface {
	// MaxDate returns None when the warehouse holds no rows for ticker.
	MaxDate(ctx context.Context, ticker string) (optional.Option[time.Time], error)
}

// EntityLister enumerates the tickers a run should consider.
type EntityLister interface {
	ListEntities(ctx context.Context) ([]string, error)
}

// Config describes where the warehouse lives and which tables to read.
type Config struct {
	Driver       Driver `yaml:"driver" json:"driver" validate:"required,oneof=duckdb sqlite" jsonschema:"enum=duckdb,enum=sqlite,default=duckdb"`
	DSN          string `yaml:"dsn" json:"dsn" validate:"required" jsonschema:"description=Database path or DSN passed to the driver"`
	Table        string `yaml:"table" json:"table" validate:"required" jsonschema:"default=sp500_top10_sector_ohlcv_itbl"`
	EntityTable  string `yaml:"entity_table" json:"entity_table" validate:"required" jsonschema:"default=SP_SECTOR_COMPANIES"`
	EntityColumn string `yaml:"entity_column" json:"entity_column" validate:"required" jsonschema:"default=TICKER_SYMBOL"`
}

// DefaultConfig returns a local DuckDB warehouse config.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverDuckDB,
		DSN:          "warehouse.duckdb",
		Table:        DefaultTable,
		EntityTable:  DefaultEntityTable,
		EntityColumn: DefaultEntityColumn,
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier rejects anything that is not a plain, optionally schema-qualified, SQL identifier.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.Newf(errors.ErrCodeInvalidIdentifier, "invalid SQL identifier: %q", name)
	}

	return nil
}

// SQLWarehouse implements HighWaterMarkStore and EntityLister over database/sql.
type SQLWarehouse struct {
	db           *sql.DB
	driver       Driver
	table        string
	entityTable  string
	entityColumn string
	sq           squirrel.StatementBuilderType
	logger       *logger.Logger
}

// Open connects to the warehouse described by config.
func Open(config Config, log *logger.Logger) (*SQLWarehouse, error) {
	switch config.Driver {
	case DriverDuckDB, DriverSQLite:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported warehouse driver: %q", string(config.Driver))
	}

	db, err := sql.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to open %s warehouse", config.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to connect to %s warehouse", config.Driver)
	}

	w, err := NewSQLWarehouse(db, config, log)
	if err != nil {
		db.Close()

		return nil, err
	}

	return w, nil
}

// NewSQLWarehouse wraps an existing connection.
func NewSQLWarehouse(db *sql.DB, config Config, log *logger.Logger) (*SQLWarehouse, error) {
	for _, name := range []string{config.Table, config.EntityTable, config.EntityColumn} {
		if err := ValidateIdentifier(name); err != nil {
			return nil, err
		}
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &SQLWarehouse{
		db:           db,
		driver:       config.Driver,
		table:        config.Table,
		entityTable:  config.EntityTable,
		entityColumn: config.EntityColumn,
		sq:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger:       log,
	}, nil
}

// DB exposes the underlying connection.
func (w *SQLWarehouse) DB() *sql.DB {
	return w.db
}

// Table returns the bar table name.
func (w *SQLWarehouse) Table() string {
	return w.table
}

// Close closes the connection.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

// EnsureSchema creates the bar and entity tables when they are missing.
func (w *SQLWarehouse) EnsureSchema(ctx context.Context) error {
	// Squirrel has no DDL support.
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			TICKER VARCHAR NOT NULL,
			OHLC_DATE TIMESTAMP NOT NULL,
			OPEN_PRICE DOUBLE,
			HIGH_PRICE DOUBLE,
			LOW_PRICE DOUBLE,
			CLOSE_PRICE DOUBLE,
			TRADING_VOLUME DOUBLE,
			OHLC_TIMESTAMP TIMESTAMP,
			PRIMARY KEY (TICKER, OHLC_DATE)
		)`, w.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s VARCHAR PRIMARY KEY)`, w.entityTable, w.entityColumn),
	}

	for _, statement := range statements {
		if _, err := w.db.ExecContext(ctx, statement); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create warehouse schema", err)
		}
	}

	return nil
}

// RegisterEntities adds tickers to the entity table, ignoring ones already present.
func (w *SQLWarehouse) RegisterEntities(ctx context.Context, tickers ...string) error {
	for _, ticker := range tickers {
		query, args, err := w.sq.
			Insert(w.entityTable).
			Options("OR IGNORE").
			Columns(w.entityColumn).
			Values(ticker).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build entity insert", err)
		}

		if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to register %s", ticker)
		}
	}

	return nil
}

// MaxDate implements HighWaterMarkStore.
func (w *SQLWarehouse) MaxDate(ctx context.Context, ticker string) (optional.Option[time.Time], error) {
	query, args, err := w.sq.
		Select("MAX(OHLC_DATE)").
		From(w.table).
		Where(squirrel.Eq{"TICKER": ticker}).
		ToSql()
	if err != nil {
		return optional.None[time.Time](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to build high-water mark query", err)
	}

	var value any
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return optional.None[time.Time](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query high-water mark for %s", ticker)
	}

	mark, err := parseDateValue(value)
	if err != nil {
		return optional.None[time.Time](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "unexpected high-water mark for %s", ticker)
	}

	if mark.IsSome() {
		w.logger.Debug("High-water mark", zap.String("ticker", ticker), zap.Time("max_date", mark.Unwrap()))
	}

	return mark, nil
}

// ListEntities implements EntityLister. Tickers are trimmed, de-duplicated and sorted.
func (w *SQLWarehouse) ListEntities(ctx context.Context) ([]string, error) {
	query, args, err := w.sq.
		Select(w.entityColumn).
		Distinct().
		From(w.entityTable).
		Where(squirrel.NotEq{w.entityColumn: nil}).
		OrderBy(w.entityColumn).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEntityListFailed, "failed to build entity query", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeEntityListFailed, err, "failed to list entities from %s", w.entityTable)
	}
	defer rows.Close()

	seen := make(map[string]bool)

	var tickers []string

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, errors.Wrap(errors.ErrCodeEntityListFailed, "failed to scan entity", err)
		}

		ticker = strings.TrimSpace(ticker)
		if ticker == "" || seen[ticker] {
			continue
		}

		seen[ticker] = true
		tickers = append(tickers, ticker)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEntityListFailed, "failed to iterate entities", err)
	}

	slices.Sort(tickers)

	return tickers, nil
}

// Text layouts drivers use for timestamps that come back without a declared column type.
var dateLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	types.DateLayout,
}

func parseDateValue(value any) (optional.Option[time.Time], error) {
	switch v := value.(type) {
	case nil:
		return optional.None[time.Time](), nil
	case time.Time:
		return optional.Some(types.TruncateDate(v.UTC())), nil
	case []byte:
		return parseDateValue(string(v))
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return optional.Some(types.TruncateDate(t.UTC())), nil
			}
		}

		return optional.None[time.Time](), fmt.Errorf("unparseable date %q", v)
	default:
		return optional.None[time.Time](), fmt.Errorf("unsupported date type %T", value)
	}
}
