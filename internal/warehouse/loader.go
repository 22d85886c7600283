package warehouse

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/artifact"
	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

// OnLoadProgress is called after each artifact is loaded.
type OnLoadProgress func(done int, total int, key string)

// LoadReport summarizes one bulk load.
type LoadReport struct {
	Objects int      `yaml:"objects"`
	Rows    int      `yaml:"rows"`
	Purged  int      `yaml:"purged"`
	Skipped []string `yaml:"skipped,omitempty"`
}

// Loader bulk-loads staged artifacts into the warehouse bar table.
//
// Rows are upserted on (TICKER, OHLC_DATE) so loading the same artifact twice
// leaves the table unchanged.
type Loader struct {
	warehouse *SQLWarehouse
	store     staging.Store
	prefix    string
	logger    *logger.Logger
}

// NewLoader creates a Loader reading artifacts under prefix.
func NewLoader(warehouse *SQLWarehouse, store staging.Store, prefix string) *Loader {
	return &Loader{
		warehouse: warehouse,
		store:     store,
		prefix:    prefix,
		logger:    warehouse.logger,
	}
}

// Load upserts every staged artifact. When purge is set, loaded objects are deleted afterwards.
func (l *Loader) Load(ctx context.Context, purge bool, onProgress OnLoadProgress) (LoadReport, error) {
	var report LoadReport

	if err := l.warehouse.EnsureSchema(ctx); err != nil {
		return report, err
	}

	objects, err := l.store.List(ctx, l.prefix)
	if err != nil {
		return report, errors.Wrap(errors.ErrCodeLoadFailed, "failed to list staged artifacts", err)
	}

	var loaded []string

	for i, object := range objects {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(errors.ErrCodeRunCancelled, "load cancelled", err)
		}

		if _, _, err := artifact.ParseKey(l.prefix, object.Key); err != nil {
			l.logger.Warn("Skipping object that is not an artifact", zap.String("key", object.Key))
			report.Skipped = append(report.Skipped, object.Key)

			continue
		}

		bars, err := l.read(ctx, object.Key)
		if err != nil {
			return report, err
		}

		if err := l.upsert(ctx, bars); err != nil {
			return report, errors.Wrapf(errors.ErrCodeLoadFailed, err, "failed to load %s", object.Key)
		}

		report.Objects++
		report.Rows += len(bars)
		loaded = append(loaded, object.Key)

		l.logger.Debug("Artifact loaded", zap.String("key", object.Key), zap.Int("rows", len(bars)))

		if onProgress != nil {
			onProgress(i+1, len(objects), object.Key)
		}
	}

	if purge && len(loaded) > 0 {
		if err := l.store.Delete(ctx, loaded...); err != nil {
			return report, errors.Wrap(errors.ErrCodeStagingFailed, "failed to purge loaded artifacts", err)
		}

		report.Purged = len(loaded)
	}

	l.logger.Info("Load finished",
		zap.Int("objects", report.Objects),
		zap.Int("rows", report.Rows),
		zap.Int("purged", report.Purged),
	)

	return report, nil
}

func (l *Loader) read(ctx context.Context, key string) ([]types.PriceBar, error) {
	body, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to read %s", key)
	}

	decoded, err := writer.Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	return decoded.Bars, nil
}

func (l *Loader) upsert(ctx context.Context, bars []types.PriceBar) (err error) {
	tx, err := l.warehouse.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, bar := range bars {
		query, args, buildErr := l.warehouse.sq.
			Insert(l.warehouse.table).
			Options("OR REPLACE").
			Columns(writer.Columns...).
			Values(bar.Ticker, bar.TradeDate, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.EventTime).
			ToSql()
		if buildErr != nil {
			return buildErr
		}

		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}
