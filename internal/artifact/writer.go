// Package artifact turns period buckets into immutable staged files.
package artifact

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

// Writer stages one artifact per (ticker, period).
type Writer interface {
	// Write serializes bucket and stores it under Key(prefix, ticker, period).
	// A failed write never leaves a partial object at that key.
	Write(ctx context.Context, ticker string, period types.PeriodKey, bucket types.PeriodBucket) (types.ArtifactRef, error)
}

// ArtifactWriter encodes to a scratch file, transfers it to the store and removes the scratch copy.
type ArtifactWriter struct {
	store      staging.Store
	encoder    writer.ArtifactEncoder
	scratchDir string
	prefix     string
	logger     *logger.Logger
}

// Config configures an ArtifactWriter.
type Config struct {
	// ScratchDir holds files while they are being encoded. Empty means os.TempDir().
	ScratchDir string
	// Prefix is prepended to every key.
	Prefix string
}

// NewArtifactWriter creates an ArtifactWriter.
func NewArtifactWriter(store staging.Store, encoder writer.ArtifactEncoder, config Config, log *logger.Logger) (*ArtifactWriter, error) {
	if store == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "artifact writer requires a staging store")
	}

	if encoder == nil {
		encoder = writer.NewParquetEncoder()
	}

	if config.ScratchDir == "" {
		config.ScratchDir = os.TempDir()
	}

	if err := os.MkdirAll(config.ScratchDir, 0755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to create scratch dir %s", config.ScratchDir)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &ArtifactWriter{
		store:      store,
		encoder:    encoder,
		scratchDir: config.ScratchDir,
		prefix:     config.Prefix,
		logger:     log,
	}, nil
}

// Write implements Writer.
func (w *ArtifactWriter) Write(ctx context.Context, ticker string, period types.PeriodKey, bucket types.PeriodBucket) (types.ArtifactRef, error) {
	if err := validateBucket(ticker, period, bucket); err != nil {
		return types.ArtifactRef{}, err
	}

	key := Key(w.prefix, ticker, period)

	scratch, err := os.CreateTemp(w.scratchDir, ticker+"_"+period.FileSuffix()+"-*"+Extension)
	if err != nil {
		return types.ArtifactRef{}, errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to create scratch file", err)
	}

	scratchPath := scratch.Name()
	scratch.Close()

	defer func() {
		if err := os.Remove(scratchPath); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("Failed to remove scratch file", zap.String("path", scratchPath), zap.Error(err))
		}
	}()

	if err := w.encoder.Encode(scratchPath, bucket.Bars); err != nil {
		return types.ArtifactRef{}, errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to encode %s", key)
	}

	file, err := os.Open(scratchPath)
	if err != nil {
		return types.ArtifactRef{}, errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to reopen scratch file for %s", key)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return types.ArtifactRef{}, errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to stat scratch file for %s", key)
	}

	if err := w.store.Put(ctx, key, file); err != nil {
		return types.ArtifactRef{}, errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to transfer %s", key)
	}

	w.logger.Debug("Artifact written",
		zap.String("key", key),
		zap.Int("rows", len(bucket.Bars)),
		zap.Int64("bytes", info.Size()),
	)

	return types.ArtifactRef{
		Key:    key,
		Period: period,
		Rows:   len(bucket.Bars),
		Bytes:  info.Size(),
	}, nil
}

func validateBucket(ticker string, period types.PeriodKey, bucket types.PeriodBucket) error {
	if ticker == "" {
		return errors.New(errors.ErrCodeMissingParameter, "artifact requires a ticker")
	}

	if strings.ContainsAny(ticker, `/\`) {
		return errors.Newf(errors.ErrCodeInvalidIdentifier, "ticker %q contains a path separator", ticker)
	}

	if _, err := types.ParsePeriodKey(string(period)); err != nil {
		return err
	}

	if bucket.Key != period {
		return errors.Newf(errors.ErrCodeArtifactInvalid, "bucket %s does not belong to period %s", bucket.Key, period)
	}

	if len(bucket.Bars) == 0 {
		return errors.Newf(errors.ErrCodeArtifactInvalid, "refusing to write empty artifact for %s %s", ticker, period)
	}

	for _, bar := range bucket.Bars {
		if bar.Ticker != ticker {
			return errors.Newf(errors.ErrCodeArtifactInvalid, "bar for %s in %s bucket", bar.Ticker, ticker)
		}

		if !period.Contains(bar.TradeDate) {
			return errors.Newf(errors.ErrCodeArtifactInvalid, "bar dated %s outside period %s",
				bar.TradeDate.Format(types.DateLayout), period)
		}
	}

	return nil
}
