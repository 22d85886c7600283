package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/artifact"
	"github.com/rxtech-lab/ohlcv-sync/internal/calendar"
	"github.com/rxtech-lab/ohlcv-sync/internal/config"
	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/planner"
	"github.com/rxtech-lab/ohlcv-sync/internal/ratelimit"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

// app carries the loaded configuration and logger shared by every command.
type app struct {
	config config.Config
	logger *logger.Logger
}

// loadApp reads --config, applies the command-line overrides and builds the logger.
func loadApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	if granularity := cmd.String("granularity"); granularity != "" {
		cfg.Sync.Granularity = types.Granularity(granularity)
	}

	if mode := cmd.String("mode"); mode != "" {
		cfg.Sync.Mode = orchestrator.FetchMode(mode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerWithOptions(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}

	return &app{config: cfg, logger: log}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// openStore creates the configured staging store.
func (a *app) openStore(ctx context.Context) (staging.Store, error) {
	switch a.config.Staging.Backend {
	case config.StagingLocal:
		store, err := staging.NewLocalStore(a.config.Staging.LocalRoot)
		if err != nil {
			return nil, err
		}

		return store, nil
	case config.StagingS3:
		store, err := staging.NewS3Store(ctx, staging.S3Config{
			Bucket:   a.config.Staging.Bucket,
			Region:   a.config.Staging.Region,
			Profile:  a.config.Staging.Profile,
			Endpoint: a.config.Staging.Endpoint,
		})
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported staging backend: %s", a.config.Staging.Backend)
	}
}

func (a *app) openWarehouse() (*warehouse.SQLWarehouse, error) {
	return warehouse.Open(a.config.Warehouse, a.logger)
}

// tickers returns the entity list: --tickers, then the config file, then the warehouse.
func (a *app) tickers(ctx context.Context, cmd *cli.Command, entities warehouse.EntityLister) ([]string, error) {
	if flag := cmd.String("tickers"); flag != "" {
		return parseTickers(flag), nil
	}

	if len(a.config.Sync.Tickers) > 0 {
		return a.config.Sync.Tickers, nil
	}

	return entities.ListEntities(ctx)
}

// cutoff returns --cutoff when given, otherwise the last completed market day.
func (a *app) cutoff(cmd *cli.Command, now time.Time) (time.Time, error) {
	if cmd.IsSet("cutoff") {
		t := cmd.Timestamp("cutoff")

		return types.Date(t.Year(), t.Month(), t.Day()), nil
	}

	loc, err := a.config.MarketLocation()
	if err != nil {
		return time.Time{}, err
	}

	return calendar.Cutoff(now, loc), nil
}

// plan resolves tickers and cutoff and asks the planner for the windows to fetch.
func (a *app) plan(ctx context.Context, cmd *cli.Command, wh *warehouse.SQLWarehouse) ([]types.FetchWindow, time.Time, error) {
	cutoff, err := a.cutoff(cmd, time.Now())
	if err != nil {
		return nil, time.Time{}, err
	}

	// No-op against a provisioned warehouse; creates the tables for a fresh local one.
	if err := wh.EnsureSchema(ctx); err != nil {
		return nil, time.Time{}, errors.Wrap(errors.ErrCodePlanningFailed, "failed to prepare warehouse", err)
	}

	tickers, err := a.tickers(ctx, cmd, wh)
	if err != nil {
		return nil, time.Time{}, err
	}

	a.logger.Info("Planning sync",
		zap.Int("tickers", len(tickers)),
		zap.Time("cutoff", cutoff),
		zap.String("table", wh.Table()),
	)

	windows, err := planner.NewPlanner(wh, a.config.Sync.LookbackDays, a.logger).Plan(ctx, tickers, cutoff)
	if err != nil {
		return nil, time.Time{}, err
	}

	return windows, cutoff, nil
}

// newOrchestrator wires the source, encoder, writer and limiter for one run.
func (a *app) newOrchestrator(store staging.Store) (*orchestrator.Orchestrator, error) {
	source, err := marketdata.NewSource(marketdata.ClientConfig{
		ProviderType:   provider.ProviderPolygon,
		PolygonApiKey:  a.config.Polygon.APIKey,
		Adjusted:       a.config.Polygon.Adjusted,
		Timeout:        a.config.Polygon.Timeout,
		MarketTimezone: a.config.Polygon.MarketTimezone,
		BaseURL:        a.config.Polygon.BaseURL,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	encoder, err := writer.NewEncoder(a.config.Sync.Encoder)
	if err != nil {
		return nil, err
	}

	artifactWriter, err := artifact.NewArtifactWriter(store, encoder, artifact.Config{
		ScratchDir: a.config.Sync.ScratchDir,
		Prefix:     a.config.Staging.Prefix,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	return orchestrator.NewOrchestrator(
		ratelimit.New(a.config.Polygon.RateInterval),
		source,
		artifactWriter,
		orchestrator.Config{Granularity: a.config.Sync.Granularity, Mode: a.config.Sync.Mode},
		a.logger,
	)
}

// parseTickers splits a comma-separated list, normalizing and dropping duplicates.
func parseTickers(s string) []string {
	var tickers []string

	for _, part := range strings.Split(s, ",") {
		ticker := strings.ToUpper(strings.TrimSpace(part))
		if ticker == "" || slices.Contains(tickers, ticker) {
			continue
		}

		tickers = append(tickers, ticker)
	}

	return tickers
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func describeWindow(w types.FetchWindow) string {
	return fmt.Sprintf("%-8s %s .. %s (%d days)", w.Ticker, formatDate(w.StartDate), formatDate(w.EndDate), w.Days())
}
