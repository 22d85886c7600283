package sync_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/e2e/sync/mockserver"
	"github.com/rxtech-lab/ohlcv-sync/internal/artifact"
	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/planner"
	"github.com/rxtech-lab/ohlcv-sync/internal/ratelimit"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/verify"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

const bucket = "sp500-top-10-sector-leaders-ohlcv-s3bkt"

// SyncE2ETestSuite runs the whole pipeline against mock Polygon and S3 servers
// and a DuckDB warehouse on disk.
type SyncE2ETestSuite struct {
	suite.Suite
	ctx       context.Context
	polygon   *mockserver.MockPolygonServer
	s3        *mockserver.MockS3Server
	store     *staging.S3Store
	warehouse *warehouse.SQLWarehouse
}

func TestSyncE2ESuite(t *testing.T) {
	suite.Run(t, new(SyncE2ETestSuite))
}

func (s *SyncE2ETestSuite) SetupTest() {
	s.ctx = context.Background()

	s.polygon = mockserver.NewMockPolygonServer()
	s.Require().NoError(s.polygon.Start(""))

	s.s3 = mockserver.NewMockS3Server(2, bucket)
	s.Require().NoError(s.s3.Start(""))

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(s.s3.BaseURL()),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	s.store = staging.NewS3StoreWithClient(client, bucket)

	config := warehouse.DefaultConfig()
	config.DSN = filepath.Join(s.T().TempDir(), "warehouse.duckdb")

	wh, err := warehouse.Open(config, nil)
	s.Require().NoError(err)
	s.Require().NoError(wh.EnsureSchema(s.ctx))
	s.Require().NoError(wh.RegisterEntities(s.ctx, "AAPL", "MSFT"))
	s.warehouse = wh
}

func (s *SyncE2ETestSuite) TearDownTest() {
	s.warehouse.Close()
	s.polygon.Stop()
	s.s3.Stop()
}

func (s *SyncE2ETestSuite) newOrchestrator(config orchestrator.Config) *orchestrator.Orchestrator {
	source, err := marketdata.NewSource(marketdata.ClientConfig{
		ProviderType:   provider.ProviderPolygon,
		PolygonApiKey:  "test-key",
		Adjusted:       true,
		Timeout:        5 * time.Second,
		MarketTimezone: provider.DefaultMarketTimezone,
		BaseURL:        s.polygon.BaseURL(),
	}, nil)
	s.Require().NoError(err)

	artifactWriter, err := artifact.NewArtifactWriter(s.store, writer.NewParquetEncoder(), artifact.Config{
		ScratchDir: s.T().TempDir(),
	}, nil)
	s.Require().NoError(err)

	orch, err := orchestrator.NewOrchestrator(ratelimit.New(time.Millisecond), source, artifactWriter, config, nil)
	s.Require().NoError(err)

	return orch
}

// sync plans against the warehouse and runs the orchestrator.
func (s *SyncE2ETestSuite) sync(cutoff time.Time, config orchestrator.Config) types.RunSummary {
	tickers, err := s.warehouse.ListEntities(s.ctx)
	s.Require().NoError(err)

	windows, err := planner.NewPlanner(s.warehouse, 0, nil).Plan(s.ctx, tickers, cutoff)
	s.Require().NoError(err)

	summary, err := s.newOrchestrator(config).Run(s.ctx, windows, cutoff)
	s.Require().NoError(err)

	return summary
}

func (s *SyncE2ETestSuite) TestIncrementalSyncAcrossTwoRuns() {
	s.polygon.AddDailyBars("AAPL", types.Date(2024, time.January, 1), types.Date(2024, time.March, 15), 180)
	s.polygon.AddDailyBars("MSFT", types.Date(2024, time.January, 1), types.Date(2024, time.March, 15), 400)

	monthly := orchestrator.Config{Granularity: types.GranularityMonth}

	first := s.sync(types.Date(2024, time.February, 29), monthly)
	s.Equal(2, first.Planned)
	s.Equal(2, first.Succeeded)
	s.Equal(4, first.ArtifactsWritten)
	s.Equal([]string{
		"AAPL_2024_01.parquet",
		"AAPL_2024_02.parquet",
		"MSFT_2024_01.parquet",
		"MSFT_2024_02.parquet",
	}, s.s3.Keys(bucket))

	report, err := warehouse.NewLoader(s.warehouse, s.store, "").Load(s.ctx, true, nil)
	s.Require().NoError(err)
	s.Equal(88, report.Rows)
	s.Equal(4, report.Purged)
	s.Empty(s.s3.Keys(bucket))

	mark, err := s.warehouse.MaxDate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal(types.Date(2024, time.February, 29), mark.Unwrap())

	requestsBefore := len(s.polygon.Requests())

	second := s.sync(types.Date(2024, time.March, 15), monthly)
	s.Equal(2, second.Succeeded)
	s.Equal(2, second.ArtifactsWritten)
	s.Equal([]string{"AAPL_2024_03.parquet", "MSFT_2024_03.parquet"}, s.s3.Keys(bucket))

	for _, result := range second.Results {
		s.Equal("2024-03-01", result.StartDate)
		s.Equal(11, result.Rows)
	}

	// The second run only asks for the days after the high-water mark.
	ny, err := time.LoadLocation(provider.DefaultMarketTimezone)
	s.Require().NoError(err)

	march := strconv.FormatInt(time.Date(2024, time.March, 1, 0, 0, 0, 0, ny).UnixMilli(), 10)
	for _, request := range s.polygon.Requests()[requestsBefore:] {
		s.Equal(march, request.From)
		s.Equal("true", request.Adjusted)
	}

	verification, err := verify.NewVerifier(s.store, "", nil).Verify(s.ctx, 0)
	s.Require().NoError(err)
	s.True(verification.OK(), "%v", verification.Issues)
	s.Equal(map[string]int{"AAPL": 11, "MSFT": 11}, verification.Tickers)
}

func (s *SyncE2ETestSuite) TestFailedUploadKeepsPreviousArtifact() {
	s.polygon.AddDailyBars("AAPL", types.Date(2024, time.January, 1), types.Date(2024, time.February, 29), 180)

	previous := []byte("previous artifact")
	s.s3.SetObject(bucket, "AAPL_2024_02.parquet", previous)
	s.s3.FailPut("AAPL_2024_02.parquet")

	summary := s.sync(types.Date(2024, time.February, 29), orchestrator.Config{Granularity: types.GranularityMonth})

	aapl := summary.Results[0]
	s.Equal(types.EntityStatusPartialFailure, aapl.Status)
	s.Equal([]types.PeriodKey{"2024-02"}, aapl.FailedPeriods)
	s.Require().Len(aapl.Artifacts, 1)
	s.Equal("AAPL_2024_01.parquet", aapl.Artifacts[0].Key)

	stored, ok := s.s3.Object(bucket, "AAPL_2024_02.parquet")
	s.Require().True(ok)
	s.Equal(previous, stored)

	// MSFT has no bars upstream and is unaffected by the AAPL failure.
	s.Equal(types.EntityStatusNoData, summary.Results[1].Status)
	s.Equal([]string{"AAPL"}, summary.FailedTickers())
}

func (s *SyncE2ETestSuite) TestPeriodModeDropsOvershoot() {
	s.polygon.AddDailyBars("AAPL", types.Date(2024, time.January, 1), types.Date(2024, time.March, 15), 180)
	s.polygon.SetOvershoot(true)

	summary := s.sync(types.Date(2024, time.January, 31), orchestrator.Config{
		Granularity: types.GranularityMonth,
		Mode:        orchestrator.FetchModePeriod,
	})

	aapl := summary.Results[0]
	s.Equal(types.EntityStatusDone, aapl.Status)
	s.Equal(23, aapl.Rows)
	s.Equal([]string{"AAPL_2024_01.parquet"}, s.s3.Keys(bucket))

	verification, err := verify.NewVerifier(s.store, "", nil).Verify(s.ctx, 0)
	s.Require().NoError(err)
	s.True(verification.OK(), "%v", verification.Issues)
}
