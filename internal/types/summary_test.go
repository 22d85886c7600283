package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type SummaryTestSuite struct {
	suite.Suite
}

func TestSummarySuite(t *testing.T) {
	suite.Run(t, new(SummaryTestSuite))
}

func (suite *SummaryTestSuite) TestRecord() {
	var summary RunSummary

	summary.Record(EntityResult{Ticker: "AAPL", Status: EntityStatusDone, Artifacts: []ArtifactRef{{Key: "AAPL_2024_02.parquet"}, {Key: "AAPL_2024_03.parquet"}}})
	summary.Record(EntityResult{Ticker: "ZZZ", Status: EntityStatusNoData})
	summary.Record(EntityResult{Ticker: "FAIL", Status: EntityStatusFetchFailed, Reason: "timeout"})
	summary.Record(EntityResult{Ticker: "MSFT", Status: EntityStatusPartialFailure, Artifacts: []ArtifactRef{{Key: "MSFT_2024_02.parquet"}}})

	suite.Equal(4, summary.Attempted)
	suite.Equal(1, summary.Succeeded)
	suite.Equal(1, summary.NoData)
	suite.Equal(2, summary.Failed)
	suite.Equal(3, summary.ArtifactsWritten)
	suite.Equal([]string{"FAIL", "MSFT"}, summary.FailedTickers())
	suite.InDelta(50.0, summary.SuccessRate(), 0.0001)
}

func (suite *SummaryTestSuite) TestSuccessRateEmpty() {
	suite.Equal(0.0, RunSummary{}.SuccessRate())
}

func (suite *SummaryTestSuite) TestStatusTransitions() {
	suite.True(EntityStatusPending.CanTransition(EntityStatusFetching))
	suite.True(EntityStatusFetching.CanTransition(EntityStatusNoData))
	suite.True(EntityStatusFetching.CanTransition(EntityStatusFetchFailed))
	suite.True(EntityStatusWriting.CanTransition(EntityStatusPartialFailure))
	suite.True(EntityStatusPartitioning.CanTransition(EntityStatusPartialFailure))
	suite.False(EntityStatusPartitioning.CanTransition(EntityStatusFetchFailed))
	suite.False(EntityStatusPending.CanTransition(EntityStatusDone))
	suite.False(EntityStatusDone.CanTransition(EntityStatusWriting))

	suite.True(EntityStatusNoData.IsTerminal())
	suite.False(EntityStatusWriting.IsTerminal())
	suite.True(EntityStatusPartialFailure.IsFailure())
	suite.False(EntityStatusNoData.IsFailure())
}

func (suite *SummaryTestSuite) TestWriteRunSummary() {
	path := filepath.Join(suite.T().TempDir(), "summary.yaml")

	summary := RunSummary{RunID: "run-1", Cutoff: "2024-03-01"}
	summary.Record(EntityResult{Ticker: "AAPL", Status: EntityStatusDone, Artifacts: []ArtifactRef{{Key: "AAPL_2024_02.parquet", Period: "2024-02", Rows: 20}}})

	suite.Require().NoError(WriteRunSummary(path, summary))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)

	var decoded RunSummary
	suite.Require().NoError(yaml.Unmarshal(data, &decoded))
	suite.Equal("run-1", decoded.RunID)
	suite.Equal(1, decoded.Succeeded)
	suite.Require().Len(decoded.Results, 1)
	suite.Equal(EntityStatusDone, decoded.Results[0].Status)
	suite.Equal(PeriodKey("2024-02"), decoded.Results[0].Artifacts[0].Period)
}

func (suite *SummaryTestSuite) TestWriteRunSummaryBadPath() {
	err := WriteRunSummary(filepath.Join(suite.T().TempDir(), "missing", "summary.yaml"), RunSummary{})
	suite.Error(err)
}
