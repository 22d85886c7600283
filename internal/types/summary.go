package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ArtifactRef describes one artifact written to the staging store.
type ArtifactRef struct {
	Key    string    `yaml:"key"`
	Period PeriodKey `yaml:"period"`
	Rows   int       `yaml:"rows"`
	Bytes  int64     `yaml:"bytes"`
}

// EntityResult is the outcome of one ticker in a run.
type EntityResult struct {
	Ticker    string        `yaml:"ticker"`
	StartDate string        `yaml:"start_date"`
	EndDate   string        `yaml:"end_date"`
	Status    EntityStatus  `yaml:"status"`
	Rows      int           `yaml:"rows"`
	Dropped   int           `yaml:"dropped_rows,omitempty"`
	Artifacts []ArtifactRef `yaml:"artifacts,omitempty"`
	// FailedPeriods lists the buckets whose artifact could not be written.
	FailedPeriods []PeriodKey `yaml:"failed_periods,omitempty"`
	// Reason carries the failure message for FETCH_FAILED and PARTIAL_FAILURE.
	Reason string `yaml:"reason,omitempty"`
}

// RunSummary is the externally visible result of one sync run.
type RunSummary struct {
	RunID            string         `yaml:"run_id"`
	Cutoff           string         `yaml:"cutoff"`
	StartedAt        time.Time      `yaml:"started_at"`
	FinishedAt       time.Time      `yaml:"finished_at"`
	Planned          int            `yaml:"planned"`
	Attempted        int            `yaml:"attempted"`
	Succeeded        int            `yaml:"succeeded"`
	NoData           int            `yaml:"no_data"`
	Failed           int            `yaml:"failed"`
	ArtifactsWritten int            `yaml:"artifacts_written"`
	Results          []EntityResult `yaml:"results"`
}

// Record adds a terminal entity result to the summary counts.
func (s *RunSummary) Record(result EntityResult) {
	s.Attempted++

	switch result.Status {
	case EntityStatusDone:
		s.Succeeded++
	case EntityStatusNoData:
		s.NoData++
	case EntityStatusFetchFailed, EntityStatusPartialFailure:
		s.Failed++
	}

	s.ArtifactsWritten += len(result.Artifacts)
	s.Results = append(s.Results, result)
}

// FailedTickers returns the tickers whose status counts as a failure, in run order.
func (s RunSummary) FailedTickers() []string {
	var tickers []string

	for _, r := range s.Results {
		if r.Status.IsFailure() {
			tickers = append(tickers, r.Ticker)
		}
	}

	return tickers
}

// SuccessRate is the share of attempted entities that did not fail, in percent.
// NO_DATA entities count as successes.
func (s RunSummary) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}

	return float64(s.Attempted-s.Failed) / float64(s.Attempted) * 100
}

// WriteRunSummary writes the summary to path as YAML.
func WriteRunSummary(path string, summary RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary to file: %w", err)
	}

	return nil
}
