package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/ohlcv-sync/internal/config"
	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/verify"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

const (
	schemaFileName = "ohlcv-sync-config.json"
	sampleFileName = "ohlcv-sync-config.yaml"
)

// syncAction plans the run, fetches every window and stages the artifacts.
// Per-ticker failures end up in the summary; only setup and planning errors fail the command.
func syncAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	wh, err := a.openWarehouse()
	if err != nil {
		return err
	}
	defer wh.Close()

	windows, cutoff, err := a.plan(ctx, cmd, wh)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer

	if cmd.Bool("dry-run") {
		printPlan(out, windows, cutoff)

		return nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	orch, err := a.newOrchestrator(store)
	if err != nil {
		return err
	}

	orch.SetCallbacks(progressCallbacks(cmd.Root().ErrWriter))

	summary, runErr := orch.Run(ctx, windows, cutoff)
	if runErr != nil {
		a.logger.Warn("Sync stopped early", zap.Error(runErr), zap.Int("attempted", summary.Attempted), zap.Int("planned", summary.Planned))
	}

	printSummary(out, summary)

	if path := cmd.String("report"); path != "" {
		if err := types.WriteRunSummary(path, summary); err != nil {
			a.logger.Error("Failed to write run report", zap.String("path", path), zap.Error(err))
		}
	}

	return nil
}

// planAction prints the windows a sync would fetch without fetching them.
func planAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	wh, err := a.openWarehouse()
	if err != nil {
		return err
	}
	defer wh.Close()

	windows, cutoff, err := a.plan(ctx, cmd, wh)
	if err != nil {
		return err
	}

	printPlan(cmd.Root().Writer, windows, cutoff)

	return nil
}

func verifyAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	report, err := verify.NewVerifier(store, a.config.Staging.Prefix, a.logger).Verify(ctx, int(cmd.Int("sample")))
	if err != nil {
		return err
	}

	if path := cmd.String("report"); path != "" {
		if err := verify.WriteReport(path, report); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal verification report: %w", err)
	}

	fmt.Fprint(cmd.Root().Writer, string(data))

	if !report.OK() {
		return errors.Newf(errors.ErrCodeArtifactInvalid, "verification found %d issue(s)", len(report.Issues))
	}

	return nil
}

// loadAction upserts staged artifacts into the local warehouse.
func loadAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	wh, err := a.openWarehouse()
	if err != nil {
		return err
	}
	defer wh.Close()

	var bar *progressbar.ProgressBar

	report, err := warehouse.NewLoader(wh, store, a.config.Staging.Prefix).Load(ctx, cmd.Bool("purge"), func(done int, total int, _ string) {
		if bar == nil {
			bar = newProgressBar(cmd.Root().ErrWriter, total, "loading")
		}

		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Loaded %d rows from %d artifacts into %s (purged %d, skipped %d)\n",
		report.Rows, report.Objects, wh.Table(), report.Purged, len(report.Skipped))

	return nil
}

// cleanupAction deletes every staged artifact under the prefix.
func cleanupAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New(errors.ErrCodeMissingParameter, "cleanup deletes every staged artifact; pass --yes to confirm")
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	deleted, err := staging.Clear(ctx, store, a.config.Staging.Prefix, func(deleted int, total int) {
		if bar == nil {
			bar = newProgressBar(cmd.Root().ErrWriter, total, "deleting")
		}

		_ = bar.Set(deleted)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Deleted %d staged artifacts\n", deleted)

	return nil
}

// schemaAction prints the config JSON schema, or writes it next to a sample config when --output is set.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	schemaJSON, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	dir := cmd.String("output")
	if dir == "" {
		fmt.Fprintln(cmd.Root().Writer, string(schemaJSON))

		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, schemaFileName), schemaJSON, 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	samplePath := filepath.Join(dir, sampleFileName)
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		sample, err := yaml.Marshal(config.Default())
		if err != nil {
			return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
		}

		sample = append([]byte("# yaml-language-server: $schema="+schemaFileName+"\n"), sample...)
		if err := os.WriteFile(samplePath, sample, 0644); err != nil {
			return fmt.Errorf("failed to write sample config to file: %w", err)
		}
	}

	fmt.Fprintf(cmd.Root().Writer, "Schema written to %s\n", filepath.Join(dir, schemaFileName))

	return nil
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// progressCallbacks renders run progress as a bar on w.
func progressCallbacks(w io.Writer) orchestrator.LifecycleCallbacks {
	var bar *progressbar.ProgressBar

	onRunStart := orchestrator.OnRunStartCallback(func(_ string, planned int) {
		bar = newProgressBar(w, planned, "syncing")
	})
	onProgress := orchestrator.OnProgressCallback(func(done int, _ int, ticker string) {
		if bar == nil {
			return
		}

		bar.Describe("syncing " + ticker)
		_ = bar.Set(done)
	})
	onRunEnd := orchestrator.OnRunEndCallback(func(types.RunSummary) {
		if bar != nil {
			_ = bar.Finish()
		}
	})

	return orchestrator.LifecycleCallbacks{
		OnRunStart: &onRunStart,
		OnProgress: &onProgress,
		OnRunEnd:   &onRunEnd,
	}
}

func printPlan(w io.Writer, windows []types.FetchWindow, cutoff time.Time) {
	fmt.Fprintf(w, "Cutoff %s: %d ticker(s) to fetch\n", formatDate(cutoff), len(windows))

	for _, window := range windows {
		fmt.Fprintln(w, "  "+describeWindow(window))
	}
}

func printSummary(w io.Writer, summary types.RunSummary) {
	fmt.Fprintf(w, "Run %s (cutoff %s): planned %d, attempted %d, done %d, no data %d, failed %d, artifacts %d, success %.1f%%\n",
		summary.RunID, summary.Cutoff, summary.Planned, summary.Attempted,
		summary.Succeeded, summary.NoData, summary.Failed, summary.ArtifactsWritten, summary.SuccessRate())

	for _, result := range summary.Results {
		line := fmt.Sprintf("  %-8s %-16s rows=%d artifacts=%d", result.Ticker, result.Status, result.Rows, len(result.Artifacts))
		if result.Reason != "" {
			line += " reason=" + result.Reason
		}

		fmt.Fprintln(w, line)
	}
}
