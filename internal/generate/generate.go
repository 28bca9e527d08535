// Package generate wires a configured run together: URL resolution,
// replacement plan, browser session, asset materializer, manifest store and
// the workflow runner.
package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/onrbuild/onrbuild/internal/approval"
	"github.com/onrbuild/onrbuild/internal/browser"
	"github.com/onrbuild/onrbuild/internal/config"
	"github.com/onrbuild/onrbuild/internal/images"
	"github.com/onrbuild/onrbuild/internal/input"
	"github.com/onrbuild/onrbuild/internal/pipeline"
	"github.com/onrbuild/onrbuild/internal/replace"
	"github.com/onrbuild/onrbuild/internal/results"
	"github.com/onrbuild/onrbuild/internal/storage"
)

// SetupLogging installs the run's slog handler on stderr and returns the run id
// every line is tagged with.
func SetupLogging(verbose bool) string {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	runID := uuid.NewString()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("run", runID))
	return runID
}

// Execute runs the whole batch described by cfg. Progress and the summary go
// to out.
func Execute(ctx context.Context, cfg config.Config, runID string, out io.Writer) error {
	var retry []string
	if cfg.RetryReport != "" {
		previous, err := results.LoadFromYAML(cfg.RetryReport)
		if err != nil {
			return err
		}
		retry = previous.Retryable()
		slog.Info("Loaded URLs to retry", "report", cfg.RetryReport, "count", len(retry))
	}

	urls, err := input.NewResolver().Resolve(ctx, input.Sources{
		SheetURL:  cfg.SheetURL,
		InputFile: cfg.InputFile,
		MapFrom:   cfg.MapFrom,
		MapTo:     cfg.MapTo,
		Retry:     retry,
	})
	if err != nil {
		return err
	}

	plan, err := replace.Compile(cfg.ReplacementsFile, cfg.Find, cfg.Replace)
	if err != nil {
		return err
	}
	slog.Info("Replacement plan ready", "ops", len(plan))
	for i, op := range plan {
		slog.Debug("Replacement op", "index", i, "op", op.String())
	}

	for _, dir := range []string{cfg.OutDir, cfg.OriginalsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	transcoder, err := images.NewTranscoder(cfg.Transcoder)
	if err != nil {
		return err
	}

	session, err := browser.Open(ctx, browser.Options{
		Driver:      cfg.Driver,
		Browser:     cfg.BrowserName(),
		Headless:    cfg.Headless,
		DownloadDir: cfg.OutDir,
		CDPURL:      cfg.CDPURL,
		Stealth:     cfg.Stealth,
		Timeouts: browser.Timeouts{
			Nav:        cfg.NavTimeout(),
			Idle:       cfg.IdleTimeout(),
			Click:      cfg.ClickTimeout(),
			BuildReady: cfg.BuildReadyTimeout(),
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Browser shutdown failed", "error", err)
		}
	}()

	store := storage.New(cfg.ManifestPath, storage.WithFlushEach(cfg.FlushEach))
	runner := pipeline.NewRunner(
		session,
		approval.NewPrompter(approval.NewTerminalKeys(os.Stdin), out),
		&images.Materializer{
			OutDir:       cfg.OutDir,
			OriginalsDir: cfg.OriginalsDir,
			Fetcher:      images.NewFetcher(),
			Transcoder:   transcoder,
		},
		store,
		pipeline.Options{
			Plan:           plan,
			Approval:       cfg.Approval,
			OriginalFilter: cfg.OriginalFilter,
			OutDir:         cfg.OutDir,
			OriginalsDir:   cfg.OriginalsDir,
			Out:            out,
		},
	)
	runner.RunID = runID

	fmt.Fprintf(out, "Processing %d URLs with %s (approval=%t, headless=%t)\n", len(urls), cfg.BrowserName(), cfg.Approval, cfg.Headless)
	summary, runErr := runner.Run(ctx, urls)

	pipeline.PrintSummary(out, summary)
	if summary.Records > 0 && runErr == nil {
		fmt.Fprintf(out, "✅ Wrote %d cards to %s\n", summary.Records, store.Path())
	}

	if cfg.ReportPath != "" {
		report := summary.Report(results.RunConfig{
			Browser:  cfg.BrowserName(),
			Driver:   cfg.Driver,
			Headless: cfg.Headless,
			Approval: cfg.Approval,
			Inputs:   nonEmpty(cfg.SheetURL, cfg.InputFile, cfg.RetryReport),
			Rules:    len(plan),
			Manifest: cfg.ManifestPath,
		})
		if err := report.SaveToYAML(cfg.ReportPath); err != nil {
			slog.Error("Failed to write run report", "path", cfg.ReportPath, "error", err)
		} else {
			fmt.Fprintf(out, "Run report saved to %s\n", cfg.ReportPath)
		}
	}

	fmt.Fprintln(out, "\nDone.")
	return runErr
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
