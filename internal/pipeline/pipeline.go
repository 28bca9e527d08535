// Package pipeline runs the per-URL card workflow: load the editor, patch
// the card text, optionally wait for an operator, build the PNG, then save
// the front and back images and record the card.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onrbuild/onrbuild/internal/approval"
	"github.com/onrbuild/onrbuild/internal/browser"
	"github.com/onrbuild/onrbuild/internal/images"
	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/onrbuild/onrbuild/internal/replace"
)

var (
	// ErrSkipped ends the current item at the operator's request.
	ErrSkipped = errors.New("skipped by user")
	// ErrQuit ends the run. Records gathered so far are still written.
	ErrQuit = errors.New("quit requested")
)

const (
	DefaultBuildLabel = "Build PNG"
	DefaultSaveLabel  = "Save PNG"
)

// Browser is the page interaction the workflow needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitIdle(ctx context.Context) error
	ReplaceInFirstTextarea(ctx context.Context, plan replace.Plan) (bool, error)
	ShowApprovalOverlay(ctx context.Context, url string) error
	ClickAction(ctx context.Context, label string) error
	WaitForDataHref(ctx context.Context, label string) (browser.DataLink, error)
	ReadMeta(ctx context.Context) (models.CardMetadata, error)
	Title(ctx context.Context) (string, error)
	URL() string
}

type Approver interface {
	Prompt(ctx context.Context, url string) (approval.Action, error)
}

type Materializer interface {
	SaveGenerated(ctx context.Context, parts []string, base, dataURI string) (images.Generated, error)
	SaveOriginal(ctx context.Context, parts []string, stem, imageURL string) (images.Original, error)
}

type Recorder interface {
	Add(record models.CardRecord) error
	Flush() error
	Len() int
}

// Options tunes a run. Zero labels fall back to the editor's defaults.
type Options struct {
	Plan           replace.Plan
	Approval       bool
	BuildLabel     string
	SaveLabel      string
	OriginalFilter string
	OutDir         string
	OriginalsDir   string
	Out            io.Writer
}

// Runner processes URLs one at a time against a single browser page.
type Runner struct {
	RunID string

	browser      Browser
	approver     Approver
	materializer Materializer
	recorder     Recorder
	opts         Options
}

func NewRunner(b Browser, a Approver, m Materializer, r Recorder, opts Options) *Runner {
	if opts.BuildLabel == "" {
		opts.BuildLabel = DefaultBuildLabel
	}
	if opts.SaveLabel == "" {
		opts.SaveLabel = DefaultSaveLabel
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Runner{
		RunID:        uuid.NewString(),
		browser:      b,
		approver:     a,
		materializer: m,
		recorder:     r,
		opts:         opts,
	}
}

// Run walks urls in order. Item failures are logged and counted; only a
// quit, or cancellation of ctx, stops the loop early. Accumulated records
// are flushed before returning in every case.
func (r *Runner) Run(ctx context.Context, urls []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: r.RunID, Total: len(urls)}

	for i, url := range urls {
		if summary.Quit {
			break
		}
		if ctx.Err() != nil {
			slog.Warn("Run cancelled", "remaining", len(urls)-i)
			summary.Cancelled = true
			break
		}

		fmt.Fprintf(r.opts.Out, "\n[%d/%d] %s\n", i+1, len(urls), url)
		outcome := r.runItem(ctx, i, url)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Status == StatusQuit {
			summary.Quit = true
		}
	}

	summary.Records = r.recorder.Len()
	summary.Duration = time.Since(start)

	if err := r.recorder.Flush(); err != nil {
		return summary, fmt.Errorf("failed to write manifest: %w", err)
	}
	return summary, nil
}

func (r *Runner) runItem(ctx context.Context, i int, url string) Outcome {
	outcome := Outcome{Index: i + 1, URL: url}

	record, err := r.processItem(ctx, url)
	switch {
	case err == nil:
		outcome.Status = StatusOK
		outcome.Record = record
	case errors.Is(err, ErrQuit):
		outcome.Status = StatusQuit
		fmt.Fprintln(r.opts.Out, "Quit requested, stopping.")
	case errors.Is(err, ErrSkipped):
		outcome.Status = StatusSkipped
		outcome.Err = ErrSkipped
		slog.Warn("Item skipped", "url", url)
	default:
		outcome.Status = StatusFailed
		outcome.Err = err
		var se *StageError
		if errors.As(err, &se) {
			outcome.Stage = se.Stage
		}
		slog.Warn("Item failed", "url", url, "stage", outcome.Stage, "error", err)
		fmt.Fprintf(r.opts.Out, "⚠ Error on %s: %v\n", url, err)
	}
	return outcome
}

func (r *Runner) processItem(ctx context.Context, url string) (*models.CardRecord, error) {
	b := r.browser

	if err := b.Navigate(ctx, url); err != nil {
		return nil, stageErr(StageNavigate, err)
	}
	if err := b.WaitIdle(ctx); err != nil {
		return nil, stageErr(StageIdle, err)
	}
	if _, err := b.ReplaceInFirstTextarea(ctx, r.opts.Plan); err != nil {
		return nil, stageErr(StageReplace, err)
	}

	if r.opts.Approval {
		if err := r.approve(ctx, url); err != nil {
			return nil, stageErr(StageApprove, err)
		}
	}

	if err := b.ClickAction(ctx, r.opts.BuildLabel); err != nil {
		return nil, stageErr(StageBuild, err)
	}

	link, err := b.WaitForDataHref(ctx, r.opts.SaveLabel)
	if err != nil {
		return nil, stageErr(StageAwait, err)
	}

	meta, err := b.ReadMeta(ctx)
	if err != nil {
		return nil, stageErr(StageExtract, err)
	}

	record, err := r.materialize(ctx, meta, link)
	if err != nil {
		return nil, stageErr(StageMaterialize, err)
	}

	if err := r.recorder.Add(*record); err != nil {
		slog.Warn("Manifest write failed, record kept in memory", "id", record.ID, "error", err)
	}
	fmt.Fprintf(r.opts.Out, "✔ Recorded %s\n", record.ID)
	return record, nil
}

// approve loops on the operator's answer. Reload re-navigates and
// re-applies the plan before asking again.
func (r *Runner) approve(ctx context.Context, url string) error {
	b := r.browser
	for {
		if err := b.ShowApprovalOverlay(ctx, url); err != nil {
			slog.Debug("Approval overlay not shown", "error", err)
		}

		action, err := r.approver.Prompt(ctx, url)
		if err != nil {
			slog.Error("Approval failed", "url", url, "error", err)
			return ErrQuit
		}

		switch action {
		case approval.Continue:
			return nil
		case approval.Skip:
			return ErrSkipped
		case approval.Quit:
			return ErrQuit
		case approval.Reload:
			if err := b.Reload(ctx); err != nil {
				return err
			}
			if err := b.WaitIdle(ctx); err != nil {
				return err
			}
			if _, err := b.ReplaceInFirstTextarea(ctx, r.opts.Plan); err != nil {
				return err
			}
		}
	}
}

// materialize writes the front and back images. Either one succeeding is
// enough for a record; a failed original alone is only a warning.
func (r *Runner) materialize(ctx context.Context, meta models.CardMetadata, link browser.DataLink) (*models.CardRecord, error) {
	parts := meta.PathParts()

	title, err := r.browser.Title(ctx)
	if err != nil {
		slog.Debug("Could not read page title", "error", err)
	}
	fileName := images.BaseName(link.DownloadName, title, r.browser.URL())
	stem := images.Stem(fileName)

	gen, genErr := r.materializer.SaveGenerated(ctx, parts, fileName, link.Href)
	if genErr != nil {
		slog.Warn("Generated image not saved", "file", fileName, "error", genErr)
	} else {
		fmt.Fprintf(r.opts.Out, "✔ Saved: %s\n", gen.Front())
	}

	imageURL := meta.ImageURL
	if r.opts.OriginalFilter != "" {
		imageURL = strings.Replace(imageURL, r.opts.OriginalFilter, ".", 1)
	}
	orig, origErr := r.materializer.SaveOriginal(ctx, parts, stem, imageURL)
	if origErr != nil {
		slog.Warn("Original image not saved", "url", imageURL, "error", origErr)
	}

	if genErr != nil && !orig.Saved() {
		return nil, genErr
	}

	record := &models.CardRecord{
		ID:       images.RecordKey(parts[0], parts[1], parts[2], fileName),
		Name:     meta.Name,
		Side:     parts[0],
		Faction:  parts[1],
		Type:     parts[2],
		Subtypes: meta.Subtypes,
		Text:     meta.Text,
	}
	if record.Subtypes == nil {
		record.Subtypes = []string{}
	}
	if genErr == nil {
		record.Front = images.RelativeRef(r.opts.OutDir, gen.Front())
	}
	if orig.Saved() {
		record.Back = images.RelativeRef(r.opts.OriginalsDir, orig.Back())
	}
	return record, nil
}
