package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/onrbuild/onrbuild/internal/results"
)

// Stage names the workflow step an item reached.
type Stage string

const (
	StageNavigate    Stage = "navigate"
	StageIdle        Stage = "idle"
	StageReplace     Stage = "replace"
	StageApprove     Stage = "approve"
	StageBuild       Stage = "build"
	StageAwait       Stage = "await"
	StageExtract     Stage = "extract"
	StageMaterialize Stage = "materialize"
)

// StageError tags an item error with the step that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusQuit    Status = "quit"
)

// Outcome is what happened to one URL.
type Outcome struct {
	Index  int
	URL    string
	Status Status
	Stage  Stage
	Err    error
	Record *models.CardRecord
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Total     int
	Outcomes  []Outcome
	Records   int
	Quit      bool
	Cancelled bool
	Duration  time.Duration
}

// Count returns how many outcomes have status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// PrintSummary renders the per-item table and totals.
func PrintSummary(w io.Writer, s *Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "URL", "Status", "Stage", "Detail"})
	for _, o := range s.Outcomes {
		detail := ""
		switch {
		case o.Record != nil:
			detail = o.Record.ID
		case o.Err != nil:
			detail = o.Err.Error()
		}
		t.AppendRow(table.Row{o.Index, o.URL, o.Status, o.Stage, detail})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d attempted", len(s.Outcomes), s.Total), fmt.Sprintf("%d ok", s.Count(StatusOK)), "", fmt.Sprintf("%d records", s.Records)})
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(w, "Run %s finished in %s", s.RunID, s.Duration.Round(time.Millisecond))
	switch {
	case s.Quit:
		fmt.Fprint(w, " (quit by operator)")
	case s.Cancelled:
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w)
}

// Report converts the summary into the YAML run report.
func (s *Summary) Report(cfg results.RunConfig) *results.Report {
	cfg.RunID = s.RunID
	r := results.NewReport(cfg)
	for _, o := range s.Outcomes {
		item := results.ItemResult{
			URL:    o.URL,
			Status: string(o.Status),
			Stage:  string(o.Stage),
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		if o.Record != nil {
			item.ID = o.Record.ID
			item.Front = o.Record.Front
			item.Back = o.Record.Back
		}
		r.Add(item)
	}
	return r
}
