package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/onrbuild/onrbuild/internal/approval"
	"github.com/onrbuild/onrbuild/internal/browser"
	"github.com/onrbuild/onrbuild/internal/images"
	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/onrbuild/onrbuild/internal/replace"
	"github.com/onrbuild/onrbuild/internal/results"
	"github.com/onrbuild/onrbuild/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	current  string
	navErr   map[string]error
	awaitErr map[string]error
	meta     models.CardMetadata
	visits   []string
	reloads  int
	replaces int
	clicks   []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		navErr:   map[string]error{},
		awaitErr: map[string]error{},
		meta: models.CardMetadata{
			Name:     "Howard",
			Side:     "corp",
			Faction:  "haas",
			Kind:     "ice",
			ImageURL: "https://img.example/art_edit.png",
		},
	}
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.current = url
	f.visits = append(f.visits, url)
	return f.navErr[url]
}

func (f *fakeBrowser) Reload(ctx context.Context) error {
	f.reloads++
	return nil
}

func (f *fakeBrowser) WaitIdle(ctx context.Context) error { return nil }

func (f *fakeBrowser) ReplaceInFirstTextarea(ctx context.Context, plan replace.Plan) (bool, error) {
	f.replaces++
	return true, nil
}

func (f *fakeBrowser) ShowApprovalOverlay(ctx context.Context, url string) error { return nil }

func (f *fakeBrowser) ClickAction(ctx context.Context, label string) error {
	f.clicks = append(f.clicks, label)
	return nil
}

func (f *fakeBrowser) WaitForDataHref(ctx context.Context, label string) (browser.DataLink, error) {
	if err := f.awaitErr[f.current]; err != nil {
		return browser.DataLink{}, err
	}
	return browser.DataLink{
		Href:         "data:image/png;base64,AAAA",
		DownloadName: "Card " + path.Base(f.current) + ".png",
	}, nil
}

func (f *fakeBrowser) ReadMeta(ctx context.Context) (models.CardMetadata, error) {
	return f.meta, nil
}

func (f *fakeBrowser) Title(ctx context.Context) (string, error) { return "Card Creator", nil }
func (f *fakeBrowser) URL() string                               { return f.current }

type keyedApprover struct {
	actions map[string][]approval.Action
	asked   []string
}

func (a *keyedApprover) Prompt(ctx context.Context, url string) (approval.Action, error) {
	a.asked = append(a.asked, url)
	queue := a.actions[url]
	if len(queue) == 0 {
		return approval.Continue, nil
	}
	next := queue[0]
	a.actions[url] = queue[1:]
	return next, nil
}

type fakeMaterializer struct {
	outDir    string
	origDir   string
	genErr    error
	origSaved bool
	origErr   error
	imageURLs []string
	stems     []string
}

func (m *fakeMaterializer) SaveGenerated(ctx context.Context, parts []string, base, dataURI string) (images.Generated, error) {
	if m.genErr != nil {
		return images.Generated{}, m.genErr
	}
	p := filepath.Join(append(append([]string{m.outDir}, parts...), base)...)
	return images.Generated{PNGPath: p, JPGPath: images.SwapExt(p, ".jpg")}, nil
}

func (m *fakeMaterializer) SaveOriginal(ctx context.Context, parts []string, stem, imageURL string) (images.Original, error) {
	m.imageURLs = append(m.imageURLs, imageURL)
	m.stems = append(m.stems, stem)
	if m.origErr != nil {
		return images.Original{}, m.origErr
	}
	if !m.origSaved {
		return images.Original{}, nil
	}
	p := filepath.Join(append(append([]string{m.origDir}, parts...), stem+".png")...)
	return images.Original{Path: p, JPGPath: images.SwapExt(p, ".jpg")}, nil
}

type harness struct {
	browser  *fakeBrowser
	approver *keyedApprover
	mat      *fakeMaterializer
	store    *storage.ManifestStore
	out      *bytes.Buffer
	manifest string
}

func newHarness(t *testing.T) *harness {
	manifest := filepath.Join(t.TempDir(), "cards.json")
	return &harness{
		browser:  newFakeBrowser(),
		approver: &keyedApprover{actions: map[string][]approval.Action{}},
		mat:      &fakeMaterializer{outDir: "output", origDir: "originals", origSaved: true},
		store:    storage.New(manifest),
		out:      &bytes.Buffer{},
		manifest: manifest,
	}
}

func (h *harness) runner(approve bool) *Runner {
	return NewRunner(h.browser, h.approver, h.mat, h.store, Options{
		Approval:       approve,
		OriginalFilter: "_edit.",
		OutDir:         "output",
		OriginalsDir:   "originals",
		Out:            h.out,
	})
}

func (h *harness) readManifest(t *testing.T) []models.CardRecord {
	t.Helper()
	raw, err := os.ReadFile(h.manifest)
	require.NoError(t, err)
	var records []models.CardRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	return records
}

var fiveURLs = []string{
	"https://cards.example/1",
	"https://cards.example/2",
	"https://cards.example/3",
	"https://cards.example/4",
	"https://cards.example/5",
}

func statuses(s *Summary) []Status {
	out := make([]Status, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		out = append(out, o.Status)
	}
	return out
}

func TestSkipThirdOfFive(t *testing.T) {
	h := newHarness(t)
	h.approver.actions[fiveURLs[2]] = []approval.Action{approval.Skip}

	summary, err := h.runner(true).Run(context.Background(), fiveURLs)
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusOK, StatusOK, StatusSkipped, StatusOK, StatusOK}, statuses(summary))
	assert.Equal(t, fiveURLs, h.browser.visits)
	assert.ErrorIs(t, summary.Outcomes[2].Err, ErrSkipped)

	records := h.readManifest(t)
	require.Len(t, records, 4)
	for _, r := range records {
		assert.NotEqual(t, "corp_haas_ice_card-3", r.ID)
	}
	assert.Equal(t, "corp_haas_ice_card-1", records[0].ID)
	assert.Equal(t, "./output/corp/haas/ice/Card 1.jpg", records[0].Front)
	assert.Equal(t, "./originals/corp/haas/ice/Card 1.jpg", records[0].Back)
}

func TestBuildTimeoutContinues(t *testing.T) {
	h := newHarness(t)
	h.browser.awaitErr[fiveURLs[1]] = browser.ErrTimeout

	summary, err := h.runner(false).Run(context.Background(), fiveURLs[:3])
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusOK, StatusFailed, StatusOK}, statuses(summary))
	failed := summary.Outcomes[1]
	assert.Equal(t, StageAwait, failed.Stage)
	assert.ErrorIs(t, failed.Err, browser.ErrTimeout)
	assert.Contains(t, h.out.String(), "⚠ Error on https://cards.example/2")
	assert.Empty(t, h.approver.asked)
	assert.Len(t, h.readManifest(t), 2)
}

func TestNavigationFailureIsPerItem(t *testing.T) {
	h := newHarness(t)
	h.browser.navErr[fiveURLs[0]] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	summary, err := h.runner(false).Run(context.Background(), fiveURLs[:2])
	require.NoError(t, err)
	assert.Equal(t, StageNavigate, summary.Outcomes[0].Stage)
	assert.Equal(t, StatusOK, summary.Outcomes[1].Status)
}

func TestQuitFlushesAccumulatedRecords(t *testing.T) {
	h := newHarness(t)
	h.approver.actions[fiveURLs[1]] = []approval.Action{approval.Quit}

	summary, err := h.runner(true).Run(context.Background(), fiveURLs)
	require.NoError(t, err)

	assert.True(t, summary.Quit)
	assert.Equal(t, []Status{StatusOK, StatusQuit}, statuses(summary))
	assert.Equal(t, fiveURLs[:2], h.browser.visits)

	records := h.readManifest(t)
	require.Len(t, records, 1)
	assert.Equal(t, "corp_haas_ice_card-1", records[0].ID)
}

func TestReloadReappliesPlan(t *testing.T) {
	h := newHarness(t)
	h.approver.actions[fiveURLs[0]] = []approval.Action{approval.Reload, approval.Reload, approval.Continue}

	summary, err := h.runner(true).Run(context.Background(), fiveURLs[:1])
	require.NoError(t, err)

	assert.Equal(t, StatusOK, summary.Outcomes[0].Status)
	assert.Equal(t, 2, h.browser.reloads)
	assert.Equal(t, 3, h.browser.replaces)
	assert.Len(t, h.approver.asked, 3)
	assert.Equal(t, []string{DefaultBuildLabel}, h.browser.clicks)
}

func TestRecordInvariant(t *testing.T) {
	tests := []struct {
		name      string
		genErr    error
		origSaved bool
		origErr   error
		wantOK    bool
		wantFront bool
		wantBack  bool
	}{
		{"both saved", nil, true, nil, true, true, true},
		{"no original", nil, false, nil, true, true, false},
		{"original fetch fails", nil, false, errors.New("404"), true, true, false},
		{"only original", errors.New("disk full"), true, nil, true, false, true},
		{"neither", errors.New("disk full"), false, errors.New("404"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mat.genErr = tt.genErr
			h.mat.origSaved = tt.origSaved
			h.mat.origErr = tt.origErr

			summary, err := h.runner(false).Run(context.Background(), fiveURLs[:1])
			require.NoError(t, err)

			o := summary.Outcomes[0]
			if !tt.wantOK {
				assert.Equal(t, StatusFailed, o.Status)
				assert.Equal(t, StageMaterialize, o.Stage)
				assert.Equal(t, 0, h.store.Len())
				_, statErr := os.Stat(h.manifest)
				assert.True(t, os.IsNotExist(statErr))
				return
			}
			require.Equal(t, StatusOK, o.Status)
			require.NotNil(t, o.Record)
			assert.Equal(t, tt.wantFront, o.Record.Front != "")
			assert.Equal(t, tt.wantBack, o.Record.Back != "")
			assert.NotNil(t, o.Record.Subtypes)
		})
	}
}

func TestOriginalURLFilterAndStem(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner(false).Run(context.Background(), fiveURLs[:1])
	require.NoError(t, err)

	assert.Equal(t, []string{"https://img.example/art.png"}, h.mat.imageURLs)
	assert.Equal(t, []string{"Card 1"}, h.mat.stems)
}

func TestUnknownTaxonomyDefaults(t *testing.T) {
	h := newHarness(t)
	h.browser.meta = models.CardMetadata{Name: "Blank"}

	summary, err := h.runner(false).Run(context.Background(), fiveURLs[:1])
	require.NoError(t, err)
	rec := summary.Outcomes[0].Record
	require.NotNil(t, rec)
	assert.Equal(t, "unknown_side_unknown_faction_unknown_kind_card-1", rec.ID)
	assert.Equal(t, "unknown_kind", rec.Type)
}

func TestCancelledContextStopsLoop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.runner(false).Run(ctx, fiveURLs)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Outcomes)
	assert.Empty(t, h.browser.visits)
}

func TestSummaryTableAndReport(t *testing.T) {
	h := newHarness(t)
	h.approver.actions[fiveURLs[1]] = []approval.Action{approval.Skip}

	summary, err := h.runner(true).Run(context.Background(), fiveURLs[:2])
	require.NoError(t, err)

	var out bytes.Buffer
	PrintSummary(&out, summary)
	assert.Contains(t, out.String(), "corp_haas_ice_card-1")
	assert.Contains(t, out.String(), "skipped")
	assert.Contains(t, out.String(), summary.RunID)

	report := summary.Report(results.RunConfig{Browser: "firefox"})
	assert.Equal(t, summary.RunID, report.Config.RunID)
	assert.Equal(t, results.Totals{Attempted: 2, OK: 1, Skipped: 1}, report.Totals)
	assert.Equal(t, "./output/corp/haas/ice/Card 1.jpg", report.Results[0].Front)
	assert.Equal(t, "skipped by user", report.Results[1].Error)
}
