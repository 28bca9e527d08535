package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onrbuild/onrbuild/internal/images"
	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/onrbuild/onrbuild/internal/replace"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	settleDelay         = 100 * time.Millisecond

	// a zero timeout means no timeout to playwright
	minClickTimeout = time.Second
)

// Session wraps the one page a run drives. It is not safe for concurrent use.
type Session struct {
	page     Page
	timeouts Timeouts
	poll     time.Duration

	closeOnce sync.Once
	closeErr  error
}

// DataLink is the build tool's "Save PNG" payload.
type DataLink struct {
	Href         string
	DownloadName string
}

func NewSession(page Page, timeouts Timeouts) *Session {
	return &Session{
		page:     page,
		timeouts: timeouts,
		poll:     defaultPollInterval,
	}
}

// Navigate loads url and waits for DOM content.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.page.Navigate(ctx, url, s.timeouts.Nav); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Reload re-navigates the current page.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.page.Reload(ctx, s.timeouts.Nav); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// WaitIdle waits for the editor to finish its first render: DOM ready, then
// network quiet (best effort), a short settle, two animation frames, and a
// textarea to appear (best effort).
func (s *Session) WaitIdle(ctx context.Context) error {
	if err := s.page.WaitDOMReady(ctx, s.timeouts.Idle); err != nil {
		return fmt.Errorf("wait for DOM: %w", err)
	}
	if err := s.page.WaitNetworkIdle(ctx, s.timeouts.Idle); err != nil {
		slog.Debug("Network did not go idle", "error", err)
	}
	if err := sleep(ctx, settleDelay); err != nil {
		return err
	}

	out, err := s.page.Eval(ctx, settleScript, s.timeouts.Idle.Milliseconds())
	if err != nil {
		slog.Debug("Settle check failed", "error", err)
		return nil
	}
	var hasTextarea bool
	if err := json.Unmarshal([]byte(out), &hasTextarea); err == nil && !hasTextarea {
		slog.Debug("No textarea appeared before idle timeout")
	}
	return nil
}

// ClickAction clicks the element labeled label, retrying until the click
// timeout.
func (s *Session) ClickAction(ctx context.Context, label string) error {
	deadline := time.Now().Add(s.timeouts.Click)
	for {
		token := uuid.NewString()
		out, err := s.page.Eval(ctx, markActionScript, map[string]string{"label": label, "token": token})
		if err != nil {
			slog.Debug("Action lookup failed", "label", label, "error", err)
		} else {
			var res struct {
				Found bool   `json:"found"`
				Tag   string `json:"tag"`
			}
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				return fmt.Errorf("failed to parse action lookup: %w", err)
			}
			if res.Found {
				selector := fmt.Sprintf(`[data-onrbuild-target=%q]`, token)
				if err := s.page.Click(ctx, selector, max(time.Until(deadline), minClickTimeout)); err != nil {
					return fmt.Errorf("click %q: %w", label, err)
				}
				slog.Debug("Clicked action", "label", label, "tag", res.Tag)
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %q after %s", ErrNotFound, label, s.timeouts.Click)
		}
		if err := sleep(ctx, s.poll); err != nil {
			return err
		}
	}
}

// ReplaceInFirstTextarea applies plan to the first textarea on the page and
// writes it back only when the value changed.
func (s *Session) ReplaceInFirstTextarea(ctx context.Context, plan replace.Plan) (bool, error) {
	out, err := s.page.Eval(ctx, readTextareaScript, nil)
	if err != nil {
		return false, fmt.Errorf("read textarea: %w", err)
	}
	var current struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &current); err != nil {
		return false, fmt.Errorf("failed to parse textarea value: %w", err)
	}
	if !current.Found {
		slog.Debug("No textarea on page")
		return false, nil
	}

	next := plan.Apply(current.Value)
	if next == current.Value {
		return false, nil
	}

	if _, err := s.page.Eval(ctx, writeTextareaScript, next); err != nil {
		return false, fmt.Errorf("write textarea: %w", err)
	}
	return true, nil
}

// WaitForDataHref polls the labeled element until it exposes a PNG data URI,
// up to the build-ready timeout.
func (s *Session) WaitForDataHref(ctx context.Context, label string) (DataLink, error) {
	deadline := time.Now().Add(s.timeouts.BuildReady)
	for {
		out, err := s.page.Eval(ctx, dataHrefScript, label)
		if err == nil {
			var link *struct {
				Href     string `json:"href"`
				Download string `json:"download"`
			}
			if err := json.Unmarshal([]byte(out), &link); err == nil && link != nil && images.IsPNGDataURI(link.Href) {
				return DataLink{Href: link.Href, DownloadName: link.Download}, nil
			}
		} else {
			slog.Debug("Data link lookup failed", "label", label, "error", err)
		}

		if time.Now().After(deadline) {
			return DataLink{}, fmt.Errorf("%w waiting for %q data URI", ErrTimeout, label)
		}
		if err := sleep(ctx, s.poll); err != nil {
			return DataLink{}, err
		}
	}
}

// ReadMeta reads the card fields out of the editor form.
func (s *Session) ReadMeta(ctx context.Context) (models.CardMetadata, error) {
	out, err := s.page.Eval(ctx, readMetaScript, nil)
	if err != nil {
		return models.CardMetadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta models.CardMetadata
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		return models.CardMetadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if meta.Subtypes == nil {
		meta.Subtypes = []string{}
	}
	return meta, nil
}

// ShowApprovalOverlay puts a non-interactive banner on the page naming url
// and the terminal keys.
func (s *Session) ShowApprovalOverlay(ctx context.Context, url string) error {
	if _, err := s.page.Eval(ctx, overlayScript, url); err != nil {
		return fmt.Errorf("show overlay: %w", err)
	}
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	return s.page.Title(ctx)
}

func (s *Session) URL() string {
	return s.page.URL()
}

// Close tears the page and browser down. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
