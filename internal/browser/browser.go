// Package browser drives the single card-editor page a generate run works
// against. Session holds the editor-specific interactions; Page is the small
// driver surface they need, implemented by playwright (firefox, webkit,
// chromium) and by rod (chromium over CDP).
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when a page never reaches the awaited state.
	ErrTimeout = errors.New("timed out")
	// ErrNotFound is returned when no element carries the requested label.
	ErrNotFound = errors.New("element not found")
)

const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Page is the driver surface a Session needs. Eval runs a function
// expression with one JSON-serializable argument and returns the string it
// resolves to; every script in this package returns JSON.stringify output.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Reload(ctx context.Context, timeout time.Duration) error
	WaitDOMReady(ctx context.Context, timeout time.Duration) error
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	Eval(ctx context.Context, script string, arg any) (string, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	URL() string
	Close() error
}

// Timeouts bounds each kind of wait a Session performs.
type Timeouts struct {
	Nav        time.Duration
	Idle       time.Duration
	Click      time.Duration
	BuildReady time.Duration
}

// Options selects and configures the driver.
type Options struct {
	Driver      string
	Browser     string
	Headless    bool
	DownloadDir string
	CDPURL      string
	Stealth     bool
	Timeouts    Timeouts
}

// EngineName maps a requested engine to one playwright supports.
// Anything unrecognized runs on firefox.
func EngineName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "webkit":
		return "webkit"
	case "chromium":
		return "chromium"
	default:
		return "firefox"
	}
}

// Open launches the configured driver and returns a session on a fresh page.
func Open(ctx context.Context, opts Options) (*Session, error) {
	var (
		page Page
		err  error
	)
	switch opts.Driver {
	case DriverPlaywright, "":
		page, err = newPlaywrightPage(opts)
	case DriverRod:
		page, err = newRodPage(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	engine := EngineName(opts.Browser)
	if opts.Driver == DriverRod {
		engine = "chromium"
	}
	slog.Info("Browser session started",
		"driver", orDefault(opts.Driver, DriverPlaywright),
		"browser", engine,
		"headless", opts.Headless)
	return NewSession(page, opts.Timeouts), nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
