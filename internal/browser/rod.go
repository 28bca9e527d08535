package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// rodPage drives Chromium over CDP, either a local launch or a running
// instance reached through Options.CDPURL.
type rodPage struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	attached bool
}

func newRodPage(ctx context.Context, opts Options) (*rodPage, error) {
	downloads, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}

	rp := &rodPage{attached: opts.CDPURL != ""}

	wsURL := opts.CDPURL
	if wsURL == "" {
		l := launcher.New().Headless(opts.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chromium: %w", err)
		}
		wsURL = u
		rp.launcher = l
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		rp.cleanup()
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	rp.browser = b

	err = proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: downloads,
	}.Call(b)
	if err != nil {
		slog.Warn("Could not set download directory", "path", downloads, "error", err)
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		rp.cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	rp.page = page

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1200,
		Height:            900,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not set viewport", "error", err)
	}

	return rp, nil
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(tctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return wrapRodErr(err)
	}
	wait()
	return wrapRodErr(tctx.Err())
}

func (p *rodPage) Reload(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(tctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Reload(); err != nil {
		return wrapRodErr(err)
	}
	wait()
	return wrapRodErr(tctx.Err())
}

func (p *rodPage) WaitDOMReady(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := p.page.Context(tctx).Eval(domReadyScript)
	return wrapRodErr(err)
}

func (p *rodPage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wrapRodErr(p.page.Context(tctx).WaitStable(500 * time.Millisecond))
}

func (p *rodPage) Eval(ctx context.Context, script string, arg any) (string, error) {
	var (
		res *proto.RuntimeRemoteObject
		err error
	)
	if arg == nil {
		res, err = p.page.Context(ctx).Eval(script)
	} else {
		res, err = p.page.Context(ctx).Eval(script, arg)
	}
	if err != nil {
		return "", wrapRodErr(err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(tctx).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return wrapRodErr(el.Click(proto.InputMouseButtonLeft, 1))
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close closes the page. A browser reached through --cdp is left running.
func (p *rodPage) Close() error {
	var errs []error
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if !p.attached && p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	p.cleanup()
	return errors.Join(errs...)
}

func (p *rodPage) cleanup() {
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher = nil
	}
}

func wrapRodErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
