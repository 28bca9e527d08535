// Package config builds the immutable run configuration for a generate run
// from defaults, an optional YAML file, the environment and CLI flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBrowser           = "firefox"
	DefaultDriver            = "playwright"
	DefaultTranscoder        = "ffmpeg"
	DefaultOutDir            = "output"
	DefaultOriginalsDir      = "originals"
	DefaultManifestPath      = "cards.json"
	DefaultFind              = "foo"
	DefaultReplace           = "bar"
	DefaultOriginalFilter    = "_edit."
	DefaultBuildReadyTimeout = 180000
	DefaultNavTimeout        = 45000
	DefaultIdleTimeout       = 15000
	DefaultClickTimeout      = 60000
)

// Config is the run configuration. Timeouts are milliseconds, as on the command line.
type Config struct {
	InputFile string `yaml:"input"`
	SheetURL  string `yaml:"sheet"`
	// RetryReport names a previous run report whose unfinished URLs are queued again.
	RetryReport string `yaml:"retry"`

	Approval bool   `yaml:"approval"`
	Headless bool   `yaml:"headless"`
	Browser  string `yaml:"browser"`
	Driver   string `yaml:"driver"`
	CDPURL   string `yaml:"cdp"`
	Stealth  bool   `yaml:"stealth"`

	OutDir       string `yaml:"outdir"`
	OriginalsDir string `yaml:"originals"`
	ManifestPath string `yaml:"json"`
	ReportPath   string `yaml:"report"`
	FlushEach    bool   `yaml:"flush_each"`
	Transcoder   string `yaml:"transcoder"`

	Find             string `yaml:"find"`
	Replace          string `yaml:"replace"`
	ReplacementsFile string `yaml:"replacements"`

	MapFrom string `yaml:"map_from"`
	MapTo   string `yaml:"map_to"`

	OriginalFilter string `yaml:"original_filter"`

	BuildReadyTimeoutMs int `yaml:"build_ready_timeout"`
	NavTimeoutMs        int `yaml:"nav_timeout"`
	IdleTimeoutMs       int `yaml:"idle_timeout"`
	ClickTimeoutMs      int `yaml:"click_timeout"`
}

// Default returns the configuration used when nothing overrides it.
// Approval is on and the browser is headed unless a run says otherwise.
func Default() Config {
	return Config{
		Approval:            true,
		Browser:             DefaultBrowser,
		Driver:              DefaultDriver,
		OutDir:              DefaultOutDir,
		OriginalsDir:        DefaultOriginalsDir,
		ManifestPath:        DefaultManifestPath,
		Transcoder:          DefaultTranscoder,
		Find:                DefaultFind,
		Replace:             DefaultReplace,
		OriginalFilter:      DefaultOriginalFilter,
		BuildReadyTimeoutMs: DefaultBuildReadyTimeout,
		NavTimeoutMs:        DefaultNavTimeout,
		IdleTimeoutMs:       DefaultIdleTimeout,
		ClickTimeoutMs:      DefaultClickTimeout,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv lets BROWSER pick the engine when no flag does.
func ApplyEnv(cfg *Config) {
	if b := os.Getenv("BROWSER"); b != "" {
		cfg.Browser = b
	}
}

// SetAuto switches a run to unattended mode. Headless follows unless the
// caller pinned it explicitly.
func (c *Config) SetAuto(headlessPinned bool) {
	c.Approval = false
	if !headlessPinned {
		c.Headless = true
	}
}

// SetDomainMap parses "<from>,<to>". The remap only takes effect when both
// halves are non-empty.
func (c *Config) SetDomainMap(pair string) {
	from, to, _ := strings.Cut(pair, ",")
	c.MapFrom = strings.TrimSpace(from)
	c.MapTo = strings.TrimSpace(to)
}

// RemapEnabled reports whether URLs should be rewritten.
func (c Config) RemapEnabled() bool {
	return c.MapFrom != "" && c.MapTo != ""
}

// BrowserName normalises the engine name. Unknown names run on firefox.
func (c Config) BrowserName() string {
	switch name := strings.ToLower(strings.TrimSpace(c.Browser)); name {
	case "firefox", "webkit", "chromium":
		return name
	default:
		return DefaultBrowser
	}
}

func (c Config) BuildReadyTimeout() time.Duration { return ms(c.BuildReadyTimeoutMs) }
func (c Config) NavTimeout() time.Duration        { return ms(c.NavTimeoutMs) }
func (c Config) IdleTimeout() time.Duration       { return ms(c.IdleTimeoutMs) }
func (c Config) ClickTimeout() time.Duration      { return ms(c.ClickTimeoutMs) }

// Validate checks the configuration before any browser is launched. A run
// with no URL source is left for the input resolver to reject.
func (c Config) Validate() error {
	timeouts := map[string]int{
		"buildReadyTimeout": c.BuildReadyTimeoutMs,
		"navTimeout":        c.NavTimeoutMs,
		"idleTimeout":       c.IdleTimeoutMs,
		"clickTimeout":      c.ClickTimeoutMs,
	}
	for name, v := range timeouts {
		if v <= 0 {
			return fmt.Errorf("--%s must be positive, got %d", name, v)
		}
	}
	switch c.Driver {
	case "playwright", "rod":
	default:
		return fmt.Errorf("unsupported driver: %s (supported: playwright, rod)", c.Driver)
	}
	switch c.Transcoder {
	case "ffmpeg", "native":
	default:
		return fmt.Errorf("unsupported transcoder: %s (supported: ffmpeg, native)", c.Transcoder)
	}
	if c.OutDir == "" || c.OriginalsDir == "" || c.ManifestPath == "" {
		return fmt.Errorf("output directories and manifest path must not be empty")
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
