package cmd

import (
	"os"

	"github.com/onrbuild/onrbuild/internal/config"
	"github.com/onrbuild/onrbuild/internal/generate"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type generateFlags struct {
	configPath string

	input            string
	file             string
	sheet            string
	retry            string
	auto             bool
	headless         bool
	browser          string
	driver           string
	cdp              string
	stealth          bool
	outdir           string
	originals        string
	json             string
	jsonOut          string
	report           string
	flushEach        bool
	transcoder       string
	find             string
	replace          string
	replacements     string
	replacementsFile string
	mapDomain        string
	originalFilter   string

	buildReadyTimeout int
	navTimeout        int
	idleTimeout       int
	clickTimeout      int

	verbose bool
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build card images for every URL in a sheet or file",
		Long: `Opens each card editor URL in a browser, applies find/replace rules to the
card text, clicks "Build PNG" and saves the resulting image under
<outdir>/<side>/<faction>/<kind>/, alongside the card's original art under
<originals>/. A cards.json manifest is written at the end of the run.

Review is on by default: each page waits for a key in the terminal
([Enter] continue, [s] skip, [r] reload, [q] quit). Use --auto for an
unattended headless run.`,
		Example: `  # Review every card from a local list
  onrbuild generate --input=urls.txt

  # Unattended run from a published sheet against a local editor
  onrbuild generate --sheet=https://docs.google.com/.../export?format=csv \
    --auto --map-domain=cards.example.com,localhost:5173

  # Re-run what an earlier run did not finish
  onrbuild generate --retry=run.yaml --report=run2.yaml

  # Apply a rules file and use webkit
  onrbuild generate --input=cards.csv --replacements=rules.txt --browser=webkit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			runID := generate.SetupLogging(f.verbose)
			return generate.Execute(cmd.Context(), cfg, runID, os.Stdout)
		},
	}

	bindGenerateFlags(cmd.Flags(), &f)

	return cmd
}

func bindGenerateFlags(fl *pflag.FlagSet, f *generateFlags) {
	fl.StringVar(&f.configPath, "config", "", "YAML file with run settings (flags override it)")
	fl.StringVar(&f.input, "input", "", "Local file with URLs (txt, csv or tsv)")
	fl.StringVar(&f.file, "file", "", "Alias for --input")
	fl.StringVar(&f.sheet, "sheet", "", "CSV export URL of a spreadsheet")
	fl.StringVar(&f.retry, "retry", "", "Queue the failed, skipped and quit URLs from an earlier --report")
	fl.BoolVar(&f.auto, "auto", false, "Disable review prompts; implies --headless unless it is set")
	fl.BoolVar(&f.headless, "headless", false, "Run the browser headless")
	fl.StringVar(&f.browser, "browser", config.DefaultBrowser, "Browser engine: firefox, webkit or chromium")
	fl.StringVar(&f.driver, "driver", config.DefaultDriver, "Automation driver: playwright or rod")
	fl.StringVar(&f.cdp, "cdp", "", "DevTools websocket URL of a running Chrome (rod driver)")
	fl.BoolVar(&f.stealth, "stealth", false, "Open the page with stealth evasions (rod driver)")
	fl.StringVar(&f.outdir, "outdir", config.DefaultOutDir, "Directory for generated images")
	fl.StringVar(&f.originals, "originals", config.DefaultOriginalsDir, "Directory for original art")
	fl.StringVar(&f.json, "json", "", "Manifest output path (default \"cards.json\")")
	fl.StringVar(&f.jsonOut, "json-out", "", "Alias for --json")
	fl.StringVar(&f.report, "report", "", "Write a YAML run report to this path")
	fl.BoolVar(&f.flushEach, "flush-each", false, "Rewrite the manifest after every recorded card")
	fl.StringVar(&f.transcoder, "transcoder", config.DefaultTranscoder, "JPEG transcoder: ffmpeg or native")
	fl.StringVar(&f.find, "find", config.DefaultFind, "Literal text to find in the card textarea")
	fl.StringVar(&f.replace, "replace", config.DefaultReplace, "Replacement for --find")
	fl.StringVar(&f.replacements, "replacements", "", "Rules file of find/replace blocks")
	fl.StringVar(&f.replacementsFile, "replacements-file", "", "Alias for --replacements")
	fl.StringVar(&f.mapDomain, "map-domain", "", "Rewrite URLs: <from>,<to>")
	fl.StringVar(&f.originalFilter, "original-filter", config.DefaultOriginalFilter, "Substring of the art URL replaced by \".\" before download")
	fl.IntVar(&f.buildReadyTimeout, "buildReadyTimeout", config.DefaultBuildReadyTimeout, "Milliseconds to wait for the built PNG")
	fl.IntVar(&f.navTimeout, "navTimeout", config.DefaultNavTimeout, "Navigation timeout in milliseconds")
	fl.IntVar(&f.idleTimeout, "idleTimeout", config.DefaultIdleTimeout, "Page idle timeout in milliseconds")
	fl.IntVar(&f.clickTimeout, "clickTimeout", config.DefaultClickTimeout, "Milliseconds to find the build button")
	fl.BoolVar(&f.verbose, "verbose", false, "Verbose logging")
}

// buildConfig layers defaults, the --config file, the environment and the
// flags actually given on the command line, in that order.
func buildConfig(fl *pflag.FlagSet, f generateFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		if err := config.LoadFile(&cfg, f.configPath); err != nil {
			return cfg, err
		}
	}
	config.ApplyEnv(&cfg)

	changed := fl.Changed
	setString := func(dst *string, values ...string) {
		for _, v := range values {
			if v != "" {
				*dst = v
				return
			}
		}
	}

	if changed("input") || changed("file") {
		setString(&cfg.InputFile, f.input, f.file)
	}
	if changed("sheet") {
		cfg.SheetURL = f.sheet
	}
	if changed("retry") {
		cfg.RetryReport = f.retry
	}
	if changed("browser") {
		cfg.Browser = f.browser
	}
	if changed("driver") {
		cfg.Driver = f.driver
	}
	if changed("cdp") {
		cfg.CDPURL = f.cdp
	}
	if changed("stealth") {
		cfg.Stealth = f.stealth
	}
	if changed("outdir") {
		cfg.OutDir = f.outdir
	}
	if changed("originals") {
		cfg.OriginalsDir = f.originals
	}
	if changed("json") || changed("json-out") {
		setString(&cfg.ManifestPath, f.json, f.jsonOut)
	}
	if changed("report") {
		cfg.ReportPath = f.report
	}
	if changed("flush-each") {
		cfg.FlushEach = f.flushEach
	}
	if changed("transcoder") {
		cfg.Transcoder = f.transcoder
	}
	if changed("find") {
		cfg.Find = f.find
	}
	if changed("replace") {
		cfg.Replace = f.replace
	}
	if changed("replacements") || changed("replacements-file") {
		setString(&cfg.ReplacementsFile, f.replacements, f.replacementsFile)
	}
	if changed("map-domain") {
		cfg.SetDomainMap(f.mapDomain)
	}
	if changed("original-filter") {
		cfg.OriginalFilter = f.originalFilter
	}
	if changed("buildReadyTimeout") {
		cfg.BuildReadyTimeoutMs = f.buildReadyTimeout
	}
	if changed("navTimeout") {
		cfg.NavTimeoutMs = f.navTimeout
	}
	if changed("idleTimeout") {
		cfg.IdleTimeoutMs = f.idleTimeout
	}
	if changed("clickTimeout") {
		cfg.ClickTimeoutMs = f.clickTimeout
	}

	if changed("headless") {
		cfg.Headless = f.headless
	}
	if f.auto {
		cfg.SetAuto(changed("headless"))
	}

	return cfg, cfg.Validate()
}
