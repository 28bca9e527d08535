package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onrbuild/onrbuild/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseGenerate(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	fl := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	var f generateFlags
	bindGenerateFlags(fl, &f)
	require.NoError(t, fl.Parse(args))
	return buildConfig(fl, f)
}

func TestGenerateDefaults(t *testing.T) {
	t.Setenv("BROWSER", "")

	cfg, err := parseGenerate(t, "--input=urls.txt")
	require.NoError(t, err)
	assert.True(t, cfg.Approval)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "firefox", cfg.BrowserName())
	assert.Equal(t, "cards.json", cfg.ManifestPath)
	assert.Equal(t, 180000, cfg.BuildReadyTimeoutMs)
	assert.Equal(t, 45000, cfg.NavTimeoutMs)
}

func TestGenerateAutoImpliesHeadless(t *testing.T) {
	cfg, err := parseGenerate(t, "--input=urls.txt", "--auto")
	require.NoError(t, err)
	assert.False(t, cfg.Approval)
	assert.True(t, cfg.Headless)

	cfg, err = parseGenerate(t, "--input=urls.txt", "--auto", "--headless=false")
	require.NoError(t, err)
	assert.False(t, cfg.Approval)
	assert.False(t, cfg.Headless)
}

func TestGenerateAliasesPreferPrimary(t *testing.T) {
	cfg, err := parseGenerate(t,
		"--file=b.txt", "--input=a.txt",
		"--json-out=y.json",
		"--replacements-file=r2.txt", "--replacements=r1.txt",
	)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", cfg.InputFile)
	assert.Equal(t, "y.json", cfg.ManifestPath)
	assert.Equal(t, "r1.txt", cfg.ReplacementsFile)
}

func TestGenerateMapDomain(t *testing.T) {
	cfg, err := parseGenerate(t, "--input=u", "--map-domain= a.example , localhost:5173 ")
	require.NoError(t, err)
	assert.True(t, cfg.RemapEnabled())
	assert.Equal(t, "a.example", cfg.MapFrom)
	assert.Equal(t, "localhost:5173", cfg.MapTo)

	cfg, err = parseGenerate(t, "--input=u", "--map-domain=a.example")
	require.NoError(t, err)
	assert.False(t, cfg.RemapEnabled())
}

func TestGeneratePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: webkit\noutdir: yaml-out\nnav_timeout: 1000\n"), 0644))

	t.Setenv("BROWSER", "chromium")
	cfg, err := parseGenerate(t, "--config="+path, "--input=u", "--outdir=flag-out")
	require.NoError(t, err)
	assert.Equal(t, "chromium", cfg.BrowserName(), "environment beats the config file")
	assert.Equal(t, "flag-out", cfg.OutDir, "flags beat the config file")
	assert.Equal(t, 1000, cfg.NavTimeoutMs)

	cfg, err = parseGenerate(t, "--config="+path, "--input=u", "--browser=firefox")
	require.NoError(t, err)
	assert.Equal(t, "firefox", cfg.BrowserName(), "flags beat the environment")
}

func TestGenerateRetryReport(t *testing.T) {
	cfg, err := parseGenerate(t, "--retry=run.yaml")
	require.NoError(t, err)
	assert.Equal(t, "run.yaml", cfg.RetryReport)
	assert.Empty(t, cfg.InputFile)
}

func TestGenerateRejectsBadValues(t *testing.T) {
	_, err := parseGenerate(t, "--input=u", "--navTimeout=0")
	require.Error(t, err)

	_, err = parseGenerate(t, "--input=u", "--driver=selenium")
	require.Error(t, err)
}
