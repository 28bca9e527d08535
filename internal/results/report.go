package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the configuration section of a run report.
type RunConfig struct {
	RunID     string   `yaml:"runid"`
	Browser   string   `yaml:"browser"`
	Driver    string   `yaml:"driver"`
	Headless  bool     `yaml:"headless"`
	Approval  bool     `yaml:"approval"`
	Inputs    []string `yaml:"inputs,omitempty"`
	Rules     int      `yaml:"rules"`
	Manifest  string   `yaml:"manifest"`
	Timestamp string   `yaml:"timestamp"`
}

// ItemResult is the outcome of a single URL.
type ItemResult struct {
	URL    string `yaml:"url"`
	Status string `yaml:"status"`
	Stage  string `yaml:"stage,omitempty"`
	Error  string `yaml:"error,omitempty"`
	ID     string `yaml:"id,omitempty"`
	Front  string `yaml:"front,omitempty"`
	Back   string `yaml:"back,omitempty"`
}

// Totals counts items per status.
type Totals struct {
	Attempted int `yaml:"attempted"`
	OK        int `yaml:"ok"`
	Skipped   int `yaml:"skipped"`
	Failed    int `yaml:"failed"`
}

// Report is the complete YAML document.
type Report struct {
	Config  RunConfig    `yaml:"config"`
	Totals  Totals       `yaml:"totals"`
	Results []ItemResult `yaml:"results"`
}

// NewReport stamps cfg with the current time.
func NewReport(cfg RunConfig) *Report {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	return &Report{Config: cfg, Results: make([]ItemResult, 0)}
}

// Add records an item outcome and updates the totals.
func (r *Report) Add(item ItemResult) {
	r.Results = append(r.Results, item)
	r.Totals.Attempted++
	switch item.Status {
	case "ok":
		r.Totals.OK++
	case "skipped":
		r.Totals.Skipped++
	case "failed":
		r.Totals.Failed++
	}
}

// SaveToYAML writes the report to path, creating parent directories.
func (r *Report) SaveToYAML(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// LoadFromYAML reads a report written by SaveToYAML.
func LoadFromYAML(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

// Retryable lists, in report order, the URLs that did not produce a card:
// failed, skipped, and the item a quit interrupted.
func (r *Report) Retryable() []string {
	var urls []string
	for _, item := range r.Results {
		switch item.Status {
		case "failed", "skipped", "quit":
			urls = append(urls, item.URL)
		}
	}
	return urls
}
