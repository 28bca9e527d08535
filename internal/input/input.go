// Package input resolves the ordered list of card URLs for a run from a
// spreadsheet CSV export and/or a local file.
package input

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNoURLs means every source was empty. A run has nothing to do.
var ErrNoURLs = errors.New("No URLs found. Provide --sheet=<csv-export-url> and/or --input=<file>")

// Sources names where URLs come from and how to rewrite them.
type Sources struct {
	SheetURL  string
	InputFile string
	MapFrom   string
	MapTo     string
	// Retry URLs come from an earlier run and are already remapped.
	Retry []string
}

// Resolver fetches and parses URL sources.
type Resolver struct {
	client *resty.Client
}

// NewResolver creates a resolver with its own HTTP client for sheet exports.
func NewResolver() *Resolver {
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetHeader("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")
	return &Resolver{client: client}
}

// Resolve returns sheet URLs first, then file URLs, each in source order,
// with the domain remap applied, followed by any retry URLs.
func (r *Resolver) Resolve(ctx context.Context, src Sources) ([]string, error) {
	var urls []string

	if src.SheetURL != "" {
		sheetURLs, err := r.fetchSheet(ctx, src.SheetURL)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded URLs from sheet", "count", len(sheetURLs))
		urls = append(urls, sheetURLs...)
	}

	if src.InputFile != "" {
		content, err := os.ReadFile(src.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		fileURLs := ParseFile(src.InputFile, content)
		slog.Info("Loaded URLs from file", "path", src.InputFile, "count", len(fileURLs))
		urls = append(urls, fileURLs...)
	}

	if src.MapFrom != "" && src.MapTo != "" {
		urls = Remap(urls, src.MapFrom, src.MapTo)
	}
	urls = append(urls, src.Retry...)

	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

func (r *Resolver) fetchSheet(ctx context.Context, sheetURL string) ([]string, error) {
	resp, err := r.client.R().SetContext(ctx).Get(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet CSV: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to fetch sheet CSV: %s", resp.Status())
	}

	urls, err := parseTable(resp.Body(), ',', true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet CSV: %w", err)
	}
	return urls, nil
}

// ParseFile reads a local URL list. Tabular content (CSV or TSV with a header
// row, at least one data row and the same column count on every row) is read
// by column; anything else is one URL per non-blank line.
func ParseFile(name string, content []byte) []string {
	if !looksLikeURLList(content) {
		delim := ','
		if isTSV(name, content) {
			delim = '\t'
		}
		if urls, err := parseTable(content, delim, false); err == nil && urls != nil {
			return urls
		}
	}
	return parseLines(content)
}

// parseTable returns nil with no error when the table has no data rows.
// Rows must match the header's column count unless relaxed is set; sheet
// exports are relaxed, local files are not.
func parseTable(content []byte, delim rune, relaxed bool) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delim
	if relaxed {
		reader.FieldsPerRecord = -1
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := PickColumn(header)

	var urls []string
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(record) {
			continue
		}
		rows++
		if col >= len(record) {
			continue
		}
		if u := strings.TrimSpace(record[col]); u != "" {
			urls = append(urls, u)
		}
	}
	if rows == 0 {
		return nil, nil
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// PickColumn prefers a "smc url" column, then "url", then the first column.
// Header matching is case-insensitive.
func PickColumn(header []string) int {
	smc, plain := -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case name == "smc url" && smc == -1:
			smc = i
		case name == "url" && plain == -1:
			plain = i
		}
	}
	if smc != -1 {
		return smc
	}
	if plain != -1 {
		return plain
	}
	return 0
}

var newline = regexp.MustCompile(`\r?\n`)

func parseLines(content []byte) []string {
	var urls []string
	for _, line := range newline.Split(string(content), -1) {
		if u := strings.TrimSpace(line); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// looksLikeURLList reports a header-less list: the first non-blank line is
// itself a URL, so there is no header row to select a column from.
func looksLikeURLList(content []byte) bool {
	for _, line := range newline.Split(string(content), -1) {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		return (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) &&
			!strings.ContainsAny(line, ",\t")
	}
	return false
}

func isTSV(name string, content []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return true
	}
	first, _, _ := strings.Cut(string(content), "\n")
	return strings.Contains(first, "\t") && !strings.Contains(first, ",")
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Remap replaces the first occurrence of from with to in every URL.
func Remap(urls []string, from, to string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = strings.Replace(u, from, to, 1)
	}
	return out
}
