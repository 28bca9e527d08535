package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/parquet-go/parquet-go"
)

// WriteParquet writes entries as a parquet file.
func WriteParquet(path string, entries []models.CatalogEntry) error {
	if err := parquet.WriteFile(path, entries); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	slog.Debug("Wrote parquet catalog", "path", path, "rows", len(entries))
	return nil
}

// ReadParquet loads a catalog written by WriteParquet.
func ReadParquet(path string) ([]models.CatalogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[models.CatalogEntry](pf)
	defer reader.Close()

	entries := make([]models.CatalogEntry, 0, pf.NumRows())
	for {
		rows := make([]models.CatalogEntry, 128)
		n, err := reader.Read(rows)
		entries = append(entries, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return entries, nil
}
