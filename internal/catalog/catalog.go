// Package catalog indexes generated card fronts and original-art backs into
// a browsable catalog: dist/cards.json plus copies of both image trees.
package catalog

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/onrbuild/onrbuild/internal/models"
)

type Options struct {
	FrontDir    string
	BackDir     string
	DistDir     string
	ParquetPath string
}

// Result describes what Build wrote.
type Result struct {
	Entries      []models.CatalogEntry
	ManifestPath string
	Copied       int
}

// ListFiles returns every regular file under root, skipping names that
// start with a dot. A missing root yields no files.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// Key is the lower-cased slash path of p under root without its extension.
func Key(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return strings.ToLower(rel), nil
}

type treeFile struct {
	abs  string
	link string
}

func indexTree(root string) (map[string]treeFile, error) {
	files, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	out := make(map[string]treeFile, len(files))
	for _, f := range files {
		key, err := Key(root, f)
		if err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(root, f)
		out[key] = treeFile{
			abs:  f,
			link: path.Join(filepath.Base(filepath.Clean(root)), filepath.ToSlash(rel)),
		}
	}
	return out, nil
}

// Index pairs fronts and backs by key. Keys with fewer than three segments
// (side/faction/type) are dropped. Front and back links are relative to the
// dist directory the trees are copied into.
func Index(frontRoot, backRoot string) ([]models.CatalogEntry, error) {
	fronts, err := indexTree(frontRoot)
	if err != nil {
		return nil, err
	}
	backs, err := indexTree(backRoot)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(fronts)+len(backs))
	for k := range fronts {
		keys[k] = struct{}{}
	}
	for k := range backs {
		keys[k] = struct{}{}
	}

	entries := make([]models.CatalogEntry, 0, len(keys))
	for key := range keys {
		parts := strings.Split(key, "/")
		if len(parts) < 3 {
			slog.Debug("Skipping file outside side/faction/type layout", "key", key)
			continue
		}

		entry := models.CatalogEntry{
			ID:      key,
			Side:    parts[0],
			Faction: parts[1],
			Type:    parts[2],
			Path:    strings.Join(parts[3:], "/"),
		}
		var named string
		if f, ok := fronts[key]; ok {
			entry.Front = &f.link
			named = f.abs
		}
		if b, ok := backs[key]; ok {
			entry.Back = &b.link
			if named == "" {
				named = b.abs
			}
		}
		base := filepath.Base(named)
		entry.Name = strings.TrimSuffix(base, filepath.Ext(base))
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, func(a, b models.CatalogEntry) int {
		return cmp.Or(
			strings.Compare(a.Side, b.Side),
			strings.Compare(a.Faction, b.Faction),
			strings.Compare(a.Type, b.Type),
			strings.Compare(a.Name, b.Name),
			strings.Compare(a.ID, b.ID),
		)
	})
	return entries, nil
}

// Build indexes both trees, writes <dist>/cards.json, copies the trees into
// dist and, when asked, writes a parquet copy of the index.
func Build(opts Options) (*Result, error) {
	entries, err := Index(opts.FrontDir, opts.BackDir)
	if err != nil {
		return nil, err
	}

	manifest, err := writeManifest(opts.DistDir, entries)
	if err != nil {
		return nil, err
	}

	result := &Result{Entries: entries, ManifestPath: manifest}
	for _, src := range []string{opts.FrontDir, opts.BackDir} {
		n, err := CopyTree(src, opts.DistDir)
		if err != nil {
			return nil, err
		}
		result.Copied += n
	}

	if opts.ParquetPath != "" {
		if err := WriteParquet(opts.ParquetPath, entries); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Restore rewrites <dist>/cards.json from a parquet export without touching
// the image trees.
func Restore(parquetPath, distDir string) (*Result, error) {
	entries, err := ReadParquet(parquetPath)
	if err != nil {
		return nil, err
	}
	manifest, err := writeManifest(distDir, entries)
	if err != nil {
		return nil, err
	}
	return &Result{Entries: entries, ManifestPath: manifest}, nil
}

func writeManifest(distDir string, entries []models.CatalogEntry) (string, error) {
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dist directory: %w", err)
	}
	manifest := filepath.Join(distDir, "cards.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(manifest, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write catalog: %w", err)
	}
	return manifest, nil
}

// CopyTree copies src into <dstRoot>/<basename of src>, preserving layout.
func CopyTree(src, dstRoot string) (int, error) {
	files, err := ListFiles(src)
	if err != nil {
		return 0, err
	}
	dstBase := filepath.Join(dstRoot, filepath.Base(filepath.Clean(src)))
	for _, f := range files {
		rel, err := filepath.Rel(src, f)
		if err != nil {
			return 0, err
		}
		if err := copyFile(f, filepath.Join(dstBase, rel)); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
