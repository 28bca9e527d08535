package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/onrbuild/onrbuild/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func ptr(s string) *string { return &s }

func fixture(t *testing.T) (front, back string) {
	root := t.TempDir()
	front = filepath.Join(root, "front")
	back = filepath.Join(root, "back")

	writeFile(t, filepath.Join(front, "corp", "haas", "ice", "Howard.jpg"), "f1")
	writeFile(t, filepath.Join(back, "corp", "haas", "ice", "Howard.png"), "b1")
	writeFile(t, filepath.Join(front, "corp", "haas", "ice", "Ash.jpg"), "f2")
	writeFile(t, filepath.Join(back, "runner", "shaper", "program", "Gordian.jpg"), "b3")
	writeFile(t, filepath.Join(front, "loose.jpg"), "x")
	writeFile(t, filepath.Join(front, "corp", ".DS_Store"), "x")
	writeFile(t, filepath.Join(front, ".git", "a", "b", "c.jpg"), "x")
	return front, back
}

func TestIndex(t *testing.T) {
	front, back := fixture(t)

	entries, err := Index(front, back)
	require.NoError(t, err)

	want := []models.CatalogEntry{
		{ID: "corp/haas/ice/ash", Name: "Ash", Side: "corp", Faction: "haas", Type: "ice", Path: "ash", Front: ptr("front/corp/haas/ice/Ash.jpg")},
		{ID: "corp/haas/ice/howard", Name: "Howard", Side: "corp", Faction: "haas", Type: "ice", Path: "howard", Front: ptr("front/corp/haas/ice/Howard.jpg"), Back: ptr("back/corp/haas/ice/Howard.png")},
		{ID: "runner/shaper/program/gordian", Name: "Gordian", Side: "runner", Faction: "shaper", Type: "program", Path: "gordian", Back: ptr("back/runner/shaper/program/Gordian.jpg")},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("Index() mismatch (-want +got):\n%s", diff)
	}
}

func TestKey(t *testing.T) {
	key, err := Key("front", filepath.Join("front", "Corp", "HAAS", "ice", "My Card.v2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "corp/haas/ice/my card.v2", key)
}

func TestListFilesMissingRoot(t *testing.T) {
	files, err := ListFiles(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBuildWritesManifestCopiesAndParquet(t *testing.T) {
	front, back := fixture(t)
	dist := filepath.Join(t.TempDir(), "dist")
	pq := filepath.Join(t.TempDir(), "cards.parquet")

	res, err := Build(Options{FrontDir: front, BackDir: back, DistDir: dist, ParquetPath: pq})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
	assert.Equal(t, 5, res.Copied)

	raw, err := os.ReadFile(filepath.Join(dist, "cards.json"))
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 3)
	assert.Nil(t, got[0]["back"])

	assert.FileExists(t, filepath.Join(dist, "front", "corp", "haas", "ice", "Howard.jpg"))
	assert.FileExists(t, filepath.Join(dist, "back", "runner", "shaper", "program", "Gordian.jpg"))
	assert.NoFileExists(t, filepath.Join(dist, "front", "corp", ".DS_Store"))

	loaded, err := ReadParquet(pq)
	require.NoError(t, err)
	if diff := cmp.Diff(res.Entries, loaded); diff != "" {
		t.Errorf("parquet round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmptyTrees(t *testing.T) {
	root := t.TempDir()
	res, err := Build(Options{
		FrontDir: filepath.Join(root, "front"),
		BackDir:  filepath.Join(root, "back"),
		DistDir:  filepath.Join(root, "dist"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)

	raw, err := os.ReadFile(filepath.Join(root, "dist", "cards.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestRestoreFromParquet(t *testing.T) {
	front, back := fixture(t)
	dist := filepath.Join(t.TempDir(), "dist")
	pq := filepath.Join(t.TempDir(), "cards.parquet")

	built, err := Build(Options{FrontDir: front, BackDir: back, DistDir: dist, ParquetPath: pq})
	require.NoError(t, err)
	want, err := os.ReadFile(built.ManifestPath)
	require.NoError(t, err)

	restoredDist := filepath.Join(t.TempDir(), "restored")
	res, err := Restore(pq, restoredDist)
	require.NoError(t, err)
	assert.Zero(t, res.Copied)

	got, err := os.ReadFile(filepath.Join(restoredDist, "cards.json"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.NoDirExists(t, filepath.Join(restoredDist, "front"))
}
