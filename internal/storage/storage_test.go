package storage

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

func record(id string) models.CardRecord {
	return models.CardRecord{
		ID:       id,
		Name:     "Howard",
		Side:     "corp",
		Faction:  "haas",
		Type:     "ice",
		Subtypes: []string{"barrier"},
		Text:     "End the run.",
		Front:    "./output/corp/haas/ice/Howard.jpg",
		Back:     "./originals/corp/haas/ice/Howard.jpg",
	}
}

func TestFlushEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	s := New(path)

	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFlushOverwritesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"stale"}]`), 0644))

	s := New(path)
	require.NoError(t, s.Add(record("b")))
	require.NoError(t, s.Add(record("a")))

	_, err := os.Stat(path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "stale", "manifest must not be written before Flush")

	require.NoError(t, s.Flush())

	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	var got []models.CardRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	if diff := cmp.Diff([]models.CardRecord{record("b"), record("a")}, got); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, string(raw), "\n  {\n    \"id\": \"b\",")
}

func TestManifestSchemaKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	s := New(path)
	r := record("x")
	r.Back = ""
	require.NoError(t, s.Add(r))
	require.NoError(t, s.Flush())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 1)

	keys := make([]string, 0, len(got[0]))
	for k := range got[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "name", "side", "faction", "type", "subtypes", "text", "front", "back"}, keys)
}

func TestFlushEachRewritesAfterAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cards.json")
	s := New(path, WithFlushEach(true))
	assert.Equal(t, path, s.Path())

	require.NoError(t, s.Add(record("one")))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []models.CardRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Len(t, got, 1)

	require.NoError(t, s.Add(record("two")))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Len(t, got, 2)
	assert.Equal(t, 2, s.Len())
}

func TestRecordsReturnsCopy(t *testing.T) {
	s := New("unused.json")
	require.NoError(t, s.Add(record("one")))

	got := s.Records()
	got[0].ID = "mutated"
	assert.Equal(t, "one", s.Records()[0].ID)
}
