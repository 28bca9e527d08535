package models

// CardMetadata is what the card editor exposes for the card currently loaded.
type CardMetadata struct {
	Name     string   `json:"name"`
	Side     string   `json:"side"`
	Faction  string   `json:"faction"`
	Kind     string   `json:"kind"`
	Subtypes []string `json:"subtypes"`
	Text     string   `json:"text"`
	ImageURL string   `json:"imageUrl"`
}

// PathParts returns the side/faction/kind taxonomy used for output directories,
// substituting placeholders for anything the editor left blank.
func (m CardMetadata) PathParts() []string {
	return []string{
		orDefault(m.Side, "unknown_side"),
		orDefault(m.Faction, "unknown_faction"),
		orDefault(m.Kind, "unknown_kind"),
	}
}

// CardRecord is one entry of the generated cards.json manifest
type CardRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Side     string   `json:"side"`
	Faction  string   `json:"faction"`
	Type     string   `json:"type"`
	Subtypes []string `json:"subtypes"`
	Text     string   `json:"text"`
	Front    string   `json:"front"`
	Back     string   `json:"back"`
}

// CatalogEntry is one entry of a catalog indexed from front/back image trees.
type CatalogEntry struct {
	ID      string  `json:"id" parquet:"id"`
	Name    string  `json:"name" parquet:"name"`
	Side    string  `json:"side" parquet:"side"`
	Faction string  `json:"faction" parquet:"faction"`
	Type    string  `json:"type" parquet:"type"`
	Path    string  `json:"path" parquet:"path"`
	Front   *string `json:"front" parquet:"front,optional"`
	Back    *string `json:"back" parquet:"back,optional"`
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
