// Package index implements the SQLite-backed incrementally maintained model
// of notes, links, temporal activity, and derived signals (spec.md §4.4),
// plus the read-only query surface built on it.
//
// The schema layout and the Open lifecycle are grounded in the
// teacher's pkg/embeddings/sqlite/store.go; the migration-table style
// (a single versioned meta row, forward-only numbered migrations) is
// grounded in stormlightlabs-knowledgelab/backend/service/graphdb.go's
// schema_meta pattern.
package index

import "time"

// NoteKind tags a note's role. Unknown `type` frontmatter values fall back
// to KindCustom with the raw tag retained separately.
type NoteKind string

const (
	KindTask    NoteKind = "task"
	KindProject NoteKind = "project"
	KindDaily   NoteKind = "daily"
	KindWeekly  NoteKind = "weekly"
	KindMeeting NoteKind = "meeting"
	KindZettel  NoteKind = "zettel"
	KindCustom  NoteKind = "custom"
)

// Note is the canonical indexed projection of a vault file.
type Note struct {
	ID           int64
	Path         string
	NoteKind     NoteKind
	CustomType   string // raw `type` value when NoteKind == KindCustom
	Title        string
	ContentHash  string
	Frontmatter  map[string]interface{}
	CreatedTS    time.Time
	ModifiedTS   time.Time
}

// LinkKind distinguishes the three reference sources spec.md §4.4.2 extracts.
type LinkKind string

const (
	LinkWikilink    LinkKind = "wikilink"
	LinkMarkdown    LinkKind = "markdown-link"
	LinkFrontmatter LinkKind = "frontmatter-reference"
)

// Link is a directed edge from a source note to a (possibly unresolved)
// target reference.
type Link struct {
	ID         int64
	SourceID   int64
	TargetPath string
	TargetID   *int64
	Kind       LinkKind
	Alias      string
	Anchor     string
	Context    string
	Resolved   bool
}

// TemporalActivity records that a note was referenced from a daily/weekly
// note on a given date.
type TemporalActivity struct {
	ID           int64
	NoteID       int64
	DailyID      int64
	ActivityDate time.Time
	Context      string
}

// ActivitySummary is the per-note derived staleness/access projection.
type ActivitySummary struct {
	NoteID          int64
	LastSeen        time.Time
	AccessCount30d  int
	AccessCount90d  int
	StalenessScore  float64
}

// Cooccurrence is a symmetric pairwise counter; NoteAID < NoteBID always.
type Cooccurrence struct {
	NoteAID               int64
	NoteBID               int64
	SharedDailyCount      int
	MostRecentCooccurrence time.Time
}
