package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store owns the SQLite connection backing one vault's index at
// <vault>/.mdvault/index.sqlite.
type Store struct {
	db *sql.DB
}

const schemaVersion = 1

// Open opens (creating if needed) the index database at path and brings its
// schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open index: %v", errIndex, err)
	}
	// SQLite's single-writer model serializes concurrent mutations for us
	// (spec.md §5's "SQL's single-writer guarantee"); one connection keeps
	// that guarantee simple rather than fighting database/sql's pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS notes (
		id                INTEGER PRIMARY KEY,
		path              TEXT NOT NULL UNIQUE,
		note_kind         TEXT NOT NULL,
		custom_type       TEXT NOT NULL DEFAULT '',
		title             TEXT NOT NULL,
		content_hash      TEXT NOT NULL,
		frontmatter_json  TEXT NOT NULL DEFAULT '{}',
		body              TEXT NOT NULL DEFAULT '',
		created_ts        INTEGER NOT NULL,
		modified_ts       INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_notes_path ON notes(path);`,
	`CREATE INDEX IF NOT EXISTS idx_notes_kind ON notes(note_kind);`,
	`CREATE TABLE IF NOT EXISTS links (
		id          INTEGER PRIMARY KEY,
		source_id   INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		target_path TEXT NOT NULL,
		target_id   INTEGER REFERENCES notes(id) ON DELETE SET NULL,
		link_kind   TEXT NOT NULL,
		alias       TEXT NOT NULL DEFAULT '',
		anchor      TEXT NOT NULL DEFAULT '',
		context     TEXT NOT NULL DEFAULT '',
		resolved    INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);`,
	`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);`,
	`CREATE TABLE IF NOT EXISTS temporal_activity (
		id            INTEGER PRIMARY KEY,
		note_id       INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		daily_id      INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		activity_date INTEGER NOT NULL,
		context       TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE INDEX IF NOT EXISTS idx_activity_note ON temporal_activity(note_id);`,
	`CREATE INDEX IF NOT EXISTS idx_activity_date ON temporal_activity(activity_date);`,
	`CREATE TABLE IF NOT EXISTS activity_summary (
		note_id          INTEGER PRIMARY KEY REFERENCES notes(id) ON DELETE CASCADE,
		last_seen        INTEGER NOT NULL,
		access_count_30d INTEGER NOT NULL DEFAULT 0,
		access_count_90d INTEGER NOT NULL DEFAULT 0,
		staleness_score  REAL NOT NULL DEFAULT 1.0
	);`,
	`CREATE TABLE IF NOT EXISTS note_cooccurrence (
		note_a_id                INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		note_b_id                INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		shared_daily_count       INTEGER NOT NULL DEFAULT 0,
		most_recent_cooccurrence INTEGER NOT NULL,
		PRIMARY KEY (note_a_id, note_b_id)
	);`,
}

// migrate applies every statement in `migrations` inside one transaction and
// records the schema version. Statements are idempotent (IF NOT EXISTS), so
// re-running migrate on an up-to-date database is a no-op, matching
// spec.md §4.4.1's "forward-only and idempotent" requirement.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("%w: enable foreign keys: %v", errIndex, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin migration: %v", errIndex, err)
	}
	defer tx.Rollback()

	for _, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migration step failed: %v", errIndex, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (id, schema_version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version
		WHERE excluded.schema_version > meta.schema_version
	`, schemaVersion); err != nil {
		return fmt.Errorf("%w: record schema version: %v", errIndex, err)
	}

	return tx.Commit()
}

// SchemaVersion reports the currently recorded schema version, or 0 if the
// meta row has never been written.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version FROM meta WHERE id = 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}
