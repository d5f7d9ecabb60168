package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GetNoteByPath loads a note's index row in full, including parsed
// frontmatter and body, for callers (the lifecycle layer) that need more
// than the query surface's NoteSummary projection.
func (s *Store) GetNoteByPath(ctx context.Context, path string) (Note, string, bool, error) {
	path = normalizeTargetPath(path)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, note_kind, custom_type, title, content_hash,
			frontmatter_json, body, created_ts, modified_ts
		FROM notes WHERE path = ?`, path)

	var n Note
	var kind, fmJSON, body string
	var created, modified int64
	if err := row.Scan(&n.ID, &n.Path, &kind, &n.CustomType, &n.Title, &n.ContentHash,
		&fmJSON, &body, &created, &modified); err != nil {
		if err == sql.ErrNoRows {
			return Note{}, "", false, nil
		}
		return Note{}, "", false, err
	}
	n.NoteKind = NoteKind(kind)
	n.CreatedTS = time.Unix(created, 0)
	n.ModifiedTS = time.Unix(modified, 0)
	var fm map[string]interface{}
	if err := json.Unmarshal([]byte(fmJSON), &fm); err != nil {
		return Note{}, "", false, fmt.Errorf("%w: decode frontmatter for %s: %v", errIndex, path, err)
	}
	n.Frontmatter = fm
	return n, body, true, nil
}

// FindProjectPath returns the vault-relative path of the project note whose
// project-id frontmatter field matches id (case-sensitive, per spec.md's
// "≤ 4 uppercase letters" project-id format).
func (s *Store) FindProjectPath(ctx context.Context, projectID string) (string, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, frontmatter_json FROM notes WHERE note_kind = ?`, string(KindProject))
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	for rows.Next() {
		var path, fmJSON string
		if err := rows.Scan(&path, &fmJSON); err != nil {
			return "", false, err
		}
		var fm map[string]interface{}
		if err := json.Unmarshal([]byte(fmJSON), &fm); err != nil {
			continue
		}
		if v, ok := fm["project-id"]; ok {
			if s, isStr := v.(string); isStr && s == projectID {
				return path, true, nil
			}
		}
	}
	return "", false, rows.Err()
}

// ListTasksForProject returns task notes whose project frontmatter field
// matches projectID, optionally restricted to open (non-terminal) statuses.
func (s *Store) ListTasksForProject(ctx context.Context, projectID string, openOnly bool) ([]NoteSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteSelectCols+` FROM notes WHERE note_kind = ?`, string(KindTask))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NoteSummary
	for rows.Next() {
		ns, _, err := s.scanNoteSummary(rows)
		if err != nil {
			return nil, err
		}
		proj, _ := ns.Frontmatter["project"].(string)
		if proj != projectID {
			continue
		}
		if openOnly {
			status, _ := ns.Frontmatter["status"].(string)
			if status == "done" || status == "cancelled" {
				continue
			}
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// RenamePath updates a note's path in place, along with every links row's
// target_path that pointed at it (whether resolved or not), in one
// transaction (spec.md §4.5.5 step 5). It does not touch file content or
// resolved target ids for other notes' links referencing this one by
// target_id — those stay valid across a rename since target_id, not
// target_path, is the identity the rest of the schema keys off of. The
// caller (internal/lifecycle) is responsible for the actual file rename and
// for calling ReindexPaths afterward to reconcile link rows derived from
// rewritten file content.
func (s *Store) RenamePath(ctx context.Context, oldPath, newPath string) error {
	oldPath = normalizeTargetPath(oldPath)
	newPath = normalizeTargetPath(newPath)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin rename: %v", errIndex, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE notes SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("%w: rename note row: %v", errIndex, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE links SET target_path = ? WHERE target_path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("%w: redirect link targets: %v", errIndex, err)
	}
	return tx.Commit()
}
