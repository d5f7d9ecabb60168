package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mdvault/mdvault/internal/frontmatter"
)

// Walker enumerates candidate files under a vault root, excluding configured
// subtrees and the engine's own .mdvault directory (spec.md §4.4.2).
type Walker struct {
	Root     string
	Excluded []string // vault-relative directory prefixes
}

func (w Walker) isExcluded(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == ".mdvault" || strings.HasPrefix(relPath, ".mdvault/") {
		return true
	}
	for _, ex := range w.Excluded {
		ex = filepath.ToSlash(strings.Trim(ex, "/"))
		if ex == "" {
			continue
		}
		if relPath == ex || strings.HasPrefix(relPath, ex+"/") {
			return true
		}
	}
	return false
}

// Walk returns every vault-relative ".md" path under Root, in a stable
// (lexical) order, per spec.md's "finite, non-restartable sequence".
func (w Walker) Walk() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(w.Root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if w.isExcluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.isExcluded(rel) {
			return nil
		}
		if strings.HasSuffix(path, ".md") {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk vault: %v", errIndex, err)
	}
	return out, nil
}

func hashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var firstHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*#*\s*$`)

func deriveTitle(fm *frontmatter.Document, body string, path string) string {
	if v, ok := fm.Get("title"); ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if m := firstHeadingPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func deriveKind(fm *frontmatter.Document) (NoteKind, string) {
	v, ok := fm.Get("type")
	if !ok {
		return KindCustom, ""
	}
	s, isStr := v.(string)
	if !isStr {
		return KindCustom, ""
	}
	switch NoteKind(strings.ToLower(s)) {
	case KindTask, KindProject, KindDaily, KindWeekly, KindMeeting, KindZettel:
		return NoteKind(strings.ToLower(s)), ""
	default:
		return KindCustom, s
	}
}

// IngestOptions configures a Reindex call.
type IngestOptions struct {
	Force bool // truncate and rebuild every row, not just changed files
}

// Reindex performs an incremental (or, if Force, full) walk-and-parse of the
// vault, per spec.md §4.4.2. Per-file work is not wrapped in a transaction:
// a file's note row and each of its link rows are written by separate
// statements, so a crash mid-file can leave the note row updated without
// its full set of link rows. Running
// Reindex twice in a row with no file changes produces no row changes
// (idempotent, per spec.md §8).
func (s *Store) Reindex(ctx context.Context, w Walker, opts IngestOptions) (ReindexResult, error) {
	if opts.Force {
		if err := s.truncateNotes(ctx); err != nil {
			return ReindexResult{}, err
		}
	}

	paths, err := w.Walk()
	if err != nil {
		return ReindexResult{}, err
	}

	result, seen, dailyDates, err := s.ingestPaths(ctx, w, paths, opts.Force)
	if err != nil {
		return result, err
	}

	removed, err := s.pruneMissing(ctx, seen)
	if err != nil {
		return result, err
	}
	result.Removed = removed

	if err := s.finishIngest(ctx, dailyDates); err != nil {
		return result, err
	}
	return result, nil
}

// ReindexPaths re-ingests exactly the given vault-relative paths (spec.md
// §4.5.5 step 6: "reindex the renamed file and every updated source file"),
// without the full-vault prune pass Reindex performs. Used by the lifecycle
// layer after a rename or archive so only the touched files are reparsed.
func (s *Store) ReindexPaths(ctx context.Context, w Walker, paths []string) (ReindexResult, error) {
	result, _, dailyDates, err := s.ingestPaths(ctx, w, paths, true)
	if err != nil {
		return result, err
	}
	if err := s.finishIngest(ctx, dailyDates); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) finishIngest(ctx context.Context, dailyDates map[int64]time.Time) error {
	if err := s.resolveLinks(ctx); err != nil {
		return err
	}
	for dailyID, activityDate := range dailyDates {
		if err := s.SyncTemporalActivityForDaily(ctx, dailyID, activityDate); err != nil {
			return err
		}
	}
	return s.RecomputeDerivedSignals(ctx)
}

func (s *Store) ingestPaths(ctx context.Context, w Walker, paths []string, force bool) (ReindexResult, map[string]bool, map[int64]time.Time, error) {
	var result ReindexResult
	seen := make(map[string]bool, len(paths))
	dailyDates := make(map[int64]time.Time)

	for _, relPath := range paths {
		seen[relPath] = true
		fullPath := filepath.Join(w.Root, relPath)
		raw, readErr := os.ReadFile(fullPath)
		if readErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", relPath, readErr))
			continue
		}
		hash := hashContent(raw)

		existingHash, existingID, ok, err := s.lookupHash(ctx, relPath)
		if err != nil {
			return result, seen, dailyDates, err
		}
		if ok && existingHash == hash && !force {
			result.Unchanged++
			continue
		}

		doc, parseErr := frontmatter.Parse(string(raw))
		if parseErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", relPath, parseErr))
			continue
		}

		kind, customType := deriveKind(doc)
		title := deriveTitle(doc, doc.Body, relPath)
		fmJSON, _ := json.Marshal(flattenFrontmatter(doc))

		info, statErr := os.Stat(fullPath)
		modTime := time.Now()
		if statErr == nil {
			modTime = info.ModTime()
		}

		noteID, upsertErr := s.upsertNote(ctx, upsertNoteParams{
			existingID:  existingID,
			path:        relPath,
			kind:        kind,
			customType:  customType,
			title:       title,
			contentHash: hash,
			frontmatter: string(fmJSON),
			body:        doc.Body,
			modifiedTS:  modTime,
		})
		if upsertErr != nil {
			return result, seen, dailyDates, upsertErr
		}

		if err := s.replaceLinks(ctx, noteID, doc, doc.Body); err != nil {
			return result, seen, dailyDates, err
		}

		if kind == KindDaily {
			activityDate := modTime
			if v, hasDate := doc.Get("date"); hasDate {
				if s, isStr := v.(string); isStr {
					if parsed, parseErr := time.Parse("2006-01-02", s); parseErr == nil {
						activityDate = parsed
					}
				}
			}
			dailyDates[noteID] = activityDate
		}

		if ok {
			result.Updated++
		} else {
			result.Created++
		}
	}

	return result, seen, dailyDates, nil
}

// ReindexResult summarizes one Reindex invocation.
type ReindexResult struct {
	Created   int
	Updated   int
	Unchanged int
	Removed   int
	Errors    []string
}

func flattenFrontmatter(doc *frontmatter.Document) map[string]interface{} {
	out := make(map[string]interface{})
	for _, k := range doc.Keys() {
		if v, ok := doc.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

type upsertNoteParams struct {
	existingID  int64
	path        string
	kind        NoteKind
	customType  string
	title       string
	contentHash string
	frontmatter string
	body        string
	modifiedTS  time.Time
}

func (s *Store) lookupHash(ctx context.Context, path string) (hash string, id int64, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content_hash FROM notes WHERE path = ?`, path)
	if err := row.Scan(&id, &hash); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	return hash, id, true, nil
}

func (s *Store) upsertNote(ctx context.Context, p upsertNoteParams) (int64, error) {
	now := time.Now().Unix()
	if p.existingID != 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE notes SET note_kind=?, custom_type=?, title=?, content_hash=?,
				frontmatter_json=?, body=?, modified_ts=?
			WHERE id=?`,
			string(p.kind), p.customType, p.title, p.contentHash, p.frontmatter,
			p.body, p.modifiedTS.Unix(), p.existingID)
		if err != nil {
			return 0, fmt.Errorf("%w: update note %s: %v", errIndex, p.path, err)
		}
		return p.existingID, nil
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (path, note_kind, custom_type, title, content_hash,
			frontmatter_json, body, created_ts, modified_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.path, string(p.kind), p.customType, p.title, p.contentHash,
		p.frontmatter, p.body, now, p.modifiedTS.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: insert note %s: %v", errIndex, p.path, err)
	}
	return res.LastInsertId()
}

func (s *Store) pruneMissing(ctx context.Context, seen map[string]bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM notes`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var toRemove []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return 0, err
		}
		if !seen[path] {
			toRemove = append(toRemove, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range toRemove {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return len(toRemove), nil
}

func (s *Store) truncateNotes(ctx context.Context) error {
	for _, tbl := range []string{"note_cooccurrence", "activity_summary", "temporal_activity", "links", "notes"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+tbl); err != nil {
			return fmt.Errorf("%w: truncate %s: %v", errIndex, tbl, err)
		}
	}
	return nil
}
