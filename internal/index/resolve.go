package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
)

// replaceLinks deletes and re-derives every link row for noteID, per
// spec.md §4.4.2: "Links are re-derived on every reindex of the source;
// they do not outlive their source."
func (s *Store) replaceLinks(ctx context.Context, noteID int64, doc *frontmatter.Document, body string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE source_id = ?`, noteID); err != nil {
		return fmt.Errorf("%w: clear links for note %d: %v", errIndex, noteID, err)
	}

	extracted := ExtractWikilinksAndMarkdownLinks(body)
	extracted = append(extracted, ExtractFrontmatterReferences(flattenFrontmatter(doc))...)

	for _, link := range extracted {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO links (source_id, target_path, target_id, link_kind, alias, anchor, context, resolved)
			VALUES (?, ?, NULL, ?, ?, ?, ?, 0)`,
			noteID, link.TargetPath, string(link.Kind), link.Alias, link.Anchor, link.Context)
		if err != nil {
			return fmt.Errorf("%w: insert link from note %d: %v", errIndex, noteID, err)
		}
	}
	return nil
}

// resolveLinks re-resolves every link row's target_id from its target_path,
// per spec.md §4.4.2's three-step resolution order: exact path match, title
// match, project-id match — first hit wins, ties broken by most recently
// modified. A frontmatter reference that resolves to its own source note (a
// note's own title or project-id) is left unresolved.
func (s *Store) resolveLinks(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source_id, target_path, link_kind FROM links`)
	if err != nil {
		return err
	}
	type pending struct {
		id         int64
		sourceID   int64
		targetPath string
		kind       string
	}
	var all []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.sourceID, &p.targetPath, &p.kind); err != nil {
			rows.Close()
			return err
		}
		all = append(all, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range all {
		targetID, resolved, err := s.resolveTarget(ctx, p.targetPath)
		if err != nil {
			return err
		}
		if resolved && p.kind == string(LinkFrontmatter) && targetID == p.sourceID {
			resolved = false
		}
		if resolved {
			if _, err := s.db.ExecContext(ctx, `UPDATE links SET target_id = ?, resolved = 1 WHERE id = ?`, targetID, p.id); err != nil {
				return err
			}
		} else {
			if _, err := s.db.ExecContext(ctx, `UPDATE links SET target_id = NULL, resolved = 0 WHERE id = ?`, p.id); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveTarget implements spec.md §4.4.2's resolution order for one raw
// target string.
func (s *Store) resolveTarget(ctx context.Context, raw string) (int64, bool, error) {
	normalized := normalizeTargetPath(raw)

	// 1. Exact path match.
	if id, ok, err := s.queryOne(ctx, `SELECT id FROM notes WHERE path = ? ORDER BY modified_ts DESC LIMIT 1`, normalized); err != nil {
		return 0, false, err
	} else if ok {
		return id, true, nil
	}

	// Title match needs the bare stem (without extension / path), since the
	// raw string may be just "My Note" rather than a path.
	stem := strings.TrimSuffix(raw, ".md")
	if idx := strings.LastIndex(stem, "/"); idx >= 0 {
		stem = stem[idx+1:]
	}

	// 2. Title match.
	if id, ok, err := s.queryOne(ctx, `SELECT id FROM notes WHERE title = ? COLLATE NOCASE ORDER BY modified_ts DESC LIMIT 1`, stem); err != nil {
		return 0, false, err
	} else if ok {
		return id, true, nil
	}

	// 3. Project-id match: frontmatter_json contains "project-id":"<raw>".
	// A LIKE probe is sufficient here since project ids are short,
	// alphanumeric, and the JSON key is always quoted the same way by
	// encoding/json.
	like := fmt.Sprintf(`%%"project-id":"%s"%%`, strings.ToUpper(raw))
	if id, ok, err := s.queryOne(ctx, `SELECT id FROM notes WHERE frontmatter_json LIKE ? ORDER BY modified_ts DESC LIMIT 1`, like); err != nil {
		return 0, false, err
	} else if ok {
		return id, true, nil
	}

	return 0, false, nil
}

func (s *Store) queryOne(ctx context.Context, query string, args ...interface{}) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
