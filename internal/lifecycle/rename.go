package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// RenameParams describes a note rename/move request (spec.md §4.5.5).
type RenameParams struct {
	OldPath         string
	NewPath         string
	Overwrite       bool
	Force           bool // confirms an ambiguous basename resolution instead of refusing
	DryRun          bool
	CaseInsensitive bool // true when the vault root sits on a case-insensitive filesystem
}

// RenameResult reports what Rename did (or, for a dry run, would do).
type RenameResult struct {
	NewPath             string
	LinkUpdates         int
	UpdatedFiles        []string
	GitHistoryPreserved bool
}

// Rename implements spec.md §4.5.5's rewrite-then-move process: find every
// note with an incoming link to OldPath via the index, rewrite those links
// (body and frontmatter) in place, move the note file itself (via git mv
// when the vault is a git repository, preserving history), redirect the
// index's path/link rows in one transaction, and reindex every touched file.
//
// Grounded on the teacher's pkg/actions.RenameNote, generalized to resolve
// backlinks through the index (Store.Backlinks) rather than a full vault
// walk (pkg/actions.rewriteVaultLinks) — spec.md §4.5.5 step 1 requires using
// the already-maintained link graph instead of re-scanning every file.
func Rename(ctx context.Context, d Deps, p RenameParams) (RenameResult, error) {
	oldPath := normalizeRenamePath(p.OldPath)
	newPath := normalizeRenamePath(p.NewPath)
	var result RenameResult

	oldAbs := filepath.Join(d.VaultRoot, filepath.FromSlash(oldPath))
	newAbs := filepath.Join(d.VaultRoot, filepath.FromSlash(newPath))

	if _, err := os.Stat(oldAbs); err != nil {
		return result, fmt.Errorf("source note does not exist: %w", err)
	}
	if !p.Overwrite {
		if _, err := os.Stat(newAbs); err == nil {
			return result, &CollisionError{Path: newPath}
		}
	}

	basenameUnique, candidates, err := isBasenameUnique(ctx, d, oldPath)
	if err != nil {
		return result, err
	}
	if !basenameUnique && !p.Force {
		return result, &AmbiguousRenameError{Candidates: candidates}
	}

	linkUpdates, updatedFiles, err := rewriteBacklinks(ctx, d, oldPath, newPath, basenameUnique, p.CaseInsensitive, p.DryRun)
	if err != nil {
		return result, err
	}

	result.NewPath = newPath
	result.LinkUpdates = linkUpdates
	result.UpdatedFiles = updatedFiles

	if p.DryRun {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return result, fmt.Errorf("prepare target directory: %w", err)
	}

	if isGitRepo(d.VaultRoot) {
		if err := gitMove(d.VaultRoot, oldPath, newPath); err != nil {
			return result, fmt.Errorf("git rename failed: %w", err)
		}
		result.GitHistoryPreserved = true
	} else {
		if err := atomicMoveFile(oldAbs, newAbs); err != nil {
			return result, err
		}
	}

	srcNote, _, _, _ := d.Store.GetNoteByPath(ctx, oldPath)

	if err := d.Store.RenamePath(ctx, oldPath, newPath); err != nil {
		return result, err
	}

	reindex := append([]string{newPath}, updatedFiles...)
	if err := d.reindexPaths(ctx, reindex); err != nil {
		return result, err
	}

	if err := d.logAppend(ctx, LogEntry{
		Operation: "rename",
		NoteKind:  srcNote.NoteKind,
		Path:      newPath,
		Metadata:  map[string]interface{}{"old_path": oldPath, "link_updates": linkUpdates, "updated_files": updatedFiles},
	}); err != nil {
		return result, err
	}

	return result, nil
}

// rewriteBacklinks finds every note with an incoming link to oldPath (via
// the index) and rewrites those links in place, returning the total rewrite
// count and the list of files touched. When dryRun is true, files are
// scanned and counted but never written — the caller gets a preview.
func rewriteBacklinks(ctx context.Context, d Deps, oldPath, newPath string, basenameUnique, caseInsensitive, dryRun bool) (int, []string, error) {
	backlinks, err := d.Store.Backlinks(ctx, oldPath)
	if err != nil {
		return 0, nil, err
	}

	var updatedFiles []string
	linkUpdates := 0
	for _, src := range backlinks {
		srcAbs := filepath.Join(d.VaultRoot, filepath.FromSlash(src.Path))
		raw, err := os.ReadFile(srcAbs)
		if err != nil {
			return linkUpdates, updatedFiles, fmt.Errorf("%w: read backlink source %s: %v", mderrors.ErrIndex, src.Path, err)
		}
		doc, err := frontmatter.Parse(string(raw))
		if err != nil {
			return linkUpdates, updatedFiles, err
		}

		body, bodyCount := RewriteLinksInContent(doc.Body, oldPath, newPath, basenameUnique, caseInsensitive)
		fmCount, err := RewriteFrontmatterRefs(doc, oldPath, newPath, basenameUnique, caseInsensitive)
		if err != nil {
			return linkUpdates, updatedFiles, err
		}
		if bodyCount+fmCount == 0 {
			continue
		}
		doc.Body = body
		linkUpdates += bodyCount + fmCount
		updatedFiles = append(updatedFiles, src.Path)

		if !dryRun {
			if err := atomicWriteDocument(srcAbs, doc); err != nil {
				return linkUpdates, updatedFiles, err
			}
		}
	}
	return linkUpdates, updatedFiles, nil
}

func normalizeRenamePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if filepath.Ext(p) == "" {
		p += ".md"
	}
	return p
}

// isBasenameUnique reports whether path's basename (sans extension) is not
// shared by any other note in the vault, and if it is shared, the candidate
// paths that make resolution ambiguous — a bare-filename wikilink elsewhere
// in the vault could mean any of them (spec.md §4.5.5's "ambiguous
// resolutions yield a warning listing candidates").
func isBasenameUnique(ctx context.Context, d Deps, path string) (bool, []string, error) {
	all, err := d.Store.List(ctx, index.ListOptions{})
	if err != nil {
		return true, nil, err
	}
	target := strings.TrimSuffix(baseName(path), filepath.Ext(path))
	var candidates []string
	for _, n := range all {
		if n.Path == path {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(baseName(n.Path), filepath.Ext(n.Path)), target) {
			candidates = append(candidates, n.Path)
		}
	}
	if len(candidates) == 0 {
		return true, nil, nil
	}
	return false, append(candidates, path), nil
}

func isGitRepo(root string) bool {
	info, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil && info.IsDir()
}

func gitMove(root, sourceRel, targetRel string) error {
	cmd := exec.Command("git", "-C", root, "mv", "--", sourceRel, targetRel)
	return cmd.Run()
}
