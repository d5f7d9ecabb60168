package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
)

// ArchiveParams describes a project-archive request (spec.md §4.5.6).
type ArchiveParams struct {
	ProjectID string
}

// ArchiveResult reports the cascade's outcome.
type ArchiveResult struct {
	ArchivedPath     string
	CancelledTasks   []string
	MovedFiles       []string
	ReferenceUpdates int
	FocusCleared     bool
}

// Archive runs spec.md §4.5.6's seven-step cascade: refuse unless the
// project's status is "done"; cancel every still-open task under it; mark
// the project itself archived; clear focus if it pointed inside the
// project; move the whole Projects/<pid>/ tree to Projects/_archive/<pid>/
// atomically; rewrite every vault reference to a moved file; and log the
// result. Grounded on the teacher's pkg/actions/rename.go for the atomic
// per-file move and link-rewrite mechanics, generalized from a single-file
// rename to a whole-subtree archive move.
func Archive(ctx context.Context, d Deps, p ArchiveParams) (ArchiveResult, error) {
	var result ArchiveResult

	projectPath, ok, err := d.Store.FindProjectPath(ctx, p.ProjectID)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, fmt.Errorf("no project with project-id %q", p.ProjectID)
	}

	note, _, _, err := d.Store.GetNoteByPath(ctx, projectPath)
	if err != nil {
		return result, err
	}
	status, _ := note.Frontmatter["status"].(string)
	if status != "done" {
		return result, &ArchivePreconditionError{ProjectID: p.ProjectID, Status: status}
	}

	now := d.now()

	openTasks, err := d.Store.ListTasksForProject(ctx, p.ProjectID, true)
	if err != nil {
		return result, err
	}
	for _, task := range openTasks {
		taskAbs := filepath.Join(d.VaultRoot, filepath.FromSlash(task.Path))
		if err := setProjectNoteFields(taskAbs, map[string]interface{}{
			"status":       "cancelled",
			"cancelled_at": now.Format(timeRFC3339),
		}); err != nil {
			return result, err
		}
		result.CancelledTasks = append(result.CancelledTasks, task.Path)
	}

	projectAbs := filepath.Join(d.VaultRoot, filepath.FromSlash(projectPath))
	if err := setProjectNoteFields(projectAbs, map[string]interface{}{
		"status":      "archived",
		"archived_at": now.Format(timeRFC3339),
	}); err != nil {
		return result, err
	}

	if d.Focus != nil {
		focused, ok, err := d.Focus.Current(ctx)
		if err != nil {
			return result, err
		}
		if ok && strings.HasPrefix(focused, projectDir(p.ProjectID)+"/") {
			if err := d.Focus.Clear(ctx); err != nil {
				return result, err
			}
			result.FocusCleared = true
		}
	}

	srcDir := filepath.Join(d.VaultRoot, projectDir(p.ProjectID))
	destRelDir := "Projects/_archive/" + p.ProjectID
	destDir := filepath.Join(d.VaultRoot, filepath.FromSlash(destRelDir))

	moved, err := moveProjectTree(srcDir, destDir, projectDir(p.ProjectID))
	if err != nil {
		return result, err
	}
	result.MovedFiles = moved

	reindex := make([]string, 0, len(moved))
	for _, oldRel := range moved {
		newRel := destRelDir + strings.TrimPrefix(oldRel, projectDir(p.ProjectID))
		if oldRel == projectPath {
			result.ArchivedPath = newRel
		}
		reindex = append(reindex, newRel)
	}

	for _, oldRel := range moved {
		newRel := destRelDir + strings.TrimPrefix(oldRel, projectDir(p.ProjectID))
		linkUpdates, updatedFiles, err := rewriteBacklinks(ctx, d, oldRel, newRel, true, false, false)
		if err != nil {
			return result, err
		}
		if err := d.Store.RenamePath(ctx, oldRel, newRel); err != nil {
			return result, err
		}
		result.ReferenceUpdates += linkUpdates
		reindex = append(reindex, updatedFiles...)
	}

	if err := d.reindexPaths(ctx, dedupe(reindex)); err != nil {
		return result, err
	}

	if err := d.logAppend(ctx, LogEntry{
		Timestamp: now,
		Operation: "archive",
		NoteKind:  index.KindProject,
		ID:        p.ProjectID,
		Path:      result.ArchivedPath,
		Metadata: map[string]interface{}{
			"cancelled_tasks": result.CancelledTasks,
			"moved_files":     result.MovedFiles,
		},
	}); err != nil {
		return result, err
	}

	return result, nil
}

const timeRFC3339 = "2006-01-02T15:04:05Z07:00"

func projectDir(projectID string) string {
	return "Projects/" + projectID
}

func setProjectNoteFields(path string, fields map[string]interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := frontmatter.Parse(string(raw))
	if err != nil {
		return err
	}
	for k, v := range fields {
		if err := doc.Set(k, v); err != nil {
			return err
		}
	}
	return atomicWriteDocument(path, doc)
}

// moveProjectTree walks srcDir (a Projects/<pid> directory) and moves every
// regular file into the equivalent position under destDir, atomically per
// file (spec.md §4.5.6 step 5). Returned paths are vault-relative, built as
// srcRel + "/" + the file's path under srcDir, i.e.
// "Projects/<pid>/Tasks/PID-001.md" style, so the caller can compute each
// file's old/new vault-relative path uniformly.
func moveProjectTree(srcDir, destDir, srcRel string) ([]string, error) {
	var moved []string
	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if err := atomicMoveFile(path, filepath.Join(destDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
		moved = append(moved, srcRel+"/"+rel)
		return nil
	})
	if err != nil {
		return moved, err
	}
	removeEmptyDirs(srcDir)
	return moved, nil
}

// removeEmptyDirs prunes the now-empty directory tree left behind after
// moveProjectTree relocates every file out of dir, deepest first so a
// parent only empties out after its children have already been removed.
func removeEmptyDirs(dir string) {
	var dirs []string
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
