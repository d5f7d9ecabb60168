// Package lifecycle implements spec.md §4.5: the polymorphic note-creation
// pipeline, atomic project-counter allocation, capture, macro execution,
// reference-rewriting rename, and project archiving.
//
// The teacher's pkg/actions package hard-codes one behavior per CLI verb
// (create.go shells out to the Obsidian URI scheme; rename.go and move.go
// each own a single file-move path). This package replaces that per-name
// branching with the Kind interface's three contracts (Identity, Prompts,
// AfterCreate) so Task/Project/Daily/Weekly/Meeting/Zettel/Custom share one
// pipeline (create.go's NoteCreator.Create), the way spec.md §4.5.1
// requires. rename.go keeps the teacher's actual file-move and git-mv
// mechanics (pkg/actions/rename.go) and archive.go its per-file move,
// generalized to redirect through the index rather than a full vault walk.
package lifecycle

import (
	"context"
	"time"

	"github.com/mdvault/mdvault/internal/index"
)

// Deps bundles the collaborators every lifecycle operation needs. The
// engine layer constructs one Deps per command invocation.
type Deps struct {
	VaultRoot string
	Store     *index.Store
	Walker    index.Walker
	Now       func() time.Time
	Log       ActivityLogger
	Focus     FocusStore
}

// FocusStore is the narrow slice of internal/activity's focus-state
// mechanism archive.go needs: read the path currently focused, and clear it.
// A nil Focus makes archive.go's focus-clearing step a no-op, the same
// nil-safety pattern ActivityLogger already uses.
type FocusStore interface {
	Current(ctx context.Context) (path string, ok bool, err error)
	Clear(ctx context.Context) error
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ActivityLogger appends one operation-log entry (spec.md §4.6). The
// internal/activity package supplies the real implementation; lifecycle only
// depends on this narrow interface so its tests can stub it out.
type ActivityLogger interface {
	Append(ctx context.Context, entry LogEntry) error
}

// LogEntry mirrors spec.md §3's "operation log entry": timestamp, operation
// kind, note kind, optional id, path, arbitrary metadata.
type LogEntry struct {
	Timestamp time.Time
	Operation string
	NoteKind  index.NoteKind
	ID        string
	Path      string
	Metadata  map[string]interface{}
}

func (d Deps) logAppend(ctx context.Context, entry LogEntry) error {
	if d.Log == nil {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = d.now()
	}
	return d.Log.Append(ctx, entry)
}

// reindex triggers an incremental reindex restricted to the given
// vault-relative paths, the narrow form spec.md §4.5.1 step 12 and §4.5.5
// step 6 call for ("reindex the new/renamed file and the daily note/source
// files it touched").
func (d Deps) reindexPaths(ctx context.Context, paths []string) error {
	_, err := d.Store.ReindexPaths(ctx, d.Walker, paths)
	return err
}
