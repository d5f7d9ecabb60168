package lifecycle

import (
	"fmt"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// TargetMissingError reports a capture/macro step whose target file does not
// exist and create_if_missing was not set (spec.md §4.5.3 step 4).
type TargetMissingError struct {
	Path string
}

func (e *TargetMissingError) Error() string {
	return fmt.Sprintf("%v: target note missing: %s", mderrors.ErrNotFound, e.Path)
}

// CollisionError reports a create whose computed output path already exists
// and the caller did not request append/overwrite (spec.md §4.5.1 step 5).
type CollisionError struct {
	Path string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%v: output path already exists: %s", mderrors.ErrConflict, e.Path)
}

// ArchivePreconditionError reports archiving a project that is not done
// (spec.md §4.5.6).
type ArchivePreconditionError struct {
	ProjectID string
	Status    string
}

func (e *ArchivePreconditionError) Error() string {
	return fmt.Sprintf("%v: project %s has status %q, must be \"done\" to archive", mderrors.ErrPrecondition, e.ProjectID, e.Status)
}

// MissingFieldError reports a required schema field with no default, no
// supplied variable, and batch mode (so no prompt can run) — spec.md
// §4.5.1 step 2's "skipped in batch mode if required fields missing → fatal".
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: required field %q has no value and batch mode disallows prompting", mderrors.ErrPrecondition, e.Field)
}

// ArchivedProjectError reports an attempt to create a task inside an
// archived project (spec.md §4.5.6 step 7: "task creation in an archived
// project is refused").
type ArchivedProjectError struct {
	ProjectID string
}

func (e *ArchivedProjectError) Error() string {
	return fmt.Sprintf("%v: project %s is archived, refusing new task", mderrors.ErrPrecondition, e.ProjectID)
}

// AmbiguousRenameError reports a rename target whose project-id collision or
// link-resolution step found more than one plausible candidate (spec.md
// §4.5.5: "ambiguous resolutions yield a warning listing candidates").
type AmbiguousRenameError struct {
	Candidates []string
}

func (e *AmbiguousRenameError) Error() string {
	return fmt.Sprintf("%v: ambiguous rename target among %d candidates", mderrors.ErrConflict, len(e.Candidates))
}
