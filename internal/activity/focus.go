package activity

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// focusDoc is the on-disk shape of state/context.toml (spec.md §4.6): either
// empty, or carrying a [focus] table with project, optional started_at,
// optional note.
type focusDoc struct {
	Focus *focusTable `toml:"focus,omitempty"`
}

type focusTable struct {
	Project   string `toml:"project"`
	StartedAt string `toml:"started_at,omitempty"`
	Note      string `toml:"note,omitempty"`
}

// Focus implements lifecycle.FocusStore against state/context.toml, plus the
// Set/Project surface the focus command and create.go's implicit `project`
// variable need beyond that narrow interface. Grounded on
// stormlightlabs-knowledgelab's backend/service/settings.go: load tolerant
// of a missing file, save via the same atomic temp-rename every other
// mutation in this codebase uses.
type Focus struct {
	paths Paths
	now   func() time.Time
}

// NewFocus builds a Focus rooted at vaultRoot. A nil now defaults to
// time.Now.
func NewFocus(vaultRoot string, now func() time.Time) *Focus {
	return &Focus{paths: Paths{VaultRoot: vaultRoot}, now: now}
}

func (f *Focus) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

func (f *Focus) load() (focusDoc, error) {
	var doc focusDoc
	path := f.paths.contextFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return doc, nil
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return doc, fmt.Errorf("%w: decode focus state: %v", mderrors.ErrParse, err)
	}
	return doc, nil
}

func (f *Focus) save(doc focusDoc) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("%w: encode focus state: %v", mderrors.ErrParse, err)
	}
	return atomicWriteFile(f.paths.contextFile(), []byte(buf.String()))
}

// Current implements lifecycle.FocusStore: the vault-relative path focus
// currently points to. An explicit focused note wins; a project-only focus
// resolves to that project's own note, so archive.go's "did the archived
// project own the focus" check can compare by path prefix.
func (f *Focus) Current(ctx context.Context) (string, bool, error) {
	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	if doc.Focus == nil || doc.Focus.Project == "" {
		return "", false, nil
	}
	if doc.Focus.Note != "" {
		return doc.Focus.Note, true, nil
	}
	return fmt.Sprintf("Projects/%s/%s.md", doc.Focus.Project, doc.Focus.Project), true, nil
}

// Clear implements lifecycle.FocusStore.
func (f *Focus) Clear(ctx context.Context) error {
	return f.save(focusDoc{})
}

// Set points focus at project, optionally at a specific note within it
// (spec.md §4.6: "When focus is set, note-creation commands take project
// from focus unless overridden").
func (f *Focus) Set(ctx context.Context, project, note string) error {
	return f.save(focusDoc{Focus: &focusTable{
		Project:   project,
		StartedAt: f.clock().UTC().Format(time.RFC3339),
		Note:      note,
	}})
}

// Project returns the focused project id, if any, for callers that need the
// raw id rather than a resolved note path.
func (f *Focus) Project(ctx context.Context) (string, bool, error) {
	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	if doc.Focus == nil || doc.Focus.Project == "" {
		return "", false, nil
	}
	return doc.Focus.Project, true, nil
}
