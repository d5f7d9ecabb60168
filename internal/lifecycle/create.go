package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mdvault/mdvault/internal/datemath"
	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/mderrors"
	"github.com/mdvault/mdvault/internal/script"
)

// CreateParams bundles one note-creation request. Def is already-resolved
// (built-in defaults merged with any script override, per spec.md §4.5.1
// step 1) — resolving it is the validation/engine layer's job, not this
// package's.
type CreateParams struct {
	Def       TypeDefinition
	Vars      map[string]interface{}
	Batch     bool
	Append    bool
	Overwrite bool
	Hooks     *HookRunner
}

// CreateResult reports what NoteCreator.Create did.
type CreateResult struct {
	Note     CreatedNote
	Warnings []string
}

// NoteCreator runs spec.md §4.5.1's shared pipeline for every NoteKind:
// resolve identity, collect variables, evaluate date expressions, compute
// the output path, render the scaffold, validate, run on_create, re-assert
// core fields, write atomically, log, and reindex.
type NoteCreator struct {
	Deps     Deps
	Registry *Registry
}

func (c NoteCreator) Create(ctx context.Context, p CreateParams) (CreateResult, error) {
	kind := c.Registry.Resolve(p.Def)

	vars, err := collectVariables(p.Def, p.Vars, p.Batch)
	if err != nil {
		return CreateResult{}, err
	}
	now := c.Deps.now()
	evaluateDateExprs(vars, now)

	id, relPath, err := kind.Identity(ctx, c.Deps, p.Def, vars)
	if err != nil {
		return CreateResult{}, err
	}

	fullPath := filepath.Join(c.Deps.VaultRoot, filepath.FromSlash(relPath))
	if _, statErr := os.Stat(fullPath); statErr == nil && !p.Append && !p.Overwrite {
		return CreateResult{}, &CollisionError{Path: relPath}
	}

	noteType := string(kind.NoteKind())
	if kind.NoteKind() == index.KindCustom {
		noteType = p.Def.CustomType
	}

	fields, body := renderScaffold(p.Def, noteType, id, vars)
	hookCtx := docToNoteContext(relPath, noteType, fields, body, vars)

	if ok, msg, verr := p.Hooks.validate(hookCtx); verr != nil {
		return CreateResult{}, verr
	} else if !ok {
		return CreateResult{}, fmt.Errorf("%w: %s", mderrors.ErrSchema, msg)
	}

	var warnings []string
	afterHook, hookErr := p.Hooks.call("on_create", hookCtx, p.Def.CoreFieldSet())
	if hookErr != nil {
		var warn mderrors.Warning
		if asWarning(hookErr, &warn) {
			warnings = append(warnings, warn.Message)
			afterHook = hookCtx
		} else {
			return CreateResult{}, hookErr
		}
	}

	doc, err := buildDocument(afterHook.Frontmatter, afterHook.Content)
	if err != nil {
		return CreateResult{}, err
	}

	if err := atomicWriteDocument(fullPath, doc); err != nil {
		return CreateResult{}, err
	}

	fm := make(map[string]interface{}, len(afterHook.Frontmatter))
	for _, f := range afterHook.Frontmatter {
		fm[f.Key] = f.Value
	}

	created := CreatedNote{
		Path:        relPath,
		ID:          id,
		Kind:        kind.NoteKind(),
		Frontmatter: fm,
		Vars:        vars,
	}
	switch kind.NoteKind() {
	case index.KindProject:
		created.ProjectID = id
	case index.KindTask:
		if projectID, ok := vars["project"].(string); ok {
			created.ProjectID = projectID
		}
	}

	if err := kind.AfterCreate(ctx, c.Deps, created); err != nil {
		return CreateResult{}, err
	}

	if err := c.Deps.logAppend(ctx, LogEntry{
		Timestamp: now,
		Operation: "new",
		NoteKind:  kind.NoteKind(),
		ID:        id,
		Path:      relPath,
		Metadata:  map[string]interface{}{"vars": vars},
	}); err != nil {
		return CreateResult{}, err
	}

	reindexPaths := []string{relPath}
	if created.LoggedDaily != "" {
		reindexPaths = append(reindexPaths, created.LoggedDaily)
	}
	if err := c.Deps.reindexPaths(ctx, reindexPaths); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{Note: created, Warnings: warnings}, nil
}

// asWarning reports whether err is (or wraps) a mderrors.Warning, copying it
// into *w. CallHook downgrades a hook's runtime error to a Warning already
// (a sandbox exhaustion is returned as an error, not a Warning), so for
// those this just recovers the message rather than aborting the note write.
func asWarning(err error, w *mderrors.Warning) bool {
	if warn, ok := err.(mderrors.Warning); ok {
		*w = warn
		return true
	}
	return false
}

// collectVariables fills in schema defaults for any field the caller didn't
// supply, and fails closed on a missing required field rather than writing a
// note with a hole in it — in non-batch mode the CLI layer is expected to
// have prompted before calling Create, so a field still missing here is
// treated the same as a batch-mode failure.
func collectVariables(def TypeDefinition, explicit map[string]interface{}, batch bool) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(explicit)+len(def.Schema))
	for k, v := range explicit {
		vars[k] = v
	}
	for _, f := range def.Schema {
		if _, ok := vars[f.Name]; ok {
			continue
		}
		if f.Default != nil {
			vars[f.Name] = f.Default
			continue
		}
		if f.Required {
			return nil, &MissingFieldError{Field: f.Name}
		}
	}
	return vars, nil
}

// evaluateDateExprs replaces every string variable that parses as a whole
// date expression with its resolved ISO date, in place, before any Identity
// implementation renders a path from it (spec.md §4.5.1 step 3). A variable
// that only partly looks like a date ("Monday Standup") fails
// datemath.IsDateExpr and is left untouched.
func evaluateDateExprs(vars map[string]interface{}, now time.Time) {
	for k, v := range vars {
		s, ok := v.(string)
		if !ok || !datemath.IsDateExpr(s) {
			continue
		}
		if t, err := datemath.Eval(s, now); err == nil {
			vars[k] = t.Format("2006-01-02")
		}
	}
}

// renderScaffold builds the ordered frontmatter fields and body for a fresh
// note: core fields first (type, title, then the derived id as project-id
// for a project or task-id for a task), then the collected variables the
// schema declares in schema-declared order, then the remaining collected
// variables sorted by name, then any body template the type definition
// supplies or a minimal "# <title>" stub.
func renderScaffold(def TypeDefinition, noteType, id string, vars map[string]interface{}) ([]script.FrontmatterField, string) {
	fields := []script.FrontmatterField{{Key: "type", Value: noteType}}

	title, _ := vars["title"].(string)
	if title == "" {
		title = id
	}
	fields = append(fields, script.FrontmatterField{Key: "title", Value: title})

	seen := map[string]bool{"type": true, "title": true}
	idKey := ""
	switch noteType {
	case string(index.KindProject):
		idKey = "project-id"
	case string(index.KindTask):
		idKey = "task-id"
	}
	if idKey != "" && id != "" {
		fields = append(fields, script.FrontmatterField{Key: idKey, Value: id})
		seen[idKey] = true
	}
	for _, f := range def.Schema {
		if seen[f.Name] {
			continue
		}
		if v, ok := vars[f.Name]; ok {
			fields = append(fields, script.FrontmatterField{Key: f.Name, Value: v})
			seen[f.Name] = true
		}
	}
	extra := make([]string, 0, len(vars))
	for k := range vars {
		if !seen[k] && k != "title" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fields = append(fields, script.FrontmatterField{Key: k, Value: vars[k]})
		seen[k] = true
	}

	body := def.BodyTemplate
	if body == "" {
		body = "# " + title + "\n"
	} else {
		strVars := make(map[string]string, len(vars)+1)
		for k, v := range vars {
			strVars[k] = fmt.Sprintf("%v", v)
		}
		strVars["id"] = id
		strVars["title"] = title
		body = frontmatter.SubstitutePlaceholders(body, strVars)
	}

	return fields, body
}

func buildDocument(fields []script.FrontmatterField, body string) (*frontmatter.Document, error) {
	doc, err := frontmatter.Parse("")
	if err != nil {
		return nil, err
	}
	doc.Body = body
	for _, f := range fields {
		if err := doc.Set(f.Key, f.Value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
