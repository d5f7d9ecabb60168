// Package validation implements spec.md §4.7: schema validation against a
// type definition's field list, the script-defined custom validate(note)
// hook, an optional link-integrity sweep, and a conservative auto-fix pass.
//
// The teacher has no equivalent component — pkg/obsidian writes properties
// but never checks them against a declared shape. The one thing it does
// contribute is the auto-fix discipline: SetFrontmatterProperty in
// pkg/obsidian/properties_edit.go only ever sets a property that is either
// absent or explicitly marked for overwrite, preserving existing casing
// otherwise. fix.go below is that same rule applied to two specific cases
// spec.md §4.7 allows ("inject missing required fields that have a default;
// normalize enum values to canonical case") rather than a general property
// editor.
package validation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
	"github.com/mdvault/mdvault/internal/script"
)

// Deps bundles the collaborators a validation run needs: the index (for
// reference resolution and note_type checks) and the vault root (to read
// and, with Fix, rewrite the note file).
type Deps struct {
	VaultRoot string
	Store     *index.Store
}

// Options toggles the two opt-in passes spec.md §4.7 describes.
type Options struct {
	CheckLinks bool
	Fix        bool
}

// Finding is one validation result: a field or link issue at a severity.
type Finding struct {
	Field    string
	Severity mderrors.Severity
	Message  string
}

// Result is everything one Validate call produced for one note.
type Result struct {
	Path     string
	Findings []Finding
	Fixed    []string // field names an auto-fix pass changed, in fix order
}

// ErrorCount returns the number of error-severity findings.
func (r Result) ErrorCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == mderrors.SeverityError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning-severity findings.
func (r Result) WarningCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == mderrors.SeverityWarning {
			n++
		}
	}
	return n
}

// Validate runs schema validation, the type's custom validate(note) hook (if
// any), and, with Options.CheckLinks, a link-integrity sweep against path.
// With Options.Fix, safe corrections are applied and rewritten to disk
// before the final (post-fix) findings are returned.
func Validate(ctx context.Context, d Deps, def lifecycle.TypeDefinition, hooks *lifecycle.HookRunner, path string, opts Options) (Result, error) {
	abs := filepath.Join(d.VaultRoot, filepath.FromSlash(path))
	raw, err := readFile(abs)
	if err != nil {
		return Result{}, err
	}

	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	if opts.Fix {
		fixed, changed := applyFixes(doc, def)
		if changed {
			if err := writeFile(abs, doc); err != nil {
				return Result{}, err
			}
			result, err := Validate(ctx, d, def, hooks, path, Options{CheckLinks: opts.CheckLinks})
			if err != nil {
				return Result{}, err
			}
			result.Fixed = fixed
			return result, nil
		}
	}

	result := Result{Path: path}
	result.Findings = append(result.Findings, CheckSchema(doc, def)...)

	if refFindings, err := checkReferenceTypes(ctx, d.Store, doc, def); err != nil {
		return Result{}, err
	} else {
		result.Findings = append(result.Findings, refFindings...)
	}

	if opts.CheckLinks && d.Store != nil {
		linkFindings, err := CheckLinks(ctx, d.Store, path)
		if err != nil {
			return Result{}, err
		}
		result.Findings = append(result.Findings, linkFindings...)
	}

	if hookFinding, err := checkCustom(hooks, path, def, doc); err != nil {
		return Result{}, err
	} else if hookFinding != nil {
		result.Findings = append(result.Findings, *hookFinding)
	}

	return result, nil
}

// checkCustom invokes the type's validate(note) hook, mapping a hard failure
// (ok == false) to one error finding carrying the hook's message (spec.md
// §4.7: "ok = false is a hard failure carrying message").
func checkCustom(hooks *lifecycle.HookRunner, path string, def lifecycle.TypeDefinition, doc *frontmatter.Document) (*Finding, error) {
	if hooks == nil {
		return nil, nil
	}

	noteType := string(def.Kind)
	if def.Kind == index.KindCustom {
		noteType = def.CustomType
	}

	fields := make([]script.FrontmatterField, 0, len(doc.Keys()))
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		fields = append(fields, script.FrontmatterField{Key: k, Value: v})
	}

	ctx := script.NoteContext{
		Path:        path,
		Frontmatter: fields,
		Content:     doc.Body,
		Type:        noteType,
	}

	ok, msg, err := hooks.Validate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: custom validation: %v", mderrors.ErrSandbox, err)
	}
	if ok {
		return nil, nil
	}
	if msg == "" {
		msg = "custom validation failed"
	}
	return &Finding{Severity: mderrors.SeverityError, Message: msg}, nil
}
