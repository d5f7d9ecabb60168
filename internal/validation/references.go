package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// CheckLinks implements spec.md §4.7's optional --check-links pass: every
// wikilink and Markdown link links.go extracted from path at the last
// reindex must resolve in the index. A frontmatter value is only a candidate
// reference (see index.ExtractFrontmatterReferences), so one that resolves
// to no note is not reported. Unlike the schema/custom passes this reads the already-resolved
// link graph (index.Store.Links) rather than re-parsing the note, since
// resolution order (exact path, title, project-id) is the index's own
// contract, not something validation should re-derive.
func CheckLinks(ctx context.Context, store *index.Store, path string) ([]Finding, error) {
	links, err := store.Links(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: load links for %s: %v", mderrors.ErrIndex, path, err)
	}

	var findings []Finding
	for _, link := range links {
		if link.Resolved || link.Kind == index.LinkFrontmatter {
			continue
		}
		findings = append(findings, Finding{
			Field:    link.Context,
			Severity: mderrors.SeverityError,
			Message:  fmt.Sprintf("reference %q does not resolve to any note", link.TargetPath),
		})
	}
	return findings, nil
}

// checkReferenceTypes enforces the note_type constraint a reference field
// may declare (spec.md §4.7's constraint list): the referenced note, once
// resolved the same way link targets are, must carry the declared kind (or
// custom type tag).
func checkReferenceTypes(ctx context.Context, store *index.Store, doc *frontmatter.Document, def lifecycle.TypeDefinition) ([]Finding, error) {
	if store == nil {
		return nil, nil
	}

	var findings []Finding
	for _, field := range def.Schema {
		if field.Kind != lifecycle.FieldRef || field.NoteType == "" {
			continue
		}
		value, ok := doc.Get(field.Name)
		if !ok {
			continue
		}
		raw, ok := value.(string)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		target := raw
		if !strings.HasSuffix(target, ".md") {
			target += ".md"
		}
		note, _, found, err := store.GetNoteByPath(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve reference %s: %v", mderrors.ErrIndex, field.Name, err)
		}
		if !found {
			findings = append(findings, Finding{
				Field:    field.Name,
				Severity: mderrors.SeverityError,
				Message:  fmt.Sprintf("field %q references %q, which does not resolve to any note", field.Name, raw),
			})
			continue
		}

		gotType := string(note.NoteKind)
		if note.NoteKind == index.KindCustom {
			gotType = note.CustomType
		}
		if gotType != field.NoteType {
			findings = append(findings, Finding{
				Field:    field.Name,
				Severity: mderrors.SeverityError,
				Message:  fmt.Sprintf("field %q references %q of type %q, want %q", field.Name, raw, gotType, field.NoteType),
			})
		}
	}
	return findings, nil
}
