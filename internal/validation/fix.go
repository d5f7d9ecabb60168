package validation

import (
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/lifecycle"
)

// applyFixes implements spec.md §4.7's auto-fix contract, "only safe
// corrections: inject missing required fields that have a default;
// normalize enum values to their canonical case" — the same conservative
// stance as the teacher's SetFrontmatterProperty (pkg/obsidian/
// properties_edit.go), which never overwrites a value that is already
// present unless explicitly told to. Auto-fix here never overwrites a
// present, non-enum value, and never deletes anything.
func applyFixes(doc *frontmatter.Document, def lifecycle.TypeDefinition) ([]string, bool) {
	var fixed []string
	for _, field := range def.Schema {
		value, present := doc.Get(field.Name)
		if !present {
			if field.Required && field.Default != nil {
				if err := doc.Set(field.Name, field.Default); err == nil {
					fixed = append(fixed, field.Name)
				}
			}
			continue
		}

		if len(field.Enum) == 0 {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if canonical, needsFix := canonicalEnumCase(s, field.Enum); needsFix {
			if err := doc.Set(field.Name, canonical); err == nil {
				fixed = append(fixed, field.Name)
			}
		}
	}
	return fixed, len(fixed) > 0
}

// canonicalEnumCase reports the declared enum entry matching s
// case-insensitively, if s isn't already an exact match for one.
func canonicalEnumCase(s string, enum []string) (string, bool) {
	for _, allowed := range enum {
		if s == allowed {
			return s, false
		}
	}
	for _, allowed := range enum {
		if strings.EqualFold(s, allowed) {
			return allowed, true
		}
	}
	return s, false
}
