package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
)

// customKind implements Kind for Zettel and any script-defined type tag:
// both render id and path from the type definition's own output template
// (spec.md §4.5.1's "Zettel/Custom: id & path from script-defined `output`
// template"), rather than a kind-specific rule.
type customKind struct {
	kind       index.NoteKind
	customType string
}

func (k customKind) NoteKind() index.NoteKind { return k.kind }

func (customKind) Prompts(def TypeDefinition) []FieldSchema {
	var prompts []FieldSchema
	for _, f := range def.Schema {
		if f.Prompt != "" {
			prompts = append(prompts, f)
		}
	}
	return prompts
}

func (k customKind) Identity(ctx context.Context, d Deps, def TypeDefinition, vars map[string]interface{}) (string, string, error) {
	id := uuid.NewString()[:8]
	if title, ok := vars["title"].(string); ok && strings.TrimSpace(title) != "" {
		id = slugify(title)
	}

	tmpl := def.OutputTemplate
	if tmpl == "" {
		tmpl = fmt.Sprintf("Zettel/%s.md", "{{id}}")
	}

	strVars := make(map[string]string, len(vars)+2)
	for key, v := range vars {
		strVars[key] = fmt.Sprintf("%v", v)
	}
	strVars["id"] = id
	strVars["slug"] = id
	strVars["date"] = d.now().Format("2006-01-02")

	path := frontmatter.SubstitutePlaceholders(tmpl, strVars)
	return id, path, nil
}

func (customKind) AfterCreate(ctx context.Context, d Deps, created CreatedNote) error {
	return nil
}
