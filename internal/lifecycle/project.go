package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mdvault/mdvault/internal/index"
)

// projectKind implements Kind for spec.md §4.5.1's Project row: id is a
// 3-4 letter uppercase tag derived from the title (disambiguated on
// collision), path is Projects/<pid>/<pid>.md.
type projectKind struct{}

func (projectKind) NoteKind() index.NoteKind { return index.KindProject }

func (projectKind) Prompts(def TypeDefinition) []FieldSchema {
	prompts := []FieldSchema{{Name: "project-id", Kind: FieldString, Prompt: "Project id (leave blank to derive from title)"}}
	for _, f := range def.Schema {
		if f.Prompt != "" {
			prompts = append(prompts, f)
		}
	}
	return prompts
}

func (projectKind) Identity(ctx context.Context, d Deps, def TypeDefinition, vars map[string]interface{}) (string, string, error) {
	existing, err := existingProjectIDs(ctx, d)
	if err != nil {
		return "", "", err
	}

	id, _ := vars["project-id"].(string)
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		title, _ := vars["title"].(string)
		id, err = deriveProjectID(title, existing)
		if err != nil {
			return "", "", err
		}
	} else if existing[id] {
		return "", "", &CollisionError{Path: fmt.Sprintf("project-id %q", id)}
	}

	return id, fmt.Sprintf("Projects/%s/%s.md", id, id), nil
}

func (projectKind) AfterCreate(ctx context.Context, d Deps, created CreatedNote) error {
	return nil
}

func existingProjectIDs(ctx context.Context, d Deps) (map[string]bool, error) {
	projects, err := d.Store.List(ctx, index.ListOptions{Kind: index.KindProject})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(projects))
	for _, p := range projects {
		if id, ok := p.Frontmatter["project-id"].(string); ok {
			ids[id] = true
		}
	}
	return ids, nil
}

// deriveProjectID builds a 3-4 letter uppercase tag from title's word
// initials ("My Cool Project" -> "MCP"), padding from the first word's
// remaining letters when there are fewer than 3 words, and extending by one
// more letter at a time on collision before giving up at 4 letters.
func deriveProjectID(title string, existing map[string]bool) (string, error) {
	words := strings.Fields(title)
	if len(words) == 0 {
		return "", fmt.Errorf("cannot derive a project id from an empty title")
	}

	var initials []rune
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) {
				initials = append(initials, unicode.ToUpper(r))
				break
			}
		}
	}
	if len(initials) > 4 {
		initials = initials[:4]
	}

	firstWordLetters := lettersOf(words[0])
	padIdx := 1 // skip the first letter, already used as an initial
	for len(initials) < 3 && padIdx < len(firstWordLetters) {
		initials = append(initials, unicode.ToUpper(firstWordLetters[padIdx]))
		padIdx++
	}
	if len(initials) < 3 {
		return "", fmt.Errorf("title %q is too short to derive a project id", title)
	}

	candidate := string(initials)
	for existing[candidate] {
		if len(candidate) >= 4 || padIdx >= len(firstWordLetters) {
			return "", &CollisionError{Path: fmt.Sprintf("project-id candidates for %q exhausted", title)}
		}
		candidate += string(unicode.ToUpper(firstWordLetters[padIdx]))
		padIdx++
	}
	return candidate, nil
}

func lettersOf(s string) []rune {
	var out []rune
	for _, r := range s {
		if unicode.IsLetter(r) {
			out = append(out, r)
		}
	}
	return out
}
