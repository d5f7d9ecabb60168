package lifecycle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mdvault/mdvault/internal/datemath"
	"github.com/mdvault/mdvault/internal/index"
)

type dateIDFormat int

const (
	dateISO dateIDFormat = iota
	dateISOWeek
	dateMeeting
)

// dateKeyedKind implements Kind for Daily/Weekly/Meeting: a single date
// expression (default "today", spec.md §4.5.1's Prompts column) drives both
// the id and the output path, per-variant template.
type dateKeyedKind struct {
	kind         index.NoteKind
	pathTemplate string
	idFormat     dateIDFormat
}

func (k dateKeyedKind) NoteKind() index.NoteKind { return k.kind }

func (k dateKeyedKind) Prompts(def TypeDefinition) []FieldSchema {
	prompts := []FieldSchema{{Name: "date", Kind: FieldDate, Prompt: "Date (default today)", Default: "today"}}
	if k.kind == index.KindMeeting {
		prompts = append(prompts, FieldSchema{Name: "title", Kind: FieldString, Required: true, Prompt: "Meeting title"})
	}
	for _, f := range def.Schema {
		if f.Prompt != "" {
			prompts = append(prompts, f)
		}
	}
	return prompts
}

func (k dateKeyedKind) Identity(ctx context.Context, d Deps, def TypeDefinition, vars map[string]interface{}) (string, string, error) {
	expr, _ := vars["date"].(string)
	if strings.TrimSpace(expr) == "" {
		expr = "today"
	}
	when, err := datemath.Eval(expr, d.now())
	if err != nil {
		return "", "", err
	}

	var id string
	switch k.idFormat {
	case dateISO:
		id = when.Format("2006-01-02")
	case dateISOWeek:
		year, week := when.ISOWeek()
		id = fmt.Sprintf("%04d-W%02d", year, week)
	case dateMeeting:
		title, _ := vars["title"].(string)
		id = when.Format("2006-01-02") + "-" + slugify(title)
	}

	path := k.pathTemplate
	path = strings.ReplaceAll(path, "{{year}}", fmt.Sprintf("%04d", when.Year()))
	path = strings.ReplaceAll(path, "{{date}}", when.Format("2006-01-02"))
	path = strings.ReplaceAll(path, "{{week}}", id)
	if k.kind == index.KindMeeting {
		title, _ := vars["title"].(string)
		path = strings.ReplaceAll(path, "{{slug}}", slugify(title))
	}
	return id, path, nil
}

func (k dateKeyedKind) AfterCreate(ctx context.Context, d Deps, created CreatedNote) error {
	return nil
}

var slugNonWord = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugNonWord.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "untitled"
	}
	return s
}
