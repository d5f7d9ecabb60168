package lifecycle

import (
	"context"

	"github.com/mdvault/mdvault/internal/index"
)

// Kind is the three-contract interface spec.md §4.5.1's table describes:
// Identity (compute id + output path), Prompts (which fields to ask the
// user for, beyond what variables/defaults already supplied), and
// AfterCreate (variant-specific post-write side effects). Task, Project,
// Daily, Weekly, Meeting, Zettel, and Custom each implement it once, in
// place of the teacher's per-verb branching in pkg/actions/create.go.
type Kind interface {
	NoteKind() index.NoteKind

	// Identity computes this creation's id and vault-relative output path
	// from the type definition and the variables collected so far (date
	// expressions already evaluated). It may perform side-effecting
	// allocation (the project task counter).
	Identity(ctx context.Context, d Deps, def TypeDefinition, vars map[string]interface{}) (id, path string, err error)

	// Prompts returns the fields this kind wants to ask about, in addition
	// to whatever the type definition's own schema declares.
	Prompts(def TypeDefinition) []FieldSchema

	// AfterCreate runs once the note file has been written and validated:
	// project counter resets, daily-note logging hand-off, hook triggers
	// beyond on_create.
	AfterCreate(ctx context.Context, d Deps, created CreatedNote) error
}

// CreatedNote is the result handed to AfterCreate and to the activity log.
type CreatedNote struct {
	Path        string
	ID          string
	Kind        index.NoteKind
	ProjectID   string // set for Task/Project
	Frontmatter map[string]interface{}
	Vars        map[string]interface{}
	LoggedDaily string // vault-relative path of the daily note this creation logged to, if any
}

// Registry resolves a NoteKind to its Kind implementation. Custom types
// (anything beyond the five built-ins) don't need a lookup table entry —
// customKind is stateless per type definition, so Resolve constructs one
// directly from the definition's CustomType.
type Registry struct {
	builtins map[index.NoteKind]Kind
}

// NewRegistry builds the standard registry of the five built-in kinds;
// Zettel and any unrecognized `type` tag both resolve through customKind,
// which renders from the type definition's own output template rather than
// a kind-specific id/path rule.
func NewRegistry() *Registry {
	r := &Registry{
		builtins: make(map[index.NoteKind]Kind),
	}
	r.builtins[index.KindTask] = taskKind{}
	r.builtins[index.KindProject] = projectKind{}
	r.builtins[index.KindDaily] = dateKeyedKind{kind: index.KindDaily, pathTemplate: "Journal/{{year}}/Daily/{{date}}.md", idFormat: dateISO}
	r.builtins[index.KindWeekly] = dateKeyedKind{kind: index.KindWeekly, pathTemplate: "Journal/{{year}}/Weekly/{{week}}.md", idFormat: dateISOWeek}
	r.builtins[index.KindMeeting] = dateKeyedKind{kind: index.KindMeeting, pathTemplate: "Meetings/{{date}}-{{slug}}.md", idFormat: dateMeeting}
	r.builtins[index.KindZettel] = customKind{kind: index.KindZettel}
	return r
}

// Resolve returns the Kind implementation for a type definition.
func (r *Registry) Resolve(def TypeDefinition) Kind {
	if k, ok := r.builtins[def.Kind]; ok {
		return k
	}
	return customKind{kind: index.KindCustom, customType: def.CustomType}
}
