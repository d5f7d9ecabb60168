package lifecycle

import "github.com/mdvault/mdvault/internal/index"

// FieldKind is the scalar/shape tag of one schema field (spec.md §3's type
// definition "schema (mapping field → {kind, required, default, enum,
// prompt, multiline, core, inherited})").
type FieldKind string

const (
	FieldString   FieldKind = "string"
	FieldInt      FieldKind = "int"
	FieldBool     FieldKind = "bool"
	FieldList     FieldKind = "list"
	FieldDate     FieldKind = "date"
	FieldDateTime FieldKind = "datetime"
	FieldRef      FieldKind = "reference"
)

// FieldSchema describes one frontmatter field a type definition declares.
// The constraint fields (Pattern through NoteType) are spec.md §4.7's
// per-kind validation inputs: internal/validation reads whichever ones this
// field's Kind makes meaningful and ignores the rest.
type FieldSchema struct {
	Name      string
	Kind      FieldKind
	Required  bool
	Default   interface{}
	Enum      []string
	Prompt    string // prompt text shown to the user; empty means non-interactive-only
	Multiline bool
	Core      bool // re-asserted over a hook's return value (spec.md §4.5.1 step 9)
	Inherited bool // value copied from the focus/parent context rather than prompted

	Pattern   string // regex a FieldString value must match, if set
	Min, Max  *float64
	MinLength *int
	MaxLength *int
	MinItems  *int
	MaxItems  *int
	NoteType  string // for FieldRef: the NoteKind (or custom type) the reference must resolve to
}

// TypeDefinition is the resolved descriptor for one note kind: schema in
// declared order, output path template, and the optional script hooks
// spec.md §4.3 lets a type table carry.
type TypeDefinition struct {
	Kind           index.NoteKind
	CustomType     string // raw `type` tag when Kind == KindCustom
	Schema         []FieldSchema
	OutputTemplate string
	BodyTemplate   string // empty means "render a minimal `# <title>` stub"
}

// FieldByName returns the schema field named name, if declared.
func (d TypeDefinition) FieldByName(name string) (FieldSchema, bool) {
	for _, f := range d.Schema {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// CoreFieldSet returns the set of field names the pipeline re-asserts after
// a hook runs: type and title, every schema field marked Core, and any extra
// names passed in.
func (d TypeDefinition) CoreFieldSet(extra ...string) map[string]bool {
	set := make(map[string]bool, len(d.Schema)+len(extra)+2)
	set["type"] = true
	set["title"] = true
	for _, f := range d.Schema {
		if f.Core {
			set[f.Name] = true
		}
	}
	for _, e := range extra {
		set[e] = true
	}
	return set
}
