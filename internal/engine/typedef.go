package engine

import (
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mdast"
	"github.com/mdvault/mdvault/internal/script"
)

// builtinKinds is the set of NoteKind names a type definition's top-level
// `kind` key may name directly; anything else is a custom type, carried as
// def.CustomType with Kind == index.KindCustom (spec.md §3's "script-defined
// descriptor" covers both the five built-ins and arbitrary custom types the
// same way).
var builtinKinds = map[string]index.NoteKind{
	string(index.KindTask):    index.KindTask,
	string(index.KindProject): index.KindProject,
	string(index.KindDaily):   index.KindDaily,
	string(index.KindWeekly):  index.KindWeekly,
	string(index.KindMeeting): index.KindMeeting,
	string(index.KindZettel):  index.KindZettel,
}

// LoadTypeDefinition evaluates the script at path and converts its returned
// table into a lifecycle.TypeDefinition plus the HookRunner that will run
// its validate/on_create/on_update hooks later in the same pipeline. The
// returned Runtime's lifetime is the caller's responsibility — rt is bound
// to the single command invocation that called this (spec.md §4.3: "no
// shared mutable globals between commands").
func LoadTypeDefinition(rt *script.Runtime, path string) (lifecycle.TypeDefinition, *lifecycle.HookRunner, error) {
	tbl, err := rt.LoadDefinition(path)
	if err != nil {
		return lifecycle.TypeDefinition{}, nil, err
	}

	def := lifecycle.TypeDefinition{
		OutputTemplate: script.OptString(tbl, "output_template", ""),
		BodyTemplate:   script.OptString(tbl, "body_template", ""),
	}

	kindTag := script.OptString(tbl, "kind", "")
	if builtin, ok := builtinKinds[kindTag]; ok {
		def.Kind = builtin
	} else {
		def.Kind = index.KindCustom
		def.CustomType = script.OptString(tbl, "type", kindTag)
		if def.CustomType == "" {
			return lifecycle.TypeDefinition{}, nil, &script.DefinitionError{Path: path, Key: "type", Want: "custom type definitions must set kind=\"custom\" and a type name"}
		}
	}

	schemaTbl, ok := tbl.RawGetString("schema").(*lua.LTable)
	if !ok {
		return lifecycle.TypeDefinition{}, nil, &script.DefinitionError{Path: path, Key: "schema", Want: "required table"}
	}
	schema, err := parseSchema(path, schemaTbl)
	if err != nil {
		return lifecycle.TypeDefinition{}, nil, err
	}
	def.Schema = schema

	return def, &lifecycle.HookRunner{Runtime: rt, Def: tbl}, nil
}

// parseSchema converts the array-shaped `schema` table (one sub-table per
// field, in declared order — Lua's own table iteration order over string
// keys is unspecified, so the format uses ipairs-style integer indices
// rather than a field-name-keyed map) into []lifecycle.FieldSchema.
func parseSchema(path string, tbl *lua.LTable) ([]lifecycle.FieldSchema, error) {
	var out []lifecycle.FieldSchema
	var walkErr error
	tbl.ForEach(func(_, v lua.LValue) {
		if walkErr != nil {
			return
		}
		row, ok := v.(*lua.LTable)
		if !ok {
			walkErr = &script.DefinitionError{Path: path, Key: "schema", Want: "each entry must be a table"}
			return
		}
		field, err := parseField(path, row)
		if err != nil {
			walkErr = err
			return
		}
		out = append(out, field)
	})
	return out, walkErr
}

func parseField(path string, row *lua.LTable) (lifecycle.FieldSchema, error) {
	name, err := script.RequireString(path, row, "name")
	if err != nil {
		return lifecycle.FieldSchema{}, err
	}
	kindStr, err := script.RequireString(path, row, "kind")
	if err != nil {
		return lifecycle.FieldSchema{}, err
	}

	f := lifecycle.FieldSchema{
		Name:      name,
		Kind:      lifecycle.FieldKind(kindStr),
		Required:  optBool(row, "required", false),
		Default:   script.LuaToGoValue(row.RawGetString("default")),
		Enum:      optStringSlice(row, "enum"),
		Prompt:    script.OptString(row, "prompt", ""),
		Multiline: optBool(row, "multiline", false),
		Core:      optBool(row, "core", false),
		Inherited: optBool(row, "inherited", false),
		Pattern:   script.OptString(row, "pattern", ""),
		NoteType:  script.OptString(row, "note_type", ""),
	}
	f.Min = optFloatPtr(row, "min")
	f.Max = optFloatPtr(row, "max")
	f.MinLength = optIntPtr(row, "min_length")
	f.MaxLength = optIntPtr(row, "max_length")
	f.MinItems = optIntPtr(row, "min_items")
	f.MaxItems = optIntPtr(row, "max_items")
	return f, nil
}

// LoadCaptureDefinition evaluates path and converts its table into a
// lifecycle.CaptureDefinition (spec.md §3's capture definition: variables,
// target, content template, frontmatter operations, before/after hooks).
func LoadCaptureDefinition(rt *script.Runtime, path string) (lifecycle.CaptureDefinition, error) {
	tbl, err := rt.LoadDefinition(path)
	if err != nil {
		return lifecycle.CaptureDefinition{}, err
	}

	schemaTbl, _ := tbl.RawGetString("schema").(*lua.LTable)
	var schema []lifecycle.FieldSchema
	if schemaTbl != nil {
		schema, err = parseSchema(path, schemaTbl)
		if err != nil {
			return lifecycle.CaptureDefinition{}, err
		}
	}

	targetTbl, ok := tbl.RawGetString("target").(*lua.LTable)
	if !ok {
		return lifecycle.CaptureDefinition{}, &script.DefinitionError{Path: path, Key: "target", Want: "required table"}
	}
	position := mdast.End
	if script.OptString(targetTbl, "position", "end") == "begin" {
		position = mdast.Begin
	}
	target := lifecycle.CaptureTarget{
		PathTemplate:    script.OptString(targetTbl, "path_template", ""),
		Section:         script.OptString(targetTbl, "section", ""),
		Position:        position,
		CreateIfMissing: optBool(targetTbl, "create_if_missing", true),
	}

	var ops []lifecycle.FrontmatterOp
	if opsTbl, ok := tbl.RawGetString("frontmatter_ops").(*lua.LTable); ok {
		var walkErr error
		opsTbl.ForEach(func(_, v lua.LValue) {
			if walkErr != nil {
				return
			}
			row, ok := v.(*lua.LTable)
			if !ok {
				walkErr = &script.DefinitionError{Path: path, Key: "frontmatter_ops", Want: "each entry must be a table"}
				return
			}
			op, err := script.RequireString(path, row, "op")
			if err != nil {
				walkErr = err
				return
			}
			key, err := script.RequireString(path, row, "key")
			if err != nil {
				walkErr = err
				return
			}
			ops = append(ops, lifecycle.FrontmatterOp{
				Op:    op,
				Key:   key,
				Value: script.LuaToGoValue(row.RawGetString("value")),
			})
		})
		if walkErr != nil {
			return lifecycle.CaptureDefinition{}, walkErr
		}
	}

	return lifecycle.CaptureDefinition{
		Schema:          schema,
		Target:          target,
		ContentTemplate: script.OptString(tbl, "content_template", ""),
		FrontmatterOps:  ops,
		Hooks:           &lifecycle.HookRunner{Runtime: rt, Def: tbl},
	}, nil
}

// DefinitionPath joins dir and name into the .lua definition file path
// types_dir/captures_dir/macros_dir entries are loaded from.
func DefinitionPath(dir, name string) string {
	if filepath.Ext(name) == ".lua" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, name+".lua")
}

func optBool(t *lua.LTable, key string, def bool) bool {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	return lua.LVAsBool(v)
}

func optStringSlice(t *lua.LTable, key string) []string {
	tbl, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

func optFloatPtr(t *lua.LTable, key string) *float64 {
	v := t.RawGetString(key)
	n, ok := v.(lua.LNumber)
	if !ok {
		return nil
	}
	f := float64(n)
	return &f
}

func optIntPtr(t *lua.LTable, key string) *int {
	f := optFloatPtr(t, key)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
