package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
	"github.com/mdvault/mdvault/internal/script"
)

// HostAPI is the concrete script.HostAPI the engine hands every Runtime it
// constructs (spec.md §4.3's single "host" table). It closes over one
// command invocation's Engine, context, and current note (if any hook is
// running against one), and recurses into the same LoadTypeDefinition/
// LoadCaptureDefinition machinery a top-level command would use for the
// template/capture/macro calls a script makes on its own behalf.
type HostAPI struct {
	Engine  *Engine
	Ctx     context.Context
	Current *script.NoteRef // set while a hook is running against a specific note; nil otherwise
	Trusted bool             // mirrors the invoking command's --trust flag, for nested macro shell steps
}

var _ script.HostAPI = (*HostAPI)(nil)

// Render implements host.render(tmpl, ctx): the same {{key}} placeholder
// substitution internal/lifecycle's renderScaffold/datekeyed path-template
// logic uses, generalized to an arbitrary template string and variable map.
func (h *HostAPI) Render(tmpl string, ctx map[string]interface{}) (string, error) {
	return renderPlaceholders(tmpl, ctx), nil
}

// Template implements host.template(name, vars): loads name from the
// active profile's templates_dir and renders it against vars. Unlike
// Capture/Macro this has no side effect — it returns rendered text for the
// calling script to use however it likes (e.g. assemble into `content`).
func (h *HostAPI) Template(name string, vars map[string]interface{}) (string, error) {
	filename := name
	if extOf(name) == "" {
		filename = name + ".md"
	}
	path := filepath.Join(h.Engine.Config.TemplatesDir(), filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: load template %q: %v", mderrors.ErrParse, name, err)
	}
	return renderPlaceholders(string(raw), vars), nil
}

// Capture implements host.capture(name, vars): runs the named capture
// definition (captures_dir/name.lua) against vars, the same pipeline
// lifecycle.Capture runs for a top-level capture command.
func (h *HostAPI) Capture(name string, vars map[string]interface{}) (bool, error) {
	rt := h.newNestedRuntime()
	defer rt.Close()

	def, err := LoadCaptureDefinition(rt, DefinitionPath(h.Engine.Config.CapturesDir(), name))
	if err != nil {
		return false, err
	}
	result, err := lifecycle.Capture(h.Ctx, h.Engine.Deps(), lifecycle.CaptureParams{Def: def, Vars: vars})
	if err != nil {
		return false, err
	}
	return !result.Aborted, nil
}

// Macro implements host.macro(name, vars): runs the named macro
// (macros_dir/name.lua) against vars. Shell steps still require both
// Trusted and the vault's allow_shell config, per spec.md §4.5.4 — a
// script cannot escalate its own shell permission by calling host.macro.
func (h *HostAPI) Macro(name string, vars map[string]interface{}) (bool, error) {
	def, err := h.loadMacroDefinition(DefinitionPath(h.Engine.Config.MacrosDir(), name))
	if err != nil {
		return false, err
	}
	result, err := lifecycle.RunMacro(h.Ctx, h.Engine.Deps(), lifecycle.MacroParams{
		Def:        def,
		Vars:       vars,
		Registry:   h.Engine.Registry,
		Trusted:    h.Trusted,
		AllowShell: h.Engine.Config.Security.AllowShell,
	})
	if err != nil {
		return false, err
	}
	for _, step := range result.Steps {
		if step.Warning != "" {
			return false, nil
		}
	}
	return true, nil
}

// ReadNote implements host.read_note(path).
func (h *HostAPI) ReadNote(path string) (script.NoteRef, error) {
	note, body, found, err := h.Engine.Store.GetNoteByPath(h.Ctx, path)
	if err != nil {
		return script.NoteRef{}, err
	}
	if !found {
		return script.NoteRef{}, fmt.Errorf("%w: %s", mderrors.ErrNotFound, path)
	}
	return noteToRef(note, body), nil
}

// Backlinks implements host.backlinks(path).
func (h *HostAPI) Backlinks(path string) ([]script.NoteRef, error) {
	summaries, err := h.Engine.Store.Backlinks(h.Ctx, path)
	if err != nil {
		return nil, err
	}
	return summariesToRefs(summaries), nil
}

// Outlinks implements host.outlinks(path).
func (h *HostAPI) Outlinks(path string) ([]script.NoteRef, error) {
	summaries, err := h.Engine.Store.Outlinks(h.Ctx, path)
	if err != nil {
		return nil, err
	}
	return summariesToRefs(summaries), nil
}

// Query implements host.query(filter): the filter's kind and limit keys are
// copied into index.ListOptions and any other key is ignored (no free-text
// search — that stays a command-surface concern per spec.md §4.4's query
// language).
func (h *HostAPI) Query(filter map[string]interface{}) ([]script.NoteRef, error) {
	var opts index.ListOptions
	if kind, ok := filter["kind"].(string); ok {
		opts.Kind = index.NoteKind(kind)
	}
	if limit, ok := filter["limit"].(float64); ok {
		opts.Limit = int(limit)
	}
	summaries, err := h.Engine.Store.List(h.Ctx, opts)
	if err != nil {
		return nil, err
	}
	return summariesToRefs(summaries), nil
}

// FindProject implements host.find_project(id).
func (h *HostAPI) FindProject(id string) (script.NoteRef, error) {
	path, found, err := h.Engine.Store.FindProjectPath(h.Ctx, id)
	if err != nil {
		return script.NoteRef{}, err
	}
	if !found {
		return script.NoteRef{}, fmt.Errorf("%w: project %s", mderrors.ErrNotFound, id)
	}
	return h.ReadNote(path)
}

// CurrentNote implements host.current_note(): only meaningful while a hook
// is running against a specific note.
func (h *HostAPI) CurrentNote() (script.NoteRef, bool) {
	if h.Current == nil {
		return script.NoteRef{}, false
	}
	return *h.Current, true
}

// loadMacroDefinition evaluates a macro script's table: a `steps` array,
// each entry naming a step kind ("template", "capture", "shell") and, for
// template/capture steps, the type/capture definition name that step runs
// by loading it fresh (spec.md §4.5.4's sequential step list).
func (h *HostAPI) loadMacroDefinition(path string) (lifecycle.MacroDefinition, error) {
	rt := h.newNestedRuntime()
	defer rt.Close()

	tbl, err := rt.LoadDefinition(path)
	if err != nil {
		return lifecycle.MacroDefinition{}, err
	}
	stepsTbl, ok := tbl.RawGetString("steps").(*lua.LTable)
	if !ok {
		return lifecycle.MacroDefinition{}, &script.DefinitionError{Path: path, Key: "steps", Want: "required table"}
	}

	var steps []lifecycle.MacroStep
	var walkErr error
	stepsTbl.ForEach(func(_, v lua.LValue) {
		if walkErr != nil {
			return
		}
		row, ok := v.(*lua.LTable)
		if !ok {
			walkErr = &script.DefinitionError{Path: path, Key: "steps", Want: "each entry must be a table"}
			return
		}
		step, err := h.parseMacroStep(path, row)
		if err != nil {
			walkErr = err
			return
		}
		steps = append(steps, step)
	})
	if walkErr != nil {
		return lifecycle.MacroDefinition{}, walkErr
	}
	return lifecycle.MacroDefinition{Steps: steps}, nil
}

func (h *HostAPI) parseMacroStep(path string, row *lua.LTable) (lifecycle.MacroStep, error) {
	kindStr, err := script.RequireString(path, row, "kind")
	if err != nil {
		return lifecycle.MacroStep{}, err
	}
	var with map[string]interface{}
	if v := script.LuaToGoValue(row.RawGetString("with")); v != nil {
		with, _ = v.(map[string]interface{})
	}
	step := lifecycle.MacroStep{
		Kind:    lifecycle.MacroStepKind(kindStr),
		With:    with,
		OnError: script.OptString(row, "on_error", "abort"),
	}

	switch step.Kind {
	case lifecycle.StepTemplate:
		target, err := script.RequireString(path, row, "target")
		if err != nil {
			return lifecycle.MacroStep{}, err
		}
		rt := h.newNestedRuntime()
		defer rt.Close()
		def, _, err := LoadTypeDefinition(rt, DefinitionPath(h.Engine.Config.TypesDir(), target))
		if err != nil {
			return lifecycle.MacroStep{}, err
		}
		step.Create = &lifecycle.CreateStepSpec{
			Def:       def,
			Append:    optBool(row, "append", false),
			Overwrite: optBool(row, "overwrite", false),
		}
	case lifecycle.StepCapture:
		target, err := script.RequireString(path, row, "target")
		if err != nil {
			return lifecycle.MacroStep{}, err
		}
		rt := h.newNestedRuntime()
		defer rt.Close()
		def, err := LoadCaptureDefinition(rt, DefinitionPath(h.Engine.Config.CapturesDir(), target))
		if err != nil {
			return lifecycle.MacroStep{}, err
		}
		step.Capture = &def
	case lifecycle.StepShell:
		step.Shell, err = script.RequireString(path, row, "command")
		if err != nil {
			return lifecycle.MacroStep{}, err
		}
	default:
		return lifecycle.MacroStep{}, &script.DefinitionError{Path: path, Key: "kind", Want: `"template", "capture", or "shell"`}
	}
	return step, nil
}

func (h *HostAPI) newNestedRuntime() *script.Runtime {
	nested := &HostAPI{Engine: h.Engine, Ctx: h.Ctx, Current: h.Current, Trusted: h.Trusted}
	return script.New(nested, h.Engine.now(), script.Options{})
}

func noteToRef(n index.Note, body string) script.NoteRef {
	kind := string(n.NoteKind)
	if n.NoteKind == index.KindCustom && n.CustomType != "" {
		kind = n.CustomType
	}
	return script.NoteRef{
		Path:        n.Path,
		Title:       n.Title,
		Kind:        kind,
		Frontmatter: n.Frontmatter,
		Content:     body,
	}
}

func summariesToRefs(summaries []index.NoteSummary) []script.NoteRef {
	out := make([]script.NoteRef, len(summaries))
	for i, s := range summaries {
		out[i] = script.NoteRef{
			Path:        s.Path,
			Title:       s.Title,
			Kind:        s.Type,
			Frontmatter: s.Frontmatter,
		}
	}
	return out
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
