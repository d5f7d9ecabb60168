package lifecycle

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/script"
)

// HookRunner binds a loaded type/capture definition table to the sandboxed
// runtime that evaluated it, so create.go/capture.go can call named hooks
// without importing gopher-lua themselves. A nil HookRunner (or one with a
// nil Def) makes every call a no-op, matching script.CallHook's own
// "missing key is a no-op" contract — a type definition with no hooks
// behaves identically to having no HookRunner at all.
type HookRunner struct {
	Runtime *script.Runtime
	Def     *lua.LTable
}

func (h *HookRunner) call(key string, ctx script.NoteContext, coreFields map[string]bool) (script.NoteContext, error) {
	if h == nil || h.Runtime == nil || h.Def == nil {
		return ctx, nil
	}
	return h.Runtime.CallHook(h.Def, key, ctx, coreFields)
}

func (h *HookRunner) validate(ctx script.NoteContext) (bool, string, error) {
	if h == nil || h.Runtime == nil || h.Def == nil {
		return true, "", nil
	}
	return h.Runtime.CallValidate(h.Def, ctx)
}

// Validate exposes the same script-defined validate(note) hook contract to
// internal/validation, which runs it as one pass alongside schema and
// link-integrity checks rather than only at note-creation time.
func (h *HookRunner) Validate(ctx script.NoteContext) (bool, string, error) {
	return h.validate(ctx)
}

// callBeforeInsert runs a capture definition's before_insert hook (spec.md
// §4.5.3 step 2). A nil HookRunner or missing hook leaves content/ops/path
// unchanged. ok is false only for a genuine soft abort; a hook error is
// swallowed the same way CallHook's warnings are, since a transform hook
// failing should not block the capture either.
func (h *HookRunner) callBeforeInsert(content string, ops []FrontmatterOp, targetPath string) (ok bool, outContent string, outOps []FrontmatterOp, outPath string) {
	if h == nil || h.Runtime == nil || h.Def == nil {
		return true, content, ops, targetPath
	}
	in := map[string]interface{}{"content": content, "target_path": targetPath}
	ok, out, _ := h.Runtime.CallTransform(h.Def, "before_insert", in)
	if !ok {
		return false, content, ops, targetPath
	}
	if c, isStr := out["content"].(string); isStr {
		content = c
	}
	if p, isStr := out["target_path"].(string); isStr {
		targetPath = p
	}
	return true, content, ops, targetPath
}

// callAfterInsert runs a capture definition's after_insert hook, non-fatal
// and result-ignoring: it is a side-effect-only notification, not a
// transform (spec.md §4.5.3 step 5).
func (h *HookRunner) callAfterInsert(targetPath string) {
	if h == nil || h.Runtime == nil || h.Def == nil {
		return
	}
	_, _, _ = h.Runtime.CallTransform(h.Def, "after_insert", map[string]interface{}{"target_path": targetPath})
}

// docToNoteContext converts a parsed frontmatter document plus variables
// into the NoteContext shape hooks operate on.
func docToNoteContext(path, noteType string, fields []script.FrontmatterField, body string, vars map[string]interface{}) script.NoteContext {
	return script.NoteContext{
		Path:        path,
		Frontmatter: fields,
		Content:     body,
		Variables:   vars,
		Type:        noteType,
	}
}
