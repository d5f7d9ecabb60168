package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// CallHook invokes the function stored at key inside def (e.g. "on_create",
// "on_complete") with ctx, applying spec.md §4.3's result contract:
//
//   - no such key: a no-op, ctx is returned unchanged.
//   - the hook returns nothing, or returns ctx unmodified: ctx is returned
//     unchanged.
//   - the hook returns a modified context table: merged into ctx, but core
//     fields the engine itself has already decided (path, type, and any
//     frontmatter key, each only when present in the caller's coreFields
//     set) win on conflict — a hook can add/change its own variables and
//     free-form frontmatter, but cannot override what the engine's own
//     pipeline step just assigned.
//   - the hook errors (Lua runtime error or non-table return): downgraded to
//     a mderrors.Warning and ctx is returned unchanged, since a hook failure
//     must not block the surrounding note operation (spec.md §4.3: "hook
//     errors are warnings, not failures").
//   - the hook exhausts the sandbox's time or memory cap: ctx is returned
//     unchanged with the *SandboxExhaustedError itself, not a Warning.
func (r *Runtime) CallHook(def *lua.LTable, key string, ctx NoteContext, coreFields map[string]bool) (NoteContext, error) {
	fn, ok := def.RawGetString(key).(*lua.LFunction)
	if !ok {
		return ctx, nil
	}

	r.AllowShell(false)

	var result NoteContext
	callErr := r.withDeadline(func() error {
		L := r.state
		arg := noteContextToTable(L, ctx)
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LNil {
			result = ctx
			return nil
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return fmt.Errorf("hook %q must return nil or a context table", key)
		}
		result = mergeContext(ctx, tableToNoteContext(tbl, ctx), coreFields)
		return nil
	})
	if callErr != nil {
		if _, exhausted := callErr.(*SandboxExhaustedError); exhausted {
			return ctx, callErr
		}
		return ctx, mderrors.NewWarning(mderrors.ErrHookWarning, fmt.Sprintf("hook %q: %v", key, callErr))
	}
	return result, nil
}

// CallValidate invokes a script-defined validate(ctx) hook, expecting it to
// return (ok boolean, message string). A missing validate key is treated as
// always-valid.
func (r *Runtime) CallValidate(def *lua.LTable, ctx NoteContext) (bool, string, error) {
	fn, ok := def.RawGetString("validate").(*lua.LFunction)
	if !ok {
		return true, "", nil
	}

	var ok2 bool
	var msg string
	err := r.withDeadline(func() error {
		L := r.state
		arg := noteContextToTable(L, ctx)
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, arg); err != nil {
			return err
		}
		msgVal := L.Get(-1)
		okVal := L.Get(-2)
		L.Pop(2)
		ok2 = lua.LVAsBool(okVal)
		if s, isStr := msgVal.(lua.LString); isStr {
			msg = string(s)
		}
		return nil
	})
	if err != nil {
		return false, "", fmt.Errorf("%w: validate: %v", mderrors.ErrSandbox, err)
	}
	return ok2, msg, nil
}

// CallTransform invokes a capture definition's before_insert/after_insert
// hook (spec.md §4.5.3), whose contract is a plain variable table rather
// than NoteContext's {path, frontmatter, content, variables, type} shape. A
// missing key is a no-op: ok stays true, in is returned unchanged. The hook
// may return nil or false to signal a soft abort (ok=false, no error, spec.md
// §4.5.3 step 2); any other return replaces in with the returned table. A
// hook error is downgraded to a mderrors.Warning, same as CallHook.
func (r *Runtime) CallTransform(def *lua.LTable, key string, in map[string]interface{}) (ok bool, out map[string]interface{}, err error) {
	fn, has := def.RawGetString(key).(*lua.LFunction)
	if !has {
		return true, in, nil
	}

	r.AllowShell(false)
	ok = true
	out = in
	callErr := r.withDeadline(func() error {
		L := r.state
		arg := L.NewTable()
		for k, v := range in {
			arg.RawSetString(k, goToLua(L, v))
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LNil || ret == lua.LFalse {
			ok = false
			return nil
		}
		tbl, isTbl := ret.(*lua.LTable)
		if !isTbl {
			return fmt.Errorf("hook %q must return nil, false, or a table", key)
		}
		out = tableToMap(tbl)
		return nil
	})
	if callErr != nil {
		if _, exhausted := callErr.(*SandboxExhaustedError); exhausted {
			return true, in, callErr
		}
		return true, in, mderrors.NewWarning(mderrors.ErrHookWarning, fmt.Sprintf("hook %q: %v", key, callErr))
	}
	return ok, out, nil
}

func noteContextToTable(L *lua.LState, ctx NoteContext) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("path", lua.LString(ctx.Path))
	t.RawSetString("content", lua.LString(ctx.Content))
	t.RawSetString("type", lua.LString(ctx.Type))

	fm := L.NewTable()
	for _, f := range ctx.Frontmatter {
		fm.RawSetString(f.Key, goToLua(L, f.Value))
	}
	t.RawSetString("frontmatter", fm)

	vars := L.NewTable()
	for k, v := range ctx.Variables {
		vars.RawSetString(k, goToLua(L, v))
	}
	t.RawSetString("variables", vars)
	return t
}

func tableToNoteContext(t *lua.LTable, fallback NoteContext) NoteContext {
	out := fallback
	if v, ok := t.RawGetString("path").(lua.LString); ok {
		out.Path = string(v)
	}
	if v, ok := t.RawGetString("content").(lua.LString); ok {
		out.Content = string(v)
	}
	if v, ok := t.RawGetString("type").(lua.LString); ok {
		out.Type = string(v)
	}
	if fmTbl, ok := t.RawGetString("frontmatter").(*lua.LTable); ok {
		out.Frontmatter = tableToOrderedFields(fmTbl, fallback.Frontmatter)
	}
	if varsTbl, ok := t.RawGetString("variables").(*lua.LTable); ok {
		out.Variables = tableToMap(varsTbl)
	}
	return out
}

// tableToOrderedFields rebuilds an ordered field list from a hook's returned
// frontmatter table: fields already present keep their original position,
// new keys are appended in Lua's (unordered) iteration order — acceptable
// since a hook introducing a brand new key has no prior position to honor.
func tableToOrderedFields(t *lua.LTable, original []FrontmatterField) []FrontmatterField {
	seen := make(map[string]bool, len(original))
	out := make([]FrontmatterField, 0, len(original))
	for _, f := range original {
		if v := t.RawGetString(f.Key); v != lua.LNil {
			out = append(out, FrontmatterField{Key: f.Key, Value: luaToGo(v)})
			seen[f.Key] = true
		}
	}
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || seen[string(key)] {
			return
		}
		out = append(out, FrontmatterField{Key: string(key), Value: luaToGo(v)})
		seen[string(key)] = true
	})
	return out
}

// mergeContext applies the core-field-wins-on-conflict rule: any key in
// coreFields keeps the engine's value from original even if the hook
// returned something else for it.
func mergeContext(original, hookResult NoteContext, coreFields map[string]bool) NoteContext {
	merged := hookResult
	if coreFields["path"] {
		merged.Path = original.Path
	}
	if coreFields["type"] {
		merged.Type = original.Type
	}

	originalByKey := make(map[string]interface{}, len(original.Frontmatter))
	for _, f := range original.Frontmatter {
		originalByKey[f.Key] = f.Value
	}
	for i, f := range merged.Frontmatter {
		if coreFields[f.Key] {
			if v, ok := originalByKey[f.Key]; ok {
				merged.Frontmatter[i].Value = v
			}
		}
	}
	return merged
}
