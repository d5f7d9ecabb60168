package script

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/datemath"
)

// installHostTable registers the single "host" global table scripts use to
// reach the engine (spec.md §4.3): date/render/is_date_expr/template and the
// read-only query surface (read_note/backlinks/outlinks/query/find_project/
// current_note), plus capture/macro for triggering other definitions.
func (r *Runtime) installHostTable() {
	host := r.state.NewTable()

	r.state.SetFuncs(host, map[string]lua.LGFunction{
		"date":          r.luaDate,
		"is_date_expr":  r.luaIsDateExpr,
		"render":        r.luaRender,
		"template":      r.luaTemplate,
		"capture":       r.luaCapture,
		"macro":         r.luaMacro,
		"read_note":     r.luaReadNote,
		"backlinks":     r.luaBacklinks,
		"outlinks":      r.luaOutlinks,
		"query":         r.luaQuery,
		"find_project":  r.luaFindProject,
		"current_note":  r.luaCurrentNote,
	})

	r.state.SetGlobal("host", host)
}

func (r *Runtime) luaDate(L *lua.LState) int {
	expr := L.CheckString(1)
	out, err := datemath.EvalFormatted(expr, r.now)
	if err != nil {
		L.RaiseError("date: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (r *Runtime) luaIsDateExpr(L *lua.LState) int {
	L.Push(lua.LBool(datemath.IsDateExpr(L.CheckString(1))))
	return 1
}

func (r *Runtime) luaRender(L *lua.LState) int {
	tmpl := L.CheckString(1)
	ctx := tableToMap(L.OptTable(2, L.NewTable()))
	out, err := r.host.Render(tmpl, ctx)
	if err != nil {
		L.RaiseError("render: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (r *Runtime) luaTemplate(L *lua.LState) int {
	name := L.CheckString(1)
	vars := tableToMap(L.OptTable(2, L.NewTable()))
	out, err := r.host.Template(name, vars)
	if err != nil {
		L.RaiseError("template: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (r *Runtime) luaCapture(L *lua.LState) int {
	name := L.CheckString(1)
	vars := tableToMap(L.OptTable(2, L.NewTable()))
	ok, err := r.host.Capture(name, vars)
	if err != nil {
		L.RaiseError("capture: %v", err)
		return 0
	}
	L.Push(lua.LBool(ok))
	return 1
}

// luaMacro runs a named macro. Hooks must call AllowShell(false) before
// entering script execution so any shell step inside the macro is silently
// skipped rather than executed (spec.md §4.3: "No shell from hooks").
func (r *Runtime) luaMacro(L *lua.LState) int {
	name := L.CheckString(1)
	vars := tableToMap(L.OptTable(2, L.NewTable()))
	ok, err := r.host.Macro(name, vars)
	if err != nil {
		L.RaiseError("macro: %v", err)
		return 0
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (r *Runtime) luaReadNote(L *lua.LState) int {
	path := L.CheckString(1)
	note, err := r.host.ReadNote(path)
	if err != nil {
		L.RaiseError("read_note: %v", err)
		return 0
	}
	L.Push(noteRefToTable(L, note))
	return 1
}

func (r *Runtime) luaBacklinks(L *lua.LState) int {
	path := L.CheckString(1)
	notes, err := r.host.Backlinks(path)
	if err != nil {
		L.RaiseError("backlinks: %v", err)
		return 0
	}
	L.Push(noteRefsToTable(L, notes))
	return 1
}

func (r *Runtime) luaOutlinks(L *lua.LState) int {
	path := L.CheckString(1)
	notes, err := r.host.Outlinks(path)
	if err != nil {
		L.RaiseError("outlinks: %v", err)
		return 0
	}
	L.Push(noteRefsToTable(L, notes))
	return 1
}

func (r *Runtime) luaQuery(L *lua.LState) int {
	filter := tableToMap(L.OptTable(1, L.NewTable()))
	notes, err := r.host.Query(filter)
	if err != nil {
		L.RaiseError("query: %v", err)
		return 0
	}
	L.Push(noteRefsToTable(L, notes))
	return 1
}

func (r *Runtime) luaFindProject(L *lua.LState) int {
	id := L.CheckString(1)
	note, err := r.host.FindProject(id)
	if err != nil {
		L.RaiseError("find_project: %v", err)
		return 0
	}
	L.Push(noteRefToTable(L, note))
	return 1
}

func (r *Runtime) luaCurrentNote(L *lua.LState) int {
	note, ok := r.host.CurrentNote()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(noteRefToTable(L, note))
	return 1
}

func noteRefToTable(L *lua.LState, n NoteRef) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("path", lua.LString(n.Path))
	t.RawSetString("title", lua.LString(n.Title))
	t.RawSetString("kind", lua.LString(n.Kind))
	t.RawSetString("content", lua.LString(n.Content))
	t.RawSetString("frontmatter", mapToTable(L, n.Frontmatter))
	return t
}

func noteRefsToTable(L *lua.LState, notes []NoteRef) *lua.LTable {
	t := L.NewTable()
	for i, n := range notes {
		t.RawSetInt(i+1, noteRefToTable(L, n))
	}
	return t
}

func mapToTable(L *lua.LState, m map[string]interface{}) *lua.LTable {
	t := L.NewTable()
	for k, v := range m {
		t.RawSetString(k, goToLua(L, v))
	}
	return t
}

func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case time.Time:
		return lua.LString(val.Format(time.RFC3339))
	case []string:
		t := L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case map[string]interface{}:
		return mapToTable(L, val)
	default:
		return lua.LString("")
	}
}

func tableToMap(t *lua.LTable) map[string]interface{} {
	m := make(map[string]interface{})
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		m[string(key)] = luaToGo(v)
	})
	return m
}

// LuaToGoValue exposes luaToGo to callers outside this package that parse a
// definition table directly (internal/engine's schema/capture/macro
// loaders), rather than through a NoteContext or host-call argument.
func LuaToGoValue(v lua.LValue) interface{} {
	return luaToGo(v)
}

func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		// Treat as array if it has a contiguous integer keys from 1..Len().
		if n := val.Len(); n > 0 {
			arr := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, luaToGo(val.RawGetInt(i)))
			}
			return arr
		}
		return tableToMap(val)
	default:
		return nil
	}
}
