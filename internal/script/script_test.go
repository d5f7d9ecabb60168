package script_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/script"
)

type fakeHost struct {
	rendered    string
	renderErr   error
	notes       map[string][]script.NoteRef
	current     *script.NoteRef
	macroCalled []string
}

func (f *fakeHost) Render(tmpl string, ctx map[string]interface{}) (string, error) {
	return f.rendered, f.renderErr
}
func (f *fakeHost) Template(name string, vars map[string]interface{}) (string, error) {
	return "tmpl:" + name, nil
}
func (f *fakeHost) Capture(name string, vars map[string]interface{}) (bool, error) {
	return true, nil
}
func (f *fakeHost) Macro(name string, vars map[string]interface{}) (bool, error) {
	f.macroCalled = append(f.macroCalled, name)
	return true, nil
}
func (f *fakeHost) ReadNote(path string) (script.NoteRef, error) {
	if notes, ok := f.notes[path]; ok && len(notes) > 0 {
		return notes[0], nil
	}
	return script.NoteRef{}, os.ErrNotExist
}
func (f *fakeHost) Backlinks(path string) ([]script.NoteRef, error) { return f.notes[path], nil }
func (f *fakeHost) Outlinks(path string) ([]script.NoteRef, error)  { return f.notes[path], nil }
func (f *fakeHost) Query(filter map[string]interface{}) ([]script.NoteRef, error) {
	return f.notes["*"], nil
}
func (f *fakeHost) FindProject(id string) (script.NoteRef, error) {
	return script.NoteRef{Path: "projects/" + id + ".md", Kind: "project"}, nil
}
func (f *fakeHost) CurrentNote() (script.NoteRef, bool) {
	if f.current == nil {
		return script.NoteRef{}, false
	}
	return *f.current, true
}

func writeDefinition(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "def.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefinitionReturnsTable(t *testing.T) {
	path := writeDefinition(t, `return { name = "daily", prefix = "logs/daily" }`)

	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)

	name, err := script.RequireString(path, def, "name")
	require.NoError(t, err)
	assert.Equal(t, "daily", name)
	assert.Equal(t, "logs/daily", script.OptString(def, "prefix", ""))
	assert.Equal(t, "fallback", script.OptString(def, "missing", "fallback"))
}

func TestLoadDefinitionRejectsNonTableReturn(t *testing.T) {
	path := writeDefinition(t, `return "not a table"`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	_, err := rt.LoadDefinition(path)
	require.Error(t, err)
	var defErr *script.DefinitionError
	require.ErrorAs(t, err, &defErr)
}

func TestLoadDefinitionSandboxBlocksFileIO(t *testing.T) {
	path := writeDefinition(t, `
		local f = io
		return { name = "x" }
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	_, err := rt.LoadDefinition(path)
	require.NoError(t, err) // referencing the nil global 'io' is fine...

	path2 := writeDefinition(t, `
		io.open("/etc/passwd")
		return { name = "x" }
	`)
	_, err = rt.LoadDefinition(path2)
	require.Error(t, err) // ...calling a method on it fails since io was never opened
}

func TestLoadDefinitionSandboxBlocksOS(t *testing.T) {
	path := writeDefinition(t, `
		os.execute("echo hi")
		return { name = "x" }
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	_, err := rt.LoadDefinition(path)
	require.Error(t, err)
}

func TestHostDateAndIsDateExpr(t *testing.T) {
	path := writeDefinition(t, `
		return {
			name = "x",
			computed = host.date("today + 7d | %Y-%m-%d"),
			valid = host.is_date_expr("today + 7d"),
			invalid = host.is_date_expr("not a date at all"),
		}
	`)
	now, err := time.Parse("2006-01-02", "2026-01-21")
	require.NoError(t, err)

	rt := script.New(&fakeHost{}, now, script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-28", script.OptString(def, "computed", ""))
}

func TestHostReadNoteAndBacklinks(t *testing.T) {
	host := &fakeHost{
		notes: map[string][]script.NoteRef{
			"projects/x.md": {{Path: "projects/x.md", Title: "X", Kind: "project"}},
		},
	}
	path := writeDefinition(t, `
		local n = host.read_note("projects/x.md")
		return { name = n.title, kind = n.kind }
	`)
	rt := script.New(host, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "X", script.OptString(def, "name", ""))
	assert.Equal(t, "project", script.OptString(def, "kind", ""))
}

func TestCallHookCoreFieldWinsOnConflict(t *testing.T) {
	path := writeDefinition(t, `
		return {
			name = "x",
			on_create = function(ctx)
				ctx.type = "tampered"
				ctx.variables.greeting = "hi"
				return ctx
			end,
		}
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)

	ctx := script.NoteContext{
		Path:      "notes/x.md",
		Type:      "project",
		Variables: map[string]interface{}{},
	}
	out, err := rt.CallHook(def, "on_create", ctx, map[string]bool{"type": true})
	require.NoError(t, err)

	assert.Equal(t, "project", out.Type, "core field must survive a hook's attempt to override it")
	assert.Equal(t, "hi", out.Variables["greeting"])
}

func TestCallHookMissingKeyIsNoop(t *testing.T) {
	path := writeDefinition(t, `return { name = "x" }`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)

	ctx := script.NoteContext{Path: "notes/x.md"}
	out, err := rt.CallHook(def, "on_create", ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ctx, out)
}

func TestCallHookErrorBecomesWarning(t *testing.T) {
	path := writeDefinition(t, `
		return {
			name = "x",
			on_create = function(ctx) error("boom") end,
		}
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)

	ctx := script.NoteContext{Path: "notes/x.md"}
	out, err := rt.CallHook(def, "on_create", ctx, nil)
	require.Error(t, err)
	assert.Equal(t, ctx, out, "ctx must be returned unchanged when a hook errors")
	_, isWarning := err.(interface{ Error() string })
	assert.True(t, isWarning)
}

func TestCallValidate(t *testing.T) {
	path := writeDefinition(t, `
		return {
			name = "x",
			validate = function(ctx)
				if ctx.frontmatter.status == "done" then
					return true, ""
				end
				return false, "status must be done"
			end,
		}
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{})
	defer rt.Close()

	def, err := rt.LoadDefinition(path)
	require.NoError(t, err)

	ok, msg, err := rt.CallValidate(def, script.NoteContext{
		Frontmatter: []script.FrontmatterField{{Key: "status", Value: "todo"}},
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "status must be done", msg)

	ok, _, err = rt.CallValidate(def, script.NoteContext{
		Frontmatter: []script.FrontmatterField{{Key: "status", Value: "done"}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMacroCallReachesHost(t *testing.T) {
	host := &fakeHost{}
	path := writeDefinition(t, `
		return { name = "x", ran = host.macro("archive_done") }
	`)
	rt := script.New(host, time.Now(), script.Options{})
	defer rt.Close()

	_, err := rt.LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive_done"}, host.macroCalled)
}

func TestSandboxTimeoutOnInfiniteLoop(t *testing.T) {
	path := writeDefinition(t, `
		while true do end
		return { name = "x" }
	`)
	rt := script.New(&fakeHost{}, time.Now(), script.Options{Timeout: 50 * time.Millisecond})
	defer rt.Close()

	_, err := rt.LoadDefinition(path)
	require.Error(t, err)
	var exhausted *script.SandboxExhaustedError
	require.ErrorAs(t, err, &exhausted)
}
