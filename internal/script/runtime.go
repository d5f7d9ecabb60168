// Package script implements the sandboxed embedded interpreter of spec.md
// §4.3: type/capture/macro definitions are Lua tables evaluated once at load
// time, and hooks run inside a capability-restricted *lua.LState that a
// Runtime creates once per command invocation.
//
// gopher-lua is the teacher's (and pack's) only attested embeddable
// interpreter — it appears as an indirect dependency of two pack manifests
// (cuemby-warren, evalgo-org-eve). It is the natural pick for a sandbox: it
// has no built-in filesystem/process library wired to globals by default,
// so the sandbox boundary is "don't open those libraries" rather than
// patching holes in an already-open one.
package script

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// NoteRef is the note representation exposed to scripts by read_note,
// backlinks, outlinks, and query.
type NoteRef struct {
	Path        string
	Title       string
	Kind        string
	Frontmatter map[string]interface{}
	Content     string
}

// NoteContext is the mutable context a hook receives and may return a
// modified copy of (spec.md §4.3: "{ path, frontmatter, content, variables,
// type }").
type NoteContext struct {
	Path        string
	Frontmatter []FrontmatterField // ordered, mirrors internal/frontmatter.Document
	Content     string
	Variables   map[string]interface{}
	Type        string
}

// FrontmatterField is one ordered key/value pair of a note context.
type FrontmatterField struct {
	Key   string
	Value interface{}
}

// HostAPI is implemented by the lifecycle/index layers and exposed to
// scripts as the single "host" table (spec.md §4.3).
type HostAPI interface {
	Render(tmpl string, ctx map[string]interface{}) (string, error)
	Template(name string, vars map[string]interface{}) (string, error)
	Capture(name string, vars map[string]interface{}) (bool, error)
	Macro(name string, vars map[string]interface{}) (bool, error)
	ReadNote(path string) (NoteRef, error)
	Backlinks(path string) ([]NoteRef, error)
	Outlinks(path string) ([]NoteRef, error)
	Query(filter map[string]interface{}) ([]NoteRef, error)
	FindProject(id string) (NoteRef, error)
	CurrentNote() (NoteRef, bool)
}

// Options configures sandbox limits. Zero values fall back to the defaults
// documented in spec.md §4.3 (~10 MiB / a bounded instruction budget).
type Options struct {
	// MemoryCapKB bounds the Lua registry growth, which is gopher-lua's
	// proxy for unbounded allocation — the interpreter has no native
	// byte-level memory accounting to hook into.
	MemoryCapKB int
	// Timeout approximates the "instruction cap" of spec.md §4.3: gopher-lua
	// has no instruction-counting hook, so the cap is enforced as a
	// wall-clock deadline checked by the VM between op dispatches via
	// context cancellation (LState.SetContext).
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MemoryCapKB <= 0 {
		o.MemoryCapKB = 10 * 1024 // ~10 MiB
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	return o
}

// SandboxExhaustedError reports an instruction or memory cap violation.
type SandboxExhaustedError struct {
	Reason string
}

func (e *SandboxExhaustedError) Error() string {
	return fmt.Sprintf("%v: sandbox exhausted: %s", mderrors.ErrSandbox, e.Reason)
}

// DefinitionError reports a missing or wrong-typed key in a loaded
// definition table.
type DefinitionError struct {
	Path string
	Key  string
	Want string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%v: definition %s: key %q: %s", mderrors.ErrParse, e.Path, e.Key, e.Want)
}

// Runtime wraps a single-use Lua VM. The engine constructs a fresh Runtime
// per command invocation — "no shared mutable globals between commands"
// (spec.md §4.3) — and discards it afterward.
type Runtime struct {
	state       *lua.LState
	host        HostAPI
	opts        Options
	now         time.Time
	currentNote *NoteRef
	allowShell  bool
	shellBlocked bool
}

// New constructs a sandboxed runtime bound to host and now (the single
// sampled "now" for this top-level request, per spec.md §4.1).
func New(host HostAPI, now time.Time, opts Options) *Runtime {
	opts = opts.withDefaults()
	state := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		RegistryMaxSize:     opts.MemoryCapKB * 16, // registry slots, not bytes: a coarse proxy
		IncludeGoStackTrace: false,
	})

	// Only the libraries with no filesystem/process/debug surface are
	// opened — this is the sandbox boundary itself, not a patch on top of
	// an already-open set.
	for _, open := range []func(*lua.LState){
		lua.OpenBase, lua.OpenString, lua.OpenTable, lua.OpenMath,
	} {
		open(state)
	}
	// OpenBase installs `print`, `pcall`, `require`-free globals, but also
	// a couple we don't want in the sandbox (dofile/loadfile touch the
	// filesystem; load can construct arbitrary bytecode).
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage"} {
		state.SetGlobal(name, lua.LNil)
	}

	r := &Runtime{state: state, host: host, opts: opts, now: now}
	r.installHostTable()
	return r
}

// Close releases the underlying VM. Safe to call once per Runtime.
func (r *Runtime) Close() {
	r.state.Close()
}

// AllowShell toggles whether macro shell steps may run through this
// runtime. Hooks invoking macros transitively must leave this false
// (spec.md §4.3: "No shell from hooks").
func (r *Runtime) AllowShell(allow bool) { r.allowShell = allow }

// ShellWasBlocked reports whether a shell step was requested and silently
// skipped during this runtime's lifetime (spec.md §4.3/§4.5.4).
func (r *Runtime) ShellWasBlocked() bool { return r.shellBlocked }

func (r *Runtime) withDeadline(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	r.state.SetContext(ctx)
	err := fn()
	if ctx.Err() != nil {
		return &SandboxExhaustedError{Reason: "instruction/time budget exceeded"}
	}
	return err
}

// LoadDefinition evaluates the script at path once and returns the single
// table it returns, per spec.md §4.3's load contract.
func (r *Runtime) LoadDefinition(path string) (*lua.LTable, error) {
	var tbl *lua.LTable
	err := r.withDeadline(func() error {
		if err := r.state.DoFile(path); err != nil {
			if isMemoryErr(err) {
				return &SandboxExhaustedError{Reason: err.Error()}
			}
			return fmt.Errorf("%w: %s: %v", mderrors.ErrParse, path, err)
		}
		ret := r.state.Get(-1)
		r.state.Pop(1)
		t, ok := ret.(*lua.LTable)
		if !ok {
			return &DefinitionError{Path: path, Key: "<top-level>", Want: "script must return a table"}
		}
		tbl = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tbl, nil
}

func isMemoryErr(err error) bool {
	msg := err.Error()
	return contains(msg, "registry") || contains(msg, "stack overflow")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// RequireString fetches a required string key from a definition table,
// returning *DefinitionError if it is missing or of the wrong type.
func RequireString(path string, t *lua.LTable, key string) (string, error) {
	v := t.RawGetString(key)
	s, ok := v.(lua.LString)
	if !ok {
		return "", &DefinitionError{Path: path, Key: key, Want: "required string"}
	}
	return string(s), nil
}

// OptString fetches an optional string key, returning def when absent.
func OptString(t *lua.LTable, key, def string) string {
	v := t.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return def
}
