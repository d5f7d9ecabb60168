package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// MacroStepKind selects one of spec.md §4.5.4's three step shapes.
type MacroStepKind string

const (
	StepTemplate MacroStepKind = "template"
	StepCapture  MacroStepKind = "capture"
	StepShell    MacroStepKind = "shell"
)

// CreateStepSpec is a "template" step's payload: it runs the same creation
// pipeline create.go exposes, under a macro-scoped variable set.
type CreateStepSpec struct {
	Def       TypeDefinition
	Append    bool
	Overwrite bool
}

// MacroStep is one entry of a macro's sequential step list. Exactly one of
// Create/Capture/Shell should be set, matching Kind.
type MacroStep struct {
	Kind    MacroStepKind
	Create  *CreateStepSpec
	Capture *CaptureDefinition
	Shell   string // shell command, with {{var}} placeholders substituted from the step's scope

	// With overrides/extends the shared variable scope for this step only;
	// changes it makes to the scope (e.g. a capture's resulting path) persist
	// to later steps the same way the shared scope normally would.
	With map[string]interface{}

	// OnError selects "abort" (default) or "continue" when this step fails.
	OnError string
}

// MacroDefinition is the script-defined descriptor for one macro: its
// ordered steps (spec.md §3/§4.5.4).
type MacroDefinition struct {
	Steps []MacroStep
}

// MacroParams bundles one macro invocation's caller-supplied variables and
// the trust/shell-permission gate spec.md §4.5.4 requires for shell steps.
type MacroParams struct {
	Def      MacroDefinition
	Vars     map[string]interface{}
	Registry *Registry

	// Trusted mirrors the caller's --trust flag; AllowShell mirrors the
	// vault's allow_shell config. A shell step only runs when BOTH are true
	// (spec.md §4.5.4: "shell steps require --trust and a global
	// allow_shell=true; otherwise the step is skipped with a warning").
	Trusted    bool
	AllowShell bool
}

// MacroStepResult reports what one step did.
type MacroStepResult struct {
	Kind    MacroStepKind
	Path    string // the note/capture path the step produced, if any
	Skipped bool
	Warning string
}

// MacroResult reports every step's outcome in order.
type MacroResult struct {
	Steps []MacroStepResult
}

// RunMacro executes a macro's steps in sequence against one shared variable
// scope, applying each step's With overrides on top of that scope and
// feeding any output the step produces (a created note's path, a capture's
// target path) back into the scope for later steps. A step failing aborts
// the remaining steps unless it declares OnError: "continue".
func RunMacro(ctx context.Context, d Deps, p MacroParams) (MacroResult, error) {
	scope := make(map[string]interface{}, len(p.Vars))
	for k, v := range p.Vars {
		scope[k] = v
	}

	var results []MacroStepResult
	for i, step := range p.Def.Steps {
		stepVars := mergeVars(scope, step.With)

		res, produced, err := runMacroStep(ctx, d, p, step, stepVars)
		results = append(results, res)
		for k, v := range produced {
			scope[k] = v
		}
		if err != nil {
			onError := step.OnError
			if onError == "" {
				onError = "abort"
			}
			if onError == "abort" {
				return MacroResult{Steps: results}, fmt.Errorf("macro step %d (%s): %w", i, step.Kind, err)
			}
		}
	}
	return MacroResult{Steps: results}, nil
}

func runMacroStep(ctx context.Context, d Deps, p MacroParams, step MacroStep, vars map[string]interface{}) (MacroStepResult, map[string]interface{}, error) {
	switch step.Kind {
	case StepTemplate:
		return runCreateStep(ctx, d, p, step, vars)
	case StepCapture:
		return runCaptureStep(ctx, d, step, vars)
	case StepShell:
		return runShellStep(ctx, d, p, step, vars)
	default:
		return MacroStepResult{Kind: step.Kind}, nil, fmt.Errorf("%w: unknown macro step kind %q", mderrors.ErrParse, step.Kind)
	}
}

func runCreateStep(ctx context.Context, d Deps, p MacroParams, step MacroStep, vars map[string]interface{}) (MacroStepResult, map[string]interface{}, error) {
	if step.Create == nil {
		return MacroStepResult{Kind: StepTemplate}, nil, fmt.Errorf("%w: template step has no create spec", mderrors.ErrParse)
	}
	creator := NoteCreator{Deps: d, Registry: p.Registry}
	result, err := creator.Create(ctx, CreateParams{
		Def:       step.Create.Def,
		Vars:      vars,
		Append:    step.Create.Append,
		Overwrite: step.Create.Overwrite,
	})
	if err != nil {
		return MacroStepResult{Kind: StepTemplate}, nil, err
	}
	return MacroStepResult{Kind: StepTemplate, Path: result.Note.Path},
		map[string]interface{}{"path": result.Note.Path, "id": result.Note.ID}, nil
}

func runCaptureStep(ctx context.Context, d Deps, step MacroStep, vars map[string]interface{}) (MacroStepResult, map[string]interface{}, error) {
	if step.Capture == nil {
		return MacroStepResult{Kind: StepCapture}, nil, fmt.Errorf("%w: capture step has no capture definition", mderrors.ErrParse)
	}
	result, err := Capture(ctx, d, CaptureParams{Def: *step.Capture, Vars: vars})
	if err != nil {
		return MacroStepResult{Kind: StepCapture}, nil, err
	}
	if result.Aborted {
		return MacroStepResult{Kind: StepCapture, Skipped: true, Warning: "capture aborted by before_insert hook"}, nil, nil
	}
	return MacroStepResult{Kind: StepCapture, Path: result.Path}, map[string]interface{}{"path": result.Path}, nil
}

// runShellStep runs step.Shell as a shell command through the system shell,
// the same "hand the editor/command its arguments and wait" pattern the
// teacher's pkg/obsidian.OpenFileInEditor uses for os/exec, generalized from
// a fixed editor invocation to an arbitrary macro-supplied command string.
// The command's working directory is the vault root.
func runShellStep(ctx context.Context, d Deps, p MacroParams, step MacroStep, vars map[string]interface{}) (MacroStepResult, map[string]interface{}, error) {
	if !p.Trusted || !p.AllowShell {
		return MacroStepResult{
			Kind:    StepShell,
			Skipped: true,
			Warning: "shell step skipped: requires both --trust and allow_shell=true",
		}, nil, nil
	}

	command := frontmatter.SubstitutePlaceholders(step.Shell, stringifyVars(vars))
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = d.VaultRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return MacroStepResult{Kind: StepShell}, nil, fmt.Errorf("%w: shell step failed: %v: %s", mderrors.ErrPrecondition, err, stderr.String())
	}
	return MacroStepResult{Kind: StepShell}, map[string]interface{}{"shell_output": stdout.String()}, nil
}

func mergeVars(scope map[string]interface{}, with map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(scope)+len(with))
	for k, v := range scope {
		merged[k] = v
	}
	for k, v := range with {
		merged[k] = v
	}
	return merged
}
