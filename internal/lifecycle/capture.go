package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/mdast"
)

// FrontmatterOp is one frontmatter mutation a capture definition applies
// before writing (spec.md §4.1's operation set).
type FrontmatterOp struct {
	Op    string // "set", "toggle", "increment", "append"
	Key   string
	Value interface{}
}

// CaptureTarget describes where a capture definition's content lands.
type CaptureTarget struct {
	PathTemplate    string
	Section         string
	Position        mdast.Position
	CreateIfMissing bool
}

// CaptureDefinition is the script-defined descriptor spec.md §3 names:
// variables, target, content template, frontmatter operations, and the
// before_insert/after_insert hooks.
type CaptureDefinition struct {
	Schema          []FieldSchema
	Target          CaptureTarget
	ContentTemplate string
	FrontmatterOps  []FrontmatterOp
	Hooks           *HookRunner
}

// CaptureParams bundles one capture request's caller-supplied variables.
type CaptureParams struct {
	Def   CaptureDefinition
	Vars  map[string]interface{}
	Batch bool
}

// CaptureResult reports what Capture did; Aborted is true for a soft abort
// from before_insert (spec.md §4.5.3 step 2), which is not an error.
type CaptureResult struct {
	Path    string
	Aborted bool
}

// Capture runs spec.md §4.5.3's pipeline: collect variables, run
// before_insert (which may transform content/target-path or soft-abort; the
// frontmatter operations are not passed to it), render the target path and content, apply frontmatter
// operations and section insertion, write atomically, log, and run
// after_insert.
func Capture(ctx context.Context, d Deps, p CaptureParams) (CaptureResult, error) {
	vars, err := collectCaptureVariables(p.Def.Schema, p.Vars, p.Batch)
	if err != nil {
		return CaptureResult{}, err
	}
	now := d.now()
	evaluateDateExprs(vars, now)

	strVars := stringifyVars(vars)
	targetPath := frontmatter.SubstitutePlaceholders(p.Def.Target.PathTemplate, strVars)
	content := frontmatter.SubstitutePlaceholders(p.Def.ContentTemplate, strVars)
	ops := p.Def.FrontmatterOps

	if ok, newContent, newOps, newPath := p.Def.Hooks.callBeforeInsert(content, ops, targetPath); !ok {
		return CaptureResult{Aborted: true}, nil
	} else {
		content, ops, targetPath = newContent, newOps, newPath
	}

	fullPath := filepath.Join(d.VaultRoot, filepath.FromSlash(targetPath))
	raw, err := os.ReadFile(fullPath)
	missing := os.IsNotExist(err)
	if err != nil && !missing {
		return CaptureResult{}, fmt.Errorf("read target %s: %w", targetPath, err)
	}

	var doc *frontmatter.Document
	if missing {
		if !p.Def.Target.CreateIfMissing {
			return CaptureResult{}, &TargetMissingError{Path: targetPath}
		}
		doc, err = frontmatter.Parse("")
	} else {
		doc, err = frontmatter.Parse(string(raw))
	}
	if err != nil {
		return CaptureResult{}, err
	}

	if err := applyFrontmatterOps(doc, ops); err != nil {
		return CaptureResult{}, err
	}

	if p.Def.Target.Section != "" {
		inserted, err := mdast.InsertIntoSection([]byte(doc.Body), p.Def.Target.Section, content,
			p.Def.Target.Position, mdast.InsertOptions{CreateIfMissing: p.Def.Target.CreateIfMissing})
		if err != nil {
			return CaptureResult{}, err
		}
		doc.Body = string(inserted)
	} else {
		doc.Body += content
	}

	if err := atomicWriteDocument(fullPath, doc); err != nil {
		return CaptureResult{}, err
	}

	if err := d.logAppend(ctx, LogEntry{
		Timestamp: now,
		Operation: "capture",
		Path:      targetPath,
		Metadata:  map[string]interface{}{"vars": vars},
	}); err != nil {
		return CaptureResult{}, err
	}

	if err := d.reindexPaths(ctx, []string{targetPath}); err != nil {
		return CaptureResult{}, err
	}

	p.Def.Hooks.callAfterInsert(targetPath)

	return CaptureResult{Path: targetPath}, nil
}

func collectCaptureVariables(schema []FieldSchema, explicit map[string]interface{}, batch bool) (map[string]interface{}, error) {
	def := TypeDefinition{Schema: schema}
	return collectVariables(def, explicit, batch)
}

func stringifyVars(vars map[string]interface{}) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// applyFrontmatterOps applies each op in order; unknown op names are
// ignored, since a type/capture definition cannot misuse a Lua table key the
// loader never validated beyond the four recognized names.
func applyFrontmatterOps(doc *frontmatter.Document, ops []FrontmatterOp) error {
	for _, op := range ops {
		switch op.Op {
		case "set":
			if err := doc.Set(op.Key, op.Value); err != nil {
				return err
			}
		case "toggle":
			if err := doc.Toggle(op.Key); err != nil {
				return err
			}
		case "increment":
			delta := 1
			if n, ok := op.Value.(int); ok {
				delta = n
			}
			if _, err := doc.Increment(op.Key, delta); err != nil {
				return err
			}
		case "append":
			if err := doc.Append(op.Key, op.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
