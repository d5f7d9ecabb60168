package lifecycle

import (
	"context"
	"fmt"

	"github.com/mdvault/mdvault/internal/index"
)

// taskKind implements Kind for spec.md §4.5.1's Task row: id is
// `<pid>-NNN` issued by the owning project's counter, or `INB-NNN` with no
// project; path is Projects/<pid>/Tasks/ or Inbox/.
type taskKind struct{}

func (taskKind) NoteKind() index.NoteKind { return index.KindTask }

func (taskKind) Prompts(def TypeDefinition) []FieldSchema {
	prompts := []FieldSchema{{Name: "project", Kind: FieldString, Prompt: "Project id (blank for Inbox)"}}
	for _, f := range def.Schema {
		if f.Prompt != "" {
			prompts = append(prompts, f)
		}
	}
	return prompts
}

func (taskKind) Identity(ctx context.Context, d Deps, def TypeDefinition, vars map[string]interface{}) (string, string, error) {
	projectID, _ := vars["project"].(string)
	if projectID == "" {
		id, err := allocateInboxTaskID(ctx, d.VaultRoot)
		if err != nil {
			return "", "", err
		}
		return id, fmt.Sprintf("Inbox/%s.md", id), nil
	}

	projectPath, ok, err := d.Store.FindProjectPath(ctx, projectID)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", fmt.Errorf("no project with project-id %q", projectID)
	}
	note, _, _, err := d.Store.GetNoteByPath(ctx, projectPath)
	if err != nil {
		return "", "", err
	}
	if status, _ := note.Frontmatter["status"].(string); status == "archived" {
		return "", "", &ArchivedProjectError{ProjectID: projectID}
	}

	id, err := allocateProjectTaskID(ctx, d.VaultRoot, projectPath, projectID)
	if err != nil {
		return "", "", err
	}
	return id, fmt.Sprintf("Projects/%s/Tasks/%s.md", projectID, id), nil
}

func (taskKind) AfterCreate(ctx context.Context, d Deps, created CreatedNote) error {
	return nil
}
