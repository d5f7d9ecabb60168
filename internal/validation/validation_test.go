package validation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/validation"
)

func writeVaultNote(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func openValidationStore(t *testing.T) (*index.Store, string) {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(root, ".mdvault", "index.sqlite")
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))
	store, err := index.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, root
}

func TestCheckLinksFlagsUnresolvedReference(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/a.md", "---\ntype: zettel\ntitle: A\n---\nSee [[Zettel/missing]].\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/a.md"})
	require.NoError(t, err)

	findings, err := validation.CheckLinks(ctx, store, "Zettel/a.md")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "missing")
}

func TestCheckLinksPassesWhenReferenceResolves(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/b.md", "---\ntype: zettel\ntitle: B\n---\nBody.\n")
	writeVaultNote(t, root, "Zettel/a.md", "---\ntype: zettel\ntitle: A\n---\nSee [[Zettel/b]].\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/a.md", "Zettel/b.md"})
	require.NoError(t, err)

	findings, err := validation.CheckLinks(ctx, store, "Zettel/a.md")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidateInjectsDefaultForMissingRequiredFieldWithFix(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Projects/ABC/Tasks/ABC-001.md", "---\ntype: task\ntitle: Write report\n---\n# Write report\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Projects/ABC/Tasks/ABC-001.md"})
	require.NoError(t, err)

	def := lifecycle.TypeDefinition{
		Kind: index.KindTask,
		Schema: []lifecycle.FieldSchema{
			{Name: "status", Kind: lifecycle.FieldString, Required: true, Default: "open", Enum: []string{"open", "done"}},
		},
	}

	result, err := validation.Validate(ctx, validation.Deps{VaultRoot: root, Store: store}, def, nil,
		"Projects/ABC/Tasks/ABC-001.md", validation.Options{Fix: true})
	require.NoError(t, err)
	assert.Contains(t, result.Fixed, "status")
	assert.Empty(t, result.Findings)

	raw, err := os.ReadFile(filepath.Join(root, "Projects", "ABC", "Tasks", "ABC-001.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "status: open")
}

func TestValidateNormalizesEnumCaseWithFix(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/c.md", "---\ntype: zettel\ntitle: C\nstatus: OPEN\n---\nbody\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/c.md"})
	require.NoError(t, err)

	def := lifecycle.TypeDefinition{
		Schema: []lifecycle.FieldSchema{
			{Name: "status", Kind: lifecycle.FieldString, Enum: []string{"open", "done"}},
		},
	}

	result, err := validation.Validate(ctx, validation.Deps{VaultRoot: root, Store: store}, def, nil,
		"Zettel/c.md", validation.Options{Fix: true})
	require.NoError(t, err)
	assert.Contains(t, result.Fixed, "status")

	raw, err := os.ReadFile(filepath.Join(root, "Zettel", "c.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "status: open")
}

func TestValidateWithoutFixLeavesFileUntouched(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/d.md", "---\ntype: zettel\ntitle: D\n---\nbody\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/d.md"})
	require.NoError(t, err)

	def := lifecycle.TypeDefinition{
		Schema: []lifecycle.FieldSchema{
			{Name: "status", Kind: lifecycle.FieldString, Required: true, Default: "open"},
		},
	}

	result, err := validation.Validate(ctx, validation.Deps{VaultRoot: root, Store: store}, def, nil, "Zettel/d.md", validation.Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "status", result.Findings[0].Field)

	raw, err := os.ReadFile(filepath.Join(root, "Zettel", "d.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "status")
}

func TestValidateEnforcesReferenceNoteType(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/other.md", "---\ntype: zettel\ntitle: Other\n---\nbody\n")
	writeVaultNote(t, root, "Projects/ABC/Tasks/ABC-001.md", "---\ntype: task\ntitle: Needs project\nproject: Zettel/other\n---\nbody\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/other.md", "Projects/ABC/Tasks/ABC-001.md"})
	require.NoError(t, err)

	def := lifecycle.TypeDefinition{
		Kind: index.KindTask,
		Schema: []lifecycle.FieldSchema{
			{Name: "project", Kind: lifecycle.FieldRef, NoteType: "project"},
		},
	}

	result, err := validation.Validate(ctx, validation.Deps{VaultRoot: root, Store: store}, def, nil,
		"Projects/ABC/Tasks/ABC-001.md", validation.Options{})
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "project", result.Findings[0].Field)
	assert.Contains(t, result.Findings[0].Message, `want "project"`)
}

func TestValidateRunsCustomValidateHookAsFatal(t *testing.T) {
	store, root := openValidationStore(t)
	ctx := context.Background()

	writeVaultNote(t, root, "Zettel/e.md", "---\ntype: zettel\ntitle: E\n---\nbody\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Zettel/e.md"})
	require.NoError(t, err)

	result, err := validation.Validate(ctx, validation.Deps{VaultRoot: root, Store: store}, lifecycle.TypeDefinition{}, nil, "Zettel/e.md", validation.Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Findings, "a nil HookRunner must behave like a type with no validate function")
}
