package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
)

func writeNote(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestArchiveRefusesWhenProjectNotDone(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	ctx := context.Background()

	writeNote(t, root, "Projects/ABC/ABC.md", "---\ntype: project\nproject-id: ABC\nstatus: active\n---\n# ABC\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Projects/ABC/ABC.md"})
	require.NoError(t, err)

	_, err = lifecycle.Archive(ctx, deps, lifecycle.ArchiveParams{ProjectID: "ABC"})
	require.Error(t, err)
	var precondition *lifecycle.ArchivePreconditionError
	require.ErrorAs(t, err, &precondition)
}

func TestArchiveCascadesTasksAndMovesTree(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	ctx := context.Background()

	writeNote(t, root, "Projects/ABC/ABC.md", "---\ntype: project\nproject-id: ABC\nstatus: done\n---\n# ABC\n")
	writeNote(t, root, "Projects/ABC/Tasks/ABC-001.md", "---\ntype: task\nproject: ABC\nstatus: open\n---\n# Task One\n")
	writeNote(t, root, "Zettel/referrer.md", "---\ntype: zettel\ntitle: Referrer\n---\nSee [[Projects/ABC/ABC]] for background.\n")

	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{
		"Projects/ABC/ABC.md", "Projects/ABC/Tasks/ABC-001.md", "Zettel/referrer.md",
	})
	require.NoError(t, err)

	result, err := lifecycle.Archive(ctx, deps, lifecycle.ArchiveParams{ProjectID: "ABC"})
	require.NoError(t, err)
	assert.Equal(t, "Projects/_archive/ABC/ABC.md", result.ArchivedPath)
	assert.Contains(t, result.CancelledTasks, "Projects/ABC/Tasks/ABC-001.md")
	assert.GreaterOrEqual(t, result.ReferenceUpdates, 1)

	_, err = os.Stat(filepath.Join(root, "Projects", "ABC"))
	assert.True(t, os.IsNotExist(err), "the old project directory must be gone after archiving")

	archivedRaw, err := os.ReadFile(filepath.Join(root, "Projects", "_archive", "ABC", "ABC.md"))
	require.NoError(t, err)
	assert.Contains(t, string(archivedRaw), "status: archived")

	taskRaw, err := os.ReadFile(filepath.Join(root, "Projects", "_archive", "ABC", "Tasks", "ABC-001.md"))
	require.NoError(t, err)
	assert.Contains(t, string(taskRaw), "status: cancelled")

	referrerRaw, err := os.ReadFile(filepath.Join(root, "Zettel", "referrer.md"))
	require.NoError(t, err)
	assert.Contains(t, string(referrerRaw), "[[Projects/_archive/ABC/ABC]]")
}

func TestArchiveRefusesNewTaskAfterArchiving(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	ctx := context.Background()

	writeNote(t, root, "Projects/XYZ/XYZ.md", "---\ntype: project\nproject-id: XYZ\nstatus: done\n---\n# XYZ\n")
	_, err := store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Projects/XYZ/XYZ.md"})
	require.NoError(t, err)

	_, err = lifecycle.Archive(ctx, deps, lifecycle.ArchiveParams{ProjectID: "XYZ"})
	require.NoError(t, err)

	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}
	_, err = creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindTask},
		Vars: map[string]interface{}{"title": "Too late", "project": "XYZ"},
	})
	require.Error(t, err)
	var archived *lifecycle.ArchivedProjectError
	require.ErrorAs(t, err, &archived)
}
