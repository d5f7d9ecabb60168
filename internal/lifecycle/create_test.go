package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
)

func openTestVault(t *testing.T) (*index.Store, string) {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(root, ".mdvault", "index.sqlite")
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))
	store, err := index.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, root
}

func fixedNow() time.Time {
	t, _ := time.Parse("2006-01-02", "2026-03-10")
	return t
}

func newTestDeps(store *index.Store, root string) lifecycle.Deps {
	return lifecycle.Deps{
		VaultRoot: root,
		Store:     store,
		Walker:    index.Walker{Root: root},
		Now:       fixedNow,
	}
}

func TestCreateZettelWritesScaffoldAndReindexes(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	def := lifecycle.TypeDefinition{Kind: index.KindZettel}
	result, err := creator.Create(context.Background(), lifecycle.CreateParams{
		Def:  def,
		Vars: map[string]interface{}{"title": "My First Note"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Zettel/my-first-note.md", result.Note.Path)

	raw, err := os.ReadFile(filepath.Join(root, "Zettel", "my-first-note.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "type: zettel")
	assert.Contains(t, string(raw), "title: My First Note")
	assert.Contains(t, string(raw), "# My First Note")

	list, err := store.List(context.Background(), index.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1, "create must trigger an incremental reindex of the new file")
	assert.Equal(t, "Zettel/my-first-note.md", list[0].Path)
}

func TestCreateRefusesCollisionWithoutAppendOrOverwrite(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	def := lifecycle.TypeDefinition{Kind: index.KindZettel}
	ctx := context.Background()
	vars := map[string]interface{}{"title": "Dup"}

	_, err := creator.Create(ctx, lifecycle.CreateParams{Def: def, Vars: vars})
	require.NoError(t, err)

	_, err = creator.Create(ctx, lifecycle.CreateParams{Def: def, Vars: vars})
	require.Error(t, err)
	var collision *lifecycle.CollisionError
	require.ErrorAs(t, err, &collision)
}

func TestCreateBatchModeFailsOnMissingRequiredField(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	def := lifecycle.TypeDefinition{
		Kind:   index.KindZettel,
		Schema: []lifecycle.FieldSchema{{Name: "priority", Kind: lifecycle.FieldString, Required: true}},
	}
	_, err := creator.Create(context.Background(), lifecycle.CreateParams{
		Def:   def,
		Vars:  map[string]interface{}{"title": "No Priority"},
		Batch: true,
	})
	require.Error(t, err)
	var missing *lifecycle.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "priority", missing.Field)
}

func TestCreateDailyUsesDateExpression(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	def := lifecycle.TypeDefinition{Kind: index.KindDaily}
	result, err := creator.Create(context.Background(), lifecycle.CreateParams{
		Def:  def,
		Vars: map[string]interface{}{"date": "today"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Journal/2026/Daily/2026-03-10.md", result.Note.Path)
	assert.Equal(t, "2026-03-10", result.Note.ID)
}

func TestCreateProjectDerivesIDFromTitle(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	def := lifecycle.TypeDefinition{Kind: index.KindProject}
	result, err := creator.Create(context.Background(), lifecycle.CreateParams{
		Def:  def,
		Vars: map[string]interface{}{"title": "My Cool Project"},
	})
	require.NoError(t, err)
	assert.Equal(t, "MCP", result.Note.ID)
	assert.Equal(t, "Projects/MCP/MCP.md", result.Note.Path)
	assert.Equal(t, "MCP", result.Note.ProjectID)
}

func TestCreateTaskAllocatesProjectCounter(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}
	ctx := context.Background()

	_, err := creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindProject},
		Vars: map[string]interface{}{"title": "Widgets"},
	})
	require.NoError(t, err)

	first, err := creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindTask},
		Vars: map[string]interface{}{"title": "Task One", "project": "WID"},
	})
	require.NoError(t, err)
	assert.Equal(t, "WID-001", first.Note.ID)

	second, err := creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindTask},
		Vars: map[string]interface{}{"title": "Task Two", "project": "WID"},
	})
	require.NoError(t, err)
	assert.Equal(t, "WID-002", second.Note.ID)
	assert.Equal(t, "Projects/WID/Tasks/WID-002.md", second.Note.Path)
}

func TestCreateTaskWithoutProjectGoesToInbox(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}

	result, err := creator.Create(context.Background(), lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindTask},
		Vars: map[string]interface{}{"title": "Loose task"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INB-001", result.Note.ID)
	assert.Equal(t, "Inbox/INB-001.md", result.Note.Path)
}

func TestCreateTaskRefusedWhenProjectArchived(t *testing.T) {
	store, root := openTestVault(t)
	deps := newTestDeps(store, root)
	creator := lifecycle.NoteCreator{Deps: deps, Registry: lifecycle.NewRegistry()}
	ctx := context.Background()

	_, err := creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindProject},
		Vars: map[string]interface{}{"title": "Archived Co", "project-id": "ARC"},
	})
	require.NoError(t, err)

	projectPath := filepath.Join(root, "Projects", "ARC", "ARC.md")
	setFrontmatterField(t, projectPath, "status", "archived")
	_, err = store.ReindexPaths(ctx, index.Walker{Root: root}, []string{"Projects/ARC/ARC.md"})
	require.NoError(t, err)

	_, err = creator.Create(ctx, lifecycle.CreateParams{
		Def:  lifecycle.TypeDefinition{Kind: index.KindTask},
		Vars: map[string]interface{}{"title": "Should fail", "project": "ARC"},
	})
	require.Error(t, err)
	var archived *lifecycle.ArchivedProjectError
	require.ErrorAs(t, err, &archived)
}

func setFrontmatterField(t *testing.T, path, key string, value interface{}) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := frontmatter.Parse(string(raw))
	require.NoError(t, err)
	require.NoError(t, doc.Set(key, value))
	out, err := doc.Serialize()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
}
