package index_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/index"
)

func writeNote(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func openTestStore(t *testing.T) (*index.Store, string) {
	t.Helper()
	vaultRoot := t.TempDir()
	dbPath := filepath.Join(vaultRoot, ".mdvault", "index.sqlite")
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))
	store, err := index.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, vaultRoot
}

func TestReindexCreatesNotesAndLinks(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()

	writeNote(t, root, "Projects/TST/TST.md", "---\ntype: project\nproject-id: TST\ntask_counter: 5\n---\n# TST\n")
	writeNote(t, root, "notes/a.md", "---\ntype: zettel\n---\nSee [[TST]] and [link](notes/b.md).\n")
	writeNote(t, root, "notes/b.md", "---\ntype: zettel\ntitle: B\n---\nBody of B.\n")

	w := index.Walker{Root: root}
	result, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 0, result.Updated)

	list, err := store.List(ctx, index.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	backlinks, err := store.Backlinks(ctx, "notes/b.md")
	require.NoError(t, err)
	require.Len(t, backlinks, 1)
	assert.Equal(t, "notes/a.md", backlinks[0].Path)
}

func TestReindexIsIdempotent(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()
	writeNote(t, root, "notes/a.md", "# A\nno links here\n")

	w := index.Walker{Root: root}
	first, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Unchanged)
}

func TestReindexSkipsExcludedFolders(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()
	writeNote(t, root, "notes/a.md", "# A\n")
	writeNote(t, root, "templates/skip.md", "# Skip\n")

	w := index.Walker{Root: root, Excluded: []string{"templates"}}
	result, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestUnresolvedLinkIsFlagged(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()
	writeNote(t, root, "notes/a.md", "See [[does not exist]].\n")

	w := index.Walker{Root: root}
	_, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)

	orphans, err := store.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "notes/a.md", orphans[0].Path)
}

func TestReindexRemovesDeletedFiles(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()
	writeNote(t, root, "notes/a.md", "# A\n")

	w := index.Walker{Root: root}
	_, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "notes/a.md")))
	result, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	list, err := store.List(ctx, index.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 0)
}

func TestSearchDirectFindsByTitle(t *testing.T) {
	store, root := openTestStore(t)
	ctx := context.Background()
	writeNote(t, root, "notes/a.md", "---\ntitle: Quarterly Planning\n---\nbody\n")
	writeNote(t, root, "notes/b.md", "---\ntitle: Unrelated\n---\nbody\n")

	w := index.Walker{Root: root}
	_, err := store.Reindex(ctx, w, index.IngestOptions{})
	require.NoError(t, err)

	results, err := store.Search(ctx, index.SearchOptions{Mode: index.SearchDirect, Query: "planning"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes/a.md", results[0].Path)
}
