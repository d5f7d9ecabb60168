package activity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/activity"
)

func TestFocusCurrentIsAbsentWhenNeverSet(t *testing.T) {
	root := t.TempDir()
	f := activity.NewFocus(root, nil)

	_, ok, err := f.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFocusSetThenCurrentResolvesToProjectNoteWithoutExplicitNote(t *testing.T) {
	root := t.TempDir()
	now := func() time.Time { t, _ := time.Parse("2006-01-02", "2026-03-10"); return t }
	f := activity.NewFocus(root, now)
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "ABC", ""))

	path, ok, err := f.Current(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Projects/ABC/ABC.md", path)

	raw, err := os.ReadFile(filepath.Join(root, ".mdvault", "state", "context.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `project = "ABC"`)
}

func TestFocusSetWithExplicitNoteOverridesProjectResolution(t *testing.T) {
	root := t.TempDir()
	f := activity.NewFocus(root, nil)
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "ABC", "Projects/ABC/Tasks/ABC-001.md"))

	path, ok, err := f.Current(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Projects/ABC/Tasks/ABC-001.md", path)
}

func TestFocusClearRemovesFocus(t *testing.T) {
	root := t.TempDir()
	f := activity.NewFocus(root, nil)
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "ABC", ""))
	require.NoError(t, f.Clear(ctx))

	_, ok, err := f.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	project, ok, err := f.Project(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, project)
}
