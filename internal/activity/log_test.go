package activity_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/activity"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
)

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return tm
}

func TestLogAppendWritesOneJSONLinePerEntry(t *testing.T) {
	root := t.TempDir()
	now := mustParseDate(t, "2026-03-10")
	log := activity.NewLog(root, 90, func() time.Time { return now })

	require.NoError(t, log.Append(context.Background(), lifecycle.LogEntry{
		Operation: "new",
		NoteKind:  index.KindZettel,
		ID:        "abc123",
		Path:      "Zettel/abc.md",
		Metadata:  map[string]interface{}{"title": "Abc"},
	}))
	require.NoError(t, log.Append(context.Background(), lifecycle.LogEntry{
		Operation: "capture",
		NoteKind:  index.KindDaily,
		Path:      "Journal/2026/Daily/2026-03-10.md",
	}))

	raw, err := os.ReadFile(filepath.Join(root, ".mdvault", "activity.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"op":"new"`)
	assert.Contains(t, lines[0], `"type":"zettel"`)
	assert.Contains(t, lines[1], `"op":"capture"`)
}

func TestLogAppendDefaultsTimestampToClock(t *testing.T) {
	root := t.TempDir()
	now := mustParseDate(t, "2026-03-10")
	log := activity.NewLog(root, 90, func() time.Time { return now })

	require.NoError(t, log.Append(context.Background(), lifecycle.LogEntry{
		Operation: "new",
		Path:      "Zettel/abc.md",
	}))

	raw, err := os.ReadFile(filepath.Join(root, ".mdvault", "activity.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ts":"2026-03-10T00:00:00Z"`)
}

func TestLogRotatesPastRetentionWindowIntoMonthlyArchive(t *testing.T) {
	root := t.TempDir()
	writeTime := mustParseDate(t, "2025-12-01")
	log := activity.NewLog(root, 90, func() time.Time { return writeTime })

	require.NoError(t, log.Append(context.Background(), lifecycle.LogEntry{
		Operation: "new",
		Path:      "Zettel/old.md",
	}))

	laterTime := mustParseDate(t, "2026-03-10")
	log2 := activity.NewLog(root, 90, func() time.Time { return laterTime })
	require.NoError(t, log2.Append(context.Background(), lifecycle.LogEntry{
		Operation: "new",
		Path:      "Zettel/new.md",
	}))

	archived, err := os.ReadFile(filepath.Join(root, ".mdvault", "activity-archive", "2025-12.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(archived), "Zettel/old.md")

	active, err := os.ReadFile(filepath.Join(root, ".mdvault", "activity.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(active), "Zettel/new.md")
	assert.NotContains(t, string(active), "Zettel/old.md")
}
