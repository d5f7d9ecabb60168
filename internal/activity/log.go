package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// logLine is the on-disk operation-log schema (spec.md §6): one JSON object
// per line, `ts: ISO-8601, op, type, id?, path, meta?`.
type logLine struct {
	TS   string                 `json:"ts"`
	Op   string                 `json:"op"`
	Type string                 `json:"type"`
	ID   string                 `json:"id,omitempty"`
	Path string                 `json:"path"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

func (l logLine) timestamp() time.Time {
	t, err := time.Parse(time.RFC3339, l.TS)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Log implements lifecycle.ActivityLogger: an append-only JSON-lines file at
// <vault>/.mdvault/activity.jsonl, one json.Marshal plus a newline per
// Append call with no intervening buffering (spec.md §4.6's "no buffering
// that could reorder or merge writes"), rotated monthly into
// activity-archive/YYYY-MM.jsonl once the file's oldest entry crosses
// RetentionDays.
type Log struct {
	paths         Paths
	retentionDays int
	now           func() time.Time

	mu sync.Mutex
}

// NewLog builds a Log rooted at vaultRoot. retentionDays <= 0 falls back to
// spec.md §4.6's default of 90. A nil now defaults to time.Now.
func NewLog(vaultRoot string, retentionDays int, now func() time.Time) *Log {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Log{paths: Paths{VaultRoot: vaultRoot}, retentionDays: retentionDays, now: now}
}

func (l *Log) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// Append writes one operation-log entry, rotating the active file first if
// its oldest entry has aged past the retention window.
func (l *Log) Append(ctx context.Context, entry lifecycle.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if err := maybeRotate(l.paths, l.retentionDays, now); err != nil {
		return err
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = now
	}
	line := logLine{
		TS:   ts.UTC().Format(time.RFC3339),
		Op:   entry.Operation,
		Type: string(entry.NoteKind),
		ID:   entry.ID,
		Path: entry.Path,
		Meta: entry.Metadata,
	}
	raw, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("%w: marshal activity entry: %v", mderrors.ErrParse, err)
	}
	raw = append(raw, '\n')

	logPath := l.paths.logFile()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("%w: prepare activity log directory: %v", mderrors.ErrIndex, err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open activity log: %v", mderrors.ErrIndex, err)
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return fmt.Errorf("%w: append activity log entry: %v", mderrors.ErrIndex, err)
	}
	return nil
}
