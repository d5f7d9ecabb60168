package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// projectLock serializes task-id allocation for one project note via a
// cooperative sibling lockfile (spec.md §4.5.2: "serialized through a
// per-project lock ... so two concurrent creations never issue the same
// id"). gopher-lua's pack carries no flock/filelock library, and the rest
// of this codebase already leans on atomic create-exclusive files as its
// locking primitive (the teacher's own write-temp-rename pattern is the
// same idea one level up), so the lock is a ".lock" sibling created with
// O_EXCL rather than a platform syscall.
type projectLock struct {
	path  string
	token string
}

func acquireLock(ctx context.Context, targetPath string, timeout time.Duration) (*projectLock, error) {
	lockPath := targetPath + ".lock"
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if _, werr := f.WriteString(token); werr != nil {
				f.Close()
				os.Remove(lockPath)
				return nil, fmt.Errorf("%w: write lock token: %v", mderrors.ErrConflict, werr)
			}
			f.Close()
			return &projectLock{path: lockPath, token: token}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("%w: acquire lock %s: %v", mderrors.ErrConflict, lockPath, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: lock %s held past timeout", mderrors.ErrConflict, lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (l *projectLock) release() {
	_ = os.Remove(l.path)
}

// allocateProjectTaskID performs spec.md §4.5.2's atomic read-modify-write:
// lock the project file, parse its task_counter, write back incremented,
// unlock, and return the formatted task id.
func allocateProjectTaskID(ctx context.Context, vaultRoot, projectPath, projectID string) (string, error) {
	fullPath := filepath.Join(vaultRoot, filepath.FromSlash(projectPath))
	lock, err := acquireLock(ctx, fullPath, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer lock.release()

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("%w: read project note %s: %v", mderrors.ErrIndex, projectPath, err)
	}
	doc, err := frontmatter.Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: parse project note %s: %v", mderrors.ErrParse, projectPath, err)
	}

	next, err := doc.Increment("task_counter", 1)
	if err != nil {
		return "", err
	}

	if err := atomicWriteDocument(fullPath, doc); err != nil {
		return "", err
	}

	return formatTaskID(projectID, next), nil
}

// allocateInboxTaskID is the no-project analogue: the counter lives in a
// dedicated per-vault file rather than a project note's frontmatter, since
// Inbox tasks have no owning project note to carry one. spec.md's §4.5.2
// wording only covers the project case explicitly; this mirrors the same
// lock/read/increment/write shape for the "INB-NNN" id space it names in
// §4.5.1's identity table.
func allocateInboxTaskID(ctx context.Context, vaultRoot string) (string, error) {
	counterPath := filepath.Join(vaultRoot, ".mdvault", "inbox_counter")
	if err := os.MkdirAll(filepath.Dir(counterPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: prepare inbox counter dir: %v", mderrors.ErrIndex, err)
	}

	lock, err := acquireLock(ctx, counterPath, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer lock.release()

	current := 0
	if raw, err := os.ReadFile(counterPath); err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(string(raw))); convErr == nil {
			current = n
		}
	}
	next := current + 1

	if err := atomicWriteFile(counterPath, []byte(strconv.Itoa(next))); err != nil {
		return "", err
	}

	return formatTaskID("INB", next), nil
}

func formatTaskID(prefix string, ordinal int) string {
	return fmt.Sprintf("%s-%03d", prefix, ordinal)
}
