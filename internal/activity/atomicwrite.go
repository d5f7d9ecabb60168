package activity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// atomicWriteFile mirrors internal/lifecycle's atomicwrite.go: write to a
// sibling temp file, fsync it, rename over the target, fsync the parent
// directory. Duplicated rather than shared because the two packages have no
// other coupling and the whole routine is a dozen lines.
func atomicWriteFile(targetPath string, data []byte) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: prepare directory for %s: %v", mderrors.ErrIndex, targetPath, err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(targetPath)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", mderrors.ErrIndex, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", mderrors.ErrIndex, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync temp file: %v", mderrors.ErrIndex, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", mderrors.ErrIndex, err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into place: %v", mderrors.ErrIndex, err)
	}

	if parent, err := os.Open(dir); err == nil {
		_ = parent.Sync()
		parent.Close()
	}
	return nil
}
