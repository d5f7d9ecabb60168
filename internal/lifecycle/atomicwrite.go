package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// atomicWriteFile implements spec.md §9's atomic-write contract: write to a
// sibling temp file, fsync it, rename over the target, then fsync the
// parent directory so the rename itself is durable. The teacher's own
// writes (pkg/note/manager.go, pkg/actions/rename.go) use a plain
// os.WriteFile/os.Rename; this generalizes that to the fsync-before-rename
// discipline spec.md requires for crash safety.
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

func atomicWriteDocument(targetPath string, doc *frontmatter.Document) error {
	out, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("%w: serialize %s: %v", mderrors.ErrParse, targetPath, err)
	}
	return atomicWriteFile(targetPath, []byte(out))
}

// atomicMoveFile moves srcPath to destPath via a sibling-temp-rename into
// the destination directory, so a crash mid-move never leaves a partially
// written destination file (spec.md §4.5.6 step 4: "Move every file ...
// atomically (per-file temp-rename)").
func atomicMoveFile(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", mderrors.ErrIndex, srcPath, err)
	}
	if err := atomicWriteFile(destPath, data); err != nil {
		return err
	}
	return os.Remove(srcPath)
}
