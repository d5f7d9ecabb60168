package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// readFile reads a note's raw bytes as a string. Its own helper rather than
// a bare os.ReadFile call at each use site, for the one error-wrapping line.
func readFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", mderrors.ErrIndex, path, err)
	}
	return string(raw), nil
}

// writeFile serializes doc and writes it back atomically — the same
// temp-write-fsync-rename discipline internal/lifecycle's atomicwrite.go
// established, duplicated here rather than shared since the two packages
// have no other coupling.
func writeFile(path string, doc *frontmatter.Document) error {
	out, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("%w: serialize %s: %v", mderrors.ErrParse, path, err)
	}
	return atomicWriteFile(path, []byte(out))
}

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
