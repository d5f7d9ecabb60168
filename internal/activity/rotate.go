package activity

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// maybeRotate moves the current log file's entire contents into the monthly
// archive once its oldest entry has aged past retentionDays (spec.md §4.6:
// "rotated monthly ... when the current file crosses a configurable
// retention boundary (default 90 days)"). A log that doesn't exist yet, or
// whose oldest entry is still within the window, is left untouched.
func maybeRotate(paths Paths, retentionDays int, now time.Time) error {
	logPath := paths.logFile()
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: open activity log for rotation check: %v", mderrors.ErrIndex, err)
	}

	scanner := bufio.NewScanner(f)
	var oldest time.Time
	if scanner.Scan() {
		var line logLine
		if jsonErr := json.Unmarshal(scanner.Bytes(), &line); jsonErr == nil {
			oldest = line.timestamp()
		}
	}
	f.Close()

	if oldest.IsZero() || now.Sub(oldest) <= time.Duration(retentionDays)*24*time.Hour {
		return nil
	}

	if err := os.MkdirAll(paths.archiveDir(), 0o755); err != nil {
		return fmt.Errorf("%w: prepare activity archive directory: %v", mderrors.ErrIndex, err)
	}
	if err := appendFileInto(paths.archiveFile(oldest), logPath); err != nil {
		return err
	}
	return os.Remove(logPath)
}

// appendFileInto copies srcPath's contents onto the end of destPath,
// creating destPath if it doesn't exist yet — a rotation into a month that
// already has an archive file must extend it, not overwrite it.
func appendFileInto(destPath, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: open %s for rotation: %v", mderrors.ErrIndex, srcPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("%w: prepare archive directory: %v", mderrors.ErrIndex, err)
	}
	dest, err := os.OpenFile(destPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open archive file %s: %v", mderrors.ErrIndex, destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return fmt.Errorf("%w: copy into archive file %s: %v", mderrors.ErrIndex, destPath, err)
	}
	return dest.Sync()
}
