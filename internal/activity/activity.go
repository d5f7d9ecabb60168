// Package activity implements spec.md §4.6: the append-only JSON-lines
// operation log, its monthly rotation into an archive directory, and the
// TOML focus-state file that note-creation commands consult for an implicit
// `project` variable.
//
// The teacher has no equivalent of either concern — pkg/obsidian writes
// notes and nothing else. The focus file follows the same atomic temp-rename
// discipline internal/lifecycle's atomicwrite.go established for frontmatter
// writes (grounded on pkg/actions/rename.go's move mechanics); the log file
// is appended to in place (O_APPEND) and rotated by copying it onto the
// month's archive file and then removing it. The focus
// file's TOML encode/decode is grounded on stormlightlabs-knowledgelab's
// backend/service/settings.go (BurntSushi/toml, load-tolerant-of-absence,
// atomic save).
package activity

import (
	"path/filepath"
	"time"
)

// Paths holds the vault-relative layout spec.md §6 fixes for activity state.
type Paths struct {
	VaultRoot string
}

func (p Paths) logFile() string {
	return filepath.Join(p.VaultRoot, ".mdvault", "activity.jsonl")
}

func (p Paths) archiveDir() string {
	return filepath.Join(p.VaultRoot, ".mdvault", "activity-archive")
}

func (p Paths) archiveFile(month time.Time) string {
	return filepath.Join(p.archiveDir(), month.Format("2006-01")+".jsonl")
}

func (p Paths) contextFile() string {
	return filepath.Join(p.VaultRoot, ".mdvault", "state", "context.toml")
}
