// Package engine is the facade that wires the index, lifecycle, script,
// and activity packages together into one object a command
// surface can drive: load the config file, open the index, construct the
// activity log/focus store, and hand back a lifecycle.Deps plus a
// definition loader for the sandboxed runtime.
//
// Grounded on the teacher's cmd/root.go, which resolves a vault, opens it,
// and hands every subcommand the same obsidian.Vault/obsidian.Uri pair —
// Engine plays that role here, built once per process and threaded through
// every command.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mdvault/mdvault/internal/activity"
	"github.com/mdvault/mdvault/internal/config"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// Engine bundles one opened vault's collaborators.
type Engine struct {
	Config   config.Config
	Store    *index.Store
	Log      *activity.Log
	Focus    *activity.Focus
	Registry *lifecycle.Registry
	Now      func() time.Time
}

// Open loads the config file at configPath, opens (creating if absent) the
// vault's sqlite index, and constructs the activity log/focus store rooted
// at the active vault root.
func Open(ctx context.Context, configPath string) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	root := cfg.ActiveVaultRoot()
	dbPath := filepath.Join(root, ".mdvault", "index.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create .mdvault dir: %v", mderrors.ErrIndex, err)
	}
	store, err := index.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open index at %s: %v", mderrors.ErrIndex, dbPath, err)
	}

	var log *activity.Log
	if cfg.Activity.Enabled {
		log = activity.NewLog(root, cfg.Activity.RetentionDays, nil)
	}

	return &Engine{
		Config:   cfg,
		Store:    store,
		Log:      log,
		Focus:    activity.NewFocus(root, nil),
		Registry: lifecycle.NewRegistry(),
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Close releases the index's underlying database handle.
func (e *Engine) Close() error {
	return e.Store.Close()
}

// Walker returns the index.Walker configured from the active config's
// excluded_folders, rooted at the active vault.
func (e *Engine) Walker() index.Walker {
	return index.Walker{Root: e.Config.ActiveVaultRoot(), Excluded: e.Config.ExcludedFolders}
}

// Deps builds the lifecycle.Deps every lifecycle operation needs, wired to
// this engine's store, walker, activity log, and focus state. activity.Log
// already implements lifecycle.ActivityLogger directly (it takes
// lifecycle.LogEntry itself). A nil *activity.Log — the "activity
// disabled" case — is not passed through as-is: stored in the interface it
// would be a non-nil interface value, and Log.Append does not tolerate a
// nil receiver, so Activity.Enabled == false produces a literal nil
// interface instead, which lifecycle.Deps.logAppend treats as a no-op.
func (e *Engine) Deps() lifecycle.Deps {
	var log lifecycle.ActivityLogger
	if e.Log != nil {
		log = e.Log
	}
	return lifecycle.Deps{
		VaultRoot: e.Config.ActiveVaultRoot(),
		Store:     e.Store,
		Walker:    e.Walker(),
		Now:       e.Now,
		Log:       log,
		Focus:     e.Focus,
	}
}
