package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mdvault/mdvault/internal/mderrors"
)

// rawProfile, rawSecurity, rawActivity, rawLogging, and rawConfig mirror the
// public types but use pointer/zero-value fields where a TOML-absent key
// must be told apart from an explicit false/0 — the same reason
// internal/activity/focus.go's focusDoc makes its table a *focusTable
// rather than a bare value.
type rawProfile struct {
	VaultRoot    string `toml:"vault_root"`
	TemplatesDir string `toml:"templates_dir"`
	CapturesDir  string `toml:"captures_dir"`
	MacrosDir    string `toml:"macros_dir"`
	TypesDir     string `toml:"types_dir"`
}

type rawSecurity struct {
	AllowShell bool `toml:"allow_shell"`
	AllowHTTP  bool `toml:"allow_http"`
}

type rawActivity struct {
	Enabled       *bool    `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	LogOperations []string `toml:"log_operations"`
}

type rawLogging struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	FileLevel string `toml:"file_level"`
}

type rawConfig struct {
	VaultRoot       string                 `toml:"vault_root"`
	Profile         string                 `toml:"profile"`
	Profiles        map[string]rawProfile  `toml:"profiles"`
	ExcludedFolders []string               `toml:"excluded_folders"`
	Security        rawSecurity            `toml:"security"`
	Activity        rawActivity            `toml:"activity"`
	Logging         rawLogging             `toml:"logging"`
}

const defaultRetentionDays = 90

// Load reads and decodes the TOML file at path, applies spec.md §6's
// documented defaults, resolves every directory field's ~/env-var/
// {{vault_root}} interpolation, and makes the result absolute. A missing
// file is not tolerated here the way focus.go tolerates a missing
// context.toml — unlike focus state, a missing config file means the
// caller passed the wrong path, so Load reports it as mderrors.ErrConfig
// rather than silently returning zero values.
func Load(path string) (Config, error) {
	var raw rawConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Config{}, fmt.Errorf("%w: decode config %s: %v", mderrors.ErrConfig, path, err)
	}
	return resolve(raw)
}

func resolve(raw rawConfig) (Config, error) {
	if raw.Profile != "" {
		if _, ok := raw.Profiles[raw.Profile]; !ok {
			return Config{}, fmt.Errorf("%w: unknown profile %q", mderrors.ErrConfig, raw.Profile)
		}
	}

	vaultRoot, err := expandPath(raw.VaultRoot, "")
	if err != nil {
		return Config{}, fmt.Errorf("%w: vault_root: %v", mderrors.ErrConfig, err)
	}

	profiles := make(map[string]Profile, len(raw.Profiles))
	for name, p := range raw.Profiles {
		resolved, err := resolveProfile(p, vaultRoot)
		if err != nil {
			return Config{}, fmt.Errorf("%w: profile %q: %v", mderrors.ErrConfig, name, err)
		}
		profiles[name] = resolved
	}

	activeRoot := vaultRoot
	if raw.Profile != "" {
		if p, ok := profiles[raw.Profile]; ok && p.VaultRoot != "" {
			activeRoot = p.VaultRoot
		}
	}
	if activeRoot == "" {
		return Config{}, fmt.Errorf("%w: vault_root is required", mderrors.ErrConfig)
	}
	if info, err := os.Stat(activeRoot); err != nil || !info.IsDir() {
		return Config{}, fmt.Errorf("%w: vault_root %q is not a directory", mderrors.ErrConfig, activeRoot)
	}

	excluded := make([]string, len(raw.ExcludedFolders))
	copy(excluded, raw.ExcludedFolders)

	logFile := raw.Logging.File
	if logFile != "" {
		logFile, err = expandPath(logFile, activeRoot)
		if err != nil {
			return Config{}, fmt.Errorf("%w: logging.file: %v", mderrors.ErrConfig, err)
		}
	}

	activityEnabled := true
	if raw.Activity.Enabled != nil {
		activityEnabled = *raw.Activity.Enabled
	}
	retentionDays := raw.Activity.RetentionDays
	if retentionDays == 0 {
		retentionDays = defaultRetentionDays
	}

	return Config{
		VaultRoot:       vaultRoot,
		Profile:         raw.Profile,
		Profiles:        profiles,
		ExcludedFolders: excluded,
		Security: Security{
			AllowShell: raw.Security.AllowShell,
			AllowHTTP:  raw.Security.AllowHTTP,
		},
		Activity: Activity{
			Enabled:       activityEnabled,
			RetentionDays: retentionDays,
			LogOperations: append([]string(nil), raw.Activity.LogOperations...),
		},
		Logging: Logging{
			Level:     raw.Logging.Level,
			File:      logFile,
			FileLevel: raw.Logging.FileLevel,
		},
	}, nil
}

func resolveProfile(p rawProfile, defaultVaultRoot string) (Profile, error) {
	vaultRoot := defaultVaultRoot
	if p.VaultRoot != "" {
		resolved, err := expandPath(p.VaultRoot, defaultVaultRoot)
		if err != nil {
			return Profile{}, fmt.Errorf("vault_root: %w", err)
		}
		vaultRoot = resolved
	}

	resolveDir := func(field, value string) (string, error) {
		if value == "" {
			return "", nil
		}
		resolved, err := expandPath(value, vaultRoot)
		if err != nil {
			return "", fmt.Errorf("%s: %w", field, err)
		}
		return resolved, nil
	}

	templatesDir, err := resolveDir("templates_dir", p.TemplatesDir)
	if err != nil {
		return Profile{}, err
	}
	capturesDir, err := resolveDir("captures_dir", p.CapturesDir)
	if err != nil {
		return Profile{}, err
	}
	macrosDir, err := resolveDir("macros_dir", p.MacrosDir)
	if err != nil {
		return Profile{}, err
	}
	typesDir, err := resolveDir("types_dir", p.TypesDir)
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		VaultRoot:    vaultRoot,
		TemplatesDir: templatesDir,
		CapturesDir:  capturesDir,
		MacrosDir:    macrosDir,
		TypesDir:     typesDir,
	}, nil
}

// expandPath implements spec.md §6's "~ expansion, environment-variable
// expansion, and {{vault_root}} / other field interpolation; all are
// resolved to absolute paths before use." vaultRoot is the value {{vault_root}}
// interpolates to; pass "" when resolving vault_root itself.
func expandPath(value, vaultRoot string) (string, error) {
	if value == "" {
		return "", nil
	}

	expanded := strings.ReplaceAll(value, "{{vault_root}}", vaultRoot)
	expanded = os.Expand(expanded, func(name string) string {
		return os.Getenv(name)
	})

	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}

	if !filepath.IsAbs(expanded) {
		base := vaultRoot
		if base == "" {
			abs, err := filepath.Abs(expanded)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
		expanded = filepath.Join(base, expanded)
	}

	return filepath.Clean(expanded), nil
}
