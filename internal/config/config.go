// Package config loads the engine's TOML configuration file (spec.md §6)
// and resolves every directory-shaped value it carries to an absolute path.
//
// This is ambient-stack scope the base specification's Non-goals hand to
// "the command-line surface" as an external collaborator — but the teacher
// carries a config layer of its own (pkg/config's CliPath/ObsidianFile/
// TargetsPath building config-directory paths via os.UserConfigDir, and
// pkg/obsidian/cli_config.go's readCliConfig/writeCliConfig pair with its
// allow-missing-file read semantics), so this package is the engine-side
// equivalent: Load resolves a file shaped the way spec.md §6 describes,
// using BurntSushi/toml, the same library internal/activity uses for the
// focus-state file.
package config

import "path/filepath"

// Profile overrides vault_root and the four definition-file directories for
// one named profile (spec.md §6: "profiles.<name>.{vault_root,
// templates_dir, captures_dir, macros_dir, types_dir}").
type Profile struct {
	VaultRoot    string
	TemplatesDir string
	CapturesDir  string
	MacrosDir    string
	TypesDir     string
}

// Security gates sandboxed-script capabilities (spec.md §4.3/§6). Both
// default to false: a vault only grants a script shell or HTTP access by
// explicit opt-in.
type Security struct {
	AllowShell bool
	AllowHTTP  bool
}

// Activity configures the operation log (spec.md §4.6/§6).
type Activity struct {
	Enabled       bool
	RetentionDays int
	LogOperations []string
}

// Logging holds the [logging] table's values as loaded; no other package in
// this module reads them.
type Logging struct {
	Level     string
	File      string
	FileLevel string
}

// Config is a fully resolved configuration: every directory field is an
// absolute path, and every field missing from the TOML file has taken on
// its documented default.
type Config struct {
	VaultRoot       string
	Profile         string
	Profiles        map[string]Profile
	ExcludedFolders []string
	Security        Security
	Activity        Activity
	Logging         Logging
}

// ActiveVaultRoot returns the vault root in effect once Profile is applied:
// the named profile's vault_root if Profile names one and it overrides the
// field, otherwise the top-level VaultRoot.
func (c Config) ActiveVaultRoot() string {
	if c.Profile == "" {
		return c.VaultRoot
	}
	if p, ok := c.Profiles[c.Profile]; ok && p.VaultRoot != "" {
		return p.VaultRoot
	}
	return c.VaultRoot
}

// activeProfile returns the named profile's overrides, or a zero Profile if
// no profile is selected or it declares no overrides.
func (c Config) activeProfile() Profile {
	if c.Profile == "" {
		return Profile{}
	}
	return c.Profiles[c.Profile]
}

// TemplatesDir, CapturesDir, MacrosDir and TypesDir return the active
// profile's directory override, falling back to root/<default-name> under
// the active vault root when the profile (or its field) is unset.
func (c Config) TemplatesDir() string { return c.profileDirOr(c.activeProfile().TemplatesDir, "Templates") }
func (c Config) CapturesDir() string  { return c.profileDirOr(c.activeProfile().CapturesDir, "Captures") }
func (c Config) MacrosDir() string    { return c.profileDirOr(c.activeProfile().MacrosDir, ".mdvault/macros") }
func (c Config) TypesDir() string     { return c.profileDirOr(c.activeProfile().TypesDir, ".mdvault/types") }

func (c Config) profileDirOr(dir, defaultName string) string {
	if dir != "" {
		return dir
	}
	return filepath.Join(c.ActiveVaultRoot(), defaultName)
}
