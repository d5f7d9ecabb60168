package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/config"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaultsWhenSectionsAreAbsent(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `vault_root = "`+root+`"`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.VaultRoot)
	assert.True(t, cfg.Activity.Enabled)
	assert.Equal(t, 90, cfg.Activity.RetentionDays)
	assert.False(t, cfg.Security.AllowShell)
	assert.False(t, cfg.Security.AllowHTTP)
}

func TestLoadRejectsMissingVaultRoot(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `excluded_folders = ["Archive"]`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `
vault_root = "`+root+`"
profile = "work"
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadResolvesActiveVaultRootFromProfile(t *testing.T) {
	root := t.TempDir()
	workRoot := filepath.Join(root, "work-vault")
	require.NoError(t, os.MkdirAll(workRoot, 0o755))

	path := writeConfigFile(t, root, `
vault_root = "`+root+`"
profile = "work"

[profiles.work]
vault_root = "`+workRoot+`"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, workRoot, cfg.ActiveVaultRoot())
}

func TestLoadInterpolatesVaultRootPlaceholderInProfileDirs(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `
vault_root = "`+root+`"
profile = "default"

[profiles.default]
templates_dir = "{{vault_root}}/Templates"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Templates"), cfg.TemplatesDir())
}

func TestLoadExpandsEnvironmentVariablesInDirectoryFields(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MDVAULT_TEST_MACROS", filepath.Join(root, "macros-from-env"))

	path := writeConfigFile(t, root, `
vault_root = "`+root+`"
profile = "default"

[profiles.default]
macros_dir = "$MDVAULT_TEST_MACROS"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "macros-from-env"), cfg.MacrosDir())
}

func TestLoadFallsBackToDefaultDirectoryNamesUnderVaultRoot(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `vault_root = "`+root+`"`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Templates"), cfg.TemplatesDir())
	assert.Equal(t, filepath.Join(root, "Captures"), cfg.CapturesDir())
	assert.Equal(t, filepath.Join(root, ".mdvault", "macros"), cfg.MacrosDir())
	assert.Equal(t, filepath.Join(root, ".mdvault", "types"), cfg.TypesDir())
}

func TestLoadParsesSecurityAndActivitySections(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `
vault_root = "`+root+`"
excluded_folders = ["Archive", ".mdvault"]

[security]
allow_shell = true
allow_http = true

[activity]
enabled = false
retention_days = 30
log_operations = ["create", "rename"]

[logging]
level = "debug"
file = "{{vault_root}}/.mdvault/mdvault.log"
file_level = "trace"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Archive", ".mdvault"}, cfg.ExcludedFolders)
	assert.True(t, cfg.Security.AllowShell)
	assert.True(t, cfg.Security.AllowHTTP)
	assert.False(t, cfg.Activity.Enabled)
	assert.Equal(t, 30, cfg.Activity.RetentionDays)
	assert.Equal(t, []string{"create", "rename"}, cfg.Activity.LogOperations)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(root, ".mdvault", "mdvault.log"), cfg.Logging.File)
	assert.Equal(t, "trace", cfg.Logging.FileLevel)
}

func TestLoadReturnsConfigErrorOnUnparseableFile(t *testing.T) {
	root := t.TempDir()
	path := writeConfigFile(t, root, `this is not valid toml :::`)

	_, err := config.Load(path)
	require.Error(t, err)
}
