package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/engine"
)

func writeVaultConfig(t *testing.T, vaultRoot string, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdvault.toml")
	content := `vault_root = "` + vaultRoot + `"
` + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenCreatesIndexDirectoryAndStore(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, "")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	_, err = os.Stat(filepath.Join(vault, ".mdvault", "index.sqlite"))
	require.NoError(t, err)
	assert.NotNil(t, e.Store)
	assert.NotNil(t, e.Focus)
	assert.NotNil(t, e.Registry)
}

func TestOpenEnablesActivityLogByDefault(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, "")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	assert.NotNil(t, e.Log)
	assert.True(t, e.Config.Activity.Enabled)
}

func TestOpenDisablesActivityLogWhenConfigSaysSo(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, "[activity]\nenabled = false\n")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	assert.Nil(t, e.Log)
	assert.False(t, e.Config.Activity.Enabled)
}

func TestDepsCarriesNilActivityLoggerWhenDisabled(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, "[activity]\nenabled = false\n")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	deps := e.Deps()
	assert.Nil(t, deps.Log)
}

func TestDepsCarriesActivityLoggerWhenEnabled(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, "")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	deps := e.Deps()
	assert.NotNil(t, deps.Log)
}

func TestWalkerExcludesConfiguredFolders(t *testing.T) {
	vault := t.TempDir()
	cfgPath := writeVaultConfig(t, vault, `excluded_folders = ["Archive"]`+"\n")

	e, err := engine.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	defer e.Close()

	w := e.Walker()
	assert.Equal(t, vault, w.Root)
	assert.Equal(t, []string{"Archive"}, w.Excluded)
}

func TestOpenRejectsMissingConfig(t *testing.T) {
	_, err := engine.Open(context.Background(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
