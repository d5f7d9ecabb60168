package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestVaultConfig mirrors the teacher's rename_test.go pattern of
// pointing the command's config resolution at a throwaway temp vault,
// generalized from overriding a package-level config-path func
// (obsidian.ObsidianConfigFile) to overriding the configPath flag variable
// directly, since this engine resolves its vault from a TOML file rather
// than a JSON preferences file keyed by vault name.
func writeTestVaultConfig(t *testing.T, vaultDir string) string {
	t.Helper()
	cfgFile := filepath.Join(t.TempDir(), "mdvault.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`vault_root = "`+vaultDir+`"`+"\n"), 0o644))
	return cfgFile
}

func TestReindexCommandCreatesIndexFile(t *testing.T) {
	originalConfig := configPath
	defer func() { configPath = originalConfig }()

	vaultDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("---\ntype: zettel\ntitle: A\n---\nBody.\n"), 0o644))
	configPath = writeTestVaultConfig(t, vaultDir)

	rootCmd.SetArgs([]string{"reindex"})
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(vaultDir, ".mdvault", "index.sqlite"))
	assert.NoError(t, statErr)
}

func TestListCommandRunsAfterReindex(t *testing.T) {
	originalConfig := configPath
	defer func() { configPath = originalConfig }()

	vaultDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("---\ntype: zettel\ntitle: A\n---\nBody.\n"), 0o644))
	configPath = writeTestVaultConfig(t, vaultDir)

	rootCmd.SetArgs([]string{"reindex"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"list"})
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	require.NoError(t, err)
}

func TestFocusSetShowClearRoundTrip(t *testing.T) {
	originalConfig := configPath
	defer func() { configPath = originalConfig }()

	vaultDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, "Projects", "ABC"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "Projects", "ABC", "ABC.md"),
		[]byte("---\ntype: project\nproject-id: ABC\n---\n# ABC\n"), 0o644))
	configPath = writeTestVaultConfig(t, vaultDir)

	rootCmd.SetArgs([]string{"focus", "set", "ABC"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"focus", "show"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"focus", "clear"})
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	require.NoError(t, err)
}
