package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureStateDirsCreatesLayout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, EnsureStateDirs(root))

	p := PathsFor(root)
	for _, dir := range []string{p.Store, p.Logs, p.Identity, p.Tmp} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, fi.IsDir(), dir)
	}
}

func TestEnsureStateDirsRejectsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "store"), []byte("x"), 0o600))
	require.Error(t, EnsureStateDirs(root))
}

func TestLoadOrCreateAgentKeyIsStable(t *testing.T) {
	dir := t.TempDir()
	first, created, err := LoadOrCreateAgentKey(dir)
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, first.IsZero())

	second, created, err := LoadOrCreateAgentKey(dir)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, second)
}

func TestDiskUsageAt(t *testing.T) {
	du, err := DiskUsageAt(t.TempDir())
	require.NoError(t, err)
	require.NotZero(t, du.Total)
	require.GreaterOrEqual(t, du.UsedPct(), 0.0)
}
