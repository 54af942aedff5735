package promote

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ghd/internal/domain/release"
)

func noProcesses() ([]string, error) {
	return nil, nil
}

func writeFile(t *testing.T, path, content string, mode fs.FileMode) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

// TestIsExecutable covers every execute bit and non-regular modes.
func TestIsExecutable(t *testing.T) {
	t.Parallel()

	tests := map[fs.FileMode]bool{
		0o644:                    false,
		0o755:                    true,
		0o100:                    true,
		0o010:                    true,
		0o001:                    true,
		0o600:                    false,
		fs.ModeDir | 0o755:       false,
		fs.ModeSymlink | 0o777:   false,
		fs.ModeNamedPipe | 0o755: false,
	}

	for mode, want := range tests {
		require.Equal(t, want, IsExecutable(mode), "mode %v", mode)
	}
}

// TestPromoteExecutablesFiltersByPermission installs only b from {a 0644, b 0755, c/}.
func TestPromoteExecutablesFiltersByPermission(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "a"), "a", 0o644)
	writeFile(t, filepath.Join(src, "b"), "b", 0o755)
	require.NoError(t, os.Mkdir(filepath.Join(src, "c"), 0o755))

	installed, err := NewPromoter(WithProcessLister(noProcesses)).PromoteExecutables(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, installed)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "b", entries[0].Name())

	info, err := os.Stat(filepath.Join(dst, "b"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	// The source stays in place.
	require.FileExists(t, filepath.Join(src, "b"))
}

// TestPromoteExecutablesOverwrites replaces an existing file and applies the new mode.
func TestPromoteExecutablesOverwrites(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "tool"), "new version", 0o750)
	writeFile(t, filepath.Join(dst, "tool"), "old version that is longer", 0o755)

	installed, err := NewPromoter(WithProcessLister(noProcesses)).PromoteExecutables(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"tool"}, installed)

	data, err := os.ReadFile(filepath.Join(dst, "tool"))
	require.NoError(t, err)
	require.Equal(t, "new version", string(data))

	info, err := os.Stat(filepath.Join(dst, "tool"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o750), info.Mode().Perm())

	require.NoFileExists(t, filepath.Join(dst, "tool.old"))
}

// TestPromoteExecutablesSkipsSymlinksAndNested ensures only top-level regular files qualify.
func TestPromoteExecutablesSkipsSymlinksAndNested(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(src, "bin"), 0o755))
	writeFile(t, filepath.Join(src, "bin", "tool"), "nested", 0o755)
	writeFile(t, filepath.Join(src, "real"), "real", 0o755)
	require.NoError(t, os.Symlink("real", filepath.Join(src, "alias")))

	installed, err := NewPromoter(WithProcessLister(noProcesses)).PromoteExecutables(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"real"}, installed)
	require.NoFileExists(t, filepath.Join(dst, "alias"))
	require.NoFileExists(t, filepath.Join(dst, "tool"))
}

// TestPromoteExecutablesInstallDirMustExist never creates the install directory.
func TestPromoteExecutablesInstallDirMustExist(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "tool"), "x", 0o755)

	missing := filepath.Join(t.TempDir(), "missing")

	_, err := NewPromoter(WithProcessLister(noProcesses)).PromoteExecutables(context.Background(), src, missing)

	var ioErr *release.IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, release.KindIO, release.KindOf(err))
	require.NoDirExists(t, missing)
}

// TestPromoteExecutablesInstallDirIsFile reports ErrNotDirectory.
func TestPromoteExecutablesInstallDirIsFile(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "", 0o644)

	_, err := NewPromoter(WithProcessLister(noProcesses)).PromoteExecutables(context.Background(), src, file)
	require.ErrorIs(t, err, ErrNotDirectory)
}

// TestPromoteExecutablesRunningProcess still installs when a process with the same name runs.
func TestPromoteExecutablesRunningProcess(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "tool"), "x", 0o755)

	lister := func() ([]string, error) { return []string{"tool", "bash"}, nil }

	installed, err := NewPromoter(WithProcessLister(lister)).PromoteExecutables(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"tool"}, installed)
}

// TestPromoteExecutablesProcessListFailure ignores process lookup failures.
func TestPromoteExecutablesProcessListFailure(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "tool"), "x", 0o755)

	lister := func() ([]string, error) { return nil, errors.New("no /proc") }

	installed, err := NewPromoter(WithProcessLister(lister)).PromoteExecutables(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"tool"}, installed)
}

// TestRunningExecutables reads the real process table.
func TestRunningExecutables(t *testing.T) {
	t.Parallel()

	names, err := runningExecutables()
	require.NoError(t, err)
	require.NotNil(t, names)
}
