package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// TestOpenRequiresPath rejects an empty path.
func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyPath)
}

// TestRecordAndLatest stores entries and returns the newest per package.
func TestRecordAndLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	first := &Entry{
		RunID:     "run-1",
		Package:   "acme/tool",
		Tag:       "v1.0.0",
		Asset:     "tool-linux-x64.tar.gz",
		Installed: []string{"tool"},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
	require.NoError(t, repo.Record(ctx, first))
	require.NotZero(t, first.ID)

	require.NoError(t, repo.Record(ctx, &Entry{
		RunID:        "run-1",
		Package:      "acme/other",
		ErrorKind:    "no_matching_pattern",
		ErrorMessage: "pattern not found 'linux-x64.zip'",
		StartedAt:    started,
	}))

	second := &Entry{
		RunID:     "run-2",
		Package:   "acme/tool",
		Tag:       "v1.1.0",
		Asset:     "tool-linux-x64.tar.gz",
		Truncated: true,
		StartedAt: started.Add(time.Hour),
		Duration:  time.Second,
	}
	require.NoError(t, repo.Record(ctx, second))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	require.Equal(t, "acme/other", latest[0].Package)
	require.False(t, latest[0].Succeeded())
	require.Equal(t, "no_matching_pattern", latest[0].ErrorKind)
	require.Empty(t, latest[0].Installed)

	require.Equal(t, "acme/tool", latest[1].Package)
	require.Equal(t, "v1.1.0", latest[1].Tag)
	require.Equal(t, "run-2", latest[1].RunID)
	require.True(t, latest[1].Truncated)
	require.True(t, latest[1].Succeeded())
	require.True(t, latest[1].StartedAt.Equal(started.Add(time.Hour)))
	require.Equal(t, time.Second, latest[1].Duration)
}

// TestLatestEmpty returns no entries for a fresh database.
func TestLatestEmpty(t *testing.T) {
	t.Parallel()

	repo, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)

	defer repo.Close()

	latest, err := repo.Latest(context.Background())
	require.NoError(t, err)
	require.Empty(t, latest)
}

// TestReopenKeepsHistory ensures entries survive closing the database.
func TestReopenKeepsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	repo, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, &Entry{RunID: "r", Package: "acme/tool", Installed: []string{"a", "b"}, StartedAt: time.Now()}))
	require.NoError(t, repo.Close())

	repo, err = Open(ctx, path)
	require.NoError(t, err)

	defer repo.Close()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, []string{"a", "b"}, latest[0].Installed)
}
