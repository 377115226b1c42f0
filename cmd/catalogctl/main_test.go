package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/store"
)

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	ctx := &commandContext{}
	cmd := newRootCommand(ctx)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--data-path", dataDir,
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--log-level", "error",
	}, args...))

	err := cmd.ExecuteContext(context.Background())
	ctx.close()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"validation", domainerrors.Validation("bad"), 2},
		{"not found", domainerrors.NotFound("gone"), 3},
		{"wrapped unavailable", fmt.Errorf("top: %w", domainerrors.Unavailable("down")), 4},
		{"cancelled", context.Canceled, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseHistory(t *testing.T) {
	history, err := parseHistory([]string{"5114", "9253:9.5"})
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 5114, history[0].AnimeID)
	assert.Nil(t, history[0].Rating)
	assert.Equal(t, 9253, history[1].AnimeID)
	require.NotNil(t, history[1].Rating)
	assert.InDelta(t, 9.5, *history[1].Rating, 1e-9)

	_, err = parseHistory([]string{"abc"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = parseHistory([]string{"1:great"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestPreferenceFlags_ZeroIsNil(t *testing.T) {
	assert.Nil(t, (&preferenceFlags{}).preferences())

	prefs := (&preferenceFlags{genres: []string{"Action"}, minRating: 7}).preferences()
	require.NotNil(t, prefs)
	assert.Equal(t, []string{"Action"}, prefs.PreferredGenres)
	assert.InDelta(t, 7.0, prefs.MinRating, 1e-9)
}

func TestEntityTable(t *testing.T) {
	score := 9.1
	eps := 64
	out := entityTable([]domain.CanonicalEntity{
		{ID: 5114, Title: "Fullmetal Alchemist: Brotherhood", MediaType: "TV", Episodes: &eps, Score: &score,
			Sources: []domain.Source{domain.SourcePrimaryMeta, domain.SourceSecondaryMeta}},
		{Title: "Unlisted"},
	})

	assert.Contains(t, out, "Fullmetal Alchemist: Brotherhood")
	assert.Contains(t, out, "9.10")
	assert.Contains(t, out, "primary,secondary")
	assert.Contains(t, out, "?")
}

func TestSearch_BlankQueryIsValidationError(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "search", "   ")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestShow_RejectsNonNumericID(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "show", "naruto")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestCorpusStatus_NoSnapshot(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "corpus", "status")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestCorpusSearch_PersistedSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	score := 8.7
	seedStore(t, dataDir, func(ctx context.Context, db *store.Store) {
		require.NoError(t, db.SaveSnapshot(ctx, &domain.CorpusSnapshot{
			ID:        "snap_test",
			FetchedAt: time.Now(),
			Pages:     1,
			Records: []domain.RawRecord{
				{Source: domain.SourceScrape, NativeID: "frieren", Title: "Frieren: Beyond Journey's End",
					MediaType: "TV", Score: &score, Genres: []string{"Adventure", "Fantasy"}},
				{Source: domain.SourceScrape, NativeID: "bocchi", Title: "Bocchi the Rock!",
					MediaType: "TV", Genres: []string{"Comedy", "Music"}},
			},
		}))
	})

	out, err := runCLI(t, dataDir, "corpus", "search", "frieren")
	require.NoError(t, err)
	assert.Contains(t, out, "1 matches")
	assert.Contains(t, out, "Frieren")
	assert.NotContains(t, out, "Bocchi")

	out, err = runCLI(t, dataDir, "corpus", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "snap_test")
	assert.Contains(t, out, "Records:  2")
}

func TestCacheListAndPurge(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runCLI(t, dataDir, "cache", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached records: none")

	seedStore(t, dataDir, func(ctx context.Context, db *store.Store) {
		rec := &domain.RawRecord{Source: domain.SourcePrimaryMeta, PrimaryID: 21, Title: "One Piece"}
		require.NoError(t, db.StoreRecord(ctx, domain.SourcePrimaryMeta, 21, rec, time.Hour))
	})

	out, err = runCLI(t, dataDir, "cache", "ls", "--source", "mal")
	require.NoError(t, err)
	assert.Contains(t, out, "One Piece")

	out, err = runCLI(t, dataDir, "cache", "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 1 records")

	_, err = runCLI(t, dataDir, "cache", "ls", "--source", "crunchyroll")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

// seedStore opens the cache database the CLI uses, runs fn and closes it again
// so the command under test can take the directory lock.
func seedStore(t *testing.T, dataDir string, fn func(context.Context, *store.Store)) {
	t.Helper()
	db, err := store.Open(filepath.Join(dataDir, "cache"), nil)
	require.NoError(t, err)
	fn(context.Background(), db)
	require.NoError(t, db.Close())
}
