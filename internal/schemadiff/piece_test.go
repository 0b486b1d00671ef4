package schemadiff_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaflow/internal/mapstyle"
	"schemaflow/internal/schemadiff"
)

func newDiffMapFile(fs afero.Fs) *schemadiff.DiffMapFile {
	return &schemadiff.DiffMapFile{FS: fs, ProjectName: "maihamadb", PieceDir: "/schema/diffpiece"}
}

func TestDiffMapFile_WritePiece(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := newDiffMapFile(fs)

	path, err := f.WritePiece(diffAt(time.Date(2025, 12, 31, 23, 59, 58, 0, time.Local)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/schema/diffpiece", "2025", "diffpiece-maihamadb-20251231-235958.diffmap"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	m, err := mapstyle.Unmarshal(string(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025/12/31 23:59:58"}, m.Keys())
	assert.Equal(t, filepath.Join("/schema", "project-history-maihamadb.diffmap"), f.MonolithicFile())
}

func TestDiffMapFile_CollectIndependentOfWriteOrder(t *testing.T) {
	collect := func(order []int) []string {
		fs := afero.NewMemMapFs()
		f := newDiffMapFile(fs)
		mono := &schemadiff.HistoryFile{FS: fs, Path: f.MonolithicFile()}
		require.NoError(t, mono.Append(diffAt(day(2))))
		require.NoError(t, mono.Append(diffAt(day(4))))
		for _, d := range order {
			_, err := f.WritePiece(diffAt(day(d)))
			require.NoError(t, err)
		}
		// a piece of another project is ignored
		other := &schemadiff.DiffMapFile{FS: fs, ProjectName: "other", PieceDir: f.PieceDir}
		_, err := other.WritePiece(diffAt(day(30)))
		require.NoError(t, err)

		m, err := f.CollectDiffMap()
		require.NoError(t, err)
		return m.Keys()
	}

	want := []string{
		"2026/10/15 09:00:00", "2026/10/07 09:00:00", "2026/10/05 09:00:00",
		"2026/10/04 09:00:00", "2026/10/02 09:00:00",
	}
	assert.Equal(t, want, collect([]int{5, 15, 7}))
	assert.Equal(t, want, collect([]int{7, 5, 15}))
}

func TestDiffMapFile_PieceOverridesMonolithic(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := newDiffMapFile(fs)

	stale := diffAt(day(4))
	stale.TableDiffs = stale.TableDiffs[:1]
	mono := &schemadiff.HistoryFile{FS: fs, Path: f.MonolithicFile()}
	require.NoError(t, mono.Append(stale))
	_, err := f.WritePiece(diffAt(day(4)))
	require.NoError(t, err)

	h, err := f.LoadHistory()
	require.NoError(t, err)
	require.Equal(t, 1, h.Len())
	assert.Len(t, h.Latest().TableDiffs, 3)
	assert.True(t, h.Latest().Latest)
}

func TestDiffMapFile_Empty(t *testing.T) {
	f := newDiffMapFile(afero.NewMemMapFs())
	h, err := f.LoadHistory()
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
}

func TestDiffMapFile_MalformedPiece(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := newDiffMapFile(fs)
	path := filepath.Join(f.PieceDir, "2026", "diffpiece-maihamadb-20261001-090000.diffmap")
	require.NoError(t, afero.WriteFile(fs, path, []byte("list:{ a }"), 0o644))

	_, err := f.LoadHistory()
	require.ErrorIs(t, err, schemadiff.ErrHistoryRead)
	assert.Contains(t, err.Error(), path)
}

func TestDiffMapFile_UndecodableEntryNamesItsFile(t *testing.T) {
	broken := "map:{ ; 2026/09/01 09:00:00 = map:{ ; tableCount = map:{ ; next = 1 ; previous = 0 } } }"

	t.Run("piece", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		f := newDiffMapFile(fs)
		_, err := f.WritePiece(diffAt(day(1)))
		require.NoError(t, err)
		path := filepath.Join(f.PieceDir, "2026", "diffpiece-maihamadb-20260901-090000.diffmap")
		require.NoError(t, afero.WriteFile(fs, path, []byte(broken), 0o644))

		_, err = f.LoadHistory()
		var readErr *schemadiff.HistoryReadError
		require.ErrorAs(t, err, &readErr)
		assert.Equal(t, path, readErr.Path)
	})

	t.Run("monolithic", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		f := newDiffMapFile(fs)
		_, err := f.WritePiece(diffAt(day(1)))
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, f.MonolithicFile(), []byte(broken), 0o644))

		_, err = f.LoadHistory()
		var readErr *schemadiff.HistoryReadError
		require.ErrorAs(t, err, &readErr)
		assert.Equal(t, f.MonolithicFile(), readErr.Path)
		assert.ErrorIs(t, err, schemadiff.ErrHistoryRead)
	})
}
