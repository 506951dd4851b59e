package lookup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/matcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func searchDirs(t *testing.T) (string, string) {
	t.Helper()
	user := t.TempDir()
	prefix := t.TempDir()
	writeMapFile(t, user, "conda-forge.linux-64.map", "gcc:c-compiler\ngcc:fortran-compiler\nzzdir:zziplib\nzzxordir:zziplib\n")
	writeMapFile(t, user, "conda-forge.win-64.map", winMap)
	writeMapFile(t, prefix, "defaults.linux-64.map", "gcc:c-compiler\ngcc:gcc_linux-64\n")
	// same content under a second directory collapses into one result set
	writeMapFile(t, prefix, "conda-forge.linux-64.map", "gcc:c-compiler\n")
	return user, prefix
}

func TestEngineExactFindAcrossFiles(t *testing.T) {
	user, prefix := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil))

	got, err := engine.ExactFind(context.Background(), "gcc", []string{user, prefix})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "gcc", Package: "c-compiler"},
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "gcc", Package: "fortran-compiler"},
		{Channel: "defaults", Subdir: "linux-64", Executable: "gcc", Package: "c-compiler"},
		{Channel: "defaults", Subdir: "linux-64", Executable: "gcc", Package: "gcc_linux-64"},
	}, got)
}

func TestEngineResultsIndependentOfDirectoryOrder(t *testing.T) {
	user, prefix := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil), WithLoadWorkers(1))
	ctx := context.Background()

	forward, err := engine.SubstringFind(ctx, "c", []string{user, prefix}, nil)
	require.NoError(t, err)
	backward, err := engine.SubstringFind(ctx, "c", []string{prefix, user}, nil)
	require.NoError(t, err)
	assert.Equal(t, forward, backward)
	assert.NotEmpty(t, forward)
}

func TestEngineWindowsFallbackTagsSubdir(t *testing.T) {
	user, _ := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil))

	got, err := engine.ExactFind(context.Background(), "python", []string{user})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Channel: "conda-forge", Subdir: "win-64", Executable: "python.exe", Package: "python"},
	}, got)
}

func TestEngineSubstringFindWithMatcher(t *testing.T) {
	user, prefix := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil))

	m, err := matcher.Regexp(`^zz.*dir$`)
	require.NoError(t, err)
	got, err := engine.SubstringFind(context.Background(), "", []string{user, prefix}, m)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "zzdir", Package: "zziplib"},
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "zzxordir", Package: "zziplib"},
	}, got)
}

func TestEngineNoMapFiles(t *testing.T) {
	engine := NewEngine(cache.NewMapFileCache(nil))
	got, err := engine.ExactFind(context.Background(), "gcc", []string{filepath.Join(t.TempDir(), "absent")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngineUnreadableMapFilePropagates(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "broken.linux-64.map", "x:y\n")
	failing := func(path string) (*mapfile.MapFile, error) {
		return nil, fmt.Errorf("%w: permission denied", apperrors.ErrFileRead)
	}
	engine := NewEngine(cache.NewMapFileCache(failing))

	_, err := engine.ExactFind(context.Background(), "x", []string{dir})
	require.ErrorIs(t, err, apperrors.ErrFileRead)
}

func TestEngineSkipsMisnamedMapFile(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "notes.map", "hello\n")
	writeMapFile(t, dir, "conda-forge.linux-64.map", "gcc:c-compiler\n")
	engine := NewEngine(cache.NewMapFileCache(nil))
	ctx := context.Background()

	got, err := engine.ExactFind(ctx, "gcc", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Channel: "conda-forge", Subdir: "linux-64", Executable: "gcc", Package: "c-compiler"}}, got)

	got, err = engine.SubstringFind(ctx, "hello", []string{dir}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = engine.ExactFindInFile("hello", filepath.Join(dir, "notes.map"))
	require.ErrorIs(t, err, apperrors.ErrInvalidMapFileName)
}

func TestEngineSharesCache(t *testing.T) {
	user, _ := searchDirs(t)
	mapFiles := cache.NewMapFileCache(nil)
	engine := NewEngine(mapFiles)
	ctx := context.Background()

	_, err := engine.ExactFind(ctx, "gcc", []string{user})
	require.NoError(t, err)
	_, err = engine.SubstringFind(ctx, "gcc", []string{user}, nil)
	require.NoError(t, err)

	_, _, loads := mapFiles.Stats()
	assert.Equal(t, int64(2), loads)
	assert.Same(t, mapFiles, engine.Cache())
}

func TestExactFindInFile(t *testing.T) {
	user, _ := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil))
	got, err := engine.ExactFindInFile("curl", filepath.Join(user, "conda-forge.win-64.map"))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestUnion(t *testing.T) {
	a := Result{Channel: "b", Subdir: "linux-64", Executable: "x", Package: "p"}
	b := Result{Channel: "a", Subdir: "linux-64", Executable: "x", Package: "p"}
	assert.Equal(t, []Result{b, a}, Union([]Result{a, b}, []Result{a}, nil))
	assert.Empty(t, Union())
}

func TestEngineFindByMode(t *testing.T) {
	user, _ := searchDirs(t)
	engine := NewEngine(cache.NewMapFileCache(nil))
	ctx := context.Background()

	tests := []struct {
		mode  matcher.Mode
		query string
		want  []string
	}{
		{matcher.ModeExact, "zzdir", []string{"zzdir"}},
		{matcher.ModeSubstring, "xor", []string{"zzxordir"}},
		{matcher.ModeRegexp, `^zz`, []string{"zzdir", "zzxordir"}},
		{matcher.ModeFuzzy, "zzdr", []string{"zzdir"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			got, err := engine.Find(ctx, tc.mode, tc.query, []string{user})
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, r := range got {
				names = append(names, r.Executable)
			}
			assert.Equal(t, tc.want, names)
		})
	}

	_, err := engine.Find(ctx, "glob", "x", []string{user})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = engine.Find(ctx, matcher.ModeRegexp, "(", []string{user})
	require.ErrorIs(t, err, apperrors.ErrPattern)
}
