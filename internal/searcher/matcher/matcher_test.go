package matcher

import (
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstring(t *testing.T) {
	m := Substring("dir")
	assert.True(t, m.Match("zzdir"))
	assert.True(t, m.Match("zzxordir"))
	assert.True(t, m.Match("dir"))
	assert.False(t, m.Match("DIR"))
	assert.False(t, m.Match("zzxorcat"))
	assert.True(t, Substring("").Match("anything"))
}

func TestPrefix(t *testing.T) {
	assert.True(t, Prefix("zz").Match("zzdir"))
	assert.False(t, Prefix("dir").Match("zzdir"))
}

func TestRegexp(t *testing.T) {
	m, err := Regexp("^zz.*cat$")
	require.NoError(t, err)
	assert.True(t, m.Match("zzxorcat"))
	assert.False(t, m.Match("zzdir"))

	_, err = Regexp("(unclosed")
	require.ErrorIs(t, err, apperrors.ErrPattern)
}

func TestFuzzy(t *testing.T) {
	m := Fuzzy("gcc", 1)
	assert.True(t, m.Match("gcc"))
	assert.True(t, m.Match("gc"))
	assert.True(t, m.Match("gxc"))
	assert.False(t, m.Match("g++"))
	assert.False(t, m.Match("clang"))

	wide := Fuzzy("a", 2)
	assert.True(t, wide.Match("😀"), "distance counts runes")
	assert.True(t, Fuzzy("née", 1).Match("nee"))
}

func TestForMode(t *testing.T) {
	m, err := ForMode(ModeSubstring, "dir")
	require.NoError(t, err)
	assert.True(t, m.Match("zzdir"))

	m, err = ForMode(ModeFuzzy, "gcc")
	require.NoError(t, err)
	assert.True(t, m.Match("gdb"))

	_, err = ForMode(ModeRegexp, "[")
	assert.ErrorIs(t, err, apperrors.ErrPattern)

	_, err = ForMode("soundex", "gcc")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
