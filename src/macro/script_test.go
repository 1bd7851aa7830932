package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptCycles(t *testing.T) {
	s := ParseScript("First slide[enter][end]\n\n  Second[pause:1]  [end][end]Third")
	require.Equal(t, 3, s.Len())

	var got []string
	for i := 0; i < 4; i++ {
		seg, ok := s.Next()
		require.True(t, ok)
		got = append(got, seg)
	}
	assert.Equal(t, []string{"First slide[enter]", "Second[pause:1]", "Third", "First slide[enter]"}, got)
}

func TestScriptEmpty(t *testing.T) {
	s := ParseScript(" [end] \n")
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.txt")
	require.NoError(t, os.WriteFile(path, []byte("one[end]two"), 0o644))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	seg, _ := s.Next()
	assert.Equal(t, "one", seg)

	require.NoError(t, os.WriteFile(path, []byte("three"), 0o644))
	require.NoError(t, s.Load(path))
	seg, _ = s.Next()
	assert.Equal(t, "three", seg, "reload rewinds")

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
