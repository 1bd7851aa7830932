package runtimeinit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/config"
)

func TestBootstrapWithoutSinks(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "talk.txt")
	require.NoError(t, os.WriteFile(script, []byte("intro[end]demo[end]"), 0o644))
	t.Setenv("SCALE_FACTOR", "1.5")

	var gotLevel string
	rt, err := Bootstrap(Options{
		LoadOptions:  config.LoadOptions{LogLevel: "debug", ScriptFile: script},
		SetupLogging: func(level string, _ bool) { gotLevel = level },
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", gotLevel)
	assert.Equal(t, 1.5, rt.Monitors.ScaleOverride)
	assert.NotNil(t, rt.Engine)
	assert.Nil(t, rt.Clipboard)
	assert.Nil(t, rt.Interpreter)
	assert.Equal(t, 2, rt.Script.Len())
	assert.NotNil(t, rt.Router(nil))
}

func TestBootstrapMissingScriptIsNotFatal(t *testing.T) {
	rt, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{ScriptFile: filepath.Join(t.TempDir(), "missing.txt")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Script.Len())
}
