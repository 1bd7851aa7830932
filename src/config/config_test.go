package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY_SCREENSHOT", "Ctrl+Shift+S")
	t.Setenv("SETTLE_DELAY_MS", "350")
	t.Setenv("BREAK_MINUTES", "15")
	t.Setenv("SCALE_FACTOR", "2")
	t.Setenv("OVERLAY_BACKEND", "X11")
	t.Setenv("TYPING_SPEED", "fast")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.EnableFileLogging)
	assert.Equal(t, "Ctrl+Shift+S", cfg.Hotkeys.Screenshot)
	assert.Equal(t, "Alt+Shift+D", cfg.Hotkeys.Draw)
	assert.Equal(t, 350*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 15, cfg.BreakMinutes)
	assert.Equal(t, 2.0, cfg.ScaleFactor)
	assert.Equal(t, OverlayX11, cfg.OverlayBackend)
	assert.Equal(t, SpeedFast, cfg.TypingSpeed)
	assert.Equal(t, time.Duration(0), cfg.TypeDelay())
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SETTLE_DELAY_MS", "BREAK_MINUTES", "SCALE_FACTOR", "OVERLAY_BACKEND", "TYPING_SPEED", "DEFAULT_COLOR"} {
		t.Setenv(k, "")
	}
	t.Setenv("SETTLE_DELAY_MS", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSettleDelay, cfg.SettleDelay)
	assert.Equal(t, DefaultBreakMinutes, cfg.BreakMinutes)
	assert.Zero(t, cfg.ScaleFactor)
	assert.Equal(t, OverlayAuto, cfg.OverlayBackend)
	assert.Equal(t, SpeedNormal, cfg.TypingSpeed)
	assert.Equal(t, 50*time.Millisecond, cfg.TypeDelay())
	assert.Equal(t, DefaultColor, cfg.DefaultColor)
}

func TestResolveOverlayBackend(t *testing.T) {
	cases := map[string]string{
		"":        OverlayAuto,
		"auto":    OverlayAuto,
		" X11 ":   OverlayX11,
		"win32":   OverlayWin32,
		"Windows": OverlayWin32,
		"fyne":    OverlayFyne,
		"wayland": OverlayAuto,
	}
	for in, want := range cases {
		assert.Equal(t, want, resolveOverlayBackend(in), "input %q", in)
	}
}

func TestLoadWithOptionsReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "presentink.env")
	require.NoError(t, os.WriteFile(envPath, []byte("PRESENTINK_TEST_SCRIPT=ignored\nDEFAULT_COLOR=#00ff00\n"), 0o644))
	t.Setenv("DEFAULT_COLOR", "")
	os.Unsetenv("DEFAULT_COLOR")
	t.Cleanup(func() { os.Unsetenv("PRESENTINK_TEST_SCRIPT") })

	cfg, err := LoadWithOptions(LoadOptions{
		EnvPathOverride: envPath,
		LogLevel:        "DEBUG",
		ScriptFile:      "/tmp/talk.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, "#00ff00", cfg.DefaultColor)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/talk.txt", cfg.ScriptFile)
}
