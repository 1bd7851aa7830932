package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "PRESENTINK_ENV"

	DefaultSettleDelay  = 200 * time.Millisecond
	DefaultBreakMinutes = 10
	DefaultColor        = "#ff0000"

	OverlayAuto  = "auto"
	OverlayX11   = "x11"
	OverlayWin32 = "win32"
	OverlayFyne  = "fyne"

	SpeedSlow   = "slow"
	SpeedNormal = "normal"
	SpeedFast   = "fast"
)

type LoadOptions struct {
	EnvPathOverride string
	LogLevel        string
	ScriptFile      string
}

type Hotkeys struct {
	Draw       string
	Screenshot string
	Text       string
	Break      string
}

type Config struct {
	EnableFileLogging bool
	LogLevel          string
	Hotkeys           Hotkeys
	SettleDelay       time.Duration
	// ScaleFactor overrides the platform-reported scale of every monitor
	// when > 0.
	ScaleFactor    float64
	OverlayBackend string
	ScreenshotDir  string
	DefaultColor   string
	BreakMinutes   int
	TypingSpeed    string
	ScriptFile     string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Configuration sources in priority order:
	// 1) explicit override path
	// 2) .env in the application (executable) directory
	// 3) file named by PRESENTINK_ENV
	if envPath := resolveEnvPath(opts); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	settle := DefaultSettleDelay
	if v := os.Getenv("SETTLE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			settle = time.Duration(n) * time.Millisecond
		}
	}

	breakMinutes := DefaultBreakMinutes
	if v := os.Getenv("BREAK_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			breakMinutes = n
		}
	}

	var scale float64
	if v := os.Getenv("SCALE_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			scale = f
		}
	}

	logLevel := getEnvWithDefault("LOG_LEVEL", "info")
	if o := strings.TrimSpace(opts.LogLevel); o != "" {
		logLevel = o
	}

	scriptFile := os.Getenv("SCRIPT_FILE")
	if o := strings.TrimSpace(opts.ScriptFile); o != "" {
		scriptFile = o
	}

	cfg := &Config{
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogLevel:          strings.ToLower(logLevel),
		Hotkeys: Hotkeys{
			Draw:       getEnvWithDefault("HOTKEY_DRAW", "Alt+Shift+D"),
			Screenshot: getEnvWithDefault("HOTKEY_SCREENSHOT", "Alt+Shift+S"),
			Text:       getEnvWithDefault("HOTKEY_TEXT", "Alt+Shift+T"),
			Break:      getEnvWithDefault("HOTKEY_BREAK", "Alt+Shift+B"),
		},
		SettleDelay:    settle,
		ScaleFactor:    scale,
		OverlayBackend: resolveOverlayBackend(os.Getenv("OVERLAY_BACKEND")),
		ScreenshotDir:  resolveScreenshotDir(os.Getenv("SCREENSHOT_DIR")),
		DefaultColor:   getEnvWithDefault("DEFAULT_COLOR", DefaultColor),
		BreakMinutes:   breakMinutes,
		TypingSpeed:    resolveTypingSpeed(os.Getenv("TYPING_SPEED")),
		ScriptFile:     scriptFile,
	}

	return cfg, nil
}

// TypeDelay maps the typing speed setting to the pause between characters.
func (c *Config) TypeDelay() time.Duration {
	switch c.TypingSpeed {
	case SpeedSlow:
		return 100 * time.Millisecond
	case SpeedFast:
		return 0
	default:
		return 50 * time.Millisecond
	}
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func resolveOverlayBackend(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case OverlayX11:
		return OverlayX11
	case OverlayWin32, "windows":
		return OverlayWin32
	case OverlayFyne:
		return OverlayFyne
	default:
		return OverlayAuto
	}
}

func resolveTypingSpeed(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SpeedSlow:
		return SpeedSlow
	case SpeedFast:
		return SpeedFast
	default:
		return SpeedNormal
	}
}

func resolveScreenshotDir(value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Pictures")
	}
	return "."
}
