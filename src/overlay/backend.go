package overlay

import (
	"os"
	"runtime"

	"fyne.io/fyne/v2"

	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/logutil"
)

// NewFactory picks the overlay backend. Native windows (X11 on Linux with a
// display, Win32 on Windows) are preferred; everything else falls back to
// the single-monitor Fyne backend.
func NewFactory(backend string, app fyne.App) Factory {
	log := logutil.WithComponent("overlay")
	if wantNative(backend, runtime.GOOS, os.Getenv("DISPLAY")) {
		f, err := newNativeFactory()
		if err == nil {
			log.Info().Str("os", runtime.GOOS).Msg("using native overlay backend")
			return f
		}
		log.Warn().Err(err).Msg("native overlay backend unavailable, falling back to fyne")
	}
	log.Info().Msg("using fyne overlay backend")
	return &FyneFactory{App: app}
}

func wantNative(backend, goos, display string) bool {
	switch backend {
	case config.OverlayX11:
		return goos == "linux"
	case config.OverlayWin32:
		return goos == "windows"
	case config.OverlayAuto:
		return goos == "windows" || (goos == "linux" && display != "")
	default:
		return false
	}
}
