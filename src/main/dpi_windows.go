//go:build windows

package main

import (
	"golang.org/x/sys/windows"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness sets per-monitor DPI awareness so capture coordinates
// are physical pixels.
func enableDPIAwareness() {
	log := logutil.WithComponent("dpi")
	shcore := windows.NewLazySystemDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Debug().Msg("per-monitor DPI awareness set")
		} else {
			log.Warn().Uint64("hresult", uint64(ret)).Msg("failed to set per-monitor DPI awareness")
		}
		return
	}

	log.Debug().Msg("SetProcessDpiAwareness not available, trying SetProcessDPIAware")
	user32 := windows.NewLazySystemDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Warn().Msg("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		log.Warn().Msg("failed to set system DPI awareness")
	}
}
