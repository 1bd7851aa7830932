package main

import (
	"errors"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"

	"github.com/erwinvanhunen/presentink/src/breaktimer"
	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/hotkey"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/macro"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/notification"
	"github.com/erwinvanhunen/presentink/src/session"
	"github.com/erwinvanhunen/presentink/src/tray"
)

const notifyTitle = "PresentInk"

// poster queues commands into the event loop.
type poster interface {
	PostCommand(command string) bool
}

type drawState interface {
	Drawing() bool
}

// toggleDrawCommand picks the command that flips the pen state.
func toggleDrawCommand(drawing bool) string {
	if drawing {
		return commands.StopDraw
	}
	return commands.StartDraw
}

func hotkeyBindings(keys config.Hotkeys, p poster, pen drawState) []hotkey.Binding {
	return []hotkey.Binding{
		{Name: "draw", Combo: keys.Draw, Callback: func() { p.PostCommand(toggleDrawCommand(pen.Drawing())) }},
		{Name: "screenshot", Combo: keys.Screenshot, Callback: func() { p.PostCommand(commands.StartScreenshot) }},
		{Name: "text", Combo: keys.Text, Callback: func() { p.PostCommand(commands.TypeNext) }},
		{Name: "break", Combo: keys.Break, Callback: func() { p.PostCommand(commands.ShowBreakTime) }},
	}
}

// trayActions hand every menu click to the event loop; nothing runs on the
// UI thread.
func trayActions(p poster, pen drawState, reload, quit func()) tray.Actions {
	return tray.Actions{
		ToggleDraw: func() { p.PostCommand(toggleDrawCommand(pen.Drawing())) },
		Screenshot: func() { p.PostCommand(commands.StartScreenshot) },
		TypeNext:   func() { p.PostCommand(commands.TypeNext) },
		LoadScript: func() { go reload() },
		BreakTimer: func() { p.PostCommand(commands.ShowBreakTime) },
		Quit:       quit,
	}
}

func reloadScript(s *macro.Script, fallback string, n notification.Notifier) {
	path := s.Path()
	if path == "" {
		path = fallback
	}
	if path == "" {
		_ = n.Notify(notifyTitle, "No script configured (SCRIPT_FILE)")
		return
	}
	if err := s.Load(path); err != nil {
		logutil.WithComponent("main").Warn().Err(err).Msg("script reload failed")
		_ = n.Notify(notifyTitle, err.Error())
		return
	}
	_ = n.Notify(notifyTitle, fmt.Sprintf("Loaded %d segments from %s", s.Len(), path))
}

// sessionObserver reports failed screenshot sessions. Cancelled selections
// are silent.
type sessionObserver struct {
	notifier notification.Notifier
}

func (o sessionObserver) StateChanged(from, to session.State) {
	logutil.WithComponent("main").Debug().Str("from", from.String()).Str("to", to.String()).Msg("session state")
}

func (o sessionObserver) Finished(err error) {
	if err == nil || errors.Is(err, session.ErrSelectionCancelled) {
		return
	}
	_ = o.notifier.Notify(notifyTitle, "Screenshot failed: "+err.Error())
}

// breakTimer keeps at most one break window open.
type breakTimer struct {
	app     fyne.App
	minutes int

	mu      sync.Mutex
	current *breaktimer.Window
}

func (b *breakTimer) ShowBreak() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		select {
		case <-b.current.Done():
		default:
			return nil
		}
	}
	b.current = breaktimer.Show(b.app, breaktimer.New(b.minutes))
	return nil
}

func logMonitorConfiguration(reg monitor.Registry) {
	log := logutil.WithComponent("main")
	descs, err := reg.Enumerate()
	if err != nil {
		log.Warn().Err(err).Msg("monitor enumeration failed")
		return
	}
	for _, d := range descs {
		log.Info().
			Uint32("index", d.Index).
			Int32("x", d.X).
			Int32("y", d.Y).
			Uint32("width", d.Width).
			Uint32("height", d.Height).
			Float64("scale", d.ScaleFactor).
			Msg("monitor")
	}
}
