package draw

import (
	"errors"
	"sync"

	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/messages"
	"github.com/erwinvanhunen/presentink/src/router"
)

// IconChanger updates the tray icon for the pen state.
type IconChanger interface {
	ChangeTrayIcon(color string, drawing bool) error
}

// Mode owns draw-mode state and tells every overlay listener about changes.
// Rendering happens in the listeners.
type Mode struct {
	Router *router.Router
	Tray   IconChanger

	mu      sync.Mutex
	drawing bool
	color   string
}

func New(r *router.Router, tray IconChanger, defaultColor string) *Mode {
	return &Mode{Router: r, Tray: tray, color: defaultColor}
}

func (m *Mode) Drawing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawing
}

func (m *Mode) Color() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.color
}

// StartDraw enters drawing mode with the current pen color.
func (m *Mode) StartDraw() error {
	m.mu.Lock()
	m.drawing = true
	color := m.color
	m.mu.Unlock()

	logutil.WithComponent("draw").Info().Str("color", color).Msg("draw mode on")
	return m.emit(messages.StartDrawing{Color: color}, color, true)
}

// StopDraw leaves drawing mode and resets the tray icon.
func (m *Mode) StopDraw() error {
	m.mu.Lock()
	m.drawing = false
	color := m.color
	m.mu.Unlock()

	logutil.WithComponent("draw").Info().Msg("draw mode off")
	return m.emit(messages.StopDrawing{}, color, false)
}

// Toggle flips drawing mode and reports the new state.
func (m *Mode) Toggle() (bool, error) {
	if m.Drawing() {
		return false, m.StopDraw()
	}
	return true, m.StartDraw()
}

// ChangeColor sets the pen color. The tray shows it only while drawing.
func (m *Mode) ChangeColor(color string) error {
	m.mu.Lock()
	m.color = color
	drawing := m.drawing
	m.mu.Unlock()

	return m.emit(messages.ChangeColor{Color: color}, color, drawing)
}

// UpdateSettings forwards settings to the overlays.
func (m *Mode) UpdateSettings(s messages.SettingsUpdated) error {
	if s.DefaultColor != "" {
		m.mu.Lock()
		if !m.drawing {
			m.color = s.DefaultColor
		}
		m.mu.Unlock()
	}
	return m.broadcast(s)
}

func (m *Mode) emit(msg messages.Message, color string, drawing bool) error {
	var errs []error
	if err := m.broadcast(msg); err != nil {
		errs = append(errs, err)
	}
	if m.Tray != nil {
		if err := m.Tray.ChangeTrayIcon(color, drawing); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mode) broadcast(msg messages.Message) error {
	if m.Router == nil {
		return nil
	}
	return m.Router.Broadcast(messages.SourceDraw, msg)
}
