package overlay

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erwinvanhunen/presentink/src/monitor"
)

// LabelPrefix starts the label of every capture overlay window.
const LabelPrefix = "screenshot-window-"

// MinSelection is the smallest accepted drag, in physical pixels per side.
const MinSelection = 2

// Spec describes one overlay window: physical bounds of the monitor it covers
// and the scale factor the overlay needs to report coordinates.
type Spec struct {
	Label       string
	Monitor     uint32
	X           int32
	Y           int32
	Width       uint32
	Height      uint32
	ScaleFactor float64
}

// SpecFor builds the overlay spec covering d, with a fresh unique label.
func SpecFor(d monitor.Descriptor) Spec {
	return Spec{
		Label:       NewLabel(d.Index),
		Monitor:     d.Index,
		X:           d.X,
		Y:           d.Y,
		Width:       d.Width,
		Height:      d.Height,
		ScaleFactor: d.ScaleFactor,
	}
}

func NewLabel(index uint32) string {
	return fmt.Sprintf("%s%d-%s", LabelPrefix, index, uuid.NewString())
}

func IsOverlayLabel(label string) bool { return strings.HasPrefix(label, LabelPrefix) }

// Selection is the rectangle a user drew, in physical pixels relative to the
// reporting monitor. Save selects file output instead of the clipboard.
type Selection struct {
	Monitor uint32
	X       int
	Y       int
	Width   int
	Height  int
	Save    bool
}

// SelectionFromDrag turns two drag corners into a selection clipped to the
// monitor. ok is false for drags smaller than MinSelection.
func SelectionFromDrag(spec Spec, x0, y0, x1, y1 int, save bool) (Selection, bool) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	x0, x1 = clamp(x0, 0, int(spec.Width)), clamp(x1, 0, int(spec.Width))
	y0, y1 = clamp(y0, 0, int(spec.Height)), clamp(y1, 0, int(spec.Height))

	sel := Selection{Monitor: spec.Monitor, X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Save: save}
	if sel.Width < MinSelection || sel.Height < MinSelection {
		return Selection{}, false
	}
	return sel, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Handler receives the outcome reported by an overlay window.
type Handler interface {
	Selected(sel Selection)
	Cancelled(monitor uint32)
}

// Window is one live overlay. Destroy only requests destruction; Destroyed
// is closed once the platform confirms the window is gone.
type Window interface {
	Label() string
	Monitor() uint32
	Show() error
	Focus() error
	Destroy() error
	Destroyed() <-chan struct{}
}

// Factory creates overlay windows for a backend.
type Factory interface {
	Create(spec Spec, h Handler) (Window, error)
}
