package overlay

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

// FyneFactory creates an undecorated full-screen splash window. Fyne cannot
// place a window on a chosen monitor, so this backend is single-monitor
// only: monitor HostMonitor gets the real overlay and every other monitor
// gets an inert placeholder that keeps the one-window-per-monitor set
// intact but never shows. It is the fallback when no native backend exists.
type FyneFactory struct {
	App fyne.App
	// Backdrop defaults to a screen capture of the spec's bounds. Fyne
	// windows are opaque, so the overlay shows this still under the band.
	Backdrop func(Spec) (*image.RGBA, error)
}

// HostMonitor is the monitor the Fyne overlay lands on when full-screened.
const HostMonitor uint32 = 0

func (f *FyneFactory) Create(spec Spec, h Handler) (Window, error) {
	if spec.Monitor != HostMonitor {
		logutil.WithComponent("overlay").Debug().Uint32("monitor", spec.Monitor).
			Msg("fyne overlay is single-monitor, using a placeholder")
		return newPlaceholder(spec), nil
	}
	drv, ok := f.App.Driver().(desktop.Driver)
	if !ok {
		return nil, errors.New("fyne driver cannot create undecorated windows")
	}

	grab := f.Backdrop
	if grab == nil {
		grab = captureBackdrop
	}
	var backdrop image.Image
	if img, err := grab(spec); err != nil {
		logutil.WithComponent("overlay").Warn().Err(err).Str("label", spec.Label).
			Msg("overlay opens without a backdrop")
	} else {
		backdrop = img
	}

	w := &fyneWindow{spec: spec, destroyed: make(chan struct{})}
	fyne.DoAndWait(func() {
		win := drv.CreateSplashWindow()
		win.SetTitle(spec.Label)
		win.SetPadded(false)

		area := newSelectArea(spec, h, backdrop, func() float64 { return float64(win.Canvas().Scale()) })
		win.SetContent(area)
		win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyEscape {
				go h.Cancelled(spec.Monitor)
			}
		})
		win.SetOnClosed(w.finish)
		w.win = win
	})
	return w, nil
}

// placeholder stands in for monitors the Fyne backend cannot cover.
type placeholder struct {
	spec      Spec
	once      sync.Once
	destroyed chan struct{}
}

func newPlaceholder(spec Spec) *placeholder {
	return &placeholder{spec: spec, destroyed: make(chan struct{})}
}

func (p *placeholder) Label() string   { return p.spec.Label }
func (p *placeholder) Monitor() uint32 { return p.spec.Monitor }
func (p *placeholder) Show() error     { return nil }
func (p *placeholder) Focus() error    { return nil }

func (p *placeholder) Destroy() error {
	p.once.Do(func() { close(p.destroyed) })
	return nil
}

func (p *placeholder) Destroyed() <-chan struct{} { return p.destroyed }

type fyneWindow struct {
	spec Spec
	win  fyne.Window

	destroyOnce sync.Once
	finishOnce  sync.Once
	destroyed   chan struct{}
}

func (w *fyneWindow) Label() string   { return w.spec.Label }
func (w *fyneWindow) Monitor() uint32 { return w.spec.Monitor }

func (w *fyneWindow) Show() error {
	fyne.DoAndWait(func() {
		w.win.SetFullScreen(true)
		w.win.Show()
	})
	return nil
}

func (w *fyneWindow) Focus() error {
	fyne.DoAndWait(w.win.RequestFocus)
	return nil
}

func (w *fyneWindow) Destroy() error {
	w.destroyOnce.Do(func() {
		fyne.Do(func() {
			w.win.Close()
			w.finish()
		})
	})
	return nil
}

func (w *fyneWindow) Destroyed() <-chan struct{} { return w.destroyed }

func (w *fyneWindow) finish() { w.finishOnce.Do(func() { close(w.destroyed) }) }

// selectArea is a full-window widget that draws the drag rectangle.
type selectArea struct {
	widget.BaseWidget

	spec     Spec
	handler  Handler
	scale    func() float64
	backdrop *canvas.Image

	shade *canvas.Rectangle
	band  *canvas.Rectangle

	dragging bool
	start    fyne.Position
	end      fyne.Position
	shift    bool
}

func newSelectArea(spec Spec, h Handler, backdrop image.Image, scale func() float64) *selectArea {
	a := &selectArea{
		spec:    spec,
		handler: h,
		scale:   scale,
		shade:   canvas.NewRectangle(color.NRGBA{A: 40}),
		band:    canvas.NewRectangle(color.NRGBA{R: 255, G: 255, B: 255, A: 30}),
	}
	a.band.StrokeColor = color.NRGBA{R: 255, A: 255}
	a.band.StrokeWidth = 2
	a.band.Hide()
	if backdrop != nil {
		a.backdrop = canvas.NewImageFromImage(backdrop)
		a.backdrop.FillMode = canvas.ImageFillStretch
		a.backdrop.ScaleMode = canvas.ImageScalePixels
	}
	a.ExtendBaseWidget(a)
	return a
}

func (a *selectArea) CreateRenderer() fyne.WidgetRenderer {
	layers := []fyne.CanvasObject{a.shade, container.NewWithoutLayout(a.band)}
	if a.backdrop != nil {
		layers = append([]fyne.CanvasObject{a.backdrop}, layers...)
	}
	return widget.NewSimpleRenderer(container.NewStack(layers...))
}

func (a *selectArea) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	a.dragging = true
	a.start, a.end = ev.Position, ev.Position
	a.shift = ev.Modifier&fyne.KeyModifierShift != 0
}

func (a *selectArea) MouseUp(ev *desktop.MouseEvent) {
	if !a.dragging {
		return
	}
	a.end = ev.Position
	a.shift = ev.Modifier&fyne.KeyModifierShift != 0
	a.finishDrag()
}

func (a *selectArea) Dragged(ev *fyne.DragEvent) {
	if !a.dragging {
		return
	}
	a.end = ev.Position
	x0, x1 := minMax(a.start.X, a.end.X)
	y0, y1 := minMax(a.start.Y, a.end.Y)
	a.band.Move(fyne.NewPos(x0, y0))
	a.band.Resize(fyne.NewSize(x1-x0, y1-y0))
	a.band.Show()
	a.band.Refresh()
}

func (a *selectArea) DragEnd() {
	if a.dragging {
		a.finishDrag()
	}
}

func (a *selectArea) finishDrag() {
	a.dragging = false
	a.band.Hide()

	s := a.scale()
	if s <= 0 {
		s = 1
	}
	sel, ok := SelectionFromDrag(a.spec,
		int(float64(a.start.X)*s), int(float64(a.start.Y)*s),
		int(float64(a.end.X)*s), int(float64(a.end.Y)*s),
		a.shift)
	if !ok {
		return
	}
	go a.handler.Selected(sel)
}

func minMax(a, b float32) (float32, float32) {
	if a < b {
		return a, b
	}
	return b, a
}
