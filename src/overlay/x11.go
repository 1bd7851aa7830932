//go:build linux

package overlay

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

// escapeKeycode is Escape on evdev keymaps.
const escapeKeycode xproto.Keycode = 9

const overlayEventMask = xproto.EventMaskKeyPress |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskStructureNotify

// X11Factory creates override-redirect overlay windows on one X connection.
// Windows are created without a background so the desktop stays visible
// underneath; the selection is drawn as an XOR rubber band.
type X11Factory struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	log    *zerolog.Logger

	mu      sync.Mutex
	windows map[xproto.Window]*x11Window
}

func NewX11Factory() (*X11Factory, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	f := &X11Factory{
		conn:    conn,
		screen:  xproto.Setup(conn).DefaultScreen(conn),
		log:     logutil.WithComponent("overlay-x11"),
		windows: make(map[xproto.Window]*x11Window),
	}
	go f.eventLoop()
	return f, nil
}

func (f *X11Factory) Close() {
	f.conn.Close()
}

func (f *X11Factory) Create(spec Spec, h Handler) (Window, error) {
	if err := checkX11Geometry(spec); err != nil {
		return nil, err
	}
	wid, err := xproto.NewWindowId(f.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	mask := uint32(xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{1, overlayEventMask}
	err = xproto.CreateWindowChecked(
		f.conn,
		f.screen.RootDepth,
		wid,
		f.screen.Root,
		int16(spec.X), int16(spec.Y),
		uint16(spec.Width), uint16(spec.Height),
		0,
		xproto.WindowClassInputOutput,
		f.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay for monitor %d: %w", spec.Monitor, err)
	}

	if err := f.setTitle(wid, spec.Label); err != nil {
		f.log.Warn().Err(err).Str("label", spec.Label).Msg("Failed to set window title")
	}

	gc, err := xproto.NewGcontextId(f.conn)
	if err != nil {
		xproto.DestroyWindow(f.conn, wid)
		return nil, fmt.Errorf("failed to create graphics context: %w", err)
	}
	err = xproto.CreateGCChecked(
		f.conn,
		gc,
		xproto.Drawable(wid),
		xproto.GcFunction|xproto.GcForeground|xproto.GcLineWidth|xproto.GcSubwindowMode,
		[]uint32{xproto.GxXor, f.screen.WhitePixel, 2, xproto.SubwindowModeIncludeInferiors},
	).Check()
	if err != nil {
		xproto.DestroyWindow(f.conn, wid)
		return nil, fmt.Errorf("failed to create GC: %w", err)
	}

	w := &x11Window{
		f:         f,
		id:        wid,
		gc:        gc,
		spec:      spec,
		handler:   h,
		destroyed: make(chan struct{}),
	}
	f.mu.Lock()
	f.windows[wid] = w
	f.mu.Unlock()

	f.log.Debug().Str("label", spec.Label).Uint32("window_id", uint32(wid)).Msg("overlay created")
	return w, nil
}

func (f *X11Factory) setTitle(wid xproto.Window, title string) error {
	reply, err := xproto.InternAtom(f.conn, false, uint16(len("_NET_WM_NAME")), "_NET_WM_NAME").Reply()
	if err != nil {
		return err
	}
	utf8, err := xproto.InternAtom(f.conn, false, uint16(len("UTF8_STRING")), "UTF8_STRING").Reply()
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		f.conn,
		xproto.PropModeReplace,
		wid,
		reply.Atom,
		utf8.Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (f *X11Factory) lookup(wid xproto.Window) *x11Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[wid]
}

func (f *X11Factory) forget(wid xproto.Window) *x11Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.windows[wid]
	delete(f.windows, wid)
	return w
}

func (f *X11Factory) eventLoop() {
	for {
		ev, xerr := f.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			f.log.Debug().Msg("X connection closed")
			f.mu.Lock()
			for wid, w := range f.windows {
				w.finish()
				delete(f.windows, wid)
			}
			f.mu.Unlock()
			return
		}
		if xerr != nil {
			f.log.Debug().Str("error", xerr.Error()).Msg("X error")
			continue
		}

		switch e := ev.(type) {
		case xproto.ButtonPressEvent:
			if w := f.lookup(e.Event); w != nil && e.Detail == xproto.ButtonIndex1 {
				w.press(int(e.EventX), int(e.EventY))
			}
		case xproto.MotionNotifyEvent:
			if w := f.lookup(e.Event); w != nil {
				w.motion(int(e.EventX), int(e.EventY))
			}
		case xproto.ButtonReleaseEvent:
			if w := f.lookup(e.Event); w != nil && e.Detail == xproto.ButtonIndex1 {
				w.release(int(e.EventX), int(e.EventY), e.State&xproto.ModMaskShift != 0)
			}
		case xproto.KeyPressEvent:
			if w := f.lookup(e.Event); w != nil && e.Detail == escapeKeycode {
				go w.handler.Cancelled(w.spec.Monitor)
			}
		case xproto.DestroyNotifyEvent:
			if w := f.forget(e.Window); w != nil {
				w.finish()
			}
		}
	}
}

type x11Window struct {
	f       *X11Factory
	id      xproto.Window
	gc      xproto.Gcontext
	spec    Spec
	handler Handler

	// drag state, touched only by the event loop
	dragging bool
	startX   int
	startY   int
	band     *xproto.Rectangle

	destroyOnce sync.Once
	finishOnce  sync.Once
	destroyed   chan struct{}
}

func (w *x11Window) Label() string   { return w.spec.Label }
func (w *x11Window) Monitor() uint32 { return w.spec.Monitor }

func (w *x11Window) Show() error {
	if err := xproto.MapWindowChecked(w.f.conn, w.id).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	return xproto.ConfigureWindowChecked(w.f.conn, w.id, xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove}).Check()
}

func (w *x11Window) Focus() error {
	if err := xproto.SetInputFocusChecked(w.f.conn, xproto.InputFocusParent, w.id, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("failed to focus overlay: %w", err)
	}
	reply, err := xproto.GrabKeyboard(w.f.conn, false, w.id, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		return fmt.Errorf("failed to grab keyboard: %w", err)
	}
	if reply.Status != xproto.GrabStatusSuccess {
		w.f.log.Warn().Uint8("status", reply.Status).Msg("keyboard grab refused, Escape may not reach the overlay")
	}
	return nil
}

func (w *x11Window) Destroy() error {
	w.destroyOnce.Do(func() {
		xproto.FreeGC(w.f.conn, w.gc)
		xproto.DestroyWindow(w.f.conn, w.id)
		w.f.conn.Sync()
	})
	return nil
}

func (w *x11Window) Destroyed() <-chan struct{} { return w.destroyed }

func (w *x11Window) finish() { w.finishOnce.Do(func() { close(w.destroyed) }) }

func (w *x11Window) press(x, y int) {
	w.dragging = true
	w.startX, w.startY = x, y
	w.band = nil
}

func (w *x11Window) motion(x, y int) {
	if !w.dragging {
		return
	}
	w.eraseBand()
	r := bandRect(w.startX, w.startY, x, y)
	w.band = &r
	xproto.PolyRectangle(w.f.conn, xproto.Drawable(w.id), w.gc, []xproto.Rectangle{r})
}

func (w *x11Window) release(x, y int, shift bool) {
	if !w.dragging {
		return
	}
	w.dragging = false
	w.eraseBand()
	sel, ok := SelectionFromDrag(w.spec, w.startX, w.startY, x, y, shift)
	if !ok {
		return
	}
	go w.handler.Selected(sel)
}

func (w *x11Window) eraseBand() {
	if w.band == nil {
		return
	}
	xproto.PolyRectangle(w.f.conn, xproto.Drawable(w.id), w.gc, []xproto.Rectangle{*w.band})
	w.band = nil
}

// bandRect expects window coordinates from pointer events, which already
// fit int16 on a window that passed checkX11Geometry.
func bandRect(x0, y0, x1, y1 int) xproto.Rectangle {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return xproto.Rectangle{X: int16(x0), Y: int16(y0), Width: uint16(x1 - x0), Height: uint16(y1 - y0)}
}
