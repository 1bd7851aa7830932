package overlay

import (
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/lxn/win"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

const (
	overlayClassName = "PresentInkOverlay"

	escapePollTimerID  = 1
	escapePollInterval = 25 // ms

	mkShift = 0x0004
	bandRGB = 0x0000FF // COLORREF is 0x00BBGGRR
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procAllowSetForegroundWindow = user32.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")

	gdi32         = windows.NewLazySystemDLL("gdi32.dll")
	procCreatePen = gdi32.NewProc("CreatePen")
	procRectangle = gdi32.NewProc("Rectangle")

	registerOnce sync.Once
	registerErr  error
	classNamePtr *uint16

	// hwnd -> *win32Window, for the shared window procedure.
	win32Windows sync.Map
)

func newNativeFactory() (Factory, error) { return NewWin32Factory() }

// Win32Factory creates one topmost popup per monitor at the monitor's
// virtual-desktop position. Each window runs its message loop on its own
// locked OS thread and paints a capture of the monitor taken just before the
// window was created, so the user selects over a still of the screen.
type Win32Factory struct {
	log *zerolog.Logger
	// Backdrop defaults to a screen capture of the spec's bounds.
	Backdrop func(Spec) (*image.RGBA, error)
}

func NewWin32Factory() (*Win32Factory, error) {
	if err := registerOverlayClass(); err != nil {
		return nil, err
	}
	return &Win32Factory{log: logutil.WithComponent("overlay-win32"), Backdrop: captureBackdrop}, nil
}

func registerOverlayClass() error {
	registerOnce.Do(func() {
		classNamePtr, registerErr = windows.UTF16PtrFromString(overlayClassName)
		if registerErr != nil {
			return
		}
		wc := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			Style:         win.CS_HREDRAW | win.CS_VREDRAW,
			LpfnWndProc:   windows.NewCallback(overlayWndProc),
			HInstance:     win.GetModuleHandle(nil),
			HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
			HbrBackground: 0,
			LpszClassName: classNamePtr,
		}
		if win.RegisterClassEx(&wc) == 0 {
			registerErr = errors.New("failed to register overlay window class")
		}
	})
	return registerErr
}

func (f *Win32Factory) Create(spec Spec, h Handler) (Window, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, fmt.Errorf("%w: empty monitor %d", ErrGeometry, spec.Monitor)
	}
	w := &win32Window{spec: spec, handler: h, log: f.log, destroyed: make(chan struct{})}
	if f.Backdrop != nil {
		img, err := f.Backdrop(spec)
		if err != nil {
			f.log.Warn().Err(err).Str("label", spec.Label).Msg("overlay opens without a backdrop")
		} else {
			w.backdrop = img
		}
	}

	created := make(chan error, 1)
	go w.run(created)
	if err := <-created; err != nil {
		return nil, err
	}
	f.log.Debug().Str("label", spec.Label).
		Int32("x", spec.X).Int32("y", spec.Y).
		Uint32("width", spec.Width).Uint32("height", spec.Height).
		Msg("overlay created")
	return w, nil
}

type win32Window struct {
	spec    Spec
	handler Handler
	log     *zerolog.Logger
	hwnd    win.HWND

	// owned by the window thread
	backdrop   *image.RGBA
	memDC      win.HDC
	bitmap     win.HBITMAP
	oldBitmap  win.HGDIOBJ
	dragging   bool
	start, end image.Point
	escapeDown bool
	cancelled  bool

	destroyOnce sync.Once
	finishOnce  sync.Once
	destroyed   chan struct{}
}

// run creates the window and pumps its messages until WM_DESTROY. The
// thread stays locked so it exits together with its message queue.
func (w *win32Window) run(created chan<- error) {
	runtime.LockOSThread()
	defer w.finish()

	title, err := windows.UTF16PtrFromString(w.spec.Label)
	if err != nil {
		created <- err
		return
	}
	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		classNamePtr,
		title,
		win.WS_POPUP,
		w.spec.X, w.spec.Y, int32(w.spec.Width), int32(w.spec.Height),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		created <- fmt.Errorf("failed to create overlay for monitor %d", w.spec.Monitor)
		return
	}
	w.hwnd = hwnd
	win32Windows.Store(hwnd, w)
	w.prepareBackdrop()
	if win.SetTimer(hwnd, escapePollTimerID, escapePollInterval, 0) == 0 {
		w.log.Warn().Str("label", w.spec.Label).Msg("failed to start Escape poll timer")
	}
	created <- nil

	var msg win.MSG
	for win.GetMessage(&msg, 0, 0, 0) > 0 {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func (w *win32Window) Label() string   { return w.spec.Label }
func (w *win32Window) Monitor() uint32 { return w.spec.Monitor }

func (w *win32Window) Show() error {
	win.ShowWindow(w.hwnd, win.SW_SHOW)
	win.UpdateWindow(w.hwnd)
	return nil
}

func (w *win32Window) Focus() error {
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	if !win.SetForegroundWindow(w.hwnd) {
		w.log.Warn().Str("label", w.spec.Label).Msg("foreground refused, Escape falls back to polling")
	}
	win.BringWindowToTop(w.hwnd)
	return nil
}

// Destroy asks the window thread to close the window; DestroyWindow only
// works on the owning thread.
func (w *win32Window) Destroy() error {
	w.destroyOnce.Do(func() {
		if win.PostMessage(w.hwnd, win.WM_CLOSE, 0, 0) == 0 {
			w.finish()
		}
	})
	return nil
}

func (w *win32Window) Destroyed() <-chan struct{} { return w.destroyed }

func (w *win32Window) finish() { w.finishOnce.Do(func() { close(w.destroyed) }) }

func (w *win32Window) prepareBackdrop() {
	if w.backdrop == nil {
		return
	}
	pix := toBGRA(w.backdrop)
	b := w.backdrop.Bounds()
	w.backdrop = nil

	screenDC := win.GetDC(0)
	defer win.ReleaseDC(0, screenDC)
	memDC := win.CreateCompatibleDC(screenDC)
	header := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(b.Dx()),
		BiHeight:      -int32(b.Dy()), // top-down
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	var bits unsafe.Pointer
	bitmap := win.CreateDIBSection(memDC, &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bitmap == 0 || bits == nil {
		win.DeleteDC(memDC)
		w.log.Warn().Str("label", w.spec.Label).Msg("failed to create backdrop bitmap")
		return
	}
	copy(unsafe.Slice((*byte)(bits), len(pix)), pix)
	w.memDC = memDC
	w.bitmap = bitmap
	w.oldBitmap = win.SelectObject(memDC, win.HGDIOBJ(bitmap))
}

func (w *win32Window) releaseBackdrop() {
	if w.memDC == 0 {
		return
	}
	win.SelectObject(w.memDC, w.oldBitmap)
	win.DeleteObject(win.HGDIOBJ(w.bitmap))
	win.DeleteDC(w.memDC)
	w.memDC, w.bitmap = 0, 0
}

func (w *win32Window) paint(hdc win.HDC) {
	if w.memDC != 0 {
		win.BitBlt(hdc, 0, 0, int32(w.spec.Width), int32(w.spec.Height), w.memDC, 0, 0, win.SRCCOPY)
	}
	if !w.dragging {
		return
	}
	pen, _, _ := procCreatePen.Call(0, 2, bandRGB)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	r := image.Rectangle{Min: w.start, Max: w.end}.Canon()
	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func (w *win32Window) pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	down := uint16(state)&0x8000 != 0
	if down && !w.escapeDown {
		w.cancel()
	}
	w.escapeDown = down
}

func (w *win32Window) cancel() {
	if w.cancelled {
		return
	}
	w.cancelled = true
	go w.handler.Cancelled(w.spec.Monitor)
}

func pointFromLParam(lParam uintptr) (int, int) {
	return int(int16(win.LOWORD(uint32(lParam)))), int(int16(win.HIWORD(uint32(lParam))))
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	v, ok := win32Windows.Load(hwnd)
	if !ok {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}
	w := v.(*win32Window)

	switch msg {
	case win.WM_LBUTTONDOWN:
		x, y := pointFromLParam(lParam)
		win.SetCapture(hwnd)
		w.dragging = true
		w.start, w.end = image.Pt(x, y), image.Pt(x, y)
		win.InvalidateRect(hwnd, nil, false)
		return 0

	case win.WM_MOUSEMOVE:
		if w.dragging {
			x, y := pointFromLParam(lParam)
			w.end = image.Pt(x, y)
			win.InvalidateRect(hwnd, nil, false)
		}
		return 0

	case win.WM_LBUTTONUP:
		if !w.dragging {
			return 0
		}
		win.ReleaseCapture()
		w.dragging = false
		x, y := pointFromLParam(lParam)
		win.InvalidateRect(hwnd, nil, false)
		if sel, ok := SelectionFromDrag(w.spec, w.start.X, w.start.Y, x, y, wParam&mkShift != 0); ok {
			go w.handler.Selected(sel)
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		w.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_ERASEBKGND:
		return 1

	case win.WM_TIMER:
		if wParam == escapePollTimerID {
			w.pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			w.escapeDown = true
			w.cancel()
		}
		return 0

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_CLOSE:
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_DESTROY:
		win.KillTimer(hwnd, escapePollTimerID)
		w.releaseBackdrop()
		win32Windows.Delete(hwnd)
		w.log.Debug().Str("label", w.spec.Label).Msg("overlay window destroyed")
		win.PostQuitMessage(0)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
