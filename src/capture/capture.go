package capture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/kbinani/screenshot"
	"github.com/nfnt/resize"

	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/monitor"
)

var (
	ErrInvalidRegion = errors.New("invalid capture region")
	ErrCapture       = errors.New("capture failed")
)

// Request is one region capture. X, Y, Width and Height are physical pixels
// relative to the monitor's top-left corner.
type Request struct {
	Monitor     uint32
	X           int
	Y           int
	Width       int
	Height      int
	Destination delivery.Destination
}

// Grabber acquires raw pixels for a rectangle in virtual-desktop coordinates.
type Grabber interface {
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// ScreenGrabber reads the screen through kbinani/screenshot.
type ScreenGrabber struct{}

func (ScreenGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

type Engine struct {
	Registry monitor.Registry
	Grabber  Grabber
}

func NewEngine(reg monitor.Registry) *Engine {
	return &Engine{Registry: reg, Grabber: ScreenGrabber{}}
}

// CaptureRegion captures a rectangle of monitor index and returns it sized in
// logical pixels of that monitor.
func (e *Engine) CaptureRegion(index uint32, x, y, w, h int) (*image.RGBA, error) {
	descs, err := e.Registry.Enumerate()
	if err != nil {
		return nil, err
	}
	mon, err := monitor.Lookup(descs, index)
	if err != nil {
		return nil, err
	}
	if err := Validate(mon, x, y, w, h); err != nil {
		return nil, err
	}

	rect := image.Rect(int(mon.X)+x, int(mon.Y)+y, int(mon.X)+x+w, int(mon.Y)+y+h)
	raw, err := e.grab(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if raw == nil || raw.Bounds().Dx() != w || raw.Bounds().Dy() != h {
		got := image.Point{}
		if raw != nil {
			got = raw.Bounds().Size()
		}
		return nil, fmt.Errorf("%w: requested %dx%d, got %dx%d", ErrCapture, w, h, got.X, got.Y)
	}

	logutil.WithComponent("capture").Debug().
		Uint32("monitor", index).
		Str("rect", rect.String()).
		Float64("scale", mon.ScaleFactor).
		Msg("region captured")

	return Normalize(raw, mon.ScaleFactor), nil
}

// Capture runs req against the engine and ignores its destination.
func (e *Engine) Capture(req Request) (*image.RGBA, error) {
	return e.CaptureRegion(req.Monitor, req.X, req.Y, req.Width, req.Height)
}

func (e *Engine) grab(rect image.Rectangle) (img *image.RGBA, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("grabber panic: %v", p)
		}
	}()
	g := e.Grabber
	if g == nil {
		g = ScreenGrabber{}
	}
	return g.Grab(rect)
}

// Validate checks that the rectangle lies inside the monitor's physical area.
func Validate(mon monitor.Descriptor, x, y, w, h int) error {
	// Compare by subtraction so huge sizes cannot wrap past the edge.
	if x < 0 || y < 0 || w <= 0 || h <= 0 ||
		w > int(mon.Width)-x || h > int(mon.Height)-y {
		return fmt.Errorf("%w: %dx%d at (%d,%d) on %dx%d monitor %d",
			ErrInvalidRegion, w, h, x, y, mon.Width, mon.Height, mon.Index)
	}
	return nil
}

// LogicalSize converts physical dimensions to logical ones: round(w/s),
// round(h/s), each at least 1.
func LogicalSize(w, h int, scale float64) (int, int) {
	scale = monitor.NormalizeScale(scale)
	lw := int(math.Round(float64(w) / scale))
	lh := int(math.Round(float64(h) / scale))
	if lw < 1 {
		lw = 1
	}
	if lh < 1 {
		lh = 1
	}
	return lw, lh
}

// Normalize resamples raw to logical size with Lanczos3. A scale of exactly
// 1.0 returns raw untouched.
func Normalize(raw *image.RGBA, scale float64) *image.RGBA {
	scale = monitor.NormalizeScale(scale)
	if scale == 1.0 {
		return raw
	}
	b := raw.Bounds()
	lw, lh := LogicalSize(b.Dx(), b.Dy(), scale)
	return toRGBA(resize.Resize(uint(lw), uint(lh), raw, resize.Lanczos3))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
