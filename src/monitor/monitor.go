package monitor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
)

var (
	ErrEnumeration     = errors.New("monitor enumeration failed")
	ErrMonitorNotFound = errors.New("monitor not found")
)

// Descriptor describes one attached display. Position and size are physical
// pixels in the virtual desktop; ScaleFactor is the ratio of physical to
// logical pixels.
type Descriptor struct {
	Index       uint32  `json:"index"`
	X           int32   `json:"x"`
	Y           int32   `json:"y"`
	Width       uint32  `json:"width"`
	Height      uint32  `json:"height"`
	ScaleFactor float64 `json:"scale_factor"`
}

// Bounds returns the physical rectangle of the display in desktop coordinates.
func (d Descriptor) Bounds() image.Rectangle {
	return image.Rect(int(d.X), int(d.Y), int(d.X)+int(d.Width), int(d.Y)+int(d.Height))
}

// Registry reports the displays attached right now. Implementations must not
// cache: every call queries the platform again.
type Registry interface {
	Enumerate() ([]Descriptor, error)
}

// PlatformRegistry enumerates through kbinani/screenshot and asks robotgo for
// the per-display scale factor.
type PlatformRegistry struct {
	// ScaleOverride replaces the reported scale for every display when > 0.
	ScaleOverride float64

	count  func() int
	bounds func(int) image.Rectangle
	scale  func(int) float64
}

func NewRegistry(scaleOverride float64) *PlatformRegistry {
	return &PlatformRegistry{
		ScaleOverride: scaleOverride,
		count:         screenshot.NumActiveDisplays,
		bounds:        screenshot.GetDisplayBounds,
		scale:         func(i int) float64 { return robotgo.ScaleF(i) },
	}
}

func (r *PlatformRegistry) Enumerate() (descs []Descriptor, err error) {
	// The platform libraries panic on some display server failures.
	defer func() {
		if p := recover(); p != nil {
			descs = nil
			err = fmt.Errorf("%w: %v", ErrEnumeration, p)
		}
	}()

	n := r.count()
	if n <= 0 {
		return nil, fmt.Errorf("%w: no active displays found", ErrEnumeration)
	}

	descs = make([]Descriptor, 0, n)
	for i := 0; i < n; i++ {
		b := r.bounds(i)
		if b.Empty() {
			return nil, fmt.Errorf("%w: display %d reports empty bounds", ErrEnumeration, i)
		}
		scale := r.ScaleOverride
		if scale <= 0 {
			scale = r.scale(i)
		}
		descs = append(descs, Descriptor{
			Index:       uint32(i),
			X:           int32(b.Min.X),
			Y:           int32(b.Min.Y),
			Width:       uint32(b.Dx()),
			Height:      uint32(b.Dy()),
			ScaleFactor: NormalizeScale(scale),
		})
	}
	return descs, nil
}

// NormalizeScale maps unusable scale reports (zero, negative, NaN, Inf) to 1.0.
func NormalizeScale(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 1.0
	}
	return s
}

// Lookup finds the descriptor with the given index.
func Lookup(descs []Descriptor, index uint32) (Descriptor, error) {
	for _, d := range descs {
		if d.Index == index {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: index %d (have %d)", ErrMonitorNotFound, index, len(descs))
}

// Static is a fixed registry for tests and headless use.
type Static struct {
	Monitors []Descriptor
	Err      error
}

func (s Static) Enumerate() ([]Descriptor, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Descriptor, len(s.Monitors))
	copy(out, s.Monitors)
	return out, nil
}
