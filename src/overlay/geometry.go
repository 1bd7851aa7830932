package overlay

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var ErrGeometry = errors.New("overlay geometry out of range")

// Bounds is the monitor area the overlay covers, in virtual-desktop pixels.
func (s Spec) Bounds() image.Rectangle {
	return image.Rect(int(s.X), int(s.Y), int(s.X)+int(s.Width), int(s.Y)+int(s.Height))
}

// checkX11Geometry rejects specs that do not fit the protocol's 16-bit
// window geometry. Pointer events carry int16 window coordinates, so the
// size is capped at MaxInt16 as well.
func checkX11Geometry(s Spec) error {
	right := int64(s.X) + int64(s.Width)
	bottom := int64(s.Y) + int64(s.Height)
	if s.Width == 0 || s.Height == 0 ||
		s.Width > math.MaxInt16 || s.Height > math.MaxInt16 ||
		s.X < math.MinInt16 || s.Y < math.MinInt16 ||
		right > math.MaxInt16+1 || bottom > math.MaxInt16+1 {
		return fmt.Errorf("%w: %dx%d at (%d,%d) for monitor %d",
			ErrGeometry, s.Width, s.Height, s.X, s.Y, s.Monitor)
	}
	return nil
}
