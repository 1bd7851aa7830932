package overlay

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// captureBackdrop grabs the pixels an overlay is about to cover, so the
// overlay can paint them under the selection band.
func captureBackdrop(spec Spec) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(spec.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture backdrop for monitor %d: %w", spec.Monitor, err)
	}
	return img, nil
}

// toBGRA converts img to top-down 32-bit BGRA rows, the layout of a DIB
// section. Alpha is forced opaque.
func toBGRA(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		src := img.Pix[off : off+w*4]
		dst := out[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			dst[x] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x]
			dst[x+3] = 0xff
		}
	}
	return out
}
