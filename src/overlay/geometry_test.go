package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/config"
)

func TestSpecBounds(t *testing.T) {
	spec := Spec{X: -1280, Y: 200, Width: 1280, Height: 1024}
	assert.Equal(t, image.Rect(-1280, 200, 0, 1224), spec.Bounds())
}

func TestCheckX11Geometry(t *testing.T) {
	ok := []Spec{
		{Width: 1920, Height: 1080},
		{X: -1280, Y: -1024, Width: 1280, Height: 1024},
		{X: 30000, Width: math.MaxInt16 - 30000 + 1, Height: 10},
		{X: math.MinInt16, Y: math.MinInt16, Width: 1, Height: 1},
	}
	for _, s := range ok {
		assert.NoError(t, checkX11Geometry(s), "%+v", s)
	}

	bad := []Spec{
		{Width: 0, Height: 1080},
		{Width: 1920, Height: 0},
		{Width: 40000, Height: 1080},
		{Width: 1920, Height: math.MaxUint16 + 1},
		{X: math.MinInt16 - 1, Width: 10, Height: 10},
		{X: 32000, Width: 1920, Height: 1080},
		{Y: 31000, Width: 1920, Height: 2160},
		{X: math.MaxInt32, Width: 10, Height: 10},
	}
	for _, s := range bad {
		assert.ErrorIs(t, checkX11Geometry(s), ErrGeometry, "%+v", s)
	}
}

func TestToBGRA(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 3))
	full.SetRGBA(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 40})
	full.SetRGBA(3, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	// A sub-image keeps the parent's stride and offset.
	sub := full.SubImage(image.Rect(2, 1, 4, 3)).(*image.RGBA)
	got := toBGRA(sub)

	require.Len(t, got, 2*2*4)
	assert.Equal(t, []byte{30, 20, 10, 0xff}, got[0:4], "top-left pixel swapped to BGR and opaque")
	assert.Equal(t, []byte{0, 0, 0, 0xff}, got[4:8])
	assert.Equal(t, []byte{3, 2, 1, 0xff}, got[12:16], "bottom-right pixel")
}

func TestWantNative(t *testing.T) {
	cases := []struct {
		backend, goos, display string
		want                   bool
	}{
		{config.OverlayAuto, "linux", ":0", true},
		{config.OverlayAuto, "linux", "", false},
		{config.OverlayAuto, "windows", "", true},
		{config.OverlayAuto, "darwin", "", false},
		{config.OverlayX11, "linux", "", true},
		{config.OverlayX11, "windows", "", false},
		{config.OverlayWin32, "windows", "", true},
		{config.OverlayWin32, "linux", ":0", false},
		{config.OverlayFyne, "windows", "", false},
		{config.OverlayFyne, "linux", ":0", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, wantNative(tc.backend, tc.goos, tc.display), "%+v", tc)
	}
}

func TestFyneFactoryPlaceholderForSecondaryMonitor(t *testing.T) {
	f := &FyneFactory{}
	h := &recordingHandler{}

	w, err := f.Create(SpecFor(monitors[1]), h)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), w.Monitor())
	assert.NoError(t, w.Show())
	assert.NoError(t, w.Focus())

	r := NewRegistry()
	require.NoError(t, r.Put(w))
	done := r.DestroyAll()
	require.Len(t, done, 1)
	select {
	case <-done[0]:
	default:
		t.Fatal("placeholder reports destroyed immediately")
	}
	assert.NoError(t, w.Destroy(), "destroy is idempotent")
	assert.Empty(t, h.selected)
}
