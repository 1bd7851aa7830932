package breaktimer

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

// Window is a full-screen break countdown. It closes on any key, any click
// or when the countdown reaches zero.
type Window struct {
	win       fyne.Window
	stop      chan struct{}
	closeOnce sync.Once
}

// Show opens the break window. It must not be called from the UI thread.
func Show(app fyne.App, c Countdown) *Window {
	w := &Window{stop: make(chan struct{})}
	label := canvas.NewText(Format(c.Total), color.White)
	label.TextSize = 96
	label.TextStyle = fyne.TextStyle{Bold: true}
	caption := canvas.NewText("Break", color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	caption.TextSize = 32

	fyne.DoAndWait(func() {
		win := app.NewWindow("Break")
		bg := canvas.NewRectangle(color.NRGBA{R: 20, G: 20, B: 30, A: 255})
		win.SetContent(container.NewStack(
			bg,
			container.NewCenter(container.NewVBox(container.NewCenter(caption), container.NewCenter(label))),
			newTapLayer(w.Close),
		))
		win.Canvas().SetOnTypedKey(func(*fyne.KeyEvent) { w.Close() })
		win.SetOnClosed(func() { w.closeOnce.Do(func() { close(w.stop) }) })
		win.SetFullScreen(true)
		win.Show()
		w.win = win
	})

	go w.tick(c, label)
	logutil.WithComponent("breaktimer").Info().Dur("duration", c.Total).Msg("break started")
	return w
}

func (w *Window) tick(c Countdown, label *canvas.Text) {
	start := time.Now()
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			elapsed := time.Since(start)
			text := Format(c.Remaining(elapsed))
			fyne.Do(func() {
				label.Text = text
				label.Refresh()
			})
			if c.Done(elapsed) {
				w.Close()
				return
			}
		}
	}
}

// Close ends the break. Safe to call more than once.
func (w *Window) Close() {
	w.closeOnce.Do(func() {
		close(w.stop)
		fyne.Do(w.win.Close)
	})
}

// Done is closed once the window is gone.
func (w *Window) Done() <-chan struct{} { return w.stop }

// tapLayer is a transparent widget that reports any tap.
type tapLayer struct {
	widget.BaseWidget
	onTap func()
}

func newTapLayer(onTap func()) *tapLayer {
	t := &tapLayer{onTap: onTap}
	t.ExtendBaseWidget(t)
	return t
}

func (t *tapLayer) Tapped(*fyne.PointEvent) { t.onTap() }

func (t *tapLayer) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(canvas.NewRectangle(color.Transparent))
}
