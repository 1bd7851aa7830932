package overlay

import (
	"errors"
	"sync"
	"time"
)

// FakeFactory creates in-memory overlay windows. Tests drive them through
// Select and Cancel.
type FakeFactory struct {
	mu      sync.Mutex
	windows []*FakeWindow
	// FailOn makes Create fail for the given monitor index.
	FailOn map[uint32]error
	// DestroyDelay postpones the destroyed signal, like an asynchronous
	// window manager.
	DestroyDelay time.Duration
}

func (f *FakeFactory) Create(spec Spec, h Handler) (Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn[spec.Monitor]; err != nil {
		return nil, err
	}
	w := &FakeWindow{spec: spec, handler: h, delay: f.DestroyDelay, destroyed: make(chan struct{})}
	f.windows = append(f.windows, w)
	return w, nil
}

// Windows returns every window ever created, in creation order.
func (f *FakeFactory) Windows() []*FakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeWindow, len(f.windows))
	copy(out, f.windows)
	return out
}

// Live counts windows not yet destroyed.
func (f *FakeFactory) Live() int {
	n := 0
	for _, w := range f.Windows() {
		if !w.IsDestroyed() {
			n++
		}
	}
	return n
}

type FakeWindow struct {
	spec    Spec
	handler Handler
	delay   time.Duration

	mu         sync.Mutex
	shown      bool
	focused    bool
	destroying bool
	once       sync.Once
	destroyed  chan struct{}
}

func (w *FakeWindow) Spec() Spec      { return w.spec }
func (w *FakeWindow) Label() string   { return w.spec.Label }
func (w *FakeWindow) Monitor() uint32 { return w.spec.Monitor }

func (w *FakeWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroying {
		return errors.New("window destroyed")
	}
	w.shown = true
	return nil
}

func (w *FakeWindow) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroying {
		return errors.New("window destroyed")
	}
	w.focused = true
	return nil
}

func (w *FakeWindow) Destroy() error {
	w.mu.Lock()
	w.destroying = true
	w.mu.Unlock()
	if w.delay > 0 {
		time.AfterFunc(w.delay, w.finish)
	} else {
		w.finish()
	}
	return nil
}

func (w *FakeWindow) finish() { w.once.Do(func() { close(w.destroyed) }) }

func (w *FakeWindow) Destroyed() <-chan struct{} { return w.destroyed }

func (w *FakeWindow) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shown && w.focused && !w.destroying
}

func (w *FakeWindow) IsDestroyed() bool {
	select {
	case <-w.destroyed:
		return true
	default:
		return false
	}
}

// Drag simulates a mouse drag from (x0,y0) to (x1,y1). Drags below the
// minimum size are ignored like on a real overlay.
func (w *FakeWindow) Drag(x0, y0, x1, y1 int, save bool) bool {
	sel, ok := SelectionFromDrag(w.spec, x0, y0, x1, y1, save)
	if !ok {
		return false
	}
	w.handler.Selected(sel)
	return true
}

// Cancel simulates Escape.
func (w *FakeWindow) Cancel() { w.handler.Cancelled(w.spec.Monitor) }
