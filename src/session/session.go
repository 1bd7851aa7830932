package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/overlay"
	"github.com/erwinvanhunen/presentink/src/permission"
)

var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrBusy               = errors.New("a capture session is already in progress")
	ErrPermissionDenied   = errors.New("screen capture permission denied")
)

const (
	DefaultSettleDelay    = 200 * time.Millisecond
	DefaultDestroyTimeout = time.Second
)

// Capturer produces a logical-size raster for a monitor region.
type Capturer interface {
	CaptureRegion(index uint32, x, y, w, h int) (*image.RGBA, error)
}

// Deliverer routes a captured raster to its destination.
type Deliverer interface {
	Deliver(img image.Image, dest delivery.Destination) error
}

// Observer is told about state changes and session outcomes. StateChanged
// runs with the session lock held and must not call back into the
// Orchestrator. Finished runs without the lock.
type Observer interface {
	StateChanged(from, to State)
	Finished(err error)
}

// Orchestrator runs capture sessions: one overlay per monitor, a user
// selection, teardown, then capture and delivery. Only one session is in
// flight at a time. Registry must be set.
type Orchestrator struct {
	Monitors    monitor.Registry
	Factory     overlay.Factory
	Registry    *overlay.Registry
	Engine      Capturer
	Router      Deliverer
	Permissions permission.Capability
	Observer    Observer

	// SettleDelay is slept after overlays are confirmed destroyed and
	// before capture, so the compositor drops their pixels.
	SettleDelay time.Duration
	// DestroyTimeout bounds the wait for destroyed signals.
	DestroyTimeout time.Duration
	// SavePath names the file for selections that choose Save.
	SavePath func() string
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)

	mu       sync.Mutex
	state    State
	monitors []monitor.Descriptor
}

func (o *Orchestrator) log() *zerolog.Logger { return logutil.WithComponent("session") }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transitionLocked(to State) error {
	from := o.state
	if !isAllowedTransition(from, to) {
		err := fmt.Errorf("invalid session transition %s -> %s", from, to)
		o.log().Error().Err(err).Msg("state machine violation")
		return err
	}
	o.state = to
	if err := o.Registry.Check(o.monitors); err != nil && to != Spawning {
		o.log().Warn().Err(err).Str("state", to.String()).Msg("overlay set invariant violated")
	}
	o.log().Debug().Str("from", from.String()).Str("to", to.String()).Msg("session state")
	if o.Observer != nil {
		o.Observer.StateChanged(from, to)
	}
	return nil
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitionLocked(to)
}

// Start opens one overlay per monitor and waits for a selection. It fails
// with ErrBusy unless the orchestrator is Idle.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return ErrBusy
	}
	if err := o.transitionLocked(Spawning); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	if err := o.spawn(ctx); err != nil {
		o.teardown()
		o.mu.Lock()
		o.monitors = nil
		_ = o.transitionLocked(Idle)
		o.mu.Unlock()
		o.log().Warn().Err(err).Msg("screenshot session not started")
		return err
	}

	return o.transition(AwaitingSelection)
}

func (o *Orchestrator) spawn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !permission.Ensure(o.Permissions) {
		return ErrPermissionDenied
	}

	// Leftovers from an aborted session.
	o.teardown()

	descs, err := o.Monitors.Enumerate()
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.monitors = descs
	o.mu.Unlock()

	for _, d := range descs {
		spec := overlay.SpecFor(d)
		w, err := o.Factory.Create(spec, o)
		if err != nil {
			return fmt.Errorf("failed to create overlay for monitor %d: %w", d.Index, err)
		}
		if err := o.Registry.Put(w); err != nil {
			_ = w.Destroy()
			return err
		}
		if err := w.Show(); err != nil {
			return fmt.Errorf("failed to show overlay %s: %w", spec.Label, err)
		}
		if err := w.Focus(); err != nil {
			return fmt.Errorf("failed to focus overlay %s: %w", spec.Label, err)
		}
	}
	o.log().Info().Int("monitors", len(descs)).Msg("awaiting region selection")
	return nil
}

// Selected implements overlay.Handler.
func (o *Orchestrator) Selected(sel overlay.Selection) {
	dest := delivery.ToClipboard()
	if sel.Save {
		dest = delivery.ToFile(o.savePath())
	}
	req := capture.Request{Monitor: sel.Monitor, X: sel.X, Y: sel.Y, Width: sel.Width, Height: sel.Height, Destination: dest}
	if err := o.capture(req, true); errors.Is(err, ErrBusy) {
		o.log().Debug().Uint32("monitor", sel.Monitor).Msg("selection ignored, no session awaiting")
	}
}

// Cancelled implements overlay.Handler.
func (o *Orchestrator) Cancelled(monitor uint32) {
	o.log().Debug().Uint32("monitor", monitor).Msg("selection cancelled")
	o.Cancel()
}

// Cancel ends a session awaiting selection without capturing.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.state != AwaitingSelection {
		o.mu.Unlock()
		return
	}
	done := o.detachLocked()
	_ = o.transitionLocked(Idle)
	o.mu.Unlock()

	o.waitDestroyed(done)
	o.finished(ErrSelectionCancelled)
}

// CloseWindows force-destroys every overlay. Idempotent.
func (o *Orchestrator) CloseWindows() {
	o.mu.Lock()
	var done []<-chan struct{}
	ended := false
	switch o.state {
	case AwaitingSelection:
		done = o.detachLocked()
		_ = o.transitionLocked(Idle)
		ended = true
	case Idle:
		done = o.Registry.DestroyAll()
	default:
		o.log().Debug().Str("state", o.state.String()).Msg("close ignored while session is busy")
	}
	o.mu.Unlock()

	o.waitDestroyed(done)
	if ended {
		o.finished(ErrSelectionCancelled)
	}
}

// TakeRegionScreenshot tears down any overlays, then captures and delivers
// req. It also works without a session (direct capture) but refuses while
// another capture or spawn is running.
func (o *Orchestrator) TakeRegionScreenshot(req capture.Request) error {
	return o.capture(req, false)
}

func (o *Orchestrator) capture(req capture.Request, fromOverlay bool) error {
	o.mu.Lock()
	switch {
	case o.state == AwaitingSelection:
	case o.state == Idle && !fromOverlay:
	default:
		o.mu.Unlock()
		return ErrBusy
	}
	if err := o.transitionLocked(Capturing); err != nil {
		o.mu.Unlock()
		return err
	}
	done := o.detachLocked()
	o.mu.Unlock()

	if o.waitDestroyed(done) {
		o.sleep(o.settleDelay())
	}

	err := o.captureAndDeliver(req)

	o.mu.Lock()
	_ = o.transitionLocked(Idle)
	o.mu.Unlock()

	if err != nil {
		o.log().Error().Err(err).Msg("screenshot failed")
	}
	o.finished(err)
	return err
}

func (o *Orchestrator) captureAndDeliver(req capture.Request) error {
	img, err := o.Engine.CaptureRegion(req.Monitor, req.X, req.Y, req.Width, req.Height)
	if err != nil {
		return err
	}
	return o.Router.Deliver(img, req.Destination)
}

// teardown destroys all overlays and waits for their destroyed signals. It
// reports whether any overlay existed. Callers must not hold o.mu.
func (o *Orchestrator) teardown() bool {
	return o.waitDestroyed(o.Registry.DestroyAll())
}

// detachLocked empties the registry and forgets the session's monitors. The
// returned signals are waited on after o.mu is released.
func (o *Orchestrator) detachLocked() []<-chan struct{} {
	o.monitors = nil
	return o.Registry.DestroyAll()
}

// waitDestroyed blocks until every signal fires or DestroyTimeout passes. It
// reports whether there was anything to wait for.
func (o *Orchestrator) waitDestroyed(done []<-chan struct{}) bool {
	if len(done) == 0 {
		return false
	}
	timeout := o.DestroyTimeout
	if timeout <= 0 {
		timeout = DefaultDestroyTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for i, ch := range done {
		select {
		case <-ch:
		case <-deadline.C:
			o.log().Warn().Int("pending", len(done)-i).Dur("timeout", timeout).
				Msg("overlay destruction not confirmed in time")
			return true
		}
	}
	return true
}

func (o *Orchestrator) finished(err error) {
	if o.Observer != nil {
		o.Observer.Finished(err)
	}
}

func (o *Orchestrator) settleDelay() time.Duration {
	if o.SettleDelay < 0 {
		return 0
	}
	if o.SettleDelay == 0 {
		return DefaultSettleDelay
	}
	return o.SettleDelay
}

func (o *Orchestrator) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if o.Sleep != nil {
		o.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (o *Orchestrator) savePath() string {
	if o.SavePath != nil {
		return o.SavePath()
	}
	return ""
}

// TimestampedPath returns a save-path generator for dir, naming files like
// "Screenshot 2006-01-02 150405.png".
func TimestampedPath(dir string, now func() time.Time) func() string {
	if now == nil {
		now = time.Now
	}
	return func() string {
		return filepath.Join(dir, now().Format("Screenshot 2006-01-02 150405.png"))
	}
}
