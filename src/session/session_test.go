package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/overlay"
	"github.com/erwinvanhunen/presentink/src/permission"
)

var twoMonitors = []monitor.Descriptor{
	{Index: 0, Width: 1920, Height: 1080, ScaleFactor: 1},
	{Index: 1, X: 1920, Width: 2880, Height: 1800, ScaleFactor: 2},
}

type stubCapturer struct {
	mu    sync.Mutex
	calls []capture.Request
	err   error
	// live reports overlays still alive when capture starts.
	live func() int
	seen []int
}

func (c *stubCapturer) CaptureRegion(index uint32, x, y, w, h int) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, capture.Request{Monitor: index, X: x, Y: y, Width: w, Height: h})
	if c.live != nil {
		c.seen = append(c.seen, c.live())
	}
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type memoryFiles struct {
	mu    sync.Mutex
	paths []string
}

func (m *memoryFiles) WriteImage(path string, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	return nil
}

// invariantObserver checks the overlay set on every transition.
type invariantObserver struct {
	t        *testing.T
	registry *overlay.Registry
	monitors []monitor.Descriptor

	// onFinished runs outside the observer's own lock.
	onFinished func()

	mu          sync.Mutex
	transitions []string
	finished    []error
	violations  []error
}

func (o *invariantObserver) StateChanged(from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, fmt.Sprintf("%s->%s", from, to))
	if to == Spawning {
		return
	}
	if err := o.registry.Check(o.monitors); err != nil {
		o.violations = append(o.violations, fmt.Errorf("%s->%s: %w", from, to, err))
	}
}

func (o *invariantObserver) Finished(err error) {
	if o.onFinished != nil {
		o.onFinished()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

type fixture struct {
	orch     *Orchestrator
	factory  *overlay.FakeFactory
	registry *overlay.Registry
	engine   *stubCapturer
	files    *memoryFiles
	cb       *delivery.MemoryClipboard
	observer *invariantObserver
	perms    *permission.Static
	slept    []time.Duration
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		factory:  &overlay.FakeFactory{DestroyDelay: 5 * time.Millisecond},
		registry: overlay.NewRegistry(),
		engine:   &stubCapturer{},
		files:    &memoryFiles{},
		cb:       &delivery.MemoryClipboard{},
		perms:    &permission.Static{Granted: true},
	}
	f.observer = &invariantObserver{t: t, registry: f.registry, monitors: twoMonitors}
	f.engine.live = f.factory.Live
	f.orch = &Orchestrator{
		Monitors:    monitor.Static{Monitors: twoMonitors},
		Factory:     f.factory,
		Registry:    f.registry,
		Engine:      f.engine,
		Router:      delivery.NewRouter(f.files, f.cb, nil),
		Permissions: f.perms,
		Observer:    f.observer,
		SettleDelay: 200 * time.Millisecond,
		SavePath:    func() string { return "/shots/out.png" },
		Sleep: func(d time.Duration) {
			f.slept = append(f.slept, d)
		},
	}
	return f
}

func (f *fixture) window(t *testing.T, index uint32) *overlay.FakeWindow {
	for _, w := range f.factory.Windows() {
		if w.Monitor() == index && !w.IsDestroyed() {
			return w
		}
	}
	t.Fatalf("no live overlay for monitor %d", index)
	return nil
}

func (f *fixture) assertNoViolations(t *testing.T) {
	f.observer.mu.Lock()
	defer f.observer.mu.Unlock()
	assert.Empty(t, f.observer.violations)
}

func TestStartSelectCapture(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, AwaitingSelection, f.orch.State())
	require.Equal(t, 2, f.registry.Len())
	for _, w := range f.factory.Windows() {
		assert.True(t, w.Visible())
	}

	require.True(t, f.window(t, 1).Drag(10, 20, 110, 220, false))

	assert.Equal(t, Idle, f.orch.State())
	assert.Zero(t, f.registry.Len())
	assert.Zero(t, f.factory.Live(), "no leaked overlays")
	assert.Equal(t, []capture.Request{{Monitor: 1, X: 10, Y: 20, Width: 100, Height: 200}}, f.engine.calls)
	assert.Equal(t, []int{0}, f.engine.seen, "every overlay is destroyed before capture")
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, f.slept)
	assert.Equal(t, 1, f.cb.Sets())
	assert.Equal(t, []error{nil}, f.observer.finished)
	assert.Equal(t, []string{
		"Idle->Spawning", "Spawning->AwaitingSelection",
		"AwaitingSelection->Capturing", "Capturing->Idle",
	}, f.observer.transitions)
	f.assertNoViolations(t)
}

func TestSelectWithSaveWritesFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Start(context.Background()))

	require.True(t, f.window(t, 0).Drag(0, 0, 50, 50, true))

	assert.Equal(t, []string{"/shots/out.png"}, f.files.paths)
	assert.Zero(t, f.cb.Sets())
}

func TestStartCancel(t *testing.T) {
	f := newFixture(t)

	for round := 0; round < 3; round++ {
		require.NoError(t, f.orch.Start(context.Background()))
		f.window(t, 0).Cancel()

		assert.Equal(t, Idle, f.orch.State())
		assert.Zero(t, f.registry.Len())
		assert.Zero(t, f.factory.Live())
	}
	assert.Empty(t, f.engine.calls)
	assert.Empty(t, f.slept, "cancel does not settle")
	assert.Len(t, f.observer.finished, 3)
	assert.ErrorIs(t, f.observer.finished[0], ErrSelectionCancelled)
	f.assertNoViolations(t)
}

func TestStartWhileBusy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Start(context.Background()))

	assert.ErrorIs(t, f.orch.Start(context.Background()), ErrBusy)
	assert.Equal(t, 2, f.registry.Len(), "the running session is untouched")
}

func TestSelectionIgnoredWhenNotAwaiting(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Start(context.Background()))
	stale := f.window(t, 0)
	f.window(t, 1).Cancel()

	assert.True(t, stale.Drag(0, 0, 10, 10, false))
	assert.Empty(t, f.engine.calls)
	assert.Equal(t, Idle, f.orch.State())
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.perms.Granted = false

	err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, f.perms.Requested)
	assert.Equal(t, Idle, f.orch.State())
	assert.Empty(t, f.factory.Windows())
}

func TestSpawnFailureTearsDownPartialSet(t *testing.T) {
	f := newFixture(t)
	f.factory.FailOn = map[uint32]error{1: errors.New("window server refused")}

	err := f.orch.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, Idle, f.orch.State())
	assert.Zero(t, f.registry.Len())
	assert.Zero(t, f.factory.Live(), "no partial resting set")
	f.assertNoViolations(t)

	f.factory.FailOn = nil
	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, 2, f.registry.Len())
}

func TestEnumerationFailure(t *testing.T) {
	f := newFixture(t)
	f.orch.Monitors = monitor.Static{Err: fmt.Errorf("%w: display server gone", monitor.ErrEnumeration)}

	err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, monitor.ErrEnumeration)
	assert.Equal(t, Idle, f.orch.State())
}

func TestCaptureFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.engine.err = fmt.Errorf("%w: grab failed", capture.ErrCapture)
	require.NoError(t, f.orch.Start(context.Background()))

	f.window(t, 0).Drag(0, 0, 10, 10, false)

	assert.Equal(t, Idle, f.orch.State())
	require.Len(t, f.observer.finished, 1)
	assert.ErrorIs(t, f.observer.finished[0], capture.ErrCapture)
	assert.Zero(t, f.factory.Live())

	require.NoError(t, f.orch.Start(context.Background()), "failures never block later sessions")
}

func TestTakeRegionScreenshotDirect(t *testing.T) {
	f := newFixture(t)

	err := f.orch.TakeRegionScreenshot(capture.Request{
		Monitor: 0, X: 1, Y: 2, Width: 3, Height: 4,
		Destination: delivery.ToFile(""),
	})
	require.NoError(t, err)
	assert.Equal(t, Idle, f.orch.State())
	assert.Len(t, f.engine.calls, 1)
	assert.Empty(t, f.files.paths, "empty path writes nothing")
	assert.Zero(t, f.cb.Sets())
	assert.Empty(t, f.slept, "no overlays, nothing to settle")
}

func TestTakeRegionScreenshotTearsDownSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Start(context.Background()))

	err := f.orch.TakeRegionScreenshot(capture.Request{Monitor: 1, Width: 10, Height: 10, Destination: delivery.ToClipboard()})
	require.NoError(t, err)
	assert.Zero(t, f.factory.Live())
	assert.Equal(t, []int{0}, f.engine.seen)
	assert.Len(t, f.slept, 1)
}

func TestCloseWindowsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.orch.CloseWindows()
	assert.Equal(t, Idle, f.orch.State())

	require.NoError(t, f.orch.Start(context.Background()))
	f.orch.CloseWindows()
	f.orch.CloseWindows()

	assert.Equal(t, Idle, f.orch.State())
	assert.Zero(t, f.factory.Live())
	f.assertNoViolations(t)
}

func TestDestroyTimeoutIsBounded(t *testing.T) {
	f := newFixture(t)
	f.factory.DestroyDelay = time.Hour
	f.orch.DestroyTimeout = 20 * time.Millisecond
	require.NoError(t, f.orch.Start(context.Background()))

	start := time.Now()
	f.orch.Cancel()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Idle, f.orch.State())
}

func TestTeardownWaitDoesNotHoldSessionLock(t *testing.T) {
	cases := []struct {
		name    string
		end     func(o *Orchestrator)
		settled State
	}{
		{"cancel", (*Orchestrator).Cancel, Idle},
		{"close windows", (*Orchestrator).CloseWindows, Idle},
		{"region screenshot", func(o *Orchestrator) {
			_ = o.TakeRegionScreenshot(capture.Request{Monitor: 0, Width: 10, Height: 10, Destination: delivery.ToClipboard()})
		}, Capturing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.factory.DestroyDelay = time.Second
			f.orch.DestroyTimeout = 5 * time.Second
			// Finished reads the state back; this deadlocks if the lock is held.
			f.observer.onFinished = func() { _ = f.orch.State() }
			require.NoError(t, f.orch.Start(context.Background()))

			ended := make(chan struct{})
			go func() {
				tc.end(f.orch)
				close(ended)
			}()

			assert.Eventually(t, func() bool { return f.orch.State() == tc.settled }, 500*time.Millisecond, 5*time.Millisecond,
				"state is readable while overlays are still being destroyed")
			select {
			case <-ended:
				t.Fatal("returned before the destroyed signals fired")
			default:
			}

			select {
			case <-ended:
			case <-time.After(5 * time.Second):
				t.Fatal("session end did not complete")
			}
			assert.Equal(t, Idle, f.orch.State())
			assert.Zero(t, f.factory.Live())
			f.observer.mu.Lock()
			assert.Len(t, f.observer.finished, 1)
			f.observer.mu.Unlock()
		})
	}
}

func TestIsAllowedTransition(t *testing.T) {
	assert.True(t, isAllowedTransition(Idle, Spawning))
	assert.True(t, isAllowedTransition(AwaitingSelection, Idle))
	assert.False(t, isAllowedTransition(Idle, AwaitingSelection))
	assert.False(t, isAllowedTransition(Capturing, AwaitingSelection))
	assert.False(t, isAllowedTransition(Spawning, Capturing))
}

func TestTimestampedPath(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	got := TimestampedPath("/tmp/shots", now)()
	assert.Equal(t, filepath.Join("/tmp/shots", "Screenshot 2024-03-09 140507.png"), got)
}
