package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/macro"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/session"
)

type fakeScreenshots struct {
	mu       sync.Mutex
	started  int
	closed   int
	requests []capture.Request
	err      error
}

func (f *fakeScreenshots) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.err
}

func (f *fakeScreenshots) TakeRegionScreenshot(req capture.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeScreenshots) CloseWindows() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

type fakeDraw struct{ on bool }

func (d *fakeDraw) StartDraw() error {
	d.on = true
	return nil
}

func (d *fakeDraw) StopDraw() error {
	d.on = false
	return nil
}

type fakeTray struct {
	color   string
	drawing bool
}

func (t *fakeTray) ChangeTrayIcon(color string, drawing bool) error {
	t.color, t.drawing = color, drawing
	return nil
}

func mustRequest(t *testing.T, cmd string, args any) Request {
	req, err := NewRequest(cmd, args)
	require.NoError(t, err)
	return req
}

func TestTakeRegionScreenshotRouting(t *testing.T) {
	shots := &fakeScreenshots{}
	s := &Service{Screenshots: shots}

	resp := s.Dispatch(context.Background(), mustRequest(t, TakeRegionScreenshot, TakeRegionScreenshotArgs{
		MonitorIndex: 1, X: 10, Y: 20, Width: 30, Height: 40, Path: "/tmp/x.png", Save: true,
	}))
	require.True(t, resp.OK, resp.Error)

	resp = s.Dispatch(context.Background(), mustRequest(t, TakeRegionScreenshot, TakeRegionScreenshotArgs{
		Width: 5, Height: 5, Path: "/tmp/ignored.png", Save: false,
	}))
	require.True(t, resp.OK, resp.Error)

	assert.Equal(t, []capture.Request{
		{Monitor: 1, X: 10, Y: 20, Width: 30, Height: 40, Destination: delivery.ToFile("/tmp/x.png")},
		{Width: 5, Height: 5, Destination: delivery.ToClipboard()},
	}, shots.requests)
}

func TestTypeText(t *testing.T) {
	rec := &macro.Recorder{}
	s := &Service{Typist: macro.NewInterpreter(rec)}

	resp := s.Dispatch(context.Background(), mustRequest(t, TypeText, TypeTextArgs{Text: "hi[enter]"}))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, []string{"type:hi", "press:enter", "release:enter"}, rec.Events())

	rec.FailOn = "type:bad"
	resp = s.Dispatch(context.Background(), mustRequest(t, TypeText, TypeTextArgs{Text: "bad"}))
	assert.False(t, resp.OK)
	assert.Equal(t, CodeMacroAbort, resp.Code)
}

func TestTypeNextCyclesScript(t *testing.T) {
	rec := &macro.Recorder{}
	s := &Service{Typist: macro.NewInterpreter(rec), Script: macro.ParseScript("one[end]two")}

	for i := 0; i < 3; i++ {
		require.True(t, s.Dispatch(context.Background(), Request{Command: TypeNext}).OK)
	}
	assert.Equal(t, []string{"type:one", "type:two", "type:one"}, rec.Events())

	s.Script = macro.ParseScript("")
	assert.Equal(t, CodeBadRequest, s.Dispatch(context.Background(), Request{Command: TypeNext}).Code)
}

func TestDrawAndTray(t *testing.T) {
	d := &fakeDraw{}
	tr := &fakeTray{}
	s := &Service{Draw: d, Tray: tr}

	require.True(t, s.Dispatch(context.Background(), Request{Command: StartDraw}).OK)
	assert.True(t, d.on)
	require.True(t, s.Dispatch(context.Background(), Request{Command: StopDraw}).OK)
	assert.False(t, d.on)

	resp := s.Dispatch(context.Background(), mustRequest(t, ChangeTrayIcon, ChangeTrayIconArgs{Color: "#ff0000", IsDrawing: true}))
	require.True(t, resp.OK)
	assert.Equal(t, "#ff0000", tr.color)
	assert.True(t, tr.drawing)
}

func TestListMonitors(t *testing.T) {
	s := &Service{Monitors: monitor.Static{Monitors: []monitor.Descriptor{{Index: 0, Width: 800, Height: 600, ScaleFactor: 1}}}}

	resp := s.Dispatch(context.Background(), Request{Command: ListMonitors})
	require.True(t, resp.OK)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":[{"index":0,"x":0,"y":0,"width":800,"height":600,"scale_factor":1}]}`, string(raw))
}

func TestDispatchErrors(t *testing.T) {
	s := &Service{Screenshots: &fakeScreenshots{}}

	assert.Equal(t, CodeUnknownCommand, s.Dispatch(context.Background(), Request{Command: "explode"}).Code)
	assert.Equal(t, CodeBadRequest, s.Dispatch(context.Background(), Request{Command: TakeRegionScreenshot}).Code)
	assert.Equal(t, CodeBadRequest, s.Dispatch(context.Background(), Request{Command: TakeRegionScreenshot, Args: json.RawMessage(`{"x":"left"}`)}).Code)
	assert.Equal(t, CodeUnavailable, s.Dispatch(context.Background(), Request{Command: StartDraw}).Code)

	s.Screenshots = &fakeScreenshots{err: session.ErrBusy}
	assert.Equal(t, CodeBusy, s.Dispatch(context.Background(), Request{Command: StartScreenshot}).Code)
}

func TestCode(t *testing.T) {
	cases := map[error]string{
		nil:                                             "",
		fmt.Errorf("x: %w", capture.ErrInvalidRegion):   CodeInvalidRegion,
		fmt.Errorf("x: %w", capture.ErrCapture):         CodeCapture,
		fmt.Errorf("x: %w", delivery.ErrDelivery):       CodeDelivery,
		fmt.Errorf("x: %w", monitor.ErrMonitorNotFound): CodeMonitorNotFound,
		fmt.Errorf("x: %w", monitor.ErrEnumeration):     CodeEnumeration,
		session.ErrPermissionDenied:                     CodePermissionDenied,
		session.ErrSelectionCancelled:                   CodeCancelled,
		macro.ErrBusy:                                   CodeBusy,
		fmt.Errorf("boom"):                              CodeInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, Code(err), "%v", err)
	}
}

func TestCloseScreenshotWindowsIsIdempotent(t *testing.T) {
	shots := &fakeScreenshots{}
	s := &Service{Screenshots: shots}
	assert.True(t, s.Dispatch(context.Background(), Request{Command: CloseScreenshotWindows}).OK)
	assert.True(t, s.Dispatch(context.Background(), Request{Command: CloseScreenshotWindows}).OK)
	assert.Equal(t, 2, shots.closed)

	assert.True(t, (&Service{}).Dispatch(context.Background(), Request{Command: CloseScreenshotWindows}).OK)
}

func TestBlocking(t *testing.T) {
	assert.True(t, Blocking(TypeText))
	assert.True(t, Blocking(TakeRegionScreenshot))
	assert.False(t, Blocking(StartDraw))
	assert.False(t, Blocking(ListMonitors))
}
