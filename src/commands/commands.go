package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/macro"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/session"
)

// Command names accepted by Dispatch.
const (
	StartDraw              = "start_draw"
	StopDraw               = "stop_draw"
	TakeRegionScreenshot   = "take_region_screenshot"
	CloseScreenshotWindows = "close_screenshot_windows"
	TypeText               = "type_text"
	ChangeTrayIcon         = "change_tray_icon"
	StartScreenshot        = "start_screenshot"
	TypeNext               = "type_next"
	ShowBreakTime          = "show_break_time"
	ListMonitors           = "list_monitors"
)

// Error codes carried in Response.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnknownCommand   = "unknown_command"
	CodeBusy             = "busy"
	CodeEnumeration      = "enumeration"
	CodeMonitorNotFound  = "monitor_not_found"
	CodeInvalidRegion    = "invalid_region"
	CodeCapture          = "capture"
	CodeDelivery         = "delivery"
	CodeMacroAbort       = "macro_abort"
	CodePermissionDenied = "permission_denied"
	CodeCancelled        = "cancelled"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnavailable    = errors.New("not available in this process")
)

type Request struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type TakeRegionScreenshotArgs struct {
	MonitorIndex uint32 `json:"monitor_index"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Path         string `json:"path"`
	Save         bool   `json:"save"`
}

type TypeTextArgs struct {
	Text string `json:"text"`
}

type ChangeTrayIconArgs struct {
	Color     string `json:"color"`
	IsDrawing bool   `json:"is_drawing"`
}

// NewRequest encodes args into a request.
func NewRequest(command string, args any) (Request, error) {
	req := Request{Command: command}
	if args == nil {
		return req, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Request{}, fmt.Errorf("failed to encode %s args: %w", command, err)
	}
	req.Args = raw
	return req, nil
}

// Blocking reports whether a command runs long enough to need a worker.
func Blocking(command string) bool {
	switch command {
	case TypeText, TypeNext, TakeRegionScreenshot, StartScreenshot:
		return true
	default:
		return false
	}
}

// Screenshots is the capture session surface.
type Screenshots interface {
	Start(ctx context.Context) error
	TakeRegionScreenshot(req capture.Request) error
	CloseWindows()
}

type Typist interface {
	Execute(ctx context.Context, text string) error
}

type DrawMode interface {
	StartDraw() error
	StopDraw() error
}

type TrayIcon interface {
	ChangeTrayIcon(color string, drawing bool) error
}

type BreakTimer interface {
	ShowBreak() error
}

// Service executes commands against whichever collaborators are wired.
// A nil collaborator makes its commands fail with ErrUnavailable.
type Service struct {
	Screenshots Screenshots
	Typist      Typist
	Draw        DrawMode
	Tray        TrayIcon
	Break       BreakTimer
	Monitors    monitor.Registry
	Script      *macro.Script
}

// Dispatch runs req and maps the outcome to a response.
func (s *Service) Dispatch(ctx context.Context, req Request) Response {
	data, err := s.run(ctx, req)
	if err != nil {
		logutil.WithComponent("commands").Warn().Str("command", req.Command).Err(err).Msg("command failed")
		return Response{Error: err.Error(), Code: Code(err)}
	}
	return Response{OK: true, Data: data}
}

func (s *Service) run(ctx context.Context, req Request) (any, error) {
	switch req.Command {
	case StartDraw:
		if s.Draw == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Draw.StartDraw()

	case StopDraw:
		if s.Draw == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Draw.StopDraw()

	case TakeRegionScreenshot:
		var a TakeRegionScreenshotArgs
		if err := decode(req, &a); err != nil {
			return nil, err
		}
		if s.Screenshots == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Screenshots.TakeRegionScreenshot(capture.Request{
			Monitor:     a.MonitorIndex,
			X:           a.X,
			Y:           a.Y,
			Width:       a.Width,
			Height:      a.Height,
			Destination: delivery.FromSave(a.Save, a.Path),
		})

	case CloseScreenshotWindows:
		if s.Screenshots != nil {
			s.Screenshots.CloseWindows()
		}
		return nil, nil

	case StartScreenshot:
		if s.Screenshots == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Screenshots.Start(ctx)

	case TypeText:
		var a TypeTextArgs
		if err := decode(req, &a); err != nil {
			return nil, err
		}
		if s.Typist == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Typist.Execute(ctx, a.Text)

	case TypeNext:
		if s.Typist == nil || s.Script == nil {
			return nil, unavailable(req.Command)
		}
		seg, ok := s.Script.Next()
		if !ok {
			return nil, fmt.Errorf("%w: no script loaded", ErrBadRequest)
		}
		return nil, s.Typist.Execute(ctx, seg)

	case ChangeTrayIcon:
		var a ChangeTrayIconArgs
		if err := decode(req, &a); err != nil {
			return nil, err
		}
		if s.Tray == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Tray.ChangeTrayIcon(a.Color, a.IsDrawing)

	case ShowBreakTime:
		if s.Break == nil {
			return nil, unavailable(req.Command)
		}
		return nil, s.Break.ShowBreak()

	case ListMonitors:
		if s.Monitors == nil {
			return nil, unavailable(req.Command)
		}
		return s.Monitors.Enumerate()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
}

func decode(req Request, v any) error {
	if len(req.Args) == 0 {
		return fmt.Errorf("%w: %s needs arguments", ErrBadRequest, req.Command)
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadRequest, req.Command, err)
	}
	return nil
}

func unavailable(command string) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, command)
}

// Code classifies err for clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, session.ErrBusy), errors.Is(err, macro.ErrBusy):
		return CodeBusy
	case errors.Is(err, session.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, session.ErrSelectionCancelled):
		return CodeCancelled
	case errors.Is(err, monitor.ErrEnumeration):
		return CodeEnumeration
	case errors.Is(err, monitor.ErrMonitorNotFound):
		return CodeMonitorNotFound
	case errors.Is(err, capture.ErrInvalidRegion):
		return CodeInvalidRegion
	case errors.Is(err, capture.ErrCapture):
		return CodeCapture
	case errors.Is(err, delivery.ErrDelivery):
		return CodeDelivery
	case errors.Is(err, macro.ErrMacroAbort):
		return CodeMacroAbort
	default:
		return CodeInternal
	}
}
