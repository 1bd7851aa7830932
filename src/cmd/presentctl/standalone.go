package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/notification"
	"github.com/erwinvanhunen/presentink/src/overlay"
	"github.com/erwinvanhunen/presentink/src/runtimeinit"
	"github.com/erwinvanhunen/presentink/src/session"
)

// standaloneService wires only what command needs: the keyboard for typing
// and the clipboard for clipboard captures. Overlay, draw, tray and break
// commands need the resident.
func standaloneService(opts cliOptions, command string) (*commands.Service, error) {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   config.LoadOptions{EnvPathOverride: opts.envPath},
		NeedClipboard: command == commands.TakeRegionScreenshot,
		NeedKeyboard:  command == commands.TypeText,
	})
	if err != nil {
		return nil, err
	}

	svc := &commands.Service{Monitors: rt.Monitors}
	if rt.Interpreter != nil {
		svc.Typist = rt.Interpreter
	}
	if command == commands.TakeRegionScreenshot {
		svc.Screenshots = directCapture{orch: &session.Orchestrator{
			Monitors:    rt.Monitors,
			Registry:    overlay.NewRegistry(),
			Engine:      rt.Engine,
			Router:      rt.Router(notification.LogNotifier{}),
			Permissions: rt.Permissions,
			SettleDelay: rt.Config.SettleDelay,
		}}
	}
	return svc, nil
}

// directCapture exposes only direct region captures; there are no overlays
// outside the resident.
type directCapture struct {
	orch *session.Orchestrator
}

func (d directCapture) Start(context.Context) error {
	return fmt.Errorf("%w: overlays need a running PresentInk", commands.ErrUnavailable)
}

func (d directCapture) TakeRegionScreenshot(req capture.Request) error {
	return d.orch.TakeRegionScreenshot(req)
}

func (d directCapture) CloseWindows() {}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
