package runtimeinit

import (
	"fmt"

	"github.com/erwinvanhunen/presentink/src/capture"
	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/delivery"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/macro"
	"github.com/erwinvanhunen/presentink/src/monitor"
	"github.com/erwinvanhunen/presentink/src/permission"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(level string, enableFileLogging bool)
	// NeedClipboard and NeedKeyboard make the matching sink mandatory;
	// a failure to initialise it aborts the bootstrap.
	NeedClipboard bool
	NeedKeyboard  bool
}

// Runtime holds the platform-backed pieces shared by the resident and the
// standalone command line paths.
type Runtime struct {
	Config      *config.Config
	Monitors    *monitor.PlatformRegistry
	Engine      *capture.Engine
	Clipboard   delivery.ClipboardSink
	Keyboard    macro.Keyboard
	Interpreter *macro.Interpreter
	Script      *macro.Script
	Permissions permission.Capability
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.LogLevel, cfg.EnableFileLogging)
	}
	log := logutil.WithComponent("runtimeinit")

	rt := &Runtime{
		Config:      cfg,
		Monitors:    monitor.NewRegistry(cfg.ScaleFactor),
		Permissions: permission.New(),
		Script:      macro.ParseScript(""),
	}
	rt.Engine = capture.NewEngine(rt.Monitors)

	if opts.NeedClipboard {
		cb, err := delivery.NewSystemClipboard()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		rt.Clipboard = cb
	}

	if opts.NeedKeyboard {
		kb, err := macro.NewRobotKeyboard(cfg.TypeDelay())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize keyboard: %w", err)
		}
		rt.Keyboard = kb
		rt.Interpreter = macro.NewInterpreter(kb)
	}

	if cfg.ScriptFile != "" {
		if err := rt.Script.Load(cfg.ScriptFile); err != nil {
			log.Warn().Err(err).Msg("script not loaded")
		} else {
			log.Info().Str("path", cfg.ScriptFile).Int("segments", rt.Script.Len()).Msg("script loaded")
		}
	}

	log.Debug().
		Float64("scale_override", cfg.ScaleFactor).
		Str("overlay_backend", cfg.OverlayBackend).
		Dur("settle_delay", cfg.SettleDelay).
		Msg("runtime initialized")
	return rt, nil
}

// Router builds the delivery router over the runtime's clipboard. A
// runtime without a clipboard uses an in-memory one.
func (rt *Runtime) Router(n delivery.Notifier) *delivery.Router {
	cb := rt.Clipboard
	if cb == nil {
		cb = &delivery.MemoryClipboard{}
	}
	return delivery.NewRouter(delivery.DiskSink{}, cb, n)
}
