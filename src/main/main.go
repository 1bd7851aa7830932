package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/spf13/cobra"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/draw"
	"github.com/erwinvanhunen/presentink/src/eventloop"
	"github.com/erwinvanhunen/presentink/src/hotkey"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/notification"
	"github.com/erwinvanhunen/presentink/src/overlay"
	"github.com/erwinvanhunen/presentink/src/router"
	"github.com/erwinvanhunen/presentink/src/runtimeinit"
	"github.com/erwinvanhunen/presentink/src/session"
	"github.com/erwinvanhunen/presentink/src/singleinstance"
	"github.com/erwinvanhunen/presentink/src/tray"
)

const appID = "com.presentink.app"

type mainOptions struct {
	envPath  string
	logLevel string
	script   string
}

func main() {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "presentink",
		Short:         "Presentation helper: screen annotation, region screenshots and typed macros",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(*opts)
		},
	}
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().StringVar(&opts.script, "script", "", "Presentation script typed segment by segment")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-log-level) to their
// double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"presentink"}
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"env", "log-level", "script"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func runResident(opts mainOptions) error {
	// Ensure DPI awareness before creating any windows or querying metrics
	enableDPIAwareness()

	// Load .env early so SINGLEINSTANCE_PORT_* apply to the pre-flight scan
	_, _ = config.LoadWithOptions(config.LoadOptions{EnvPathOverride: opts.envPath})
	probeCtx, probeCancel := context.WithTimeout(context.Background(), time.Second)
	port, running := singleinstance.DetectResidentPort(probeCtx)
	probeCancel()
	if running {
		return fmt.Errorf("PresentInk is already running on port %d", port)
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPathOverride: opts.envPath,
			LogLevel:        opts.logLevel,
			ScriptFile:      opts.script,
		},
		SetupLogging:  logutil.Setup,
		NeedClipboard: true,
		NeedKeyboard:  true,
	})
	if err != nil {
		logutil.Logger.Fatal().Err(err).Msg("startup failed")
	}
	cfg := rt.Config
	log := logutil.WithComponent("main")
	logMonitorConfiguration(rt.Monitors)

	a := app.NewWithID(appID)
	var notifier notification.Notifier = notification.FyneNotifier{App: a}

	var setter tray.Setter
	desk, hasTray := a.(desktop.App)
	if hasTray {
		setter = tray.DesktopSetter{App: desk}
	} else {
		log.Warn().Msg("no system tray available")
	}
	trayIcon := tray.New(tray.NewIconCache(nil), setter)

	msgRouter := router.NewRouter()
	defer msgRouter.Shutdown()
	pen := draw.New(msgRouter, trayIcon, cfg.DefaultColor)

	orchestrator := &session.Orchestrator{
		Monitors:    rt.Monitors,
		Factory:     overlay.NewFactory(cfg.OverlayBackend, a),
		Registry:    overlay.NewRegistry(),
		Engine:      rt.Engine,
		Router:      rt.Router(notifier),
		Permissions: rt.Permissions,
		Observer:    sessionObserver{notifier: notifier},
		SettleDelay: cfg.SettleDelay,
		SavePath:    session.TimestampedPath(cfg.ScreenshotDir, time.Now),
	}

	svc := &commands.Service{
		Screenshots: orchestrator,
		Typist:      rt.Interpreter,
		Draw:        pen,
		Tray:        trayIcon,
		Break:       &breakTimer{app: a, minutes: cfg.BreakMinutes},
		Monitors:    rt.Monitors,
		Script:      rt.Script,
	}
	loop := eventloop.New(svc, eventloop.Options{Notifier: notifier})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := func() {
		cancel()
		a.Quit()
	}

	stopHotkeys, err := hotkey.Listen(hotkeyBindings(cfg.Hotkeys, loop, pen))
	if err != nil {
		log.Error().Err(err).Msg("hotkeys")
	}
	defer stopHotkeys()

	if hasTray {
		actions := trayActions(loop, pen, func() { reloadScript(rt.Script, cfg.ScriptFile, notifier) }, quit)
		if err := trayIcon.Install(desk, actions); err != nil {
			log.Error().Err(err).Msg("failed to install tray")
		}
	}

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			fyne.Do(quit)
		case <-ctx.Done():
		}
	}()

	go func() {
		err := loop.Run(ctx)
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			log.Error().Err(err).Msg("another resident took over, exiting")
			fyne.Do(a.Quit)
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event loop stopped")
		}
	}()

	log.Info().
		Str("draw", cfg.Hotkeys.Draw).
		Str("screenshot", cfg.Hotkeys.Screenshot).
		Str("text", cfg.Hotkeys.Text).
		Str("break", cfg.Hotkeys.Break).
		Msg("PresentInk initialized")

	a.Run()

	cancel()
	orchestrator.CloseWindows()
	log.Info().Msg("PresentInk stopped")
	return nil
}
