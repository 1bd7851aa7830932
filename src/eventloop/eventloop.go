package eventloop

import (
	"context"
	"fmt"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/notification"
	"github.com/erwinvanhunen/presentink/src/singleinstance"
	"github.com/erwinvanhunen/presentink/src/worker"
)

const (
	laneCapture = "capture"
	laneTyping  = "typing"

	defaultWorkers = 2
	notifyTitle    = "PresentInk"
)

// Dispatcher executes one command. *commands.Service satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req commands.Request) commands.Response
}

// Options configures a Loop. Zero values pick defaults.
type Options struct {
	Workers  int
	Notifier notification.Notifier
	// Server receives delegated commands. Nil means the TCP loopback server.
	Server singleinstance.Server
}

// Loop is the single coordinator for IPC, hotkey and tray triggered
// commands. Quick commands run inline; blocking ones go to the worker pool
// with at most one job in flight per lane.
type Loop struct {
	svc      Dispatcher
	pool     *worker.Pool
	srv      singleinstance.Server
	notifier notification.Notifier
	busy     map[string]bool
	results  chan result
	posts    chan commands.Request
}

type result struct {
	lane   string
	resp   commands.Response
	target replyTarget
}

// replyTarget receives the response of one command.
type replyTarget interface {
	Reply(resp commands.Response)
}

type connTarget struct {
	conn singleinstance.Conn
}

func (t connTarget) Reply(resp commands.Response) {
	if err := t.conn.Respond(resp); err != nil {
		logutil.WithComponent("eventloop").Warn().Err(err).Msg("failed to answer client")
	}
	_ = t.conn.Close()
}

// localTarget reports failures of hotkey and tray triggered commands as
// desktop notifications. Cancelled selections stay silent.
type localTarget struct {
	command  string
	notifier notification.Notifier
}

func (t localTarget) Reply(resp commands.Response) {
	if resp.OK || resp.Code == commands.CodeCancelled {
		return
	}
	logutil.WithComponent("eventloop").Warn().Str("command", t.command).Str("code", resp.Code).Msg(resp.Error)
	if t.notifier != nil {
		_ = t.notifier.Notify(notifyTitle, fmt.Sprintf("%s failed: %s", t.command, resp.Error))
	}
}

// New creates a loop around svc.
func New(svc Dispatcher, opts Options) *Loop {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	n := opts.Notifier
	if n == nil {
		n = notification.LogNotifier{}
	}
	srv := opts.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}
	return &Loop{
		svc:      svc,
		pool:     worker.New(workers),
		srv:      srv,
		notifier: n,
		busy:     make(map[string]bool),
		results:  make(chan result, 4),
		posts:    make(chan commands.Request, 8),
	}
}

// Post queues a locally triggered command. It never blocks; it returns
// false when the queue is full.
func (l *Loop) Post(req commands.Request) bool {
	select {
	case l.posts <- req:
		return true
	default:
		logutil.WithComponent("eventloop").Warn().Str("command", req.Command).Msg("queue full, dropping")
		return false
	}
}

// PostCommand is Post for commands without arguments.
func (l *Loop) PostCommand(command string) bool {
	return l.Post(commands.Request{Command: command})
}

// Port returns the IPC port once Run has started the server.
func (l *Loop) Port() int { return l.srv.Port() }

// Run starts the IPC server and processes commands until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	logger := logutil.WithComponent("eventloop")
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		logger.Info().Int("port", p).Msg("resident listening")
	}
	defer l.pool.Close()

	// Accept loop in background to avoid blocking result handling
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.posts:
			l.handle(ctx, req, localTarget{command: req.Command, notifier: l.notifier})
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handle(ctx, conn.Request(), connTarget{conn: conn})
		case res := <-l.results:
			l.busy[res.lane] = false
			res.target.Reply(res.resp)
		}
	}
}

func (l *Loop) handle(ctx context.Context, req commands.Request, target replyTarget) {
	logger := logutil.WithComponent("eventloop")
	if !commands.Blocking(req.Command) {
		target.Reply(l.svc.Dispatch(ctx, req))
		return
	}

	ln := lane(req.Command)
	if l.busy[ln] {
		logger.Info().Str("command", req.Command).Str("lane", ln).Msg("busy, rejecting")
		target.Reply(busyResponse())
		return
	}

	l.busy[ln] = true
	var resp commands.Response
	task := func(taskCtx context.Context) error {
		resp = l.svc.Dispatch(taskCtx, req)
		if !resp.OK {
			return fmt.Errorf("%s: %s", req.Command, resp.Error)
		}
		return nil
	}
	submitted := l.pool.Submit(ctx, req.Command, task, func(error) {
		select {
		case l.results <- result{lane: ln, resp: resp, target: target}:
		case <-ctx.Done():
			target.Reply(commands.Response{Error: ctx.Err().Error(), Code: commands.CodeCancelled})
		}
	})
	if !submitted {
		l.busy[ln] = false
		logger.Info().Str("command", req.Command).Msg("worker queue full")
		target.Reply(busyResponse())
	}
}

func lane(command string) string {
	switch command {
	case commands.TypeText, commands.TypeNext:
		return laneTyping
	default:
		return laneCapture
	}
}

func busyResponse() commands.Response {
	return commands.Response{Error: "Busy, please retry", Code: commands.CodeBusy}
}
