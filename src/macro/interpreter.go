package macro

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

var (
	ErrMacroAbort = errors.New("macro aborted")
	ErrBusy       = errors.New("a macro is already running")
)

// Keyboard is the synthetic keyboard the interpreter drives.
type Keyboard interface {
	Type(text string) error
	Press(k Key) error
	Release(k Key) error
}

// AbortError reports the token that stopped a macro. It matches both
// ErrMacroAbort and the underlying cause under errors.Is.
type AbortError struct {
	Index int
	Token Token
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("macro aborted at token %d %s: %v", e.Index, e.Token, e.Err)
}

func (e *AbortError) Unwrap() []error { return []error{ErrMacroAbort, e.Err} }

// Interpreter replays tokens in order on a Keyboard.
type Interpreter struct {
	Keyboard Keyboard
	// Sleep blocks for a Pause token. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool
}

func NewInterpreter(kb Keyboard) *Interpreter {
	return &Interpreter{Keyboard: kb}
}

// Run executes tokens strictly in order. The first failing token aborts the
// rest.
func (in *Interpreter) Run(ctx context.Context, tokens []Token) error {
	sleep := in.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for i, tok := range tokens {
		var err error
		switch tok.Kind {
		case Literal:
			err = in.Keyboard.Type(tok.Text)
		case KeyPress:
			if err = in.Keyboard.Press(tok.Key); err == nil {
				err = in.Keyboard.Release(tok.Key)
			}
		case Pause:
			err = sleep(ctx, tok.Pause)
		default:
			err = fmt.Errorf("unknown token kind %v", tok.Kind)
		}
		if err != nil {
			return &AbortError{Index: i, Token: tok, Err: err}
		}
	}
	return nil
}

// Execute lexes and runs text. Only one macro runs at a time; a concurrent
// call fails with ErrBusy.
func (in *Interpreter) Execute(ctx context.Context, text string) error {
	if !in.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer in.running.Store(false)

	tokens := Lex(text)
	log := logutil.WithComponent("macro")
	log.Debug().Int("tokens", len(tokens)).Msg("typing macro")
	if err := in.Run(ctx, tokens); err != nil {
		log.Warn().Err(err).Msg("macro aborted")
		return err
	}
	return nil
}

// Running reports whether a macro is in flight.
func (in *Interpreter) Running() bool { return in.running.Load() }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
