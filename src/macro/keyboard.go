package macro

import (
	"fmt"
	"sync"
)

// Recorder is a Keyboard that records every action, for tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []string
	// FailOn makes the matching action fail, e.g. "press:up" or "type:x".
	FailOn string
}

func (r *Recorder) record(ev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn != "" && ev == r.FailOn {
		return fmt.Errorf("keyboard rejected %s", ev)
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Type(text string) error { return r.record("type:" + text) }
func (r *Recorder) Press(k Key) error      { return r.record("press:" + string(k)) }
func (r *Recorder) Release(k Key) error    { return r.record("release:" + string(k)) }

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}
