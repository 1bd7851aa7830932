package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/monitor"
)

// Registry owns the live overlay windows, at most one per monitor index.
// The lock is held for map access only, never while talking to a backend.
type Registry struct {
	mu      sync.Mutex
	windows map[uint32]Window
}

func NewRegistry() *Registry {
	return &Registry{windows: make(map[uint32]Window)}
}

// Put stores w under its monitor index. It fails if the slot is taken.
func (r *Registry) Put(w Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.windows == nil {
		r.windows = make(map[uint32]Window)
	}
	if prev, ok := r.windows[w.Monitor()]; ok {
		return fmt.Errorf("monitor %d already has overlay %s", w.Monitor(), prev.Label())
	}
	r.windows[w.Monitor()] = w
	return nil
}

func (r *Registry) Get(index uint32) (Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[index]
	return w, ok
}

func (r *Registry) Remove(index uint32) (Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[index]
	delete(r.windows, index)
	return w, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// Labels returns the labels of live windows ordered by monitor index.
func (r *Registry) Labels() []string {
	r.mu.Lock()
	idx := make([]uint32, 0, len(r.windows))
	for i := range r.windows {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	labels := make([]string, 0, len(idx))
	for _, i := range idx {
		labels = append(labels, r.windows[i].Label())
	}
	r.mu.Unlock()
	return labels
}

// DestroyAll empties the registry and asks every window to destroy itself.
// It returns the destroyed signals of those windows. Calling it on an empty
// registry is a no-op.
func (r *Registry) DestroyAll() []<-chan struct{} {
	r.mu.Lock()
	windows := r.windows
	r.windows = make(map[uint32]Window)
	r.mu.Unlock()

	log := logutil.WithComponent("overlay")
	done := make([]<-chan struct{}, 0, len(windows))
	for _, w := range windows {
		if err := w.Destroy(); err != nil {
			log.Warn().Err(err).Str("label", w.Label()).Msg("failed to destroy overlay")
		}
		done = append(done, w.Destroyed())
	}
	if len(windows) > 0 {
		log.Debug().Int("count", len(windows)).Msg("overlays destroyed")
	}
	return done
}

// Check verifies the resting-state invariant: the registry is empty, or it
// holds exactly one window for every enumerated monitor and nothing else.
func (r *Registry) Check(monitors []monitor.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.windows) == 0 {
		return nil
	}
	if len(r.windows) != len(monitors) {
		return fmt.Errorf("partial overlay set: %d windows for %d monitors", len(r.windows), len(monitors))
	}
	for _, m := range monitors {
		if _, ok := r.windows[m.Index]; !ok {
			return fmt.Errorf("partial overlay set: monitor %d has no overlay", m.Index)
		}
	}
	return nil
}
