package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/messages"
)

// ChannelInfo holds the channel of one registered listener.
type ChannelInfo struct {
	Channel chan messages.MessageEnvelope
	ID      string
	Active  bool
}

// Router fans events out to registered listeners.
type Router struct {
	channels    map[string]*ChannelInfo
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logMessages bool
	log         *zerolog.Logger
	// SendTimeout bounds a blocked delivery to one listener.
	SendTimeout time.Duration
}

func NewRouter() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		channels:    make(map[string]*ChannelInfo),
		ctx:         ctx,
		cancel:      cancel,
		logMessages: true,
		log:         logutil.WithComponent("router"),
		SendTimeout: time.Second,
	}
}

// Register adds a listener and returns its receive channel.
func (r *Router) Register(id string, bufferSize int) (<-chan messages.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[id]; exists {
		return nil, fmt.Errorf("listener %s already registered", id)
	}

	ch := make(chan messages.MessageEnvelope, bufferSize)
	r.channels[id] = &ChannelInfo{Channel: ch, ID: id, Active: true}

	r.log.Debug().Str("listener", id).Int("buffer", bufferSize).Msg("registered")
	return ch, nil
}

// Unregister removes a listener and closes its channel.
func (r *Router) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.channels[id]; exists {
		info.Active = false
		close(info.Channel)
		delete(r.channels, id)
		r.log.Debug().Str("listener", id).Msg("unregistered")
	}
}

// Send delivers an envelope to one listener, or to all for To == "*".
func (r *Router) Send(envelope messages.MessageEnvelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		r.log.Debug().Str("from", envelope.From).Str("to", envelope.To).Str("type", envelope.Message.Type()).Msg("send")
	}

	if envelope.To == messages.Broadcast {
		return r.broadcastMessage(envelope)
	}

	info, exists := r.channels[envelope.To]
	if !exists {
		return fmt.Errorf("listener %s not found", envelope.To)
	}
	if !info.Active {
		return fmt.Errorf("listener %s is not active", envelope.To)
	}

	select {
	case info.Channel <- envelope:
		return nil
	case <-time.After(r.SendTimeout):
		return fmt.Errorf("timeout sending message to listener %s", envelope.To)
	case <-r.ctx.Done():
		return fmt.Errorf("router is shutting down")
	}
}

// Broadcast sends msg to every registered listener except the sender.
func (r *Router) Broadcast(from string, msg messages.Message) error {
	return r.Send(messages.MessageEnvelope{From: from, To: messages.Broadcast, Message: msg})
}

func (r *Router) broadcastMessage(envelope messages.MessageEnvelope) error {
	var failed []string

	for id, info := range r.channels {
		if !info.Active || id == envelope.From {
			continue
		}

		envCopy := messages.MessageEnvelope{From: envelope.From, To: id, Message: envelope.Message}

		select {
		case info.Channel <- envCopy:
		case <-time.After(r.SendTimeout):
			failed = append(failed, id)
		case <-r.ctx.Done():
			return fmt.Errorf("router is shutting down")
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		r.log.Warn().Strs("listeners", failed).Str("type", envelope.Message.Type()).Msg("broadcast timed out")
		return fmt.Errorf("broadcast %s timed out for %v", envelope.Message.Type(), failed)
	}
	return nil
}

// Listeners returns the active listener IDs, sorted.
func (r *Router) Listeners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []string
	for id, info := range r.channels {
		if info.Active {
			active = append(active, id)
		}
	}
	sort.Strings(active)
	return active
}

func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes every listener channel.
func (r *Router) Shutdown() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, info := range r.channels {
		if info.Active {
			info.Active = false
			close(info.Channel)
		}
	}
	r.channels = make(map[string]*ChannelInfo)
	r.log.Debug().Msg("shutdown complete")
}

// WaitForMessage waits for a message of the given type, dropping others.
func WaitForMessage(ch <-chan messages.MessageEnvelope, messageType string, timeout time.Duration) (messages.MessageEnvelope, error) {
	deadline := time.After(timeout)

	for {
		select {
		case envelope, ok := <-ch:
			if !ok {
				return messages.MessageEnvelope{}, fmt.Errorf("channel closed waiting for %s", messageType)
			}
			if envelope.Message.Type() == messageType {
				return envelope, nil
			}
		case <-deadline:
			return messages.MessageEnvelope{}, fmt.Errorf("timeout waiting for message type %s", messageType)
		}
	}
}

// DrainChannel empties ch without blocking and returns the count.
func DrainChannel(ch <-chan messages.MessageEnvelope) int {
	count := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}
