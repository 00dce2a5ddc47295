// Package signals delivers node events to local subscribers.
package signals

import (
	"context"
	"sync"
	"sync/atomic"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"
)

const DefaultBuffer = 64

// Emitter is what the delivery coordinator notifies.
type Emitter interface {
	Emit(ctx context.Context, sig models.Signal) error
}

// Envelope is the wire shape subscribers receive: an event name plus payload.
type Envelope struct {
	Name    string        `json:"name"`
	Payload models.Signal `json:"payload"`
}

func Wrap(sig models.Signal) Envelope {
	return Envelope{Name: sig.Name(), Payload: sig}
}

// Hub fans signals out to subscribers. Emit never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
	emitted atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer}
}

type Subscription struct {
	id    uint64
	hub   *Hub
	ch    chan Envelope
	kinds map[models.SignalKind]bool
	once  sync.Once
}

// C yields envelopes until the subscription or hub is closed.
func (s *Subscription) C() <-chan Envelope { return s.ch }

func (s *Subscription) wants(k models.SignalKind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if _, ok := s.hub.subs[s.id]; ok {
			delete(s.hub.subs, s.id)
			close(s.ch)
		}
		s.hub.mu.Unlock()
	})
}

// Subscribe registers a subscriber for the given kinds, or all kinds when none are given.
func (h *Hub) Subscribe(kinds ...models.SignalKind) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscription{id: h.nextID, hub: h, ch: make(chan Envelope, h.buffer)}
	if len(kinds) > 0 {
		s.kinds = make(map[models.SignalKind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s.id] = s
	return s
}

func (h *Hub) Emit(ctx context.Context, sig models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := Wrap(sig)
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.emitted.Add(1)
	for _, s := range h.subs {
		if !s.wants(sig.Kind) {
			continue
		}
		select {
		case s.ch <- env:
		default:
			h.dropped.Add(1)
			logger.Warn("signal_dropped", "name", env.Name, "subscriber", s.id)
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Emitted() uint64 { return h.emitted.Load() }

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Discard is an Emitter that drops everything.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, models.Signal) error { return nil }
