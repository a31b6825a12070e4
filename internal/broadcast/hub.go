// Package broadcast fans out coarse "something changed" signals to the SSE
// stream, the push worker pool and the response cache.
package broadcast

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened.
type Kind string

const (
	KindDeliveryCompleted Kind = "delivery_completed"
	KindCheckCompleted    Kind = "check_completed"
	KindStatusChanged     Kind = "status_changed"
	KindRefreshed         Kind = "refreshed"
)

// Signal is one broadcast. Version is assigned by the receiving hub and only
// ever grows.
type Signal struct {
	Kind    Kind      `json:"kind"`
	CarID   int64     `json:"car_id,omitempty"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
	Origin  string    `json:"origin"`
}

// Hub is an in-process pub/sub. Publishing never blocks: a subscriber whose
// buffer is full misses the signal.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Signal
	nextID  int
	buffer  int
	version atomic.Uint64
	origin  string
	now     func() time.Time
}

// NewHub creates a hub whose subscribers get channels of the given capacity.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int]chan Signal),
		buffer: buffer,
		origin: uuid.NewString(),
		now:    time.Now,
	}
}

// Origin identifies this process in relayed signals.
func (h *Hub) Origin() string { return h.origin }

// Version returns the version of the last delivered signal.
func (h *Hub) Version() uint64 { return h.version.Load() }

// Subscribe registers a listener. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan Signal, func()) {
	ch := make(chan Signal, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish emits a locally originated signal.
func (h *Hub) Publish(kind Kind, carID int64) Signal {
	return h.Deliver(Signal{Kind: kind, CarID: carID, At: h.now().UTC(), Origin: h.origin})
}

// Deliver fans out a signal, stamping it with the next local version.
func (h *Hub) Deliver(sig Signal) Signal {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sig.Version = h.version.Add(1)
	for id, ch := range h.subs {
		select {
		case ch <- sig:
		default:
			log.Printf("broadcast: subscriber %d is slow, dropping %s v%d", id, sig.Kind, sig.Version)
		}
	}
	return sig
}
