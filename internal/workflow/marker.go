package workflow

import (
	"sync"
	"time"
)

// LastAction is the transient confirmation shown after a vehicle action.
type LastAction struct {
	Action Action    `json:"action"`
	At     time.Time `json:"at"`
}

// Marker keeps the most recent vehicle action for a short window. It is
// dismissed on read once the window passes; nothing runs in the background.
type Marker struct {
	mu     sync.Mutex
	last   *LastAction
	window time.Duration
	now    func() time.Time
}

func NewMarker(window time.Duration, now func() time.Time) *Marker {
	if now == nil {
		now = time.Now
	}
	return &Marker{window: window, now: now}
}

func (m *Marker) Record(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &LastAction{Action: a, At: m.now()}
}

// Current returns the marker if it is still inside the window.
func (m *Marker) Current() (LastAction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return LastAction{}, false
	}
	if m.now().Sub(m.last.At) >= m.window {
		m.last = nil
		return LastAction{}, false
	}
	return *m.last, true
}
