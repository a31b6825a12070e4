package workflow

import (
	"sync"

	"fleet-rental-backend/internal/command"
)

type evidenceKey struct {
	flow  command.Flow
	carID int64
}

// Evidence remembers which cars have their after photos uploaded. A
// completion is only sent once the matching set is in.
type Evidence struct {
	mu   sync.Mutex
	seen map[evidenceKey]bool
}

func NewEvidence() *Evidence {
	return &Evidence{seen: make(map[evidenceKey]bool)}
}

func (e *Evidence) Record(flow command.Flow, carID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[evidenceKey{flow, carID}] = true
}

func (e *Evidence) Has(flow command.Flow, carID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen[evidenceKey{flow, carID}]
}

// Forget drops the record once the flow has been completed.
func (e *Evidence) Forget(flow command.Flow, carID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seen, evidenceKey{flow, carID})
}
