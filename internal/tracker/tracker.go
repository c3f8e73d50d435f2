package tracker

import (
	"strings"
	"sync"
)

// Tracker accumulates the collaborator operations invoked during one request.
// It is scoped to a single request and passed explicitly through the workflow
// execution; it is never shared across requests.
type Tracker struct {
	mu  sync.Mutex
	ops []string
}

func New() *Tracker {
	return &Tracker{}
}

// Record appends one invoked operation name.
func (t *Tracker) Record(op string) {
	op = strings.TrimSpace(op)
	if op == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, op)
}

// Drain returns all recorded operations in invocation order and resets the
// tracker. Safe to call on error paths; a drained tracker is empty.
func (t *Tracker) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.ops
	t.ops = nil
	return out
}

// Joined formats operations as the comma-joined form stored on turns.
func Joined(ops []string) string {
	return strings.Join(ops, ",")
}
