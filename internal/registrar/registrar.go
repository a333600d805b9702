// Package registrar implements the registrar queue proxy (spec §4.5): the
// gateway only enqueues name operations and reports queue state, never
// mutating entries itself — the registrar's own external control loop
// owns that.
package registrar

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// OpType is the kind of name operation a queue entry represents.
type OpType string

// Operation kinds the registrar queue accepts (spec §6 names endpoints).
const (
	OpPreorder OpType = "preorder"
	OpRegister OpType = "register"
	OpRenew    OpType = "renew"
	OpTransfer OpType = "transfer"
	OpUpdate   OpType = "update"
	OpRevoke   OpType = "revoke"
)

// Status is a queue entry's lifecycle state, as reported by the external
// registrar control loop. The gateway only ever reads this value; it
// never transitions it.
type Status string

// Queue entry states.
const (
	StatusQueued    Status = "queued"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusError     Status = "error"
)

// Entry is one queued name operation.
type Entry struct {
	ID      string                 `json:"queue_id"`
	Type    OpType                 `json:"type"`
	Name    string                 `json:"name"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  Status                 `json:"status"`
	TxID    string                 `json:"tx_id,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// Queue is an in-process stand-in for the registrar's external queue.
// The real registrar control loop is a separate process; in this
// gateway, Queue models the append-only view spec §4.5 requires the
// gateway to respect ("never mutates the queue beyond enqueueing and
// reading"), backed by a slice behind a mutex rather than a durable
// store, since the gateway keeps no state of its own (spec §5).
type Queue struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewQueue constructs an empty registrar queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a new operation and returns the new entry, which
// carries its assigned queue id.
func (q *Queue) Enqueue(opType OpType, name string, params map[string]interface{}) Entry {
	entry := Entry{
		ID:     uuid.NewString(),
		Type:   opType,
		Name:   name,
		Params: params,
		Status: StatusQueued,
	}
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
	return entry
}

// Pending returns every entry not yet confirmed or errored, verbatim
// (spec §4.5 "it must report pending entries verbatim").
func (q *Queue) Pending() []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.Status == StatusQueued || e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out
}

// All returns every queue entry, verbatim.
func (q *Queue) All() []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Get returns a single entry by id.
func (q *Queue) Get(id string) (Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, e := range q.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, gatewayerr.NewENOENT("no such queue entry: "+id, nil)
}

// advance updates an entry's reported status; this is called only by the
// registrar control-loop adapter (ApplyControlLoopUpdate), never by HTTP
// handlers, preserving the append/read-only contract from the gateway's
// own perspective.
func (q *Queue) advance(id string, status Status, txID, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Status = status
			q.entries[i].TxID = txID
			q.entries[i].Message = message
			return
		}
	}
}

// ControlLoopUpdate is one state transition reported by the external
// registrar control loop.
type ControlLoopUpdate struct {
	ID      string
	Status  Status
	TxID    string
	Message string
}

// ApplyControlLoopUpdate records a status transition the external
// registrar reported. This is the only path that moves an entry out of
// "queued"/"pending"; it exists on the adapter boundary rather than on
// any HTTP-reachable method.
func (q *Queue) ApplyControlLoopUpdate(u ControlLoopUpdate) {
	q.advance(u.ID, u.Status, u.TxID, u.Message)
}
