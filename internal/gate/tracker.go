package gate

import (
	"sync"

	"github.com/halvden/opsgate/internal/intent"
)

// Tracker wraps a Gate with per-conversation pending state so a follow-up
// reply can resume a clarify or confirm dialogue instead of restarting it.
//
// Entries for different conversations are independent; updates to one
// conversation are atomic under the tracker lock.
type Tracker struct {
	gate    *Gate
	mu      sync.Mutex
	pending map[string]Result
}

// NewTracker builds a tracker over the given gate.
func NewTracker(g *Gate) *Tracker {
	return &Tracker{
		gate:    g,
		pending: make(map[string]Result),
	}
}

// Gate returns the wrapped gate.
func (t *Tracker) Gate() *Gate { return t.gate }

// Evaluate runs the gate and records the result under the conversation id
// when it awaits user input (clarify or confirm). Resolved decisions leave
// no pending state behind.
func (t *Tracker) Evaluate(in *intent.Intent, conversationID string) Result {
	result := t.gate.Evaluate(in)

	if conversationID != "" {
		t.mu.Lock()
		t.store(conversationID, result)
		t.mu.Unlock()
	}

	return result
}

// ProcessFollowup advances a pending conversation with the user's reply.
//
// Returns false when there is nothing pending, or when a clarify is pending
// but no re-extracted intent was supplied. A confirm resolves through
// ProcessConfirmation and is removed once it reaches proceed or reject; a
// clarify with a new intent re-runs full evaluation under the same id.
func (t *Tracker) ProcessFollowup(conversationID, reply string, newIntent *intent.Intent) (Result, bool) {
	// The lock spans the read, the resolution and the write-back so two
	// racing replies for the same conversation cannot resurrect state the
	// other one already resolved.
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, ok := t.pending[conversationID]
	if !ok {
		return Result{}, false
	}

	if previous.Decision == DecisionConfirm {
		result := t.gate.ProcessConfirmation(previous, reply)
		t.store(conversationID, result)
		return result, true
	}

	// Clarify: only a re-extracted intent can move the conversation forward.
	if newIntent == nil {
		return Result{}, false
	}
	result := t.gate.Evaluate(newIntent)
	t.store(conversationID, result)
	return result, true
}

// store records or clears pending state for a conversation. Callers must
// hold t.mu.
func (t *Tracker) store(conversationID string, result Result) {
	switch result.Decision {
	case DecisionClarify, DecisionConfirm:
		t.pending[conversationID] = result
	default:
		delete(t.pending, conversationID)
	}
}

// Pending returns the pending result for a conversation, if any.
func (t *Tracker) Pending(conversationID string) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	result, ok := t.pending[conversationID]
	return result, ok
}

// ClearPending removes any pending state for a conversation.
func (t *Tracker) ClearPending(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, conversationID)
}
