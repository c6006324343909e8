// Package pool implements the pending-message holding area a node's
// turn.Manager drains when it produces blocks.
package pool

import (
	"sync"
	"time"

	"github.com/pot-protocol/pot/message"
)

type entry struct {
	msg      message.Message
	included bool
	addedAt  time.Time
}

// Pool holds messages a node has seen, keyed by message ID, each flagged
// once it is observed committed into a block. It is a plain data structure, not an
// actor: turn.Manager is the only writer and is itself single-threaded,
// but Pool's own mutex keeps read paths (e.g. node.Node.GetState) safe to
// call from any goroutine. Pool runs no background goroutine of its
// own — turn.Manager drives Cleanup from its own cleanup tick, so there
// is exactly one cleanup cadence per node, not two.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// Add inserts msg if its ID is not already tracked. Idempotent:
// re-adding a known message ID is a no-op.
func (p *Pool) Add(msg message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[msg.ID]; ok {
		return
	}
	p.entries[msg.ID] = &entry{msg: msg, addedAt: time.Now()}
}

// Has reports whether id is currently tracked, committed or not.
func (p *Pool) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id]
	return ok
}

// Get returns the tracked message for id, if any.
func (p *Pool) Get(id string) (message.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return message.Message{}, false
	}
	return e.msg, true
}

// MarkIncluded flags id as committed into a block. Included messages are
// retained (not deleted) so Has/Get keep answering correctly for
// duplicate-detection purposes, but they are excluded from Pending.
func (p *Pool) MarkIncluded(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		e.included = true
	}
}

// Pending returns every tracked message not yet marked included, the
// set a leader publishes at turn_timeout.
func (p *Pool) Pending() []message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []message.Message
	for _, e := range p.entries {
		if !e.included {
			out = append(out, e.msg)
		}
	}
	return out
}

// MessagesInTimeRange returns every tracked message with fromMs <=
// Timestamp <= toMs, included or not. Used by turn.Manager's recovery
// scan to find messages a previous leader silently dropped.
func (p *Pool) MessagesInTimeRange(fromMs, toMs int64) []message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []message.Message
	for _, e := range p.entries {
		if e.msg.Timestamp >= fromMs && e.msg.Timestamp <= toMs {
			out = append(out, e.msg)
		}
	}
	return out
}

// FindMissing returns every message in candidates whose ID is not present
// in committedIDs, i.e. the messages a new leader must recover.
func FindMissing(candidates []message.Message, committedIDs []string) []message.Message {
	committed := make(map[string]struct{}, len(committedIDs))
	for _, id := range committedIDs {
		committed[id] = struct{}{}
	}
	var out []message.Message
	for _, m := range candidates {
		if _, ok := committed[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// PendingCount returns the number of not-yet-included tracked messages.
func (p *Pool) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if !e.included {
			n++
		}
	}
	return n
}

// Cleanup removes entries older than retention, regardless of whether
// they were ever marked included, bounding the pool's memory growth
// over a long-lived node. A pending entry older than retention is
// evicted the same as an included one: retention is a hard age limit,
// not a lifecycle gate on inclusion.
func (p *Pool) Cleanup(retention time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	for id, e := range p.entries {
		if e.addedAt.Before(cutoff) {
			delete(p.entries, id)
		}
	}
}
