// Package fingertable implements the fixed-size lookup accelerator each
// Chord node keeps: M cached successor pointers at exponentially spaced
// offsets, used to route a lookup in O(log N) hops instead of walking the
// ring one successor at a time.
package fingertable

import (
	"sync"

	"chordring/ring"
)

// Table is a node's finger table, internally serialized by its own lock so
// callers never need to hold the node's ring lock to read or mutate it.
type Table struct {
	ownerID ring.ID
	mu      sync.Mutex
	fingers [ring.M]*ring.NodeInfo
}

// New returns an empty finger table for the node identified by ownerID.
func New(ownerID ring.ID) *Table {
	return &Table{ownerID: ownerID}
}

// Get returns finger slot i, or nil if unset or i is out of range.
func (t *Table) Get(i int) *ring.NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= ring.M {
		return nil
	}
	return t.fingers[i]
}

// Set assigns node to finger slot i.
func (t *Table) Set(i int, node ring.NodeInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= ring.M {
		return
	}
	n := node
	t.fingers[i] = &n
}

// Clear empties finger slot i.
func (t *Table) Clear(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= ring.M {
		return
	}
	t.fingers[i] = nil
}

// Start is the pure function of the owner id that slot i answers for:
// (owner + 2^i) mod 2^M.
func (t *Table) Start(i int) ring.ID {
	if i < 0 || i >= ring.M {
		return t.ownerID
	}
	return ring.Start(t.ownerID, i)
}

// ClosestPrecedingNode scans slots from M-1 down to 0 and returns the first
// entry whose id lies strictly between the owner and target on the ring.
func (t *Table) ClosestPrecedingNode(target ring.ID) *ring.NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := ring.M - 1; i >= 0; i-- {
		f := t.fingers[i]
		if f != nil && ring.InOpen(t.ownerID, f.ID, target) {
			n := *f
			return &n
		}
	}
	return nil
}

// InitializeAll sets every slot to node, as a fresh joiner does before its
// first FixFingers pass has had a chance to run.
func (t *Table) InitializeAll(node ring.NodeInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.fingers {
		n := node
		t.fingers[i] = &n
	}
}

// Snapshot returns a copy of every populated slot, indexed by slot number,
// for diagnostics (cmd fingers, admin streaming).
func (t *Table) Snapshot() [ring.M]*ring.NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [ring.M]*ring.NodeInfo
	for i, f := range t.fingers {
		if f != nil {
			n := *f
			out[i] = &n
		}
	}
	return out
}
