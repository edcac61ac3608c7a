package modules

import (
	"sync"
	"sync/atomic"
	"time"

	"chordring/ring"
	"chordring/security"
)

const peerAgePruneAfter = 10 * time.Minute

// PeerAgePreference records the first-seen time of each peer id. It always
// accepts -- it is advisory, not a hard gate -- but IsMature lets a caller
// prefer mature peers when it has a choice. Entries older than 10 minutes
// are pruned on Tick.
type PeerAgePreference struct {
	security.BaseModule

	minAge time.Duration

	mu        sync.Mutex
	firstSeen map[ring.ID]time.Time

	newNodesSeen  atomic.Uint64
	youngRejected atomic.Uint64
	matureAccepts atomic.Uint64
}

// NewPeerAgePreference returns a module that considers a peer mature once
// minAge has elapsed since it was first seen.
func NewPeerAgePreference(minAge time.Duration) *PeerAgePreference {
	return &PeerAgePreference{
		minAge:    minAge,
		firstSeen: make(map[ring.ID]time.Time),
	}
}

func (m *PeerAgePreference) AllowNode(node ring.NodeInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	seenAt, ok := m.firstSeen[node.ID]
	if !ok {
		m.firstSeen[node.ID] = now
		m.newNodesSeen.Add(1)
		return true
	}

	if now.Sub(seenAt) < m.minAge {
		m.youngRejected.Add(1)
		return true
	}

	m.matureAccepts.Add(1)
	return true
}

// IsMature reports whether id has been known for at least minAge.
func (m *PeerAgePreference) IsMature(id ring.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	seenAt, ok := m.firstSeen[id]
	if !ok {
		return false
	}
	return time.Since(seenAt) >= m.minAge
}

// Age returns how long id has been known, or 0 if never seen.
func (m *PeerAgePreference) Age(id ring.ID) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	seenAt, ok := m.firstSeen[id]
	if !ok {
		return 0
	}
	return time.Since(seenAt)
}

func (m *PeerAgePreference) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, seenAt := range m.firstSeen {
		if now.Sub(seenAt) > peerAgePruneAfter {
			delete(m.firstSeen, id)
		}
	}
}

func (m *PeerAgePreference) Metrics() security.Metrics {
	m.mu.Lock()
	tracked := len(m.firstSeen)
	m.mu.Unlock()
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"new_nodes_seen": m.newNodesSeen.Load(),
			"young_rejected": m.youngRejected.Load(),
			"mature_accepts": m.matureAccepts.Load(),
		},
		Gauges: map[string]float64{
			"tracked_nodes": float64(tracked),
		},
	}
}

func (m *PeerAgePreference) ResetMetrics() {
	m.newNodesSeen.Store(0)
	m.youngRejected.Store(0)
	m.matureAccepts.Store(0)
	m.mu.Lock()
	m.firstSeen = make(map[ring.ID]time.Time)
	m.mu.Unlock()
}

func (m *PeerAgePreference) Name() string { return "peer_age_preference" }

var _ security.Module = (*PeerAgePreference)(nil)
