// Package modules holds the reference security modules from spec.md
// section 4.7, each independently toggleable via node.Config.
package modules

import (
	"log"
	"sync/atomic"

	"chordring/ring"
	"chordring/security"
)

// IDVerification denies AllowNode/ValidateLookup whenever the claimed node
// id doesn't match hash(address) -- the only defense-in-depth check that
// catches a peer lying about its own identity.
type IDVerification struct {
	security.BaseModule

	accepted         atomic.Uint64
	rejected         atomic.Uint64
	lookupRejections atomic.Uint64
}

func NewIDVerification() *IDVerification {
	return &IDVerification{}
}

func (m *IDVerification) AllowNode(node ring.NodeInfo) bool {
	expected := ring.HashNode(node.Address.String())
	if node.ID != expected {
		m.rejected.Add(1)
		log.Printf("[id_verification] rejected node %d at %s (expected id %d)", node.ID, node.Address, expected)
		return false
	}
	m.accepted.Add(1)
	return true
}

func (m *IDVerification) ValidateLookup(target ring.ID, result ring.NodeInfo) bool {
	expected := ring.HashNode(result.Address.String())
	if result.ID != expected {
		m.lookupRejections.Add(1)
		return false
	}
	return true
}

func (m *IDVerification) Metrics() security.Metrics {
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"accepted":          m.accepted.Load(),
			"rejected":          m.rejected.Load(),
			"lookup_rejections": m.lookupRejections.Load(),
		},
	}
}

func (m *IDVerification) ResetMetrics() {
	m.accepted.Store(0)
	m.rejected.Store(0)
	m.lookupRejections.Store(0)
}

func (m *IDVerification) Name() string { return "id_verification" }

var _ security.Module = (*IDVerification)(nil)
