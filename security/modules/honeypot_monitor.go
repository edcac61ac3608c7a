package modules

import (
	"fmt"
	"log"
	"sync/atomic"

	"chordring/security"
)

// GetFn and PutFn are the node's own get/put, supplied as capability
// closures at construction so this module never holds a reference to the
// whole node.
type GetFn func(key string) (string, bool, error)
type PutFn func(key, value string) (bool, error)

type sentinel struct {
	key   string
	value string
}

// HoneypotMonitor places a set of sentinel key/value pairs through the
// node's own put, then on every Tick re-reads them through the node's own
// get, counting matches, tampering, and absences. A tampered sentinel means
// something rewrote data this node is supposed to own.
type HoneypotMonitor struct {
	security.BaseModule

	get GetFn
	put PutFn

	sentinels []sentinel

	placed   atomic.Uint64
	checks   atomic.Uint64
	success  atomic.Uint64
	failure  atomic.Uint64
	tampered atomic.Uint64
}

// NewHoneypotMonitor builds numSentinels sentinel pairs. Call PlaceSentinels
// once the node is accepting local puts, before the first Tick.
func NewHoneypotMonitor(get GetFn, put PutFn, numSentinels int) *HoneypotMonitor {
	m := &HoneypotMonitor{get: get, put: put}
	for i := 0; i < numSentinels; i++ {
		m.sentinels = append(m.sentinels, sentinel{
			key:   fmt.Sprintf("__honeypot_%d", i),
			value: fmt.Sprintf("sentinel_value_%d", i),
		})
	}
	return m
}

// PlaceSentinels writes every sentinel pair through the node's put path.
func (m *HoneypotMonitor) PlaceSentinels() {
	for _, s := range m.sentinels {
		ok, err := m.put(s.key, s.value)
		if ok && err == nil {
			m.placed.Add(1)
		} else {
			log.Printf("[honeypot_monitor] failed to place sentinel %s: %v", s.key, err)
		}
	}
}

func (m *HoneypotMonitor) Tick() {
	for _, s := range m.sentinels {
		m.checks.Add(1)
		value, found, err := m.get(s.key)
		switch {
		case err == nil && found && value == s.value:
			m.success.Add(1)
		case err == nil && found:
			m.tampered.Add(1)
			log.Printf("[honeypot_monitor] tampered: key=%s want=%s got=%s", s.key, s.value, value)
		default:
			m.failure.Add(1)
		}
	}
}

func (m *HoneypotMonitor) Metrics() security.Metrics {
	checks := m.checks.Load()
	successes := m.success.Load()
	ratio := 1.0
	if checks > 0 {
		ratio = float64(successes) / float64(checks)
	}
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"placed":    m.placed.Load(),
			"checks":    checks,
			"successes": successes,
			"failures":  m.failure.Load(),
			"tampered":  m.tampered.Load(),
		},
		Gauges: map[string]float64{
			"integrity_ratio": ratio,
		},
	}
}

func (m *HoneypotMonitor) ResetMetrics() {
	m.placed.Store(0)
	m.checks.Store(0)
	m.success.Store(0)
	m.failure.Store(0)
	m.tampered.Store(0)
}

func (m *HoneypotMonitor) Name() string { return "honeypot_monitor" }

var _ security.Module = (*HoneypotMonitor)(nil)
