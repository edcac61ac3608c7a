// Package security implements the pluggable policy pipeline described in
// spec.md section 4.7: an ordered sequence of modules, each exposing five
// hooks, consulted for peer admission, incoming messages, and lookup
// validation. Any module denying a hook short-circuits the rest.
package security

import (
	"chordring/ring"
	"chordring/wire"
)

// Metrics is the counters/gauges a module reports for observability
// (admin streaming, the shell's state command).
type Metrics struct {
	ModuleName string
	Counters   map[string]uint64
	Gauges     map[string]float64
}

// Module is a single policy unit. Any hook a module doesn't care about can
// be left at its BaseModule default, which always allows.
type Module interface {
	AllowNode(node ring.NodeInfo) bool
	AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool
	ValidateLookup(target ring.ID, result ring.NodeInfo) bool
	Tick()
	Metrics() Metrics
	ResetMetrics()
	Name() string
}

// BaseModule gives every hook a permissive no-op default; concrete modules
// embed it and override only the hooks they care about, mirroring
// spec.md's design note that an unimplemented hook is a no-op "allow".
type BaseModule struct{}

func (BaseModule) AllowNode(ring.NodeInfo) bool                 { return true }
func (BaseModule) AllowMessage(ring.NodeAddress, wire.Tag) bool { return true }
func (BaseModule) ValidateLookup(ring.ID, ring.NodeInfo) bool   { return true }
func (BaseModule) Tick()                                        {}
func (BaseModule) ResetMetrics()                                {}

// Policy is an ordered sequence of Modules. Every hook loops over the
// modules in order and short-circuits on the first deny.
type Policy struct {
	modules []Module
}

// NewPolicy returns an empty pipeline; modules are added with Add.
func NewPolicy() *Policy {
	return &Policy{}
}

// Add appends module to the end of the pipeline.
func (p *Policy) Add(module Module) {
	p.modules = append(p.modules, module)
}

// Empty reports whether the pipeline has no modules.
func (p *Policy) Empty() bool {
	return len(p.modules) == 0
}

// AllowNode runs every module's AllowNode hook in order, stopping at the
// first deny.
func (p *Policy) AllowNode(node ring.NodeInfo) bool {
	for _, m := range p.modules {
		if !m.AllowNode(node) {
			return false
		}
	}
	return true
}

// AllowMessage runs every module's AllowMessage hook in order, stopping at
// the first deny. Satisfies transport.SecurityGate.
func (p *Policy) AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool {
	for _, m := range p.modules {
		if !m.AllowMessage(sender, tag) {
			return false
		}
	}
	return true
}

// ValidateLookup runs every module's ValidateLookup hook in order, stopping
// at the first deny.
func (p *Policy) ValidateLookup(target ring.ID, result ring.NodeInfo) bool {
	for _, m := range p.modules {
		if !m.ValidateLookup(target, result) {
			return false
		}
	}
	return true
}

// Tick runs every module's periodic housekeeping hook.
func (p *Policy) Tick() {
	for _, m := range p.modules {
		m.Tick()
	}
}

// GetAllMetrics collects a Metrics snapshot from every module, in pipeline
// order.
func (p *Policy) GetAllMetrics() []Metrics {
	out := make([]Metrics, 0, len(p.modules))
	for _, m := range p.modules {
		out = append(out, m.Metrics())
	}
	return out
}

// ResetAllMetrics resets every module's counters.
func (p *Policy) ResetAllMetrics() {
	for _, m := range p.modules {
		m.ResetMetrics()
	}
}
