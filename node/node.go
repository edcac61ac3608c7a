// Package node implements the Chord node runtime described in spec.md
// section 4.8: ring construction (create/join/leave/shutdown), lookup and
// routing (find_successor, closest_preceding_node, notify), the local
// key/value surface (put/get), and the security policy pipeline wiring
// that gates every one of them.
package node

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"chordring/fingertable"
	"chordring/ring"
	"chordring/security"
	"chordring/security/modules"
	"chordring/store"
	"chordring/transport"
	"chordring/wire"
)

// Node is a single Chord peer: its own identity, a ring position shared
// with the rest of the cluster via predecessor/successor pointers, a
// finger table for O(log N) routing, a local key/value store, the
// security policy pipeline, and the TCP server dispatching inbound RPCs
// to it.
type Node struct {
	self   ring.NodeInfo
	config Config

	ringMu      sync.Mutex
	predecessor *ring.NodeInfo
	successor   ring.NodeInfo
	nextFinger  int

	fingers  *fingertable.Table
	store    *store.Store
	security *security.Policy
	server   *transport.Server

	honeypot  *modules.HoneypotMonitor
	subnetDiv *modules.SubnetDiversity

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Node bound to config.IP:config.Port. It does not yet
// listen or participate in a ring; call Create or Join next.
func New(config Config) *Node {
	address := ring.NodeAddress{Host: config.IP, Port: config.Port}
	self := ring.NewNodeInfo(address)

	n := &Node{
		self:    self,
		config:  config,
		fingers: fingertable.New(self.ID),
		store:   store.New(),
		done:    make(chan struct{}),
	}

	n.security = n.buildSecurityPolicy()
	n.server = transport.NewServer(config.Port, n, n.security)
	return n
}

// Self returns this node's own id/address.
func (n *Node) Self() ring.NodeInfo {
	return n.self
}

func (n *Node) buildSecurityPolicy() *security.Policy {
	policy := security.NewPolicy()

	if n.config.EnableIDVerification {
		policy.Add(modules.NewIDVerification())
	}
	if n.config.EnableSubnetDiversity {
		n.subnetDiv = modules.NewSubnetDiversity(n.config.SubnetMaxPerSubnet)
		policy.Add(n.subnetDiv)
	}
	if n.config.EnableRateLimiting {
		policy.Add(modules.NewRateLimiter(n.config.RateLimitMaxTokens, n.config.RateLimitRefillRate))
	}
	if n.config.EnablePeerAge {
		policy.Add(modules.NewPeerAgePreference(n.config.PeerAgeMinAge))
	}
	if n.config.EnableLookupValidation {
		policy.Add(modules.NewLookupValidator(n.AlternativeNodes, n.config.LookupValidationChecks, n.config.RPCTimeout))
	}
	if n.config.EnableHoneypot {
		n.honeypot = modules.NewHoneypotMonitor(n.localGet, n.localPut, n.config.HoneypotCount)
		policy.Add(n.honeypot)
	}

	return policy
}

func (n *Node) localGet(key string) (string, bool, error) {
	v, ok := n.store.Get(key)
	return v, ok, nil
}

func (n *Node) localPut(key, value string) (bool, error) {
	n.store.Put(key, value)
	return true, nil
}

// Create starts a brand new ring containing only this node.
func (n *Node) Create() error {
	n.ringMu.Lock()
	n.predecessor = nil
	n.successor = n.self
	n.ringMu.Unlock()

	n.fingers.InitializeAll(n.self)

	if err := n.server.Start(); err != nil {
		return err
	}
	n.startMaintenance()

	if n.honeypot != nil {
		n.honeypot.PlaceSentinels()
	}
	n.running.Store(true)
	log.Printf("node %d: created ring at %s", n.self.ID, n.self.Address)
	return nil
}

// Join contacts seed, asks it who owns this node's id, and attaches to
// the ring at that point. It also makes a best-effort pull of any keys
// the new node is about to become responsible for, since seed's
// successor-side predecessor pointer hasn't been overwritten yet.
func (n *Node) Join(seed ring.NodeAddress) error {
	if err := n.server.Start(); err != nil {
		return err
	}

	successor, err := transport.FindSuccessorRPC(seed, n.self.ID, n.config.RPCTimeout)
	if err != nil {
		n.server.Stop()
		return fmt.Errorf("node %d: join via %s: %w", n.self.ID, seed, err)
	}
	if successor == nil {
		n.server.Stop()
		return fmt.Errorf("node %d: join via %s: seed returned no successor", n.self.ID, seed)
	}
	if !n.security.AllowNode(*successor) {
		n.server.Stop()
		return fmt.Errorf("node %d: join via %s: security policy rejected successor %d", n.self.ID, seed, successor.ID)
	}

	n.ringMu.Lock()
	n.predecessor = nil
	n.successor = *successor
	n.ringMu.Unlock()

	n.fingers.InitializeAll(*successor)
	n.pullInheritedKeys(*successor)

	n.startMaintenance()

	if n.honeypot != nil {
		n.honeypot.PlaceSentinels()
	}
	n.running.Store(true)
	log.Printf("node %d: joined ring via %s, successor=%d", n.self.ID, seed, successor.ID)
	return nil
}

// pullInheritedKeys asks successor for its current predecessor (still the
// node-before-self, since self hasn't notified it yet) and pulls every key
// in that gap, so self doesn't serve empty reads for keys it now owns
// until the next stabilize round happens to move them. The pull is
// destructive: successor relinquishes the range as it reports it, so it
// doesn't keep serving keys self now owns.
func (n *Node) pullInheritedKeys(successor ring.NodeInfo) {
	start := successor.ID
	if oldPred, err := transport.GetPredecessorRPC(successor.Address, n.config.RPCTimeout); err == nil && oldPred != nil {
		start = oldPred.ID
	}

	items, err := transport.TransferKeysRPC(successor.Address, start, n.self.ID, true, n.config.RPCTimeout)
	if err != nil {
		log.Printf("node %d: join key pull from %d failed: %v", n.self.ID, successor.ID, err)
		return
	}
	converted := make([]store.KV, 0, len(items))
	for _, kv := range items {
		converted = append(converted, store.KV{Key: kv.Key, Value: kv.Value})
	}
	n.store.PutAll(converted)
}

// Leave hands every locally-held key to the current successor one put at a
// time, then shuts down. If this node is alone on the ring (successor ==
// self), there is nothing to hand off.
func (n *Node) Leave() error {
	n.ringMu.Lock()
	successor := n.successor
	n.ringMu.Unlock()

	if successor.ID != n.self.ID {
		for _, key := range n.store.Keys() {
			value, ok := n.store.Get(key)
			if !ok {
				continue
			}
			if _, err := transport.PutRPC(successor.Address, key, value, n.config.RPCTimeout); err != nil {
				log.Printf("node %d: leave: failed to hand off key %q to %d: %v", n.self.ID, key, successor.ID, err)
			}
		}
	}

	n.Shutdown()
	return nil
}

// Shutdown stops the maintenance loops and the TCP server. Safe to call
// more than once.
func (n *Node) Shutdown() {
	if !n.running.CompareAndSwap(true, false) {
		return
	}
	close(n.done)
	n.wg.Wait()
	n.server.Stop()
	log.Printf("node %d: shut down", n.self.ID)
}

// FindSuccessor resolves which node owns target, per spec.md section
// 4.8: answer locally if target falls in (self, successor]; otherwise
// forward to the closest preceding node we know of.
func (n *Node) FindSuccessor(target ring.ID) (*ring.NodeInfo, error) {
	n.ringMu.Lock()
	selfID := n.self.ID
	successor := n.successor
	n.ringMu.Unlock()

	if ring.InOpenClosed(selfID, target, successor.ID) {
		s := successor
		return &s, nil
	}

	closest := n.ClosestPrecedingNode(target)
	if closest == nil || closest.ID == selfID {
		s := successor
		return &s, nil
	}

	result, err := transport.FindSuccessorRPC(closest.Address, target, n.config.RPCTimeout)
	if err != nil {
		log.Printf("node %d: find_successor(%d) forward to %d failed: %v", selfID, target, closest.ID, err)
		return nil, nil
	}
	if result == nil {
		return nil, nil
	}
	if !n.security.ValidateLookup(target, *result) {
		log.Printf("node %d: find_successor(%d): result %d failed lookup validation", selfID, target, result.ID)
		return nil, nil
	}
	return result, nil
}

// ClosestPrecedingNode scans the finger table for the closest known peer
// strictly between self and target, falling back to the successor if the
// table has nothing useful and the successor itself qualifies.
func (n *Node) ClosestPrecedingNode(target ring.ID) *ring.NodeInfo {
	if closest := n.fingers.ClosestPrecedingNode(target); closest != nil {
		return closest
	}

	n.ringMu.Lock()
	selfID := n.self.ID
	successor := n.successor
	n.ringMu.Unlock()

	if ring.InOpen(selfID, successor.ID, target) {
		s := successor
		return &s
	}
	return nil
}

// GetPredecessor returns this node's current predecessor, or nil if it
// has none.
func (n *Node) GetPredecessor() *ring.NodeInfo {
	n.ringMu.Lock()
	defer n.ringMu.Unlock()
	if n.predecessor == nil {
		return nil
	}
	p := *n.predecessor
	return &p
}

// GetSuccessor returns this node's current successor.
func (n *Node) GetSuccessor() ring.NodeInfo {
	n.ringMu.Lock()
	defer n.ringMu.Unlock()
	return n.successor
}

// StoreSize reports how many entries this node's local store currently
// holds, for diagnostics (cmd state, admin streaming).
func (n *Node) StoreSize() int {
	return n.store.Len()
}

// Fingers returns a snapshot of the finger table, for diagnostics.
func (n *Node) Fingers() [ring.M]*ring.NodeInfo {
	return n.fingers.Snapshot()
}

// Notify is called (locally or via the wire) by a node that believes it
// might be our predecessor. We adopt it only if no predecessor is set, or
// the candidate lies strictly between our current predecessor and us.
func (n *Node) Notify(candidate ring.NodeInfo) bool {
	if !n.security.AllowNode(candidate) {
		return false
	}

	n.ringMu.Lock()
	defer n.ringMu.Unlock()

	if n.predecessor == nil || ring.InOpen(n.predecessor.ID, candidate.ID, n.self.ID) {
		c := candidate
		n.predecessor = &c
		return true
	}
	return false
}

// AlternativeNodes returns every distinct peer currently in the finger
// table, used by the lookup validator module to cross-check a result
// against peers other than the one that produced it.
func (n *Node) AlternativeNodes() []ring.NodeInfo {
	snapshot := n.fingers.Snapshot()
	seen := make(map[ring.ID]bool)
	var out []ring.NodeInfo
	for _, f := range snapshot {
		if f == nil || f.ID == n.self.ID || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		out = append(out, *f)
	}
	return out
}

// Put resolves which node owns key and stores value there, locally or via
// RPC.
func (n *Node) Put(key, value string) (bool, error) {
	id := ring.HashKey(key)
	owner, err := n.FindSuccessor(id)
	if err != nil {
		return false, err
	}
	if owner == nil {
		return false, errors.New("node: put: could not resolve an owner for key")
	}
	if owner.ID == n.self.ID {
		n.store.Put(key, value)
		return true, nil
	}
	return transport.PutRPC(owner.Address, key, value, n.config.RPCTimeout)
}

// Get resolves which node owns key and reads it from there, locally or
// via RPC.
func (n *Node) Get(key string) (string, bool, error) {
	id := ring.HashKey(key)
	owner, err := n.FindSuccessor(id)
	if err != nil {
		return "", false, err
	}
	if owner == nil {
		return "", false, errors.New("node: get: could not resolve an owner for key")
	}
	if owner.ID == n.self.ID {
		value, found := n.store.Get(key)
		return value, found, nil
	}
	return transport.GetRPC(owner.Address, key, n.config.RPCTimeout)
}

// Remove deletes key from this node's own local store. Unlike Put/Get it
// is not routed: it is an administrative operation on whichever node the
// caller already knows owns the key, not a new wire operation. Exposed via
// the interactive shell's "remove" command.
func (n *Node) Remove(key string) bool {
	return n.store.Remove(key)
}

// TransferKeys answers a transfer_keys request: every locally-held
// (key, value) whose hash falls in (start, end]. If remove is true, those
// entries are deleted from the local store as they're reported, so the
// caller (a node pulling a range it just inherited) becomes the sole
// owner; if false, the range is merely copied and stays in the local
// store.
func (n *Node) TransferKeys(start, end ring.ID, remove bool) []wire.KV {
	var local []store.KV
	if remove {
		local = n.store.RangeRemove(start, end)
	} else {
		local = n.store.RangeGet(start, end)
	}
	out := make([]wire.KV, 0, len(local))
	for _, kv := range local {
		out = append(out, wire.KV{Key: kv.Key, Value: kv.Value})
	}
	return out
}

// DumpMetrics returns every security module's current counters/gauges, in
// pipeline order.
func (n *Node) DumpMetrics() []security.Metrics {
	return n.security.GetAllMetrics()
}

var _ transport.Handler = (*Node)(nil)
