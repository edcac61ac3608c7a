package node

import (
	"log"
	"time"

	"chordring/ring"
	"chordring/transport"
)

// startMaintenance launches the three periodic ring-maintenance loops as
// separate goroutines, mirroring the teacher's ticker-driven background
// loop shape (ratelimiter.TokenBucket.refillLoop) rather than a single
// combined scheduler.
func (n *Node) startMaintenance() {
	n.wg.Add(3)
	go n.stabilizeLoop()
	go n.fixFingersLoop()
	go n.checkPredecessorLoop()
}

func (n *Node) stabilizeLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.config.StabilizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.stabilize()
			n.security.Tick()
		}
	}
}

func (n *Node) fixFingersLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.config.FixFingersInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.fixFingers()
		}
	}
}

func (n *Node) checkPredecessorLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.config.CheckPredecessorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.checkPredecessor()
		}
	}
}

// stabilize asks the current successor for its predecessor, adopts it as
// our own new successor if it lies strictly between us and our current
// successor, then notifies whoever ends up as our successor that we might
// be its predecessor.
func (n *Node) stabilize() {
	n.ringMu.Lock()
	successor := n.successor
	n.ringMu.Unlock()

	x, err := transport.GetPredecessorRPC(successor.Address, n.config.RPCTimeout)
	if err != nil {
		log.Printf("node %d: stabilize: get_predecessor on %d failed: %v", n.self.ID, successor.ID, err)
	} else if x != nil {
		n.ringMu.Lock()
		current := n.successor
		n.ringMu.Unlock()

		if ring.InOpen(n.self.ID, x.ID, current.ID) && n.security.AllowNode(*x) {
			n.ringMu.Lock()
			n.successor = *x
			n.ringMu.Unlock()
			n.fingers.Set(0, *x)
			successor = *x
		}
	}

	if successor.ID == n.self.ID {
		return
	}
	if _, err := transport.NotifyRPC(successor.Address, n.self, n.config.RPCTimeout); err != nil {
		log.Printf("node %d: stabilize: notify %d failed: %v", n.self.ID, successor.ID, err)
	}
}

// fixFingers refreshes one finger table slot per tick, round-robin, so a
// full table refresh is spread across many ticks instead of happening all
// at once.
func (n *Node) fixFingers() {
	n.ringMu.Lock()
	n.nextFinger = (n.nextFinger + 1) % ring.M
	i := n.nextFinger
	n.ringMu.Unlock()

	start := n.fingers.Start(i)
	successor, err := n.FindSuccessor(start)
	if err != nil || successor == nil {
		return
	}
	n.fingers.Set(i, *successor)
}

// checkPredecessor pings the current predecessor and clears it if it has
// gone unreachable, freeing that slot of the ring for the next notify to
// claim.
func (n *Node) checkPredecessor() {
	n.ringMu.Lock()
	predecessor := n.predecessor
	n.ringMu.Unlock()

	if predecessor == nil {
		return
	}
	if transport.PingRPC(predecessor.Address, n.config.PingTimeout) {
		return
	}

	lost := *predecessor
	n.ringMu.Lock()
	if n.predecessor != nil && n.predecessor.ID == lost.ID {
		n.predecessor = nil
	}
	n.ringMu.Unlock()

	log.Printf("node %d: check_predecessor: lost predecessor %d", n.self.ID, lost.ID)
	if n.subnetDiv != nil {
		n.subnetDiv.NodeRemoved(lost)
	}
}
