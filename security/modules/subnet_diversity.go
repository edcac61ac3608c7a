package modules

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"chordring/ring"
	"chordring/security"
)

// SubnetDiversity caps how many admitted peers may share a /24 subnet,
// limiting a single operator's ability to dominate the ring's finger
// tables via sheer address-range volume.
type SubnetDiversity struct {
	security.BaseModule

	maxPerSubnet int

	mu           sync.Mutex
	subnetCounts map[string]int

	accepted atomic.Uint64
	rejected atomic.Uint64
}

func NewSubnetDiversity(maxPerSubnet int) *SubnetDiversity {
	return &SubnetDiversity{
		maxPerSubnet: maxPerSubnet,
		subnetCounts: make(map[string]int),
	}
}

func extractSubnet(ip string) string {
	lastDot := strings.LastIndex(ip, ".")
	if lastDot == -1 {
		return ip
	}
	return ip[:lastDot]
}

func (m *SubnetDiversity) AllowNode(node ring.NodeInfo) bool {
	subnet := extractSubnet(node.Address.Host)

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.subnetCounts[subnet]
	if current >= m.maxPerSubnet {
		m.rejected.Add(1)
		log.Printf("[subnet_diversity] rejected node %d from subnet %s (count %d >= max %d)", node.ID, subnet, current, m.maxPerSubnet)
		return false
	}

	m.subnetCounts[subnet] = current + 1
	m.accepted.Add(1)
	return true
}

// NodeRemoved decrements the subnet count for a peer that has left or been
// evicted, freeing a slot for a future admission.
func (m *SubnetDiversity) NodeRemoved(node ring.NodeInfo) {
	subnet := extractSubnet(node.Address.Host)
	m.mu.Lock()
	defer m.mu.Unlock()
	if count, ok := m.subnetCounts[subnet]; ok && count > 0 {
		m.subnetCounts[subnet] = count - 1
	}
}

func (m *SubnetDiversity) Metrics() security.Metrics {
	m.mu.Lock()
	unique := len(m.subnetCounts)
	m.mu.Unlock()
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"accepted": m.accepted.Load(),
			"rejected": m.rejected.Load(),
		},
		Gauges: map[string]float64{
			"unique_subnets": float64(unique),
		},
	}
}

func (m *SubnetDiversity) ResetMetrics() {
	m.accepted.Store(0)
	m.rejected.Store(0)
	m.mu.Lock()
	m.subnetCounts = make(map[string]int)
	m.mu.Unlock()
}

func (m *SubnetDiversity) Name() string { return "subnet_diversity" }

var _ security.Module = (*SubnetDiversity)(nil)
