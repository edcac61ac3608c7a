package modules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chordring/ring"
	"chordring/wire"
)

func TestIDVerificationAcceptsMatchingID(t *testing.T) {
	m := NewIDVerification()
	addr := ring.NodeAddress{Host: "10.0.0.1", Port: 8000}
	node := ring.NewNodeInfo(addr)
	assert.True(t, m.AllowNode(node))
	assert.Equal(t, uint64(1), m.Metrics().Counters["accepted"])
}

func TestIDVerificationRejectsMismatchedID(t *testing.T) {
	m := NewIDVerification()
	addr := ring.NodeAddress{Host: "10.0.0.1", Port: 8000}
	node := ring.NodeInfo{ID: 12345, Address: addr} // wrong id on purpose
	assert.False(t, m.AllowNode(node))
	assert.Equal(t, uint64(1), m.Metrics().Counters["rejected"])
}

func TestSubnetDiversityCapsPerSubnet(t *testing.T) {
	m := NewSubnetDiversity(2)
	n1 := ring.NodeInfo{ID: 1, Address: ring.NodeAddress{Host: "192.168.1.1", Port: 1}}
	n2 := ring.NodeInfo{ID: 2, Address: ring.NodeAddress{Host: "192.168.1.2", Port: 1}}
	n3 := ring.NodeInfo{ID: 3, Address: ring.NodeAddress{Host: "192.168.1.3", Port: 1}}

	assert.True(t, m.AllowNode(n1))
	assert.True(t, m.AllowNode(n2))
	assert.False(t, m.AllowNode(n3))
	assert.Equal(t, uint64(1), m.Metrics().Counters["rejected"])

	m.NodeRemoved(n1)
	assert.True(t, m.AllowNode(n3))
}

func TestRateLimiterBypassesPingPong(t *testing.T) {
	m := NewRateLimiter(0, 0)
	sender := ring.NodeAddress{Host: "1.2.3.4", Port: 1}
	assert.True(t, m.AllowMessage(sender, wire.TagPing))
	assert.True(t, m.AllowMessage(sender, wire.TagPong))
}

func TestRateLimiterThrottlesAfterBurst(t *testing.T) {
	m := NewRateLimiter(2, 0) // no refill
	sender := ring.NodeAddress{Host: "1.2.3.4", Port: 1}

	assert.True(t, m.AllowMessage(sender, wire.TagGetRequest))
	assert.True(t, m.AllowMessage(sender, wire.TagGetRequest))
	assert.False(t, m.AllowMessage(sender, wire.TagGetRequest))

	metrics := m.Metrics()
	assert.Equal(t, uint64(1), metrics.Counters["throttled"])
}

func TestPeerAgePreferenceMaturity(t *testing.T) {
	m := NewPeerAgePreference(20 * time.Millisecond)
	node := ring.NodeInfo{ID: 1, Address: ring.NodeAddress{Host: "h", Port: 1}}

	assert.True(t, m.AllowNode(node))
	assert.False(t, m.IsMature(node.ID))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, m.AllowNode(node))
	assert.True(t, m.IsMature(node.ID))
}

func TestLookupValidatorAllowsWhenNoAlternativeAnswers(t *testing.T) {
	// No reachable alternatives -> no RPC can succeed -> treated as
	// agreement-absent, which must allow (fail open when nothing could be
	// queried).
	alt := ring.NodeInfo{ID: 2, Address: ring.NodeAddress{Host: "127.0.0.1", Port: 1}} // unreachable port
	result := ring.NodeInfo{ID: 5, Address: ring.NodeAddress{Host: "127.0.0.1", Port: 2}}

	lv := NewLookupValidator(func() []ring.NodeInfo { return []ring.NodeInfo{alt} }, 1, 50*time.Millisecond)
	assert.True(t, lv.ValidateLookup(42, result))
}

func TestLookupValidatorEmptyAlternativesAllows(t *testing.T) {
	lv := NewLookupValidator(func() []ring.NodeInfo { return nil }, 1, 50*time.Millisecond)
	assert.True(t, lv.ValidateLookup(1, ring.NodeInfo{}))
}

func TestHoneypotMonitorDetectsTampering(t *testing.T) {
	store := map[string]string{}
	get := func(key string) (string, bool, error) {
		v, ok := store[key]
		return v, ok, nil
	}
	put := func(key, value string) (bool, error) {
		store[key] = value
		return true, nil
	}

	m := NewHoneypotMonitor(get, put, 2)
	m.PlaceSentinels()
	require.Equal(t, uint64(2), m.Metrics().Counters["placed"])

	m.Tick()
	require.Equal(t, uint64(2), m.Metrics().Counters["successes"])

	// Tamper with one sentinel directly.
	store["__honeypot_0"] = "not_the_sentinel_value"
	m.Tick()
	metrics := m.Metrics()
	assert.Equal(t, uint64(1), metrics.Counters["tampered"])
}
