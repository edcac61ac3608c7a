package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chordring/ring"
)

var testPort uint16 = 19001

func nextPort() uint16 {
	p := testPort
	testPort++
	return p
}

func fastConfig() Config {
	cfg := DefaultConfig("127.0.0.1", nextPort())
	cfg.StabilizeInterval = 20 * time.Millisecond
	cfg.FixFingersInterval = 15 * time.Millisecond
	cfg.CheckPredecessorInterval = 30 * time.Millisecond
	cfg.RPCTimeout = time.Second
	cfg.PingTimeout = time.Second
	return cfg
}

func TestCreateSingleNodeRing(t *testing.T) {
	n := New(fastConfig())
	require.NoError(t, n.Create())
	defer n.Shutdown()

	assert.Equal(t, n.self, n.GetSuccessor())
	assert.Nil(t, n.GetPredecessor())

	owner, err := n.FindSuccessor(n.self.ID + 12345)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, n.self.ID, owner.ID)
}

func TestJoinConvergesToTwoNodeRing(t *testing.T) {
	a := New(fastConfig())
	require.NoError(t, a.Create())
	defer a.Shutdown()

	b := New(fastConfig())
	require.NoError(t, b.Join(a.self.Address))
	defer b.Shutdown()

	require.Eventually(t, func() bool {
		return a.GetSuccessor().ID == b.self.ID &&
			b.GetSuccessor().ID == a.self.ID &&
			a.GetPredecessor() != nil && a.GetPredecessor().ID == b.self.ID &&
			b.GetPredecessor() != nil && b.GetPredecessor().ID == a.self.ID
	}, 2*time.Second, 10*time.Millisecond, "ring did not converge to a stable 2-node cycle")
}

func TestPutGetRoutesAcrossRing(t *testing.T) {
	a := New(fastConfig())
	require.NoError(t, a.Create())
	defer a.Shutdown()

	b := New(fastConfig())
	require.NoError(t, b.Join(a.self.Address))
	defer b.Shutdown()

	require.Eventually(t, func() bool {
		return a.GetSuccessor().ID == b.self.ID && b.GetSuccessor().ID == a.self.ID
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%d", i)
		ok, err := a.Put(key, "value-"+key)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%d", i)
		value, found, err := b.Get(key)
		require.NoError(t, err)
		require.True(t, found, "key %s should be retrievable from either node", key)
		assert.Equal(t, "value-"+key, value)
	}
}

func TestLeaveHandsOffKeysToSuccessor(t *testing.T) {
	a := New(fastConfig())
	require.NoError(t, a.Create())
	defer a.Shutdown()

	b := New(fastConfig())
	require.NoError(t, b.Join(a.self.Address))

	require.Eventually(t, func() bool {
		return a.GetSuccessor().ID == b.self.ID && b.GetSuccessor().ID == a.self.ID
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("leave-key-%d", i)
		_, err := a.Put(key, "v")
		require.NoError(t, err)
	}

	require.NoError(t, b.Leave())

	// Read a's local store directly rather than through Get/FindSuccessor:
	// with only two nodes and no successor list, a's successor pointer
	// still refers to the now-departed b until some future stabilize
	// round has a live peer to correct it against. The invariant Leave
	// actually guarantees is that the data itself reaches the successor's
	// local store before shutdown, which this checks directly.
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("leave-key-%d", i)
		_, found := a.store.Get(key)
		assert.True(t, found, "key %s should survive b's departure", key)
	}
}

func TestNotifyRejectsSpoofedIdentityUnderIDVerification(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableIDVerification = true
	n := New(cfg)
	require.NoError(t, n.Create())
	defer n.Shutdown()

	spoofed := ring.NodeInfo{ID: 999999, Address: ring.NodeAddress{Host: "10.0.0.9", Port: 4242}}
	accepted := n.Notify(spoofed)
	assert.False(t, accepted)
	assert.Nil(t, n.GetPredecessor())

	honest := ring.NewNodeInfo(ring.NodeAddress{Host: "10.0.0.9", Port: 4242})
	accepted = n.Notify(honest)
	assert.True(t, accepted)
	require.NotNil(t, n.GetPredecessor())
	assert.Equal(t, honest.ID, n.GetPredecessor().ID)
}

func TestClosestPrecedingNodeAloneReturnsNil(t *testing.T) {
	n := New(fastConfig())
	require.NoError(t, n.Create())
	defer n.Shutdown()

	// Alone on the ring: finger table is empty of anyone but self, so
	// ClosestPrecedingNode has nothing to offer and InOpen(self, self, x)
	// is false, so it should return nil rather than self.
	result := n.ClosestPrecedingNode(n.self.ID + 1)
	assert.Nil(t, result)
}

func TestRemoveDeletesLocalKey(t *testing.T) {
	n := New(fastConfig())
	require.NoError(t, n.Create())
	defer n.Shutdown()

	ok, err := n.Put("doomed", "v")
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err := n.Get("doomed")
	require.NoError(t, err)
	require.True(t, found)

	assert.True(t, n.Remove("doomed"))
	_, found, err = n.Get("doomed")
	require.NoError(t, err)
	assert.False(t, found)

	assert.False(t, n.Remove("doomed"), "removing an absent key reports false")
}

func TestJoinPullLeavesDonorWithoutInheritedKeys(t *testing.T) {
	a := New(fastConfig())
	require.NoError(t, a.Create())
	defer a.Shutdown()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("pull-key-%d", i)
		_, err := a.Put(key, "v")
		require.NoError(t, err)
	}
	sizeBeforeJoin := a.StoreSize()
	require.Greater(t, sizeBeforeJoin, 0)

	b := New(fastConfig())
	require.NoError(t, b.Join(a.self.Address))
	defer b.Shutdown()

	// Every key b just inherited from a must be gone from a's own store:
	// the join-time pull is destructive, so a never permanently retains
	// keys it no longer owns.
	for _, key := range b.store.Keys() {
		_, found := a.store.Get(key)
		assert.False(t, found, "donor %d still holds key %q after handing it to joiner %d", a.self.ID, key, b.self.ID)
	}
	assert.Equal(t, sizeBeforeJoin, a.StoreSize()+b.StoreSize())
}

func TestDumpMetricsReflectsEnabledModules(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableIDVerification = true
	cfg.EnableRateLimiting = true
	n := New(cfg)
	require.NoError(t, n.Create())
	defer n.Shutdown()

	metrics := n.DumpMetrics()
	require.Len(t, metrics, 2)
	names := map[string]bool{}
	for _, m := range metrics {
		names[m.ModuleName] = true
	}
	assert.True(t, names["id_verification"])
	assert.True(t, names["rate_limiter"])
}
