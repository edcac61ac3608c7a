package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chordring/ring"
	"chordring/wire"
)

type fakeHandler struct {
	successor   *ring.NodeInfo
	predecessor *ring.NodeInfo
	notifyOK    bool
	store       map[string]string
}

func (f *fakeHandler) FindSuccessor(id ring.ID) (*ring.NodeInfo, error) {
	return f.successor, nil
}
func (f *fakeHandler) GetPredecessor() *ring.NodeInfo      { return f.predecessor }
func (f *fakeHandler) Notify(candidate ring.NodeInfo) bool { return f.notifyOK }
func (f *fakeHandler) Get(key string) (string, bool, error) {
	v, ok := f.store[key]
	return v, ok, nil
}
func (f *fakeHandler) Put(key, value string) (bool, error) {
	f.store[key] = value
	return true, nil
}
func (f *fakeHandler) TransferKeys(start, end ring.ID, remove bool) []wire.KV { return nil }

type allowAll struct{}

func (allowAll) AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool { return true }

type denyAll struct{}

func (denyAll) AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool { return false }

func startTestServer(t *testing.T, port uint16, h *fakeHandler, gate SecurityGate) *Server {
	t.Helper()
	srv := NewServer(port, h, gate)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	time.Sleep(20 * time.Millisecond)
	return srv
}

func TestServerPingPong(t *testing.T) {
	h := &fakeHandler{store: map[string]string{}}
	startTestServer(t, 17001, h, allowAll{})

	ok := PingRPC(ring.NodeAddress{Host: "127.0.0.1", Port: 17001}, DefaultPingTimeout)
	require.True(t, ok)
}

func TestServerPutGet(t *testing.T) {
	h := &fakeHandler{store: map[string]string{}}
	startTestServer(t, 17002, h, allowAll{})

	addr := ring.NodeAddress{Host: "127.0.0.1", Port: 17002}
	ok, err := PutRPC(addr, "hello", "world", DefaultTimeout)
	require.NoError(t, err)
	require.True(t, ok)

	value, found, err := GetRPC(addr, "hello", DefaultTimeout)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "world", value)
}

func TestServerFindSuccessor(t *testing.T) {
	successor := ring.NodeInfo{ID: 77, Address: ring.NodeAddress{Host: "127.0.0.1", Port: 9999}}
	h := &fakeHandler{store: map[string]string{}, successor: &successor}
	startTestServer(t, 17003, h, allowAll{})

	got, err := FindSuccessorRPC(ring.NodeAddress{Host: "127.0.0.1", Port: 17003}, 42, DefaultTimeout)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, successor, *got)
}

func TestServerDeniedMessageDropsSilently(t *testing.T) {
	h := &fakeHandler{store: map[string]string{}}
	startTestServer(t, 17004, h, denyAll{})

	ok := PingRPC(ring.NodeAddress{Host: "127.0.0.1", Port: 17004}, DefaultPingTimeout)
	require.False(t, ok, "a denied message must never receive a reply")
}

func TestServerNotify(t *testing.T) {
	h := &fakeHandler{store: map[string]string{}, notifyOK: true}
	startTestServer(t, 17005, h, allowAll{})

	accepted, err := NotifyRPC(
		ring.NodeAddress{Host: "127.0.0.1", Port: 17005},
		ring.NodeInfo{ID: 1, Address: ring.NodeAddress{Host: "127.0.0.1", Port: 1}},
		DefaultTimeout,
	)
	require.NoError(t, err)
	require.True(t, accepted)
}
