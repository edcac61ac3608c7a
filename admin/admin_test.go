package admin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chordring/security"
)

func TestServerBroadcastsSnapshotToClient(t *testing.T) {
	view := func() Snapshot {
		return Snapshot{
			SelfID:      42,
			SelfAddress: "127.0.0.1:9999",
			Successor:   42,
			StoreSize:   3,
			Metrics:     []security.Metrics{{ModuleName: "id_verification"}},
		}
	}

	s := NewServer("127.0.0.1:19500", view, 20*time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(30 * time.Millisecond) // let the listener settle

	conn, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:19500/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	require.Equal(t, uint32(42), snap.SelfID)
	require.Equal(t, 3, snap.StoreSize)
	require.Len(t, snap.Metrics, 1)
}
