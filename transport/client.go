// Package transport implements the TCP connection-per-request client and
// the poll/accept-loop server described in spec.md section 4.4: each
// exchange is request -> response -> close, with no pipelining and no
// connection pooling.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"chordring/ring"
	"chordring/wire"
)

// DefaultTimeout is the reference 5s RPC timeout from spec.md section 9.
const DefaultTimeout = 5 * time.Second

// DefaultPingTimeout is the reference 2s timeout used specifically for
// liveness pings, which should fail fast compared to a routing RPC.
const DefaultPingTimeout = 2 * time.Second

// SendRequest opens a connection to target, writes request in full, reads
// the response until the peer closes its write side or timeout elapses,
// and returns the raw response bytes. Every call is self-contained: no
// connection pooling, no pipelining.
func SendRequest(target ring.NodeAddress, request []byte, timeout time.Duration) ([]byte, error) {
	callID := uuid.New().String()
	conn, err := net.DialTimeout("tcp", target.String(), timeout)
	if err != nil {
		return nil, fmt.Errorf("transport[%s]: dial %s: %w", callID, target, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport[%s]: set deadline: %w", callID, err)
	}

	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("transport[%s]: write to %s: %w", callID, target, err)
	}
	if c, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = c.CloseWrite()
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("transport[%s]: read from %s: %w", callID, target, err)
	}
	return response, nil
}

// roundTrip encodes req, sends it, and decodes the reply, reporting decode failure or an unexpected message type identically to a
// network failure -- never as a partial success.
func roundTrip(target ring.NodeAddress, req wire.Message, timeout time.Duration) (wire.Message, error) {
	raw, err := SendRequest(target, wire.Encode(req), timeout)
	if err != nil {
		return nil, err
	}
	resp, err := wire.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: decode reply from %s: %w", target, err)
	}
	if errResp, ok := resp.(*wire.ErrorResponse); ok {
		return nil, fmt.Errorf("transport: %s replied with error: %s", target, errResp.Message)
	}
	return resp, nil
}

// FindSuccessorRPC asks target who owns id. timeout <= 0 falls back to
// DefaultTimeout.
func FindSuccessorRPC(target ring.NodeAddress, id ring.ID, timeout time.Duration) (*ring.NodeInfo, error) {
	resp, err := roundTrip(target, &wire.FindSuccessorRequest{ID: id}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return nil, err
	}
	m, ok := resp.(*wire.FindSuccessorResponse)
	if !ok {
		return nil, fmt.Errorf("transport: unexpected reply type for find_successor from %s", target)
	}
	if !m.Found {
		return nil, nil
	}
	n := m.Successor
	return &n, nil
}

// GetPredecessorRPC asks target for its current predecessor. timeout <= 0
// falls back to DefaultTimeout.
func GetPredecessorRPC(target ring.NodeAddress, timeout time.Duration) (*ring.NodeInfo, error) {
	resp, err := roundTrip(target, &wire.GetPredecessorRequest{}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return nil, err
	}
	m, ok := resp.(*wire.GetPredecessorResponse)
	if !ok {
		return nil, fmt.Errorf("transport: unexpected reply type for get_predecessor from %s", target)
	}
	if !m.Has {
		return nil, nil
	}
	n := m.Predecessor
	return &n, nil
}

// NotifyRPC tells target that self might be its predecessor. timeout <= 0
// falls back to DefaultTimeout.
func NotifyRPC(target ring.NodeAddress, self ring.NodeInfo, timeout time.Duration) (bool, error) {
	resp, err := roundTrip(target, &wire.Notify{Node: self}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return false, err
	}
	m, ok := resp.(*wire.NotifyAck)
	if !ok {
		return false, fmt.Errorf("transport: unexpected reply type for notify from %s", target)
	}
	return m.Accepted, nil
}

// PingRPC checks whether target is alive. timeout <= 0 falls back to
// DefaultPingTimeout.
func PingRPC(target ring.NodeAddress, timeout time.Duration) bool {
	resp, err := roundTrip(target, &wire.Ping{}, orDefault(timeout, DefaultPingTimeout))
	if err != nil {
		return false
	}
	_, ok := resp.(*wire.Pong)
	return ok
}

// GetRPC fetches key from target's local store. timeout <= 0 falls back to
// DefaultTimeout.
func GetRPC(target ring.NodeAddress, key string, timeout time.Duration) (string, bool, error) {
	resp, err := roundTrip(target, &wire.GetRequest{Key: key}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return "", false, err
	}
	m, ok := resp.(*wire.GetResponse)
	if !ok {
		return "", false, fmt.Errorf("transport: unexpected reply type for get from %s", target)
	}
	return m.Value, m.Found, nil
}

// PutRPC stores key/value at target. timeout <= 0 falls back to
// DefaultTimeout.
func PutRPC(target ring.NodeAddress, key, value string, timeout time.Duration) (bool, error) {
	resp, err := roundTrip(target, &wire.PutRequest{Key: key, Value: value}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return false, err
	}
	m, ok := resp.(*wire.PutResponse)
	if !ok {
		return false, fmt.Errorf("transport: unexpected reply type for put from %s", target)
	}
	return m.Success, nil
}

// TransferKeysRPC requests every (key, value) target holds whose hash lies
// in (start, end]. If remove is true, target relinquishes the range as it
// reports it -- used when a joining node pulls the range it now owns, so
// the donor doesn't keep serving keys it no longer owns. With remove=false
// target only copies the range and keeps it. timeout <= 0 falls back to
// DefaultTimeout.
func TransferKeysRPC(target ring.NodeAddress, start, end ring.ID, remove bool, timeout time.Duration) ([]wire.KV, error) {
	resp, err := roundTrip(target, &wire.TransferKeysRequest{Start: start, End: end, Remove: remove}, orDefault(timeout, DefaultTimeout))
	if err != nil {
		return nil, err
	}
	m, ok := resp.(*wire.TransferKeysResponse)
	if !ok {
		return nil, fmt.Errorf("transport: unexpected reply type for transfer_keys from %s", target)
	}
	return m.Items, nil
}

// orDefault returns timeout unless it is zero or negative, in which case
// it returns fallback. Lets callers without a configured timeout (tests,
// ad hoc tooling) keep working unchanged.
func orDefault(timeout, fallback time.Duration) time.Duration {
	if timeout <= 0 {
		return fallback
	}
	return timeout
}
