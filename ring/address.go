package ring

import "fmt"

// NodeAddress is a host/port pair. Its canonical string form is the exact
// input to node-id hashing, so the two fields must never be formatted any
// other way on the wire or when deriving an id.
type NodeAddress struct {
	Host string
	Port uint16
}

// String returns the canonical "host:port" form.
func (a NodeAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Equal reports structural equality.
func (a NodeAddress) Equal(other NodeAddress) bool {
	return a.Host == other.Host && a.Port == other.Port
}

// NodeInfo is a cached fact about a peer: its id and how to reach it. It is
// never owned by the node holding it; it may be invalidated by any
// maintenance tick.
type NodeInfo struct {
	ID      ID
	Address NodeAddress
}

// Equal reports structural equality on both id and address.
func (n NodeInfo) Equal(other NodeInfo) bool {
	return n.ID == other.ID && n.Address.Equal(other.Address)
}

// IsZero reports whether n is the zero value.
func (n NodeInfo) IsZero() bool {
	return n.Address.Host == "" && n.Address.Port == 0 && n.ID == 0
}

// NewNodeInfo builds a NodeInfo whose id is derived from address, the only
// construction path that keeps the id == hash(address) invariant true by
// construction.
func NewNodeInfo(address NodeAddress) NodeInfo {
	return NodeInfo{ID: HashNode(address.String()), Address: address}
}
