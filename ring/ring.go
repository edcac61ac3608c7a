// Package ring implements the identifier-space arithmetic the Chord ring is
// built on: a fixed-width circular integer space, the two wrap-aware
// "between" predicates, and the deterministic hash used to place both nodes
// and keys on that circle.
package ring

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// M is the number of bits in the identifier space. Every node in a
// deployment must agree on this value; it is not a per-node config field.
const M = 32

// ID is a point on the 2^M ring.
type ID = uint32

// InOpen reports whether x lies strictly between a and b, walking clockwise
// (increasing, wrapping from 2^M-1 to 0). If a == b, every x != a is inside.
func InOpen(a, x, b ID) bool {
	if a == b {
		return x != a
	}
	if a < b {
		return x > a && x < b
	}
	return x > a || x < b
}

// InOpenClosed is InOpen but additionally true when x == b.
func InOpenClosed(a, x, b ID) bool {
	if a < b {
		return x > a && x <= b
	}
	if a > b {
		return x > a || x <= b
	}
	return true
}

// Start returns (owner + 2^i) mod 2^M, the id that finger slot i is
// responsible for resolving.
func Start(owner ID, i int) ID {
	return owner + (1 << uint(i))
}

// HashBytes maps an arbitrary byte string onto the M-bit ring by truncating
// a blake2b-256 digest down to its low 4 bytes, big-endian. The digest
// algorithm is not protocol-critical, only that every peer in the
// deployment agrees on it.
func HashBytes(data []byte) ID {
	sum := blake2b.Sum256(data)
	return binary.BigEndian.Uint32(sum[len(sum)-4:])
}

// HashNode derives a node id from its canonical "host:port" address string.
func HashNode(canonicalAddress string) ID {
	return HashBytes([]byte(canonicalAddress))
}

// HashKey derives a key id from a store key string.
func HashKey(key string) ID {
	return HashBytes([]byte(key))
}
