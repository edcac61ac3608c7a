package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInOpenEndpointsAreExcluded(t *testing.T) {
	for a := ID(0); a < 20; a++ {
		for b := ID(0); b < 20; b++ {
			if a == b {
				continue
			}
			assert.False(t, InOpen(a, a, b), "InOpen(%d,%d,%d) endpoint a", a, a, b)
			assert.False(t, InOpen(a, b, b), "InOpen(%d,%d,%d) endpoint b", a, b, b)
		}
	}
}

func TestInOpenClosedEndpoints(t *testing.T) {
	for a := ID(0); a < 20; a++ {
		for b := ID(0); b < 20; b++ {
			if a == b {
				continue
			}
			assert.False(t, InOpenClosed(a, a, b), "x==a must be false")
			assert.True(t, InOpenClosed(a, b, b), "x==b must be true")
		}
	}
}

func TestInOpenSameEndpointsTrueForEveryOther(t *testing.T) {
	const a ID = 7
	for x := ID(0); x < 20; x++ {
		if x == a {
			assert.False(t, InOpen(a, x, a))
		} else {
			assert.True(t, InOpen(a, x, a))
		}
	}
}

// Exactly one of the three windows (a,b), (b,c), (c,a) contains any fourth
// distinct id x, for any three distinct ids a, b, c.
func TestThreeWayPartitionLaw(t *testing.T) {
	ids := []ID{0, 1, 2, 5, 10, 15, 20, 4294967295, 4294967290}
	for _, a := range ids {
		for _, b := range ids {
			if b == a {
				continue
			}
			for _, c := range ids {
				if c == a || c == b {
					continue
				}
				for _, x := range ids {
					if x == a || x == b || x == c {
						continue
					}
					count := 0
					if InOpen(a, x, b) {
						count++
					}
					if InOpen(b, x, c) {
						count++
					}
					if InOpen(c, x, a) {
						count++
					}
					require.Equal(t, 1, count, "a=%d b=%d c=%d x=%d", a, b, c, x)
				}
			}
		}
	}
}

func TestWrapAround(t *testing.T) {
	// a > b: the window wraps through the top of the space.
	assert.True(t, InOpen(4294967290, 4294967295, 5))
	assert.True(t, InOpen(4294967290, 2, 5))
	assert.False(t, InOpen(4294967290, 100, 5))
}

func TestStartWrapsModuloM(t *testing.T) {
	var owner ID = 4294967290
	var offset ID = 8
	got := Start(owner, 3) // owner + 8, wraps past 2^32
	assert.Equal(t, owner+offset, got)
}

func TestHashDeterministic(t *testing.T) {
	a := HashBytes([]byte("127.0.0.1:8000"))
	b := HashBytes([]byte("127.0.0.1:8000"))
	assert.Equal(t, a, b)

	c := HashBytes([]byte("127.0.0.1:8001"))
	assert.NotEqual(t, a, c)
}

func TestNewNodeInfoInvariant(t *testing.T) {
	addr := NodeAddress{Host: "10.0.0.5", Port: 9000}
	info := NewNodeInfo(addr)
	assert.Equal(t, HashNode(addr.String()), info.ID)
}
