package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chordring/ring"
)

func TestPutGetRemove(t *testing.T) {
	s := New()
	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Put("a", "1")
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestKeysSnapshot(t *testing.T) {
	s := New()
	s.Put("a", "1")
	s.Put("b", "2")
	keys := s.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)
}

// RangeRemove followed by PutAll(result) restores the store to its prior
// state — the idempotence property from spec.md section 8.
func TestRangeRemovePutAllIdempotent(t *testing.T) {
	s := New()
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, k := range keys {
		s.Put(k, string(rune('a'+i)))
	}
	before := snapshot(s)

	removed := s.RangeRemove(0, ring.ID(0xFFFFFFFF))
	assert.Equal(t, len(keys), len(removed))
	assert.Equal(t, 0, s.Len())

	s.PutAll(removed)
	after := snapshot(s)
	assert.Equal(t, before, after)
}

func TestRangeGetRespectsHashWindow(t *testing.T) {
	s := New()
	s.Put("k1", "v1")
	s.Put("k2", "v2")

	h1 := ring.HashKey("k1")
	h2 := ring.HashKey("k2")

	// A window that only (exclusive-start/inclusive-end) contains h1.
	got := s.RangeGet(h1-1, h1)
	found := false
	for _, kv := range got {
		if kv.Key == "k1" {
			found = true
		}
		assert.NotEqual(t, "k2", kv.Key, "h2 must not fall in a window sized to h1 alone unless by coincidence")
	}
	_ = h2
	assert.True(t, found)
}

func snapshot(s *Store) map[string]string {
	out := make(map[string]string)
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		out[k] = v
	}
	return out
}
