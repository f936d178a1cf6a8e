package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(s string) net.Addr {
	a, _ := net.ResolveUDPAddr("udp", s)
	return a
}

func TestTouchAndLookupRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Touch("sess-1", addr("127.0.0.1:9000"))

	got, ok := r.Lookup("sess-1")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9000", got.String())
}

func TestLookupMissReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("unknown")
	assert.False(t, ok)
}

func TestTouchIgnoresEmptySessionID(t *testing.T) {
	r := NewRegistry()
	r.Touch("", addr("127.0.0.1:9000"))
	assert.Equal(t, 0, r.Len())
}

func TestEvictOlderThanRemovesStaleEntries(t *testing.T) {
	r := NewRegistry()
	r.Touch("sess-1", addr("127.0.0.1:9000"))
	time.Sleep(5 * time.Millisecond)

	removed := r.EvictOlderThan(time.Millisecond)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Len())
}

func TestEvictOlderThanKeepsFreshEntries(t *testing.T) {
	r := NewRegistry()
	r.Touch("sess-1", addr("127.0.0.1:9000"))

	removed := r.EvictOlderThan(time.Hour)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, r.Len())
}
