package reassembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblyOutOfOrderChunks(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	original := make([]byte, 3600)
	for i := range original {
		original[i] = byte(i % 256)
	}
	c0 := original[0:1200]
	c1 := original[1200:2400]
	c2 := original[2400:3600]

	const msgID = uint64(0xDEADBEEF)

	_, complete := r.AddChunk(msgID, 2, 3, c2)
	assert.False(t, complete)
	assert.True(t, r.Has(msgID))

	_, complete = r.AddChunk(msgID, 0, 3, c0)
	assert.False(t, complete)

	out, complete := r.AddChunk(msgID, 1, 3, c1)
	require.True(t, complete)
	assert.Equal(t, original, out)
	assert.False(t, r.Has(msgID))
}

func TestReassemblyStalenessEviction(t *testing.T) {
	r := New(5*time.Millisecond, 10*time.Millisecond)
	defer r.Stop()

	_, complete := r.AddChunk(1, 0, 2, []byte("partial"))
	assert.False(t, complete)
	assert.True(t, r.Has(1))

	require.Eventually(t, func() bool {
		return !r.Has(1)
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestReassemblyDropsZeroByteResult(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	_, complete := r.AddChunk(2, 0, 1, nil)
	assert.False(t, complete)
}

func TestReassemblyLenBounded(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	r.AddChunk(10, 0, 2, []byte("a"))
	r.AddChunk(11, 0, 2, []byte("b"))
	assert.Equal(t, 2, r.Len())

	r.AddChunk(10, 1, 2, []byte("c"))
	assert.Equal(t, 1, r.Len())
}
