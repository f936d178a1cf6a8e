package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRoundRobinsAcrossClients(t *testing.T) {
	a, b := NewMockClient(), NewMockClient()
	pool := NewPoolFromClients([]Client{a, b})

	for i := 0; i < 4; i++ {
		_, err := pool.ProcessFrame(context.Background(), []byte("x"), 1, 1, 3, "jpeg")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), a.Calls())
	assert.Equal(t, int64(2), b.Calls())
}

func TestPoolDegradedReturnsMessageInsteadOfError(t *testing.T) {
	pool := NewPoolFromClients(nil)
	assert.True(t, pool.Degraded())

	result, err := pool.ProcessFrame(context.Background(), []byte("x"), 1, 1, 3, "jpeg")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrDegraded.Error(), result.Message)
}

func TestPoolClosePropagatesToAllClients(t *testing.T) {
	a, b := NewMockClient(), NewMockClient()
	pool := NewPoolFromClients([]Client{a, b})

	require.NoError(t, pool.Close())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestPoolSizeReflectsMembership(t *testing.T) {
	pool := NewPoolFromClients([]Client{NewMockClient()})
	assert.Equal(t, 1, pool.Size())
	assert.False(t, pool.Degraded())
}

func TestMockClientPropagatesConfiguredError(t *testing.T) {
	m := NewMockClient()
	m.ErrToFail = errors.New("backend exploded")

	_, err := m.ProcessFrame(context.Background(), nil, 0, 0, 0, "jpeg")
	assert.ErrorIs(t, err, m.ErrToFail)
}
