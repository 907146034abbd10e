package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_SessionsAreIsolated(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	h.Show("alice", "Order placed", map[string]string{"order_id": "o1"})

	got, ok := h.Current("alice")
	require.True(t, ok)
	assert.Equal(t, "Order placed", got.Message)

	_, ok = h.Current("mallory")
	assert.False(t, ok)
	assert.Equal(t, 1, h.Sessions())
}

func TestHub_ShowReplacesWithinSession(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	h.Show("alice", "Added to cart", nil)
	h.Show("bob", "Added to cart", nil)
	second := h.Show("alice", "Order placed", nil)

	got, ok := h.Current("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
	bob, ok := h.Current("bob")
	require.True(t, ok)
	assert.Equal(t, "Added to cart", bob.Message)
}

func TestHub_DropsIdleSessions(t *testing.T) {
	h := NewHub(20*time.Millisecond, zap.NewNop())

	h.Show("alice", "Order placed", nil)
	h.Show("bob", "Order placed", nil)
	h.Dismiss("bob")

	assert.Equal(t, 1, h.Sessions())
	require.Eventually(t, func() bool { return h.Sessions() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := h.Current("alice")
	assert.False(t, ok)
}

func TestHub_ShowAfterExpiry(t *testing.T) {
	h := NewHub(20*time.Millisecond, zap.NewNop())

	h.Show("alice", "first", nil)
	require.Eventually(t, func() bool { return h.Sessions() == 0 }, time.Second, 5*time.Millisecond)

	h.Show("alice", "second", nil)
	got, ok := h.Current("alice")
	require.True(t, ok)
	assert.Equal(t, "second", got.Message)
}
