package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := New(3, 9, "lee", nil, 2)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateConnecting, s.GetState())

	s.Activate()
	assert.Equal(t, "active", s.GetState().String())

	assert.True(t, s.Enqueue(&Message{Type: "view"}))
	assert.True(t, s.Enqueue(&Message{Type: "scene"}))
	assert.False(t, s.Enqueue(&Message{Type: "dropped"}), "full queue drops")

	msg := <-s.Outbound()
	assert.Equal(t, "view", msg.Type)
	assert.Equal(t, uint64(1), s.IncrementEventCount())

	s.Close()
	s.Close()
	assert.True(t, s.IsClosed())
	assert.False(t, s.Enqueue(&Message{Type: "late"}))
	require.Error(t, s.Context().Err())

	// Buffered messages stay readable until the queue drains.
	msg, ok := <-s.Outbound()
	require.True(t, ok)
	assert.Equal(t, "scene", msg.Type)
	_, ok = <-s.Outbound()
	assert.False(t, ok)
}
