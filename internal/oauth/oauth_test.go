package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	require.NoError(t, err)
	state2, err := GenerateState()
	require.NoError(t, err)

	assert.NotEqual(t, state1, state2)
	// 32 random bytes, base64 URL encoded
	assert.Len(t, state1, 44)
}

func TestStateStore_ConsumeOnce(t *testing.T) {
	store := NewStateStore(time.Minute)

	state, err := store.Issue()
	require.NoError(t, err)

	assert.True(t, store.Consume(state))
	assert.False(t, store.Consume(state), "state must not be reusable")
}

func TestStateStore_UnknownAndEmpty(t *testing.T) {
	store := NewStateStore(time.Minute)

	assert.False(t, store.Consume(""))
	assert.False(t, store.Consume("never-issued"))
}

func TestStateStore_Expired(t *testing.T) {
	store := NewStateStore(-time.Second)

	state, err := store.Issue()
	require.NoError(t, err)

	assert.False(t, store.Consume(state))
}

func TestStateStore_Cleanup(t *testing.T) {
	store := NewStateStore(time.Millisecond)
	state, err := store.Issue()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Cleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := store.states.Load(state)
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
