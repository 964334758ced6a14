package txstatus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTransitions(t *testing.T) {
	r := New(0) // no auto-clear

	_, visible := r.Current()
	assert.False(t, visible)

	r.Begin("submit", "working")
	u, visible := r.Current()
	require.True(t, visible)
	assert.Equal(t, StatePending, u.State)
	assert.Equal(t, "submit", u.Op)

	r.Succeed("submit", "done")
	u, visible = r.Current()
	require.True(t, visible)
	assert.Equal(t, StateSuccess, u.State)
	assert.Equal(t, "done", u.Message)

	r.Fail("verify", "boom")
	u, _ = r.Current()
	assert.Equal(t, StateError, u.State)
	assert.Equal(t, "verify", u.Op)
}

func TestAutoClearAfterTerminalState(t *testing.T) {
	r := New(20 * time.Millisecond)

	r.Begin("submit", "working")
	time.Sleep(60 * time.Millisecond)
	_, visible := r.Current()
	assert.True(t, visible, "pending never auto-clears")

	r.Succeed("submit", "done")
	require.Eventually(t, func() bool {
		_, visible := r.Current()
		return !visible
	}, time.Second, 5*time.Millisecond)
}

func TestAutoClearDoesNotEraseNewerOperation(t *testing.T) {
	r := New(20 * time.Millisecond)

	r.Succeed("submit", "first")
	r.Begin("verify", "second")

	time.Sleep(60 * time.Millisecond)
	u, visible := r.Current()
	require.True(t, visible, "the newer pending operation keeps the slot")
	assert.Equal(t, "verify", u.Op)
}

func TestWatchReceivesTransitions(t *testing.T) {
	r := New(0)
	ch, cancel := r.Watch()
	defer cancel()

	r.Begin("submit", "working")
	r.Succeed("submit", "done")

	first := <-ch
	assert.Equal(t, StatePending, first.State)
	second := <-ch
	assert.Equal(t, StateSuccess, second.State)
}

func TestBroadcastSkipsSlot(t *testing.T) {
	r := New(0)
	ch, cancel := r.Watch()
	defer cancel()

	r.Broadcast("submit", StateError, "resolution failed")

	u := <-ch
	assert.Equal(t, StateError, u.State)

	_, visible := r.Current()
	assert.False(t, visible, "broadcasts never occupy the slot")
}

func TestWatchCancelCloses(t *testing.T) {
	r := New(0)
	ch, cancel := r.Watch()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// A second cancel is harmless.
	cancel()

	// Updates after cancel are not delivered anywhere.
	r.Begin("submit", "working")
}
