package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainRunsInOrder(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 3; i++ {
		q.Post(func() { got = append(got, i) })
	}
	// A callback may post further callbacks.
	q.Post(func() { q.Post(func() { got = append(got, 99) }) })

	assert.Equal(t, 3, q.Len()-1)
	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, []int{0, 1, 2, 99}, got)
	assert.Zero(t, q.Drain())
}

func TestPanickingCallbackDoesNotStopDrain(t *testing.T) {
	q := NewQueue()
	ran := false
	q.Post(func() { panic("boom") })
	q.Post(func() { ran = true })
	assert.Equal(t, 2, q.Drain())
	assert.True(t, ran)
}

func TestCloseRejectsPosts(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Post(func() {}))
	q.Close()
	assert.False(t, q.Post(func() {}))
	assert.False(t, q.Post(nil))
	assert.Equal(t, 1, q.Drain())
}

func TestRunUntilClosed(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	var got []string
	done := make(chan error)
	go func() { done <- q.Run(context.Background()) }()

	q.Post(func() { mu.Lock(); got = append(got, "a"); mu.Unlock() })
	q.Post(func() { mu.Lock(); got = append(got, "b"); mu.Unlock() })
	q.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRunStopsOnCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- q.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
