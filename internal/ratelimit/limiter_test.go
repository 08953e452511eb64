package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck_AllowsUpToMax(t *testing.T) {
	l := New(time.Minute, 5)

	for i := 0; i < 5; i++ {
		assert.False(t, l.Check("198.51.100.7"), "call %d should be allowed", i+1)
	}
	assert.True(t, l.Check("198.51.100.7"), "6th call should be limited")
	assert.True(t, l.Check("198.51.100.7"), "7th call should stay limited inside the window")
}

func TestCheck_WindowReset(t *testing.T) {
	l := New(30*time.Millisecond, 2)

	assert.False(t, l.Check("key"))
	assert.False(t, l.Check("key"))
	assert.True(t, l.Check("key"))

	time.Sleep(40 * time.Millisecond)

	// Past the boundary the key behaves like a fresh one.
	assert.False(t, l.Check("key"))
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := New(time.Minute, 2)

	assert.False(t, l.Check("a"))
	assert.False(t, l.Check("b"))
	assert.False(t, l.Check("a"))
	assert.False(t, l.Check("b"))
	assert.True(t, l.Check("a"))
	assert.True(t, l.Check("b"))

	// A fresh key is unaffected by the saturated ones.
	assert.False(t, l.Check("c"))
}

func TestCheck_EmptyKey(t *testing.T) {
	l := New(time.Minute, 1)

	assert.False(t, l.Check(""))
	assert.True(t, l.Check(""))
}

func TestSweep_DropsOnlyExpired(t *testing.T) {
	l := New(30*time.Millisecond, 5)

	l.Check("old")
	time.Sleep(40 * time.Millisecond)
	l.Check("fresh")

	l.Sweep()

	assert.Equal(t, 1, l.Stats().Keys)

	// The swept key still counts correctly afterwards.
	assert.False(t, l.Check("old"))
}

func TestStartSweeper_StopsOnCancel(t *testing.T) {
	l := New(10*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	l.StartSweeper(ctx, 15*time.Millisecond)

	l.Check("key")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, l.Stats().Keys)

	cancel()
}

func TestCheck_Concurrent(t *testing.T) {
	l := New(time.Minute, 50)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				l.Check("shared")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	// Exactly 100 attempts recorded, so the next one must be rejected.
	assert.True(t, l.Check("shared"))
	assert.Equal(t, 1, l.Stats().Keys)
}
