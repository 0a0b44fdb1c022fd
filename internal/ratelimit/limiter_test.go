package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFirstCallImmediate(t *testing.T) {
	l := New()

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "pricing:DE", 500*time.Millisecond))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitEnforcesSpacing(t *testing.T) {
	l := New()
	interval := 50 * time.Millisecond

	require.NoError(t, l.Wait(context.Background(), "fees:UK", interval))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "fees:UK", interval))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitKeysAreIndependent(t *testing.T) {
	l := New()
	interval := time.Second

	require.NoError(t, l.Wait(context.Background(), "pricing:DE", interval))

	// A different key must not inherit the DE clock.
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "pricing:FR", interval))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitZeroIntervalNoop(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "catalog:UK", 0))
	require.NoError(t, l.Wait(context.Background(), "catalog:UK", 0))
}

func TestWaitCancelled(t *testing.T) {
	l := New()
	interval := time.Minute

	require.NoError(t, l.Wait(context.Background(), "pricing:IT", interval))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "pricing:IT", interval)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
