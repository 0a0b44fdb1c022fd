package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJobs(t *testing.T) {
	q := NewQueue(4, testLogger())

	done := make(chan string, 2)
	require.NoError(t, q.Enqueue(Job{Name: "first", Run: func(context.Context) error {
		done <- "first"
		return nil
	}}))
	require.NoError(t, q.Enqueue(Job{Name: "second", Run: func(context.Context) error {
		done <- "second"
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	assert.Equal(t, "first", <-done)
	assert.Equal(t, "second", <-done)
}

func TestQueueJobFailureNotFatal(t *testing.T) {
	q := NewQueue(4, testLogger())

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(Job{Name: "bad", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, q.Enqueue(Job{Name: "good", Run: func(context.Context) error {
		close(done)
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a failing job")
	}
}

func TestQueueOverflow(t *testing.T) {
	q := NewQueue(1, testLogger())

	require.NoError(t, q.Enqueue(Job{Name: "fits", Run: func(context.Context) error { return nil }}))
	err := q.Enqueue(Job{Name: "dropped", Run: func(context.Context) error { return nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropped")

	depth, inFlight := q.Stats()
	assert.Equal(t, 1, depth)
	assert.Zero(t, inFlight)
}

func TestQueueRunStopsOnCancel(t *testing.T) {
	q := NewQueue(1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
