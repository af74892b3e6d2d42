package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	sent    []string
	failFor map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, recipient, _ string, _ string) error {
	if m.failFor[recipient] {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, recipient)
	return nil
}

func TestDispatchSendsOldestFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "first@example.com", "s1", "b1"))
	require.NoError(t, q.Enqueue(ctx, "second@example.com", "s2", "b2"))

	m := &fakeMailer{}
	d := NewDispatcher(q, m, zap.NewNop())

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"first@example.com", "second@example.com"}, m.sent)

	// the queue drained: a second sweep sends nothing
	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestDispatchFailureDoesNotAbortSweep(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "bad@example.com", "s", "b"))
	require.NoError(t, q.Enqueue(ctx, "good@example.com", "s", "b"))

	m := &fakeMailer{failFor: map[string]bool{"bad@example.com": true}}
	d := NewDispatcher(q, m, zap.NewNop())

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"good@example.com"}, m.sent)

	// the failed row is parked, not retried in the next sweep
	pending, err := q.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatchHonoursBatchSize(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, "r@example.com", "s", "b"))
	}

	m := &fakeMailer{}
	d := NewDispatcher(q, m, zap.NewNop())
	d.BatchSize = 2

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}
