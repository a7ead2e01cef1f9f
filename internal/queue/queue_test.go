package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PriorityOrdering(t *testing.T) {
	q := New(10)

	now := time.Now()
	low := &Transaction{ID: "low", Priority: Low, QueuedAt: now}
	normal := &Transaction{ID: "normal", Priority: Normal, QueuedAt: now.Add(time.Millisecond)}
	high := &Transaction{ID: "high", Priority: High, QueuedAt: now.Add(2 * time.Millisecond)}
	critical := &Transaction{ID: "critical", Priority: Critical, QueuedAt: now.Add(3 * time.Millisecond)}

	// Enqueued in ascending priority order to prove priority dominates
	// insertion order.
	require.NoError(t, q.Enqueue(low))
	require.NoError(t, q.Enqueue(normal))
	require.NoError(t, q.Enqueue(high))
	require.NoError(t, q.Enqueue(critical))

	order := []string{}
	for {
		tx, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, tx.ID)
	}

	assert.Equal(t, []string{"critical", "high", "normal", "low"}, order)
}

func TestQueue_SamePriorityOrderedByQueuedAt(t *testing.T) {
	q := New(10)
	now := time.Now()

	second := &Transaction{ID: "second", Priority: Normal, QueuedAt: now.Add(time.Second)}
	first := &Transaction{ID: "first", Priority: Normal, QueuedAt: now}

	require.NoError(t, q.Enqueue(second))
	require.NoError(t, q.Enqueue(first))

	tx, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "first", tx.ID)

	tx, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "second", tx.ID)
}

func TestQueue_EnqueueFailsWhenFull(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Enqueue(&Transaction{ID: "a"}))
	require.NoError(t, q.Enqueue(&Transaction{ID: "b"}))

	err := q.Enqueue(&Transaction{ID: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	_, ok := q.Pop()
	require.True(t, ok)

	// After freeing a slot, enqueue succeeds again.
	assert.NoError(t, q.Enqueue(&Transaction{ID: "c"}))
	assert.Equal(t, 2, q.Len())
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New(1)
	tx, ok := q.Pop()
	assert.False(t, ok)
	assert.Nil(t, tx)
}
