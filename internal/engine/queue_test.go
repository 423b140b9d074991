package engine

import (
	"testing"

	"github.com/salespulse/realtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOutboundQueue_FIFO tests that DrainAll returns events in exact publish
// order and clears the queue
func TestOutboundQueue_FIFO(t *testing.T) {
	q := newOutboundQueue()

	first := models.NewSyncEvent(models.EventDraft{Type: models.EventAlert, EntityID: "a"})
	second := models.NewSyncEvent(models.EventDraft{Type: models.EventAlert, EntityID: "b"})
	third := models.NewSyncEvent(models.EventDraft{Type: models.EventAlert, EntityID: "c"})

	q.Enqueue(first)
	q.Enqueue(second)
	q.Enqueue(third)
	require.Equal(t, 3, q.Len())

	drained := q.DrainAll()

	require.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].EntityID)
	assert.Equal(t, "b", drained[1].EntityID)
	assert.Equal(t, "c", drained[2].EntityID)
	assert.Equal(t, 0, q.Len(), "drain clears the queue")
}

// TestOutboundQueue_DrainEmpty tests that draining an empty queue is a no-op
func TestOutboundQueue_DrainEmpty(t *testing.T) {
	q := newOutboundQueue()

	assert.Nil(t, q.DrainAll())
	assert.Equal(t, 0, q.Len())
}

// TestOutboundQueue_EnqueueAfterDrain tests that the queue is reusable
func TestOutboundQueue_EnqueueAfterDrain(t *testing.T) {
	q := newOutboundQueue()
	q.Enqueue(models.NewSyncEvent(models.EventDraft{Type: models.EventAlert, EntityID: "a"}))
	q.DrainAll()

	q.Enqueue(models.NewSyncEvent(models.EventDraft{Type: models.EventAlert, EntityID: "b"}))

	drained := q.DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, "b", drained[0].EntityID)
}
