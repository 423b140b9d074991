package engine

import (
	"sync"

	"github.com/salespulse/realtime/internal/models"
)

// outboundQueue is a thread-safe FIFO of events published while the
// connection is down. Order is strictly the publish order; the queue is
// unbounded so offline publishers never block.
type outboundQueue struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{
		events: make([]*models.SyncEvent, 0, 16),
	}
}

// Enqueue appends an event to the back of the queue.
func (q *outboundQueue) Enqueue(e *models.SyncEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// DrainAll removes and returns every queued event in publish order. The
// queue is cleared before the caller attempts any send, so a failed drain
// loses the returned events at this layer.
func (q *outboundQueue) DrainAll() []*models.SyncEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	drained := q.events
	q.events = make([]*models.SyncEvent, 0, 16)
	return drained
}

// Len returns the current queue length.
func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
