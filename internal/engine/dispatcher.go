package engine

import (
	"errors"
	"time"

	"github.com/salespulse/realtime/internal/models"
	"github.com/sirupsen/logrus"
)

// HandleMessage implements TransportHandler: it routes one inbound frame by
// its kind. Malformed frames and protocol violations are logged, counted and
// skipped, never fatal.
func (e *Engine) HandleMessage(data []byte) {
	e.mu.Lock()
	e.metrics.MessagesReceived++
	e.mu.Unlock()

	msg, err := models.DecodeMessage(data)
	if err != nil {
		e.mu.Lock()
		e.metrics.Errors++
		e.mu.Unlock()
		e.log.WithError(err).Warn("malformed inbound message, skipping")
		return
	}

	switch msg.Type {
	case models.MessageEvent:
		if msg.Event == nil {
			e.mu.Lock()
			e.metrics.Errors++
			e.mu.Unlock()
			e.log.Warn("event message without event payload, skipping")
			return
		}
		e.dispatchEvent(msg.Event)

	case models.MessageHeartbeat:
		e.handleHeartbeatReply(msg.Timestamp)

	case models.MessageError:
		e.mu.Lock()
		e.metrics.Errors++
		e.status.LastError = msg.Error
		e.mu.Unlock()
		e.log.WithField("serverError", msg.Error).Error("server reported error")
		e.emitError(errors.New(msg.Error))

	case models.MessageSubscriptionConfirmed:
		e.log.WithField("subscriptionId", msg.SubscriptionID).Debug("subscription confirmed")

	case models.MessageSubscribe, models.MessageUnsubscribe, models.MessagePublish:
		// Outbound-only kinds; receiving one is a protocol violation.
		e.log.WithField("kind", msg.Type).Warn("outbound-only message kind received, ignoring")

	default:
		e.log.WithField("kind", msg.Type).Warn("unknown message kind, ignoring")
	}
}

// dispatchEvent delivers one inbound event to every matching subscription.
// The matching set is snapshotted before any callback runs, so an
// Unsubscribe during dispatch does not change this dispatch.
func (e *Engine) dispatchEvent(ev *models.SyncEvent) {
	e.mu.Lock()
	e.metrics.EventsProcessed++
	matched := make([]*models.Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		if s.Matches(ev) {
			matched = append(matched, s)
		}
	}
	e.mu.Unlock()

	for _, s := range matched {
		e.invokeCallback(s, ev)
	}
	e.emitEventReceived(ev)
}

// invokeCallback runs one subscription callback with panic isolation: a
// panicking callback is recovered, logged and counted as one error, and the
// remaining subscriptions still receive the event.
func (e *Engine) invokeCallback(s *models.Subscription, ev *models.SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			e.metrics.Errors++
			e.mu.Unlock()
			e.log.WithFields(logrus.Fields{
				"subscriptionId": s.ID,
				"eventId":        ev.ID,
				"panic":          r,
			}).Error("subscription callback panicked")
		}
	}()

	if s.Callback != nil {
		s.Callback(ev)
	}
}

// handleHeartbeatReply folds one heartbeat round trip into the health state.
// The running average favors recency: avg = (avg + sample) / 2.
func (e *Engine) handleHeartbeatReply(sentMillis int64) {
	if sentMillis == 0 {
		return
	}
	sample := time.Since(time.UnixMilli(sentMillis))
	if sample < 0 {
		sample = 0
	}

	e.mu.Lock()
	e.status.Latency = sample
	e.status.LastHeartbeat = time.Now()
	if e.metrics.AverageLatency == 0 {
		e.metrics.AverageLatency = sample
	} else {
		e.metrics.AverageLatency = (e.metrics.AverageLatency + sample) / 2
	}
	e.mu.Unlock()
}
