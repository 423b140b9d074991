package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/salespulse/realtime/internal/models"
	"github.com/sirupsen/logrus"
)

const fanoutChannel = "sync:events"

// fanoutFrame is the payload on the Redis channel. NodeID lets a node skip
// the events it published itself.
type fanoutFrame struct {
	NodeID string            `json:"nodeId"`
	Event  *models.SyncEvent `json:"event"`
}

// RedisFanout bridges events between syncd nodes through a Redis pub/sub
// channel, so clients connected to different nodes still see each other's
// events.
type RedisFanout struct {
	log    *logrus.Logger
	client *redis.Client
	hub    *Hub
	nodeID string
}

func NewRedisFanout(log *logrus.Logger, client *redis.Client, hub *Hub) *RedisFanout {
	f := &RedisFanout{
		log:    log,
		client: client,
		hub:    hub,
		nodeID: uuid.New().String(),
	}
	hub.SetFanout(f)
	return f
}

// Publish pushes one locally published event onto the channel.
func (f *RedisFanout) Publish(ev *models.SyncEvent) error {
	payload, err := json.Marshal(fanoutFrame{NodeID: f.nodeID, Event: ev})
	if err != nil {
		return fmt.Errorf("failed to marshal fanout frame: %w", err)
	}

	if err := f.client.Publish(context.Background(), fanoutChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish fanout frame: %w", err)
	}
	return nil
}

// Run consumes the channel and forwards remote events into the local hub.
// Blocks until ctx is cancelled.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, fanoutChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var frame fanoutFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				f.log.WithError(err).Warn("malformed fanout frame, skipping")
				continue
			}
			if frame.NodeID == f.nodeID || frame.Event == nil {
				continue
			}
			f.hub.Publish(frame.Event, true)
		}
	}
}
