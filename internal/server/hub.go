package server

import (
	"context"
	"sync"
	"time"

	"github.com/salespulse/realtime/internal/models"
	"github.com/salespulse/realtime/internal/repositories"
	"github.com/sirupsen/logrus"
)

const repoTimeout = 5 * time.Second

// Hub maintains the active client connections for one syncd node and fans
// every published event out to the clients whose subscriptions match it.
// The event and presence repositories are optional; a nil repository
// disables that concern (single-node development mode).
type Hub struct {
	log      *logrus.Logger
	events   repositories.EventRepository
	presence repositories.PresenceRepository
	fanout   *RedisFanout

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(log *logrus.Logger, events repositories.EventRepository, presence repositories.PresenceRepository) *Hub {
	hub := &Hub{
		log:        log,
		events:     events,
		presence:   presence,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
	}
	go hub.run()
	return hub
}

// SetFanout attaches the cross-node bridge. Must be called before clients
// connect.
func (h *Hub) SetFanout(f *RedisFanout) {
	h.fanout = f
}

// run manages client registration and presence.
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.setPresence(client)
			h.log.WithFields(logrus.Fields{
				"clientId": client.id,
				"userId":   client.userID,
				"total":    total,
			}).Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.clearPresence(client)
			h.log.WithFields(logrus.Fields{
				"clientId": client.id,
				"total":    total,
			}).Info("client disconnected")
		}
	}
}

// Publish records one event and delivers it to every matching local client.
// Events arriving from another node (via the Redis bridge) are not
// re-published to the bridge and not re-appended to the log.
func (h *Hub) Publish(ev *models.SyncEvent, fromRemote bool) {
	if !fromRemote && h.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
		if err := h.events.Append(ctx, ev); err != nil {
			h.log.WithError(err).WithField("eventId", ev.ID).Error("failed to append event")
		}
		cancel()
	}

	h.deliverLocal(ev)

	if !fromRemote && h.fanout != nil {
		if err := h.fanout.Publish(ev); err != nil {
			h.log.WithError(err).Error("failed to publish event to fanout channel")
		}
	}
}

// deliverLocal forwards the event once to each connected client that has at
// least one matching subscription; the client's own engine dispatches it to
// all of its subscriptions.
func (h *Hub) deliverLocal(ev *models.SyncEvent) {
	frame, err := encodeMessage(&models.Message{Type: models.MessageEvent, Event: ev})
	if err != nil {
		h.log.WithError(err).Error("failed to encode event frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.organizationID != ev.OrganizationID {
			continue
		}
		if !client.matchesAny(ev) {
			continue
		}
		client.enqueue(frame)
	}
}

func (h *Hub) setPresence(client *Client) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	err := h.presence.SetPresence(ctx, &models.Presence{
		UserID:         client.userID,
		OrganizationID: client.organizationID,
		Status:         string(models.StatusOnline),
	})
	if err != nil {
		h.log.WithError(err).WithField("userId", client.userID).Warn("failed to set presence")
	}
}

func (h *Hub) clearPresence(client *Client) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	if err := h.presence.DeletePresence(ctx, client.organizationID, client.userID); err != nil {
		h.log.WithError(err).WithField("userId", client.userID).Warn("failed to clear presence")
	}
}
