package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/salespulse/realtime/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 256
)

// Client is one connected engine instance, scoped to the user and
// organization its connect token named.
type Client struct {
	id             string
	userID         string
	organizationID string
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte

	mu   sync.Mutex
	subs map[string]*models.Subscription
}

func newClient(hub *Hub, conn *websocket.Conn, userID, organizationID string) *Client {
	return &Client{
		id:             uuid.New().String(),
		userID:         userID,
		organizationID: organizationID,
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		subs:           make(map[string]*models.Subscription),
	}
}

// matchesAny reports whether any of the client's subscriptions match ev.
func (c *Client) matchesAny(ev *models.SyncEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if sub.Matches(ev) {
			return true
		}
	}
	return false
}

// enqueue hands a frame to the write pump. A client that cannot keep up has
// its buffer dropped frame by frame rather than blocking the hub.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.hub.log.WithField("clientId", c.id).Warn("client send buffer full, dropping frame")
	}
}

// readPump pumps control messages from the connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).WithField("clientId", c.id).Warn("read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := models.DecodeMessage(data)
		if err != nil {
			c.hub.log.WithError(err).WithField("clientId", c.id).Warn("malformed frame, skipping")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *models.Message) {
	switch msg.Type {
	case models.MessageSubscribe:
		c.handleSubscribe(msg)

	case models.MessageUnsubscribe:
		c.mu.Lock()
		delete(c.subs, msg.SubscriptionID)
		c.mu.Unlock()

	case models.MessagePublish:
		c.handlePublish(msg)

	case models.MessageHeartbeat:
		// Echo the client's timestamp back so it can measure the round
		// trip, and refresh presence while we are at it.
		c.reply(&models.Message{Type: models.MessageHeartbeat, Timestamp: msg.Timestamp})
		c.hub.setPresence(c)

	default:
		c.hub.log.WithFields(logrus.Fields{
			"clientId": c.id,
			"kind":     msg.Type,
		}).Warn("unexpected message kind from client, ignoring")
	}
}

func (c *Client) handleSubscribe(msg *models.Message) {
	if msg.SubscriptionID == "" || len(msg.EventTypes) == 0 {
		c.reply(&models.Message{Type: models.MessageError, Error: "subscribe requires subscriptionId and eventTypes"})
		return
	}

	sub := &models.Subscription{
		EventTypes:    msg.EventTypes,
		EntityFilters: msg.EntityFilters,
		// The token decides the scope, not the frame.
		OrganizationID: c.organizationID,
	}

	c.mu.Lock()
	c.subs[msg.SubscriptionID] = sub
	c.mu.Unlock()

	c.reply(&models.Message{Type: models.MessageSubscriptionConfirmed, SubscriptionID: msg.SubscriptionID})
}

func (c *Client) handlePublish(msg *models.Message) {
	if msg.Event == nil {
		c.reply(&models.Message{Type: models.MessageError, Error: "publish requires an event"})
		return
	}
	if msg.Event.OrganizationID != c.organizationID {
		c.hub.log.WithFields(logrus.Fields{
			"clientId": c.id,
			"eventOrg": msg.Event.OrganizationID,
		}).Warn("publish outside token organization, rejected")
		c.reply(&models.Message{Type: models.MessageError, Error: "event organization does not match connection"})
		return
	}

	c.hub.Publish(msg.Event, false)
}

func (c *Client) reply(msg *models.Message) {
	frame, err := encodeMessage(msg)
	if err != nil {
		c.hub.log.WithError(err).Error("failed to encode reply")
		return
	}
	c.enqueue(frame)
}

// writePump pumps frames to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeMessage(msg *models.Message) ([]byte, error) {
	return json.Marshal(msg)
}
