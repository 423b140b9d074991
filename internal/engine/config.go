package engine

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
)

// Config carries the knobs for one engine instance. Every instance is
// independently constructible; the application typically holds a single
// shared instance but nothing in the engine enforces that.
type Config struct {
	// URL is the realtime endpoint, e.g. "https://sync.example.com/realtime".
	// An http(s) scheme is rewritten to ws(s); userId, organizationId and
	// token query parameters are appended at dial time.
	URL string

	UserID         string
	OrganizationID string
	Token          string

	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	Logger *logrus.Logger

	// Transport overrides the websocket transport, used by tests.
	Transport Transport
}

func (c *Config) withDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}
