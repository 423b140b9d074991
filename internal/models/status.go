package models

import "time"

// ConnectionStatus is a point-in-time snapshot of transport health. It is
// mutated only by the engine; callers receive value copies.
type ConnectionStatus struct {
	Connected         bool          `json:"connected"`
	Latency           time.Duration `json:"latency"`
	LastHeartbeat     time.Time     `json:"lastHeartbeat"`
	ReconnectAttempts int           `json:"reconnectAttempts"`
	LastError         string        `json:"lastError,omitempty"`
}

// SyncMetrics holds cumulative engine counters. All counters are
// monotonically non-decreasing; uptime is derived from ConnectedAt and
// resets on every disconnect.
type SyncMetrics struct {
	MessagesReceived uint64        `json:"messagesReceived"`
	MessagesSent     uint64        `json:"messagesSent"`
	EventsProcessed  uint64        `json:"eventsProcessed"`
	Errors           uint64        `json:"errors"`
	AverageLatency   time.Duration `json:"averageLatency"`
	ConnectedAt      time.Time     `json:"connectedAt"`
}

// Uptime returns how long the current connection has been up, or zero while
// disconnected.
func (m SyncMetrics) Uptime() time.Duration {
	if m.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(m.ConnectedAt)
}
