package models

import "encoding/json"

// MessageKind discriminates wire messages. Subscribe, unsubscribe, publish
// and heartbeat flow client-to-server; event, heartbeat, error and
// subscription_confirmed flow server-to-client.
type MessageKind string

const (
	MessageSubscribe             MessageKind = "subscribe"
	MessageUnsubscribe           MessageKind = "unsubscribe"
	MessagePublish               MessageKind = "publish"
	MessageHeartbeat             MessageKind = "heartbeat"
	MessageEvent                 MessageKind = "event"
	MessageError                 MessageKind = "error"
	MessageSubscriptionConfirmed MessageKind = "subscription_confirmed"
)

// Message is the wire envelope for every frame on the sync channel. Fields
// other than Type are populated per kind and omitted otherwise.
type Message struct {
	Type           MessageKind    `json:"type"`
	SubscriptionID string         `json:"subscriptionId,omitempty"`
	EventTypes     []EventType    `json:"eventTypes,omitempty"`
	EntityFilters  map[string]any `json:"entityFilters,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Event          *SyncEvent     `json:"event,omitempty"`
	Timestamp      int64          `json:"timestamp,omitempty"` // unix milliseconds, heartbeat only
	Error          string         `json:"error,omitempty"`
}

// DecodeMessage parses a raw frame into a Message.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
