package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the kinds of sync events the engine carries.
type EventType string

const (
	EventKPIUpdate    EventType = "kpi_update"
	EventRecordChange EventType = "record_change"
	EventAIInsight    EventType = "ai_insight"
	EventAlert        EventType = "alert"
	EventUserActivity EventType = "user_activity"
	EventSystemNotice EventType = "system_notice"
)

// SyncEvent is an immutable fact describing a change of interest.
// All fields are assigned at creation and never mutated afterwards.
type SyncEvent struct {
	ID             uuid.UUID      `json:"id"`
	Type           EventType      `json:"type"`
	EntityType     string         `json:"entityType"`
	EntityID       string         `json:"entityId"`
	Data           map[string]any `json:"data"`
	UserID         string         `json:"userId"`
	OrganizationID string         `json:"organizationId"`
	Timestamp      time.Time      `json:"timestamp"`
	Version        int64          `json:"version"`
	Checksum       string         `json:"checksum"`
}

// EventDraft is the publisher-supplied portion of a SyncEvent. The engine
// fills in ID, Timestamp, Version and Checksum when the event is created.
type EventDraft struct {
	Type           EventType
	EntityType     string
	EntityID       string
	Data           map[string]any
	UserID         string
	OrganizationID string
}

// NewSyncEvent stamps a draft into a complete event. Version is always 1;
// publishers that need per-entity revision counters must track them
// themselves.
func NewSyncEvent(draft EventDraft) *SyncEvent {
	return &SyncEvent{
		ID:             uuid.New(),
		Type:           draft.Type,
		EntityType:     draft.EntityType,
		EntityID:       draft.EntityID,
		Data:           draft.Data,
		UserID:         draft.UserID,
		OrganizationID: draft.OrganizationID,
		Timestamp:      time.Now(),
		Version:        1,
		Checksum:       ChecksumData(draft.Data),
	}
}

// ChecksumData computes the hex SHA-256 digest of the JSON encoding of data.
// encoding/json sorts map keys, so the encoding is canonical for equal maps.
// The checksum is an integrity hint for receivers, not a security primitive.
func ChecksumData(data map[string]any) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		// Maps of JSON-compatible values never fail to encode; a payload
		// that does is checksummed as empty rather than rejected.
		encoded = nil
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
