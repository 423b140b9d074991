package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSyncEvent_StampsFields tests that drafts are stamped exactly once
func TestNewSyncEvent_StampsFields(t *testing.T) {
	draft := EventDraft{
		Type:           EventKPIUpdate,
		EntityType:     "kpi",
		EntityID:       "revenue-q3",
		Data:           map[string]any{"metric": "revenue", "value": 1250000.0},
		UserID:         "user-1",
		OrganizationID: "org-1",
	}

	event := NewSyncEvent(draft)

	require.NotNil(t, event)
	assert.NotEqual(t, uuid.Nil, event.ID, "ID should be generated")
	assert.False(t, event.Timestamp.IsZero(), "Timestamp should be set")
	assert.Equal(t, int64(1), event.Version, "Version is always 1 at creation")
	assert.NotEmpty(t, event.Checksum)
	assert.Equal(t, EventKPIUpdate, event.Type)
	assert.Equal(t, "org-1", event.OrganizationID)
}

// TestNewSyncEvent_UniqueIDs tests that ids are never reused
func TestNewSyncEvent_UniqueIDs(t *testing.T) {
	draft := EventDraft{Type: EventAlert, OrganizationID: "org-1"}

	first := NewSyncEvent(draft)
	second := NewSyncEvent(draft)

	assert.NotEqual(t, first.ID, second.ID)
}

// TestChecksumData tests that the digest is deterministic for equal payloads
// and changes when the payload changes
func TestChecksumData(t *testing.T) {
	data := map[string]any{"metric": "revenue", "value": 42.0}
	same := map[string]any{"value": 42.0, "metric": "revenue"}
	different := map[string]any{"metric": "revenue", "value": 43.0}

	assert.Equal(t, ChecksumData(data), ChecksumData(same), "key order must not matter")
	assert.NotEqual(t, ChecksumData(data), ChecksumData(different))
	assert.Len(t, ChecksumData(data), 64, "hex SHA-256")
}

// TestChecksumData_NilPayload tests that events without data still get a
// stable checksum
func TestChecksumData_NilPayload(t *testing.T) {
	assert.Equal(t, ChecksumData(nil), ChecksumData(nil))
	assert.NotEmpty(t, ChecksumData(nil))
}
