package models

import (
	"reflect"

	"github.com/google/uuid"
)

// Subscription is a standing interest registration: which events a consumer
// wants and the callback to invoke for each match. The callback is only used
// client-side; the server tracks subscriptions with a nil callback.
type Subscription struct {
	ID             uuid.UUID
	EventTypes     []EventType
	EntityFilters  map[string]any
	OrganizationID string
	Callback       func(*SyncEvent)
}

// Matches reports whether event e satisfies this subscription: the event
// type must be one of EventTypes, the organization must match exactly, and
// every entity filter key must be present in e.Data with an equal value.
// All conditions are ANDed; there is no OR or negation.
func (s *Subscription) Matches(e *SyncEvent) bool {
	if e.OrganizationID != s.OrganizationID {
		return false
	}

	typeOK := false
	for _, t := range s.EventTypes {
		if e.Type == t {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}

	for key, want := range s.EntityFilters {
		got, ok := e.Data[key]
		// DeepEqual instead of == so non-comparable filter values
		// (nested maps) cannot panic the match.
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}

	return true
}
