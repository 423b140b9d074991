package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func kpiEvent(org string, data map[string]any) *SyncEvent {
	return &SyncEvent{
		ID:             uuid.New(),
		Type:           EventKPIUpdate,
		OrganizationID: org,
		Data:           data,
	}
}

// TestSubscription_Matches tests the full matching predicate:
// type membership AND organization equality AND every entity filter.
func TestSubscription_Matches(t *testing.T) {
	tests := []struct {
		name  string
		sub   Subscription
		event *SyncEvent
		want  bool
	}{
		{
			name: "type and org match, no filters",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
			},
			event: kpiEvent("org1", map[string]any{"metric": "revenue"}),
			want:  true,
		},
		{
			name: "different organization never matches",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
			},
			event: kpiEvent("org2", map[string]any{"metric": "revenue"}),
			want:  false,
		},
		{
			name: "type not in set",
			sub: Subscription{
				EventTypes:     []EventType{EventAlert, EventAIInsight},
				OrganizationID: "org1",
			},
			event: kpiEvent("org1", nil),
			want:  false,
		},
		{
			name: "entity filter equality",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
				EntityFilters:  map[string]any{"metric": "revenue"},
			},
			event: kpiEvent("org1", map[string]any{"metric": "revenue", "region": "east"}),
			want:  true,
		},
		{
			name: "entity filter value mismatch",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
				EntityFilters:  map[string]any{"metric": "revenue"},
			},
			event: kpiEvent("org1", map[string]any{"metric": "win_rate"}),
			want:  false,
		},
		{
			name: "missing filter key fails the match",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
				EntityFilters:  map[string]any{"metric": "revenue"},
			},
			event: kpiEvent("org1", map[string]any{"region": "east"}),
			want:  false,
		},
		{
			name: "all filters are ANDed",
			sub: Subscription{
				EventTypes:     []EventType{EventKPIUpdate},
				OrganizationID: "org1",
				EntityFilters:  map[string]any{"metric": "revenue", "region": "west"},
			},
			event: kpiEvent("org1", map[string]any{"metric": "revenue", "region": "east"}),
			want:  false,
		},
		{
			name: "multiple event types accept any member",
			sub: Subscription{
				EventTypes:     []EventType{EventAlert, EventKPIUpdate},
				OrganizationID: "org1",
			},
			event: kpiEvent("org1", nil),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Matches(tt.event))
		})
	}
}
