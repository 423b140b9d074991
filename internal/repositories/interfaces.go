package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/salespulse/realtime/internal/models"
)

var ErrNotFound = errors.New("not found")

type EventRepository interface {
	Append(ctx context.Context, event *models.SyncEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncEvent, error)
	GetByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.SyncEvent, error)
	GetSince(ctx context.Context, organizationID string, since time.Time) ([]*models.SyncEvent, error)
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	DeletePresence(ctx context.Context, organizationID, userID string) error
	ListOnline(ctx context.Context, organizationID string) ([]*models.Presence, error)
}
