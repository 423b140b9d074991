package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salespulse/realtime/internal/models"
)

type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// Append inserts one event into the append-only log. Events are immutable;
// there is no update path.
func (r *PostgresEventRepository) Append(ctx context.Context, event *models.SyncEvent) error {
	query := `INSERT INTO sync_events (id, event_type, entity_type, entity_id, data, user_id, organization_id, created_at, version, checksum)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Type,
		event.EntityType,
		event.EntityID,
		event.Data,
		event.UserID,
		event.OrganizationID,
		event.Timestamp,
		event.Version,
		event.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncEvent, error) {
	query := `SELECT id, event_type, entity_type, entity_id, data, user_id, organization_id, created_at, version, checksum
	          FROM sync_events
	          WHERE id = $1`

	var event models.SyncEvent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Type,
		&event.EntityType,
		&event.EntityID,
		&event.Data,
		&event.UserID,
		&event.OrganizationID,
		&event.Timestamp,
		&event.Version,
		&event.Checksum,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}
	return &event, nil
}

func (r *PostgresEventRepository) GetByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.SyncEvent, error) {
	query := `SELECT id, event_type, entity_type, entity_id, data, user_id, organization_id, created_at, version, checksum
	          FROM sync_events
	          WHERE organization_id = $1
	          ORDER BY created_at DESC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetSince returns the organization's events created after since, oldest
// first, so callers can replay them in original publish order.
func (r *PostgresEventRepository) GetSince(ctx context.Context, organizationID string, since time.Time) ([]*models.SyncEvent, error) {
	query := `SELECT id, event_type, entity_type, entity_id, data, user_id, organization_id, created_at, version, checksum
	          FROM sync_events
	          WHERE organization_id = $1 AND created_at > $2
	          ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, organizationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*models.SyncEvent, error) {
	var events []*models.SyncEvent
	for rows.Next() {
		var event models.SyncEvent
		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.EntityType,
			&event.EntityID,
			&event.Data,
			&event.UserID,
			&event.OrganizationID,
			&event.Timestamp,
			&event.Version,
			&event.Checksum,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
