package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salespulse/realtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestPool connects to the database named by TEST_DATABASE_URL, or skips
// the test when it is not set.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)
	return pool
}

func testEvent(org string, entityID string, at time.Time) *models.SyncEvent {
	ev := models.NewSyncEvent(models.EventDraft{
		Type:           models.EventRecordChange,
		EntityType:     "lead",
		EntityID:       entityID,
		Data:           map[string]any{"stage": "qualified"},
		UserID:         "rep-1",
		OrganizationID: org,
	})
	ev.Timestamp = at
	return ev
}

func cleanupOrganization(t *testing.T, pool *pgxpool.Pool, ctx context.Context, org string) {
	_, err := pool.Exec(ctx, "DELETE FROM sync_events WHERE organization_id = $1", org)
	assert.NoError(t, err)
}

// TestEventRepository_AppendAndGetByID tests the append-only write path and
// a point read
func TestEventRepository_AppendAndGetByID(t *testing.T) {
	// ARRANGE: Setup test database connection
	pool := getTestPool(t)
	repo := NewPostgresEventRepository(pool)
	ctx := context.Background()

	org := "test-org-" + uuid.New().String()
	defer cleanupOrganization(t, pool, ctx, org)

	ev := testEvent(org, "lead-1", time.Now())

	// ACT
	err := repo.Append(ctx, ev)

	// ASSERT
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, ev.Checksum, got.Checksum)
	assert.Equal(t, int64(1), got.Version)
}

// TestEventRepository_GetByID_NotFound tests the missing-row sentinel
func TestEventRepository_GetByID_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresEventRepository(pool)

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
}

// TestEventRepository_GetSince_ReplayOrder tests that history replay comes
// back oldest first and excludes events at or before the bound
func TestEventRepository_GetSince_ReplayOrder(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresEventRepository(pool)
	ctx := context.Background()

	org := "test-org-" + uuid.New().String()
	defer cleanupOrganization(t, pool, ctx, org)

	base := time.Now().Add(-time.Hour)
	for i, entity := range []string{"lead-1", "lead-2", "lead-3"} {
		require.NoError(t, repo.Append(ctx, testEvent(org, entity, base.Add(time.Duration(i)*time.Minute))))
	}

	// ACT: replay everything after the first event
	events, err := repo.GetSince(ctx, org, base)

	// ASSERT: oldest first, first event excluded by the strict bound
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "lead-2", events[0].EntityID)
	assert.Equal(t, "lead-3", events[1].EntityID)
}

// TestEventRepository_GetByOrganization tests the newest-first history view
// and the organization scope
func TestEventRepository_GetByOrganization(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresEventRepository(pool)
	ctx := context.Background()

	org := "test-org-" + uuid.New().String()
	otherOrg := "test-org-" + uuid.New().String()
	defer cleanupOrganization(t, pool, ctx, org)
	defer cleanupOrganization(t, pool, ctx, otherOrg)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Append(ctx, testEvent(org, "lead-old", base)))
	require.NoError(t, repo.Append(ctx, testEvent(org, "lead-new", base.Add(time.Minute))))
	require.NoError(t, repo.Append(ctx, testEvent(otherOrg, "lead-foreign", base)))

	events, err := repo.GetByOrganization(ctx, org, 10)

	require.NoError(t, err)
	require.Len(t, events, 2, "other organization's events excluded")
	assert.Equal(t, "lead-new", events[0].EntityID, "newest first")
	assert.Equal(t, "lead-old", events[1].EntityID)
}
