package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newRecord(status domain.ArchiveStatus) *SessionRecord {
	return &SessionRecord{
		ID:              uuid.New().String(),
		UserID:          "user-123",
		Status:          status,
		State:           domain.StateCompleted,
		OrderID:         "42",
		OrderType:       domain.OrderTypeOnline,
		PaymentAttempts: 1,
		FinalTotal:      "950.00",
		Session:         json.RawMessage(`{"id":"x"}`),
		ArchivedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestArchiveSession_WritesSessionAndEvent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	rec := newRecord(domain.ArchiveStatusCompleted)

	err := repo.ArchiveSession(ctx, rec, json.RawMessage(`{"checkout_id":"`+rec.ID+`"}`))
	require.NoError(t, err)

	got, err := repo.GetArchivedSession(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, domain.ArchiveStatusCompleted, got.Status)
	assert.Equal(t, domain.StateCompleted, got.State)
	assert.Equal(t, "42", got.OrderID)
	assert.Equal(t, 1, got.PaymentAttempts)
	assert.Equal(t, "950.00", got.FinalTotal)
	assert.JSONEq(t, `{"id":"x"}`, string(got.Session))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, rec.ID, events[0].AggregateId)
	assert.Equal(t, domain.EventCheckoutCompleted, events[0].EventType)
}

func TestArchiveSession_AbandonedWithoutOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	rec := newRecord(domain.ArchiveStatusAbandoned)
	rec.OrderID = ""
	rec.State = domain.StateSelectingOffer

	require.NoError(t, repo.ArchiveSession(ctx, rec, json.RawMessage(`{}`)))

	got, err := repo.GetArchivedSession(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.OrderID)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCheckoutAbandoned, events[0].EventType)
}

func TestArchiveSession_Duplicate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	rec := newRecord(domain.ArchiveStatusCompleted)
	require.NoError(t, repo.ArchiveSession(ctx, rec, json.RawMessage(`{}`)))

	err := repo.ArchiveSession(ctx, rec, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrAlreadyArchived)

	// the failed transaction must not leave a second outbox row behind
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGetArchivedSession_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetArchivedSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMarkEventAsProcessed(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.ArchiveSession(ctx, newRecord(domain.ArchiveStatusCompleted), json.RawMessage(`{}`)))
	require.NoError(t, repo.ArchiveSession(ctx, newRecord(domain.ArchiveStatusAbandoned), json.RawMessage(`{}`)))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	remaining, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events[1].ID, remaining[0].ID)

	assert.Error(t, repo.MarkEventAsProcessed(ctx, 999999))
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetArchivedSession(ctx, "any-id")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
