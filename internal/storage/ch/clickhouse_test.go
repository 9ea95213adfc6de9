package ch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"nutribot/internal/models"
)

func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in short mode")
	}
	ctx := context.Background()

	container, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, host, port.Int(), "default", "default", "", false), "Failed to run migrations")

	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}

	return db, cleanup
}

func TestClickHouseDB_RecordAndCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	events := []models.Event{
		{OccurredAt: now, Type: models.EventWeightLogged, TelegramID: 1, Flow: "weight", Value: 71.5},
		{OccurredAt: now, Type: models.EventWeightLogged, TelegramID: 2, Flow: "weight", Value: 80},
		{OccurredAt: now, Type: models.EventRegistrationCompleted, TelegramID: 1, Flow: "registration"},
		{OccurredAt: now.Add(-48 * time.Hour), Type: models.EventPaymentApproved, TelegramID: 1, Details: "monthly"},
	}
	for _, e := range events {
		require.NoError(t, db.Record(ctx, e))
	}

	counts, err := db.CountByType(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.EventWeightLogged, counts[0].Type)
	assert.Equal(t, uint64(2), counts[0].Count)
	assert.Equal(t, models.EventRegistrationCompleted, counts[1].Type)

	counts, err = db.CountByType(ctx, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, counts, 3)
}

func TestClickHouseDB_RecordDefaultsTime(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, db.Record(ctx, models.Event{Type: models.EventReminderSent, TelegramID: 9}))

	counts, err := db.CountByType(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, models.EventReminderSent, counts[0].Type)
}

func TestClickHouseDB_ConcurrentRecords(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	numGoroutines := 10

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := db.Record(ctx, models.Event{Type: models.EventQuestionnaireSubmitted, TelegramID: int64(idx)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	counts, err := db.CountByType(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, uint64(numGoroutines), counts[0].Count)
}

func TestClickHouseDB_Close(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, db.Close())
	// Second close should not panic
	assert.NoError(t, db.Close())
}
