package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"

	"nutribot/internal/models"
	"nutribot/internal/storage"
)

func setupTestDB(t *testing.T) (*PostgresDB, func()) {
	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("nutribot"),
		postgresTC.WithUsername("nutribot"),
		postgresTC.WithPassword("nutribot"),
		postgresTC.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start Postgres container")

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, url), "Failed to run migrations")

	db, err := NewPostgresDB(ctx, url, 4, 1)
	require.NoError(t, err, "Failed to connect to Postgres")

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}
	return db, cleanup
}

func TestPostgresDB(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("patient upsert keeps created_at", func(t *testing.T) {
		_, err := db.GetPatient(ctx, 1)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		created, err := db.UpsertPatient(ctx, models.Patient{
			TelegramID: 1, Name: "Maria Silva", Age: 34, Gender: "Feminino", Weight: 68.5, Height: 165,
			ActivityLevel: "moderate", Objective: "Emagrecer", Restrictions: "Sem restrições",
			PlanStatus: models.PlanActive, PlanStartDate: now, PlanEndDate: now.AddDate(0, 0, 30),
		})
		require.NoError(t, err)

		updated, err := db.UpsertPatient(ctx, models.Patient{
			TelegramID: 1, Name: "Maria Silva", Age: 35, Weight: 67, Height: 165,
			PlanStatus: models.PlanActive, PlanStartDate: now, PlanEndDate: now.AddDate(0, 0, 30),
		})
		require.NoError(t, err)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.Equal(t, 35, updated.Age)

		require.NoError(t, db.UpdatePatientWeight(ctx, 1, 66.4))
		p, err := db.GetPatient(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 66.4, p.Weight)
		assert.True(t, p.HasActivePlan(now))
	})

	t.Run("food records keep answer order", func(t *testing.T) {
		answers := []models.RecordAnswer{
			{Key: "wake_time", Value: "7h"},
			{Key: "breakfast", Value: "café com pão"},
			{Key: "water", Value: "2 litros"},
		}
		rec, err := db.CreateFoodRecord(ctx, models.FoodRecord{TelegramID: 1, RecordType: "recordatorio_24h", Answers: answers})
		require.NoError(t, err)

		got, err := db.GetFoodRecord(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, answers, got.Answers)

		latest, err := db.LatestFoodRecordSince(ctx, 1, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, rec.ID, latest.ID)

		_, err = db.LatestFoodRecordSince(ctx, 1, now.Add(time.Hour))
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("weights oldest first", func(t *testing.T) {
		require.NoError(t, db.AddWeightEntry(ctx, 1, 70, now.Add(-48*time.Hour)))
		require.NoError(t, db.AddWeightEntry(ctx, 1, 69, now))

		entries, err := db.ListWeightEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 70.0, entries[0].Weight)
	})

	t.Run("reminders", func(t *testing.T) {
		due, err := db.CreateReminder(ctx, models.Reminder{TelegramID: 1, Type: models.ReminderCustom, Message: "beber água", ScheduledFor: now.Add(-time.Minute)})
		require.NoError(t, err)
		_, err = db.CreateReminder(ctx, models.Reminder{TelegramID: 1, Type: models.ReminderCustom, Message: "treino", ScheduledFor: now.Add(time.Hour)})
		require.NoError(t, err)

		list, err := db.ListDueReminders(ctx, now)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, due.ID, list[0].ID)

		require.NoError(t, db.MarkReminderSent(ctx, due.ID, now))
		list, err = db.ListDueReminders(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, list)

		pending, err := db.ListPendingReminders(ctx, 1)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		assert.True(t, errors.Is(db.DeleteReminder(ctx, 2, pending[0].ID), storage.ErrNotFound))
		assert.NoError(t, db.DeleteReminder(ctx, 1, pending[0].ID))
	})

	t.Run("delete pending reminders by type", func(t *testing.T) {
		for _, typ := range []string{models.ReminderPlanRenewal, models.ReminderPlanRenewal, models.ReminderCustom} {
			_, err := db.CreateReminder(ctx, models.Reminder{TelegramID: 3, Type: typ, Message: "m", ScheduledFor: now.Add(time.Hour)})
			require.NoError(t, err)
		}

		deleted, err := db.DeletePendingReminders(ctx, 3, models.ReminderPlanRenewal)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		pending, err := db.ListPendingReminders(ctx, 3)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, models.ReminderCustom, pending[0].Type)
	})

	t.Run("food diary", func(t *testing.T) {
		_, err := db.AddDiaryEntry(ctx, models.DiaryEntry{TelegramID: 1, MealType: models.MealLunch, PhotoFileID: "photo-1", Observation: "comi tudo"})
		require.NoError(t, err)

		entries, err := db.ListDiaryEntries(ctx, 1, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.MealLunch, entries[0].MealType)
		assert.Equal(t, "comi tudo", entries[0].Observation)

		count, err := db.CountDiaryEntries(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("calorie log", func(t *testing.T) {
		for _, kcal := range []int{450, 300} {
			_, err := db.AddCalorieEntry(ctx, models.CalorieEntry{TelegramID: 1, Text: "arroz e frango",
				Items: []models.CalorieItem{{Name: "arroz", Kcal: 130}}, TotalKcal: kcal})
			require.NoError(t, err)
		}

		total, err := db.SumCaloriesSince(ctx, 1, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 750, total)

		total, err = db.SumCaloriesSince(ctx, 1, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("chat unread count", func(t *testing.T) {
		for _, sender := range []string{models.SenderPatient, models.SenderNutritionist, models.SenderPatient, models.SenderPatient} {
			require.NoError(t, db.AddChatMessage(ctx, models.ChatMessage{TelegramID: 1, SenderType: sender, MessageType: models.MessageText, Text: "olá"}))
		}

		count, err := db.CountUnreadMessages(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		msgs, err := db.ListChatMessages(ctx, 1, 3)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, models.SenderNutritionist, msgs[0].SenderType)
	})

	t.Run("payments", func(t *testing.T) {
		_, err := db.CreatePayment(ctx, models.Payment{TelegramID: 1, PlanType: "monthly", Amount: 150, PlanDays: 30, Status: models.PaymentPending, ExternalRef: "1_ref"})
		require.NoError(t, err)

		paidAt := now
		updated, err := db.UpdatePaymentStatus(ctx, "1_ref", models.PaymentApproved, "123", &paidAt)
		require.NoError(t, err)
		assert.True(t, updated)

		p, err := db.GetPaymentByReference(ctx, "1_ref")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentApproved, p.Status)
		require.NotNil(t, p.PaidAt)

		updated, err = db.UpdatePaymentStatus(ctx, "1_ref", models.PaymentApproved, "123", &paidAt)
		require.NoError(t, err)
		assert.False(t, updated, "an approved payment is final")

		_, err = db.UpdatePaymentStatus(ctx, "nope", models.PaymentApproved, "1", nil)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("dashboard stats", func(t *testing.T) {
		require.NoError(t, db.AddPatientFile(ctx, models.PatientFile{TelegramID: 1, FileID: "f", FileName: "exame.pdf", FileType: "document"}))
		_, err := db.UpsertPatient(ctx, models.Patient{TelegramID: 2, Name: "João", Age: 40, Weight: 90, Height: 180,
			PlanStatus: models.PlanActive, PlanStartDate: now.AddDate(0, 0, -28), PlanEndDate: now.AddDate(0, 0, 2)})
		require.NoError(t, err)

		stats, err := db.GetDashboardStats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalPatients)
		assert.Equal(t, 2, stats.ActivePlans)
		assert.Equal(t, 1, stats.ExpiringSoon)
		assert.Equal(t, 1, stats.TotalFiles)
		assert.Equal(t, 1, stats.FoodRecords)

		expiring, err := db.ListPatientsWithPlanEndingBetween(ctx, now, now.AddDate(0, 0, 7))
		require.NoError(t, err)
		require.Len(t, expiring, 1)
		assert.Equal(t, int64(2), expiring[0].TelegramID)
	})
}
