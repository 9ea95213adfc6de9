package storage

import (
	"context"
	"errors"
	"time"

	"nutribot/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data storage operations
type Storage interface {
	// Patient operations

	// GetPatient returns ErrNotFound for unknown telegram ids
	GetPatient(ctx context.Context, telegramID int64) (*models.Patient, error)
	UpsertPatient(ctx context.Context, patient models.Patient) (*models.Patient, error)
	ListPatients(ctx context.Context) ([]models.Patient, error)
	// ListPatientsWithPlanEndingBetween returns active patients whose plan ends in [from, to)
	ListPatientsWithPlanEndingBetween(ctx context.Context, from, to time.Time) ([]models.Patient, error)
	UpdatePlan(ctx context.Context, telegramID int64, status string, start, end time.Time) error
	UpdatePatientWeight(ctx context.Context, telegramID int64, weight float64) error

	// Food record operations
	CreateFoodRecord(ctx context.Context, record models.FoodRecord) (*models.FoodRecord, error)
	// LatestFoodRecordSince returns the newest record created at or after since, or ErrNotFound
	LatestFoodRecordSince(ctx context.Context, telegramID int64, since time.Time) (*models.FoodRecord, error)
	ListFoodRecords(ctx context.Context, telegramID int64) ([]models.FoodRecord, error)
	GetFoodRecord(ctx context.Context, id int64) (*models.FoodRecord, error)

	// Weight history operations
	AddWeightEntry(ctx context.Context, telegramID int64, weight float64, at time.Time) error
	// ListWeightEntries returns entries ordered oldest first
	ListWeightEntries(ctx context.Context, telegramID int64) ([]models.WeightEntry, error)

	// Reminder operations
	CreateReminder(ctx context.Context, reminder models.Reminder) (*models.Reminder, error)
	// ListDueReminders returns unsent reminders scheduled at or before now
	ListDueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
	ListPendingReminders(ctx context.Context, telegramID int64) ([]models.Reminder, error)
	// DeleteReminder removes a reminder owned by telegramID
	DeleteReminder(ctx context.Context, telegramID, id int64) error
	// DeletePendingReminders removes the patient's unsent reminders of one type and returns how many
	DeletePendingReminders(ctx context.Context, telegramID int64, reminderType string) (int, error)

	// Food diary operations
	AddDiaryEntry(ctx context.Context, entry models.DiaryEntry) (*models.DiaryEntry, error)
	// ListDiaryEntries returns entries created at or after since, oldest first
	ListDiaryEntries(ctx context.Context, telegramID int64, since time.Time) ([]models.DiaryEntry, error)
	CountDiaryEntries(ctx context.Context, telegramID int64) (int, error)

	// Calorie log operations
	AddCalorieEntry(ctx context.Context, entry models.CalorieEntry) (*models.CalorieEntry, error)
	// SumCaloriesSince totals the kcal of entries created at or after since
	SumCaloriesSince(ctx context.Context, telegramID int64, since time.Time) (int, error)

	// Chat operations
	AddChatMessage(ctx context.Context, msg models.ChatMessage) error
	// ListChatMessages returns the last limit messages, oldest first
	ListChatMessages(ctx context.Context, telegramID int64, limit int) ([]models.ChatMessage, error)
	// CountUnreadMessages counts patient messages after the last nutritionist message
	CountUnreadMessages(ctx context.Context, telegramID int64) (int, error)

	// File operations
	AddPatientFile(ctx context.Context, file models.PatientFile) error
	ListPatientFiles(ctx context.Context, telegramID int64) ([]models.PatientFile, error)

	// Payment operations
	CreatePayment(ctx context.Context, payment models.Payment) (*models.Payment, error)
	GetPaymentByReference(ctx context.Context, externalRef string) (*models.Payment, error)
	// UpdatePaymentStatus records the gateway status unless the payment is already approved.
	// It reports whether the row changed and returns ErrNotFound for unknown references.
	UpdatePaymentStatus(ctx context.Context, externalRef, status, paymentID string, paidAt *time.Time) (bool, error)

	// Statistics operations
	GetDashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// EventLog is an append-only analytics sink
type EventLog interface {
	Record(ctx context.Context, event models.Event) error
	// CountByType returns per-type counts of events at or after since, most frequent first
	CountByType(ctx context.Context, since time.Time) ([]models.EventCount, error)
	Close() error
}

// NopEventLog discards events
type NopEventLog struct{}

func (NopEventLog) Record(context.Context, models.Event) error { return nil }

func (NopEventLog) CountByType(context.Context, time.Time) ([]models.EventCount, error) {
	return nil, nil
}

func (NopEventLog) Close() error { return nil }
