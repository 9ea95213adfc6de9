package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutribot/internal/models"
	"nutribot/internal/storage/stubs"
)

type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[int64][]string
	admin   []string
	failFor int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string)}
}

func (f *fakeNotifier) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatID == f.failFor {
		return errors.New("bot was blocked by the user")
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeNotifier) NotifyAdmins(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admin = append(f.admin, text)
}

type recordingEvents struct {
	events []models.Event
}

func (r *recordingEvents) Record(ctx context.Context, e models.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) CountByType(context.Context, time.Time) ([]models.EventCount, error) {
	return nil, nil
}

func (r *recordingEvents) Close() error { return nil }

var saoPaulo = time.FixedZone("BRT", -3*3600)

func TestDispatchReminders(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	notifier := newFakeNotifier()
	notifier.failFor = 2
	events := &recordingEvents{}

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, saoPaulo)
	for _, r := range []models.Reminder{
		{TelegramID: 1, Type: models.ReminderCustom, Message: "beber água", ScheduledFor: now.Add(-time.Minute)},
		{TelegramID: 2, Type: models.ReminderCustom, Message: "treino", ScheduledFor: now.Add(-time.Minute)},
		{TelegramID: 1, Type: models.ReminderCustom, Message: "amanhã", ScheduledFor: now.Add(24 * time.Hour)},
	} {
		_, err := db.CreateReminder(ctx, r)
		require.NoError(t, err)
	}

	s := New(db, events, notifier, saoPaulo, zap.NewNop())
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.DispatchReminders(ctx))

	require.Len(t, notifier.sent[1], 1)
	assert.Equal(t, "🔔 *Lembrete*\n\nbeber água", notifier.sent[1][0])
	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventReminderSent, events.events[0].Type)

	// the failed one stays due
	due, err := db.ListDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(2), due[0].TelegramID)

	notifier.failFor = 0
	require.NoError(t, s.DispatchReminders(ctx))
	assert.Len(t, notifier.sent[2], 1)
	assert.Len(t, notifier.sent[1], 1)
}

func TestExpiringDigest(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	notifier := newFakeNotifier()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, saoPaulo)

	s := New(db, nil, notifier, saoPaulo, zap.NewNop())
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.ExpiringDigest(ctx))
	assert.Empty(t, notifier.admin, "no digest without expiring plans")

	_, err := db.UpsertPatient(ctx, models.Patient{TelegramID: 1, Name: "Ana Souza", PlanStatus: models.PlanActive, PlanEndDate: now.Add(72 * time.Hour)})
	require.NoError(t, err)
	_, err = db.UpsertPatient(ctx, models.Patient{TelegramID: 2, Name: "Bruno", PlanStatus: models.PlanActive, PlanEndDate: now.AddDate(0, 0, 20)})
	require.NoError(t, err)

	require.NoError(t, s.ExpiringDigest(ctx))
	require.Len(t, notifier.admin, 1)
	assert.Contains(t, notifier.admin[0], "1. Ana Souza\n   📅 13/05/2026 (3 dia(s))")
	assert.NotContains(t, notifier.admin[0], "Bruno")
}

func TestRenewalReminders(t *testing.T) {
	end := time.Date(2026, 6, 30, 15, 0, 0, 0, saoPaulo)

	t.Run("all in the future", func(t *testing.T) {
		now := time.Date(2026, 6, 1, 8, 0, 0, 0, saoPaulo)
		rs := RenewalReminders(1, end, saoPaulo, now)
		require.Len(t, rs, 3)
		assert.Equal(t, time.Date(2026, 6, 23, 10, 0, 0, 0, saoPaulo), rs[0].ScheduledFor)
		assert.Equal(t, time.Date(2026, 6, 27, 10, 0, 0, 0, saoPaulo), rs[1].ScheduledFor)
		assert.Equal(t, time.Date(2026, 6, 29, 10, 0, 0, 0, saoPaulo), rs[2].ScheduledFor)
		for _, r := range rs {
			assert.Equal(t, models.ReminderPlanRenewal, r.Type)
		}
	})

	t.Run("past dates dropped", func(t *testing.T) {
		now := time.Date(2026, 6, 27, 11, 0, 0, 0, saoPaulo)
		rs := RenewalReminders(1, end, saoPaulo, now)
		require.Len(t, rs, 1)
		assert.Contains(t, rs[0].Message, "amanhã")
	})
}

func TestScheduleRenewalReminders_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, saoPaulo)
	end := time.Date(2026, 6, 30, 15, 0, 0, 0, saoPaulo)

	n, err := ScheduleRenewalReminders(ctx, db, 1, end, saoPaulo, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ScheduleRenewalReminders(ctx, db, 1, end, saoPaulo, now)
	require.NoError(t, err)

	pending, err := db.ListPendingReminders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestScheduleRenewalReminders_RenewalReplacesStale(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, saoPaulo)
	end := time.Date(2026, 6, 30, 15, 0, 0, 0, saoPaulo)

	custom, err := db.CreateReminder(ctx, models.Reminder{TelegramID: 1, Type: models.ReminderCustom, Message: "água", ScheduledFor: now.Add(time.Hour)})
	require.NoError(t, err)

	_, err = ScheduleRenewalReminders(ctx, db, 1, end, saoPaulo, now)
	require.NoError(t, err)
	renewed := end.AddDate(0, 0, 30)
	n, err := ScheduleRenewalReminders(ctx, db, 1, renewed, saoPaulo, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := db.ListPendingReminders(ctx, 1)
	require.NoError(t, err)
	var renewals []models.Reminder
	for _, r := range pending {
		if r.Type == models.ReminderPlanRenewal {
			renewals = append(renewals, r)
		}
	}
	require.Len(t, renewals, 3)
	assert.Equal(t, time.Date(2026, 7, 23, 10, 0, 0, 0, saoPaulo), renewals[0].ScheduledFor)
	assert.Equal(t, custom.ID, pending[0].ID, "custom reminders survive rescheduling")
}

func TestFormatReminderList(t *testing.T) {
	assert.Contains(t, FormatReminderList(nil, saoPaulo), "Nenhum lembrete agendado")

	out := FormatReminderList([]models.Reminder{
		{Type: models.ReminderCustom, Message: "consulta", ScheduledFor: time.Date(2026, 7, 2, 14, 30, 0, 0, saoPaulo)},
	}, saoPaulo)
	assert.Contains(t, out, "1. 📝 consulta\n   📅 02/07/2026 às 14:30")
}

func TestStartStop(t *testing.T) {
	db := stubs.NewMockDB()
	s := New(db, nil, newFakeNotifier(), saoPaulo, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()

	assert.Error(t, s.AddJob("not a cron", func() {}))
}
