package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutribot/internal/models"
)

// RenewalStore is what ScheduleRenewalReminders needs
type RenewalStore interface {
	CreateReminder(ctx context.Context, reminder models.Reminder) (*models.Reminder, error)
	DeletePendingReminders(ctx context.Context, telegramID int64, reminderType string) (int, error)
}

var renewalNotices = []struct {
	daysBefore int
	message    string
}{
	{7, "⚠️ Seu plano vence em 7 dias! Não esqueça de renovar para continuar seu acompanhamento."},
	{3, "⏰ Seu plano vence em 3 dias! Entre em contato para renovar."},
	{1, "🚨 Seu plano vence amanhã! Renove agora para não perder seu progresso."},
}

// RenewalReminders returns the plan_renewal reminders for a plan ending at
// end: 7, 3 and 1 days before, at 10:00 in loc. Past dates are dropped.
func RenewalReminders(telegramID int64, end time.Time, loc *time.Location, now time.Time) []models.Reminder {
	local := end.In(loc)
	var out []models.Reminder
	for _, n := range renewalNotices {
		day := local.AddDate(0, 0, -n.daysBefore)
		at := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, loc)
		if !at.After(now) {
			continue
		}
		out = append(out, models.Reminder{
			TelegramID:   telegramID,
			Type:         models.ReminderPlanRenewal,
			Message:      n.message,
			ScheduledFor: at,
		})
	}
	return out
}

// ScheduleRenewalReminders replaces the patient's pending renewal reminders with the
// ones for end. It returns how many were created.
func ScheduleRenewalReminders(ctx context.Context, db RenewalStore, telegramID int64, end time.Time, loc *time.Location, now time.Time) (int, error) {
	if _, err := db.DeletePendingReminders(ctx, telegramID, models.ReminderPlanRenewal); err != nil {
		return 0, fmt.Errorf("failed to clear renewal reminders: %w", err)
	}

	created := 0
	for _, r := range RenewalReminders(telegramID, end, loc, now) {
		if _, err := db.CreateReminder(ctx, r); err != nil {
			return created, fmt.Errorf("failed to create renewal reminder: %w", err)
		}
		created++
	}
	return created, nil
}

func reminderEmoji(kind string) string {
	switch kind {
	case models.ReminderPlanRenewal:
		return "📅"
	case models.ReminderWeightCheck:
		return "⚖️"
	case models.ReminderAppointment:
		return "🏥"
	case models.ReminderCustom:
		return "📝"
	}
	return "🔔"
}

// FormatReminderList renders the patient's pending reminders
func FormatReminderList(reminders []models.Reminder, loc *time.Location) string {
	if len(reminders) == 0 {
		return "📭 *Nenhum lembrete agendado*\n\nVocê não tem lembretes pendentes no momento."
	}

	var b strings.Builder
	b.WriteString("🔔 *Seus Lembretes Agendados*\n\n")
	for i, r := range reminders {
		at := r.ScheduledFor.In(loc)
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, reminderEmoji(r.Type), r.Message)
		fmt.Fprintf(&b, "   📅 %s às %s\n\n", at.Format("02/01/2006"), at.Format("15:04"))
	}
	return b.String()
}

// FormatExpiringPlans renders the admin list of plans ending soon
func FormatExpiringPlans(patients []models.Patient, now time.Time, loc *time.Location) string {
	if len(patients) == 0 {
		return "✅ Nenhum plano vencendo nos próximos 7 dias."
	}

	var b strings.Builder
	b.WriteString("⚠️ *Planos Vencendo em 7 Dias*\n\n")
	for i, p := range patients {
		fmt.Fprintf(&b, "%d. %s\n   📅 %s (%d dia(s))\n\n",
			i+1, p.Name, p.PlanEndDate.In(loc).Format("02/01/2006"), p.DaysRemaining(now))
	}
	return b.String()
}
