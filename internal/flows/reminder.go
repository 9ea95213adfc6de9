package flows

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nutribot/internal/conversation"
)

// Reminder creation answer keys
const (
	KeyReminderMessage = "message"
	KeyReminderAt      = "scheduled_for"
)

// ReminderDateLayout is the accepted date format, DD/MM/AAAA HH:MM
const ReminderDateLayout = "02/01/2006 15:04"

var reminderDatePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})\s+(\d{1,2}):(\d{2})$`)

const reminderDateFormat = "❌ Formato inválido. Use: DD/MM/AAAA HH:MM\nExemplo: 25/11/2025 14:30"

// ParseReminderDate parses DD/MM/AAAA HH:MM in loc and requires it to be after now
func ParseReminderDate(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	m := reminderDatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, conversation.Invalid(reminderDateFormat)
	}

	var parts [5]int
	for i := range parts {
		parts[i], _ = strconv.Atoi(m[i+1])
	}
	day, month, year, hour, minute := parts[0], parts[1], parts[2], parts[3], parts[4]

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject such dates
	if at.Day() != day || int(at.Month()) != month || at.Hour() != hour || at.Minute() != minute {
		return time.Time{}, conversation.Invalid(reminderDateFormat)
	}
	if !at.After(now) {
		return time.Time{}, conversation.Invalid("❌ A data deve ser no futuro!")
	}
	return at, nil
}

// NewReminderCreate builds the two-step custom reminder flow
func NewReminderCreate(loc *time.Location, now func() time.Time, onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key:      KeyReminderMessage,
			Prompt:   "📝 *Criar Novo Lembrete*\n\nPasso 1/2: Digite a mensagem do lembrete.\n\n💡 _Exemplo: Tomar suplemento X_",
			Validate: MinLength(3, "❌ A mensagem deve ter pelo menos 3 caracteres."),
		},
		{
			Key: KeyReminderAt,
			Prompt: "📅 *Criar Novo Lembrete*\n\nPasso 2/2: Digite a data e hora do lembrete.\n\n" +
				"💡 _Formato: DD/MM/AAAA HH:MM_\n📝 _Exemplo: 25/11/2025 14:30_",
			Validate: func(raw string) (any, error) {
				at, err := ParseReminderDate(raw, loc, now())
				if err != nil {
					return nil, err
				}
				return at.Format(time.RFC3339), nil
			},
		},
	}
	return conversation.NewFlow(FlowReminder, steps, onComplete,
		conversation.WithInvalidFormatter(func(_ conversation.Step, reason string) string { return reason }))
}

// ReminderTime reads the scheduled time stored by the reminder flow
func ReminderTime(answers conversation.Answers) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, answers.String(KeyReminderAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reminder time: %w", err)
	}
	return at, nil
}
