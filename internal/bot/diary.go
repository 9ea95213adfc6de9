package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/ai"
	"nutribot/internal/conversation"
	"nutribot/internal/flows"
	"nutribot/internal/models"
	"nutribot/internal/nutrition"
)

const (
	// diaryHistoryDays is the window of the full diary history
	diaryHistoryDays = 7
	// minRecipeKcal is the smallest remainder worth a recipe
	minRecipeKcal = 50
)

// startOfDay returns local midnight of t
func (b *Bot) startOfDay(t time.Time) time.Time {
	local := t.In(b.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc)
}

func diaryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📷 Registrar Refeição", "menu:diary_add")),
		tgbotapi.NewInlineKeyboardRow(button("📅 Ver Histórico (Hoje)", "menu:diary_today")),
		tgbotapi.NewInlineKeyboardRow(button("📊 Histórico Completo", "menu:diary_history")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar ao menu", "menu:main")),
	)
}

func (b *Bot) showDiary(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	total, err := b.db.CountDiaryEntries(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to count diary entries", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, fmt.Sprintf("📸 *Diário Alimentar*\n\n"+
		"📊 Total de registros: %d\n\n"+
		"Use o diário para registrar suas refeições com fotos. "+
		"Isso ajuda a nutricionista a acompanhar sua alimentação de forma visual!\n\n"+
		"Escolha uma opção:", total), diaryKeyboard())
}

func (b *Bot) startDiary(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowDiary, "")
}

// submitDiaryPhoto feeds a photo to a diary session waiting for one.
// It returns false when no session waits for a photo.
func (b *Bot) submitDiaryPhoto(ctx context.Context, chatID, userID int64, f incomingFile) bool {
	engine := b.engines[flows.FlowDiary]
	if _, ok := b.photoStep(ctx, engine, userID); !ok {
		return false
	}
	if f.Type != models.MessagePhoto {
		b.reply(chatID, "📷 Envie a refeição como *foto*, não como documento.")
		return true
	}
	res, err := engine.Submit(ctx, userID, f.ID)
	b.deliverResult(ctx, chatID, userID, engine, res, err)
	return true
}

func (b *Bot) completeDiary(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	entry, err := b.db.AddDiaryEntry(ctx, flows.DiaryEntryFromAnswers(ownerID, answers))
	if err != nil {
		return "", err
	}
	meal := flows.LabelOf(flows.MealTypes, entry.MealType)

	name := "Paciente"
	if p, err := b.loadPatient(ctx, ownerID); err == nil && p != nil {
		name = p.Name
	}
	caption := fmt.Sprintf("📸 Novo Registro no Diário\n\n👤 Paciente: %s\n🍽️ Refeição: %s\n📅 Data: %s",
		name, meal, b.now().In(b.loc).Format("02/01/2006 15:04"))
	if entry.Observation != "" {
		caption += "\n\n💬 Observação: " + entry.Observation
	}
	for adminID := range b.admins {
		if err := b.forwardFile(adminID, models.MessagePhoto, entry.PhotoFileID, caption); err != nil {
			b.logger.Warn("Failed to forward diary photo", zap.Int64("admin_id", adminID), zap.Error(err))
		}
	}

	b.recordEvent(ctx, models.Event{Type: models.EventDiaryEntry, TelegramID: ownerID, Flow: flows.FlowDiary, Details: entry.MealType})
	return fmt.Sprintf("✅ *Registro salvo com sucesso!*\n\n%s foi registrado(a) no seu diário.\n\n"+
		"A nutricionista receberá a notificação! 🎉", meal), nil
}

func (b *Bot) showDiaryToday(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	entries, err := b.db.ListDiaryEntries(ctx, userID, b.startOfDay(b.now()))
	if err != nil {
		b.logger.Error("Failed to list diary entries", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("➕ Adicionar Mais", "menu:diary_add")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:diary")),
	)
	if len(entries) == 0 {
		b.replyWithMarkup(chatID, "📅 *Diário de Hoje*\n\nVocê ainda não registrou nenhuma refeição hoje.\n\nComece agora!", keyboard)
		return
	}

	for _, e := range entries {
		caption := fmt.Sprintf("%s\n🕐 %s", flows.LabelOf(flows.MealTypes, e.MealType), e.CreatedAt.In(b.loc).Format("15:04"))
		if e.Observation != "" {
			caption += "\n💬 " + e.Observation
		}
		if err := b.forwardFile(chatID, models.MessagePhoto, e.PhotoFileID, caption); err != nil {
			b.logger.Warn("Failed to send diary photo", zap.Int64("entry_id", e.ID), zap.Error(err))
		}
	}
	b.replyWithMarkup(chatID, fmt.Sprintf("📊 Total de hoje: %d refeição(ões)", len(entries)), keyboard)
}

// FormatDiaryHistory groups entries per local day, newest day first
func FormatDiaryHistory(entries []models.DiaryEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return "📊 *Histórico Completo*\n\nVocê ainda não tem registros nos últimos 7 dias.\n\nComece a registrar suas refeições hoje!"
	}

	var days []string
	counts := make(map[string]int)
	for i := len(entries) - 1; i >= 0; i-- {
		day := entries[i].CreatedAt.In(loc).Format("02/01/2006")
		if counts[day] == 0 {
			days = append(days, day)
		}
		counts[day]++
	}

	var sb strings.Builder
	sb.WriteString("📊 *Histórico dos Últimos 7 Dias*\n\n")
	fmt.Fprintf(&sb, "📈 Total de registros: %d\n\n", len(entries))
	for _, day := range days {
		fmt.Fprintf(&sb, "📅 *%s*: %d refeição(ões)\n", day, counts[day])
	}
	sb.WriteString("\n💡 Continue registrando para melhores resultados!")
	return sb.String()
}

func (b *Bot) showDiaryHistory(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	since := b.startOfDay(b.now()).AddDate(0, 0, -diaryHistoryDays)
	entries, err := b.db.ListDiaryEntries(ctx, userID, since)
	if err != nil {
		b.logger.Error("Failed to list diary history", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, FormatDiaryHistory(entries, b.loc), tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📅 Ver Hoje", "menu:diary_today")),
		tgbotapi.NewInlineKeyboardRow(button("➕ Adicionar Mais", "menu:diary_add")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:diary")),
	))
}

// dailyCalories returns the patient's daily target and the kcal logged since local midnight
func (b *Bot) dailyCalories(ctx context.Context, p models.Patient) (target, consumed int, err error) {
	target = nutrition.Analyze(p).Calories
	consumed, err = b.db.SumCaloriesSince(ctx, p.TelegramID, b.startOfDay(b.now()))
	return target, consumed, err
}

func (b *Bot) startCalories(ctx context.Context, chatID, userID int64) {
	p, ok := b.requireActivePlan(ctx, chatID, userID)
	if !ok {
		return
	}
	if _, disabled := b.ai.(ai.Disabled); disabled {
		b.replyWithMarkup(chatID, msgAIUnavailable, backToMenu())
		return
	}
	target, consumed, err := b.dailyCalories(ctx, *p)
	if err != nil {
		b.logger.Error("Failed to sum calories", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowCalories,
		flows.CaloriesIntro(target, consumed, nutrition.ActivityLabel(p.ActivityLevel)))
}

// FormatCalorieSummary renders an estimate against the day's target
func FormatCalorieSummary(est ai.Estimate, consumed, target int) string {
	var sb strings.Builder
	sb.WriteString("✅ *Calorias estimadas*\n\n")
	for _, item := range est.Items {
		name := item.Name
		if name == "" {
			name = "Item"
		}
		fmt.Fprintf(&sb, "• %s: %d kcal\n", name, int(item.Kcal+0.5))
	}
	if len(est.Items) > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Registro agora: *%d kcal*\n", est.TotalKcal())
	fmt.Fprintf(&sb, "Consumido hoje: *%d kcal*\n", consumed)
	fmt.Fprintf(&sb, "Meta diária: ~%d kcal\n", target)
	if remaining := target - consumed; remaining >= 0 {
		fmt.Fprintf(&sb, "Restam hoje: ~%d kcal", remaining)
	} else {
		fmt.Fprintf(&sb, "Ultrapassou hoje: ~%d kcal", -remaining)
	}
	return sb.String()
}

func (b *Bot) completeCalories(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	p, err := b.loadPatient(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return msgNotRegistered, nil
	}

	foods := answers.String(flows.KeyFoods)
	b.reply(ownerID, "⏳ Calculando calorias...")
	est, err := ai.EstimateCalories(ctx, b.ai, foods)
	if errors.Is(err, ai.ErrUnparseableEstimate) {
		return "❌ Não consegui calcular. Tente detalhar quantidades e alimentos.", nil
	}
	if err != nil {
		return b.aiFailure("calorie estimate", ownerID, err), nil
	}

	if _, err := b.db.AddCalorieEntry(ctx, models.CalorieEntry{
		TelegramID: ownerID,
		Text:       foods,
		Items:      est.Items,
		TotalKcal:  est.TotalKcal(),
	}); err != nil {
		return "", err
	}
	target, consumed, err := b.dailyCalories(ctx, *p)
	if err != nil {
		return "", err
	}

	b.recordEvent(ctx, models.Event{Type: models.EventCaloriesLogged, TelegramID: ownerID, Flow: flows.FlowCalories, Value: float64(est.TotalKcal())})
	return FormatCalorieSummary(est, consumed, target), nil
}
