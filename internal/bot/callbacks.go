package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/flows"
	"nutribot/internal/storage"
)

// handleCallbackQuery processes inline keyboard presses. Data is
// "<kind>:<argument>".
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery",
				zap.Any("panic", r),
				zap.Int64("user_id", query.From.ID),
			)
		}
	}()

	b.answerCallback(query.ID, "")
	if query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	userID := query.From.ID
	kind, arg, _ := strings.Cut(query.Data, ":")

	b.logger.Debug("Callback received",
		zap.Int64("user_id", userID),
		zap.String("data", query.Data))

	switch kind {
	case "flow":
		b.submitOption(ctx, chatID, userID, arg)
	case "menu":
		b.resetUser(ctx, userID)
		b.handleMenuAction(ctx, chatID, userID, arg)
	case "pay":
		b.checkout(ctx, chatID, userID, arg)
	case "reminder_del":
		b.deleteReminder(ctx, chatID, userID, arg)
	case "record":
		b.showRecord(ctx, chatID, userID, arg)
	case "recipe":
		b.resetUser(ctx, userID)
		switch arg {
		case "pantry":
			b.startPantry(ctx, chatID, userID)
		case "kcal":
			b.calorieRecipe(ctx, chatID, userID)
		}
	case "admin", "admin_page", "admin_patient", "admin_reply", "admin_history", "admin_end":
		if !b.IsAdmin(userID) {
			b.reply(chatID, msgUnauthorized)
			return
		}
		b.handleAdminCallback(ctx, chatID, userID, kind, arg)
	default:
		b.logger.Warn("Unknown callback", zap.String("data", query.Data))
	}
}

func (b *Bot) handleMenuAction(ctx context.Context, chatID, userID int64, action string) {
	switch action {
	case "main":
		b.showMenu(ctx, chatID, userID)
	case "profile":
		b.showProfile(ctx, chatID, userID)
	case "profile_edit":
		b.startFlow(ctx, chatID, userID, flows.FlowRegistration,
			"✏️ *Atualizar Cadastro*\n\nVamos refazer seu cadastro. Seu plano atual será mantido.")
	case "plan":
		b.showPlanStatus(ctx, chatID, userID)
	case "analysis":
		b.showAnalysis(ctx, chatID, userID)
	case "weight_add":
		b.startWeight(ctx, chatID, userID)
	case "weight_history":
		b.showWeightHistory(ctx, chatID, userID)
	case "upload":
		if _, ok := b.requireActivePlan(ctx, chatID, userID); ok {
			b.reply(chatID, msgFileUploadStart)
		}
	case "files":
		b.showFiles(ctx, chatID, userID)
	case "chat":
		b.startChat(ctx, chatID, userID)
	case "reminders":
		b.showReminders(ctx, chatID, userID)
	case "reminder_add":
		if _, ok := b.requireActivePlan(ctx, chatID, userID); ok {
			b.startFlow(ctx, chatID, userID, flows.FlowReminder, "")
		}
	case "questionnaire":
		b.startQuestionnaire(ctx, chatID, userID)
	case "records":
		b.showRecords(ctx, chatID, userID)
	case "renew":
		b.showPlans(ctx, chatID, userID)
	case "workout":
		b.startWorkout(ctx, chatID, userID)
	case "recipes":
		b.showRecipes(ctx, chatID, userID)
	case "diary":
		b.showDiary(ctx, chatID, userID)
	case "diary_add":
		b.startDiary(ctx, chatID, userID)
	case "diary_today":
		b.showDiaryToday(ctx, chatID, userID)
	case "diary_history":
		b.showDiaryHistory(ctx, chatID, userID)
	case "calories":
		b.startCalories(ctx, chatID, userID)
	default:
		b.logger.Warn("Unknown menu action", zap.String("action", action))
	}
}

// showRecord displays a questionnaire to its owner or to an admin
func (b *Bot) showRecord(ctx context.Context, chatID, userID int64, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	record, err := b.db.GetFoodRecord(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "❌ Questionário não encontrado.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to get food record", zap.Int64("record_id", id), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	admin := b.IsAdmin(userID)
	if record.TelegramID != userID && !admin {
		b.reply(chatID, msgUnauthorized)
		return
	}

	name := ""
	if admin {
		if p, err := b.loadPatient(ctx, record.TelegramID); err == nil && p != nil {
			name = p.Name
		}
	}

	var markup any = backToMenu()
	if admin {
		markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			button("💬 Responder", fmt.Sprintf("admin_reply:%d", record.TelegramID)),
			button("👤 Paciente", fmt.Sprintf("admin_patient:%d", record.TelegramID)),
		))
	}
	b.replyWithMarkup(chatID, b.formatRecord(*record, name), markup)
}
