package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/flows"
	"nutribot/internal/models"
	"nutribot/internal/storage"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Int64("user_id", message.From.ID),
			)
			b.reply(message.Chat.ID, msgGenericError)
		}
	}()

	userID := message.From.ID
	chatID := message.Chat.ID

	// Any command interrupts an ongoing flow or mode
	if message.IsCommand() {
		b.resetUser(ctx, userID)
		b.handleCommand(ctx, message)
		return
	}

	if message.Document != nil || len(message.Photo) > 0 {
		b.handleFile(ctx, message)
		return
	}

	if message.Text == "" {
		return
	}

	if b.routeToFlows(ctx, chatID, userID, message.Text) {
		return
	}

	if state := b.getState(userID); state != nil {
		switch state.Mode {
		case modeAdminReply:
			b.relayAdminText(ctx, message, state.PatientID)
			return
		case modeChat:
			b.relayPatientText(ctx, message)
			return
		}
	}

	b.replyWithMarkup(chatID, msgUnknown, b.menuFor(ctx, userID))
}

// resetUser cancels every flow and mode of userID
func (b *Bot) resetUser(ctx context.Context, userID int64) {
	for _, name := range b.flowOrder {
		if err := b.engines[name].Cancel(ctx, userID); err != nil {
			b.logger.Warn("Failed to cancel flow", zap.String("flow", name), zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	b.clearState(userID)
}

// loadPatient returns nil without error for unknown users
func (b *Bot) loadPatient(ctx context.Context, userID int64) (*models.Patient, error) {
	p, err := b.db.GetPatient(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return p, nil
}

// requirePatient loads the patient or starts registration for unknown users
func (b *Bot) requirePatient(ctx context.Context, chatID, userID int64) (*models.Patient, bool) {
	p, err := b.loadPatient(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load patient", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return nil, false
	}
	if p == nil {
		// Keep a registration in progress instead of starting over
		if active, err := b.engines[flows.FlowRegistration].Active(ctx, userID); err == nil && active {
			b.reply(chatID, msgFinishRegistration)
			return nil, false
		}
		b.reply(chatID, msgNotRegistered)
		b.startRegistration(ctx, chatID, userID)
		return nil, false
	}
	return p, true
}

// requireActivePlan loads a patient whose plan is running, offering renewal otherwise
func (b *Bot) requireActivePlan(ctx context.Context, chatID, userID int64) (*models.Patient, bool) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return nil, false
	}
	if !p.HasActivePlan(b.now()) {
		b.replyWithMarkup(chatID, msgPlanInactive, tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button("💰 Renovar Plano", "menu:renew")),
			tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar ao menu", "menu:main")),
		))
		return nil, false
	}
	return p, true
}

// menuFor returns the keyboard a user should see after an action
func (b *Bot) menuFor(ctx context.Context, userID int64) any {
	if b.IsAdmin(userID) {
		return adminMenu()
	}
	p, err := b.loadPatient(ctx, userID)
	if err != nil || p == nil {
		return nil
	}
	return mainMenu(p.HasActivePlan(b.now()))
}

func (b *Bot) showMenu(ctx context.Context, chatID, userID int64) {
	if b.IsAdmin(userID) {
		b.replyWithMarkup(chatID, msgWelcomeAdmin, adminMenu())
		return
	}
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}
	b.replyWithMarkup(chatID, msgMainMenu, mainMenu(p.HasActivePlan(b.now())))
}

func (b *Bot) recordEvent(ctx context.Context, event models.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}
	if err := b.events.Record(ctx, event); err != nil {
		b.logger.Warn("Failed to record event", zap.String("event", event.Type), zap.Error(err))
	}
}
