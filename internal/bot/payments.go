package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/models"
	"nutribot/internal/payment"
	"nutribot/internal/scheduler"
	"nutribot/internal/storage"
)

func (b *Bot) showPlans(ctx context.Context, chatID, userID int64) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}

	var sb strings.Builder
	sb.WriteString("💰 *Planos de Acompanhamento*\n\n")
	sb.WriteString(b.planStatusText(*p))
	sb.WriteString("\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, plan := range payment.Plans {
		sb.WriteString(fmt.Sprintf("*%s* - %s\n_%s_\n\n", plan.Name, payment.FormatPrice(plan.Price), plan.Description))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("%s (%s)", plan.Name, payment.FormatPrice(plan.Price)), "pay:"+plan.Type),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")))

	if b.payments == nil {
		sb.WriteString("⚠️ _O pagamento online está indisponível. Fale com a nutricionista pelo chat._")
		b.replyWithMarkup(chatID, sb.String(), backToMenu())
		return
	}
	sb.WriteString("Escolha um plano para gerar o link de pagamento:")
	b.replyWithMarkup(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// checkout creates a payment link for a plan
func (b *Bot) checkout(ctx context.Context, chatID, userID int64, planType string) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}
	if b.payments == nil {
		b.reply(chatID, "⚠️ O pagamento online está indisponível no momento.")
		return
	}

	pay, err := b.payments.Checkout(ctx, *p, planType)
	if err != nil {
		b.logger.Error("Checkout failed",
			zap.Int64("user_id", userID),
			zap.String("plan", planType),
			zap.Error(err))
		b.reply(chatID, "❌ Não foi possível gerar o link de pagamento. Tente novamente mais tarde.")
		return
	}

	plan, _ := payment.PlanByType(pay.PlanType)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💳 Pagar agora", pay.PaymentLink)),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")),
	)
	b.replyWithMarkup(chatID,
		fmt.Sprintf("💳 *%s*\n\nValor: *%s*\nDuração: %d dias\n\n"+
			"Toque no botão abaixo para pagar com Pix, cartão ou boleto.\n"+
			"✅ Seu plano será renovado automaticamente após a confirmação.",
			plan.Name, payment.FormatPrice(pay.Amount), pay.PlanDays),
		keyboard)
}

// HandlePaymentNotification applies a gateway notification and tells the
// patient and the admins about approvals
func (b *Bot) HandlePaymentNotification(ctx context.Context, paymentID string) error {
	if b.payments == nil {
		return payment.ErrNotConfigured
	}
	out, err := b.payments.ProcessNotification(ctx, paymentID)
	if err != nil {
		return err
	}

	switch {
	case out.Approved:
		p := out.Patient
		now := b.now()
		if _, err := scheduler.ScheduleRenewalReminders(ctx, b.db, p.TelegramID, p.PlanEndDate, b.loc, now); err != nil {
			b.logger.Warn("Failed to schedule renewal reminders", zap.Int64("user_id", p.TelegramID), zap.Error(err))
		}
		b.recordEvent(ctx, models.Event{
			Type:       models.EventPaymentApproved,
			TelegramID: p.TelegramID,
			Value:      out.Payment.Amount,
			Details:    out.Payment.PlanType,
		})

		_ = b.sendMarkdown(p.TelegramID,
			fmt.Sprintf("🎉 *Pagamento aprovado!*\n\nSeu plano foi renovado até *%s*.\n\nObrigado pela confiança! 💚", b.date(p.PlanEndDate)),
			mainMenu(true))
		b.NotifyAdmins(ctx, fmt.Sprintf("💰 *Pagamento aprovado*\n\n👤 %s\n📦 %s\n💵 %s\n📅 Plano até %s",
			p.Name, out.Payment.PlanType, payment.FormatPrice(out.Payment.Amount), b.date(p.PlanEndDate)))

	case out.Status == models.PaymentRejected:
		_ = b.sendMarkdown(out.Payment.TelegramID,
			"❌ *Pagamento não aprovado*\n\nSeu pagamento foi recusado. Tente novamente com outra forma de pagamento.",
			backToMenu())
	}
	return nil
}

func (b *Bot) showReminders(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	reminders, err := b.db.ListPendingReminders(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to list reminders", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, r := range reminders {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("🗑️ Excluir %d", i+1), fmt.Sprintf("reminder_del:%d", r.ID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(button("➕ Novo lembrete", "menu:reminder_add")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")),
	)
	b.replyWithMarkup(chatID, scheduler.FormatReminderList(reminders, b.loc), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) deleteReminder(ctx context.Context, chatID, userID int64, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	err = b.db.DeleteReminder(ctx, userID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, "❌ Lembrete não encontrado.")
		return
	case err != nil:
		b.logger.Error("Failed to delete reminder", zap.Int64("user_id", userID), zap.Int64("reminder_id", id), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.reply(chatID, "🗑️ Lembrete removido.")
	b.showReminders(ctx, chatID, userID)
}
