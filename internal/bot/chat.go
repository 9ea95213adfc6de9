package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/models"
)

// historyLimit is how many chat messages an admin sees at once
const historyLimit = 20

func (b *Bot) startChat(ctx context.Context, chatID, userID int64) {
	p, ok := b.requireActivePlan(ctx, chatID, userID)
	if !ok {
		return
	}
	b.setState(userID, &ConversationState{Mode: modeChat})
	b.reply(chatID, msgChatStart)
	b.notifyAdminsWithMarkup(
		fmt.Sprintf("💬 *%s* abriu o chat com você.", p.Name),
		chatKeyboard(userID))
}

// chatKeyboard offers the admin actions for one patient conversation
func chatKeyboard(patientID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("💬 Responder", fmt.Sprintf("admin_reply:%d", patientID)),
			button("📜 Histórico", fmt.Sprintf("admin_history:%d", patientID)),
		),
		tgbotapi.NewInlineKeyboardRow(button("🔴 Encerrar conversa", fmt.Sprintf("admin_end:%d", patientID))),
	)
}

// relayPatientText stores a chat message and forwards it to the admins
func (b *Bot) relayPatientText(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	if err := b.db.AddChatMessage(ctx, models.ChatMessage{
		TelegramID:  userID,
		SenderType:  models.SenderPatient,
		MessageType: models.MessageText,
		Text:        message.Text,
	}); err != nil {
		b.logger.Error("Failed to store chat message", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(message.Chat.ID, msgGenericError)
		return
	}

	b.notifyAdminsWithMarkup(
		fmt.Sprintf("💬 *Mensagem de %s*%s\n\n%s", b.patientLabel(ctx, message.From), b.unreadSuffix(ctx, userID), message.Text),
		chatKeyboard(userID))
	b.reply(message.Chat.ID, "✅ Mensagem enviada para a nutricionista!")
}

// relayAdminText delivers an admin answer to the patient being replied to
func (b *Bot) relayAdminText(ctx context.Context, message *tgbotapi.Message, patientID int64) {
	if err := b.sendMarkdown(patientID, "👩‍⚕️ *Nutricionista:*\n\n"+message.Text, nil); err != nil {
		b.reply(message.Chat.ID, "❌ Não foi possível entregar a mensagem ao paciente.")
		return
	}
	if err := b.db.AddChatMessage(ctx, models.ChatMessage{
		TelegramID:  patientID,
		SenderType:  models.SenderNutritionist,
		MessageType: models.MessageText,
		Text:        message.Text,
	}); err != nil {
		b.logger.Warn("Failed to store admin reply", zap.Int64("patient_id", patientID), zap.Error(err))
	}
	b.reply(message.Chat.ID, "✅ Resposta enviada. Continue digitando ou use /menu para sair.")
}

// relayAdminFile forwards a file from an admin in reply mode
func (b *Bot) relayAdminFile(ctx context.Context, message *tgbotapi.Message, patientID int64, f incomingFile) {
	if err := b.forwardFile(patientID, f.Type, f.ID, "👩‍⚕️ Nutricionista: "+message.Caption); err != nil {
		b.logger.Warn("Failed to forward admin file", zap.Int64("patient_id", patientID), zap.Error(err))
		b.reply(message.Chat.ID, "❌ Não foi possível entregar o arquivo ao paciente.")
		return
	}
	if err := b.db.AddChatMessage(ctx, models.ChatMessage{
		TelegramID:  patientID,
		SenderType:  models.SenderNutritionist,
		MessageType: f.Type,
		Text:        message.Caption,
		FileID:      f.ID,
		FileName:    f.Name,
	}); err != nil {
		b.logger.Warn("Failed to store admin file", zap.Int64("patient_id", patientID), zap.Error(err))
	}
	b.reply(message.Chat.ID, "✅ Arquivo enviado ao paciente.")
}

func (b *Bot) startAdminReply(ctx context.Context, chatID, adminID, patientID int64) {
	name := fmt.Sprint(patientID)
	if p, err := b.loadPatient(ctx, patientID); err == nil && p != nil {
		name = p.Name
	}
	b.resetUser(ctx, adminID)
	b.setState(adminID, &ConversationState{Mode: modeAdminReply, PatientID: patientID})
	b.reply(chatID, fmt.Sprintf("✍️ *Respondendo a %s*\n\nDigite sua mensagem ou envie um arquivo.\n\n❌ Para sair, digite: /menu", name))
}

func (b *Bot) showChatHistory(ctx context.Context, chatID, patientID int64) {
	msgs, err := b.db.ListChatMessages(ctx, patientID, historyLimit)
	if err != nil {
		b.logger.Error("Failed to list chat messages", zap.Int64("patient_id", patientID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, b.formatChatHistory(msgs), chatKeyboard(patientID))
}

func (b *Bot) formatChatHistory(msgs []models.ChatMessage) string {
	if len(msgs) == 0 {
		return "📜 *Histórico*\n\nNenhuma mensagem trocada ainda."
	}
	var sb strings.Builder
	sb.WriteString("📜 *Histórico do Chat*\n\n")
	for _, m := range msgs {
		who := "👤"
		if m.SenderType == models.SenderNutritionist {
			who = "👩‍⚕️"
		}
		text := m.Text
		switch m.MessageType {
		case models.MessagePhoto:
			text = strings.TrimSpace("[foto] " + text)
		case models.MessageDocument:
			text = strings.TrimSpace(fmt.Sprintf("[arquivo %s] %s", m.FileName, text))
		}
		sb.WriteString(fmt.Sprintf("%s _%s_\n%s\n\n", who, m.CreatedAt.In(b.loc).Format("02/01 15:04"), text))
	}
	return sb.String()
}

// endChat closes a patient conversation for both sides
func (b *Bot) endChat(ctx context.Context, chatID, patientID int64) {
	if s := b.getState(patientID); s != nil && s.Mode == modeChat {
		b.clearState(patientID)
		b.replyWithMarkup(patientID, msgChatEndedByNutritionist, b.menuFor(ctx, patientID))
	}
	for _, adminID := range b.adminsReplyingTo(patientID) {
		b.clearState(adminID)
	}
	b.replyWithMarkup(chatID, "🔴 Conversa encerrada.", adminMenu())
}

func (b *Bot) patientLabel(ctx context.Context, u *tgbotapi.User) string {
	if p, err := b.loadPatient(ctx, u.ID); err == nil && p != nil {
		return p.Name
	}
	return userName(u)
}

func (b *Bot) unreadSuffix(ctx context.Context, patientID int64) string {
	n, err := b.db.CountUnreadMessages(ctx, patientID)
	if err != nil || n <= 1 {
		return ""
	}
	return fmt.Sprintf(" (%d não respondidas)", n)
}
