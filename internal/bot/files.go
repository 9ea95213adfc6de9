package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/models"
)

// maxFileSize is the Telegram bot download limit
const maxFileSize = 20 * 1024 * 1024

type incomingFile struct {
	ID   string
	Name string
	Type string // models.MessagePhoto or models.MessageDocument
	Size int
}

// fileFromMessage extracts the document, or the largest photo size
func (b *Bot) fileFromMessage(message *tgbotapi.Message) (incomingFile, bool) {
	if d := message.Document; d != nil {
		name := d.FileName
		if name == "" {
			name = "documento"
		}
		return incomingFile{ID: d.FileID, Name: name, Type: models.MessageDocument, Size: d.FileSize}, true
	}
	if n := len(message.Photo); n > 0 {
		p := message.Photo[n-1]
		name := fmt.Sprintf("foto_%s.jpg", b.now().In(b.loc).Format("20060102_150405"))
		return incomingFile{ID: p.FileID, Name: name, Type: models.MessagePhoto, Size: p.FileSize}, true
	}
	return incomingFile{}, false
}

// handleFile stores a patient file and forwards it to the admins. Admins in
// reply mode send the file to the patient instead, and a diary waiting for
// its photo takes the file as the answer.
func (b *Bot) handleFile(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	f, ok := b.fileFromMessage(message)
	if !ok {
		return
	}
	if f.Size > maxFileSize {
		b.reply(chatID, "❌ Arquivo muito grande. O tamanho máximo é 20MB.")
		return
	}

	if b.IsAdmin(userID) {
		if s := b.getState(userID); s != nil && s.Mode == modeAdminReply {
			b.relayAdminFile(ctx, message, s.PatientID, f)
			return
		}
		b.replyWithMarkup(chatID, "💡 Para enviar um arquivo a um paciente, toque em *Responder* em uma mensagem dele.", adminMenu())
		return
	}

	if b.submitDiaryPhoto(ctx, chatID, userID, f) {
		return
	}

	p, ok := b.requireActivePlan(ctx, chatID, userID)
	if !ok {
		return
	}

	if err := b.db.AddPatientFile(ctx, models.PatientFile{
		TelegramID: userID,
		FileID:     f.ID,
		FileName:   f.Name,
		FileType:   f.Type,
	}); err != nil {
		b.logger.Error("Failed to store patient file", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	inChat := false
	if s := b.getState(userID); s != nil && s.Mode == modeChat {
		inChat = true
		if err := b.db.AddChatMessage(ctx, models.ChatMessage{
			TelegramID:  userID,
			SenderType:  models.SenderPatient,
			MessageType: f.Type,
			Text:        message.Caption,
			FileID:      f.ID,
			FileName:    f.Name,
		}); err != nil {
			b.logger.Warn("Failed to store chat file", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	caption := fmt.Sprintf("📎 Arquivo de %s: %s", p.Name, f.Name)
	if message.Caption != "" {
		caption += "\n" + message.Caption
	}
	for adminID := range b.admins {
		if err := b.forwardFile(adminID, f.Type, f.ID, caption); err != nil {
			b.logger.Warn("Failed to forward file to admin", zap.Int64("admin_id", adminID), zap.Error(err))
		}
	}
	b.notifyAdminsWithMarkup(fmt.Sprintf("📎 *%s* enviou um arquivo.", p.Name), chatKeyboard(userID))

	b.logger.Info("Patient file received",
		zap.Int64("user_id", userID),
		zap.String("file_type", f.Type),
		zap.String("file_name", f.Name))

	if inChat {
		b.reply(chatID, "✅ Arquivo enviado para a nutricionista!")
		return
	}
	b.replyWithMarkup(chatID, "✅ *Arquivo recebido!*\n\nA nutricionista foi notificada. 📂", mainMenu(p.HasActivePlan(b.now())))
}
