package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/flows"
)

// sendMarkdown sends text as Markdown. Patient-written text may break the
// entity parser, so a rejected message is resent as plain text.
func (b *Bot) sendMarkdown(chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err == nil {
		return nil
	}

	msg.ParseMode = ""
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	return nil
}

// reply sends a message and ignores delivery errors, which sendMarkdown logs
func (b *Bot) reply(chatID int64, text string) {
	_ = b.sendMarkdown(chatID, text, nil)
}

func (b *Bot) replyWithMarkup(chatID int64, text string, markup any) {
	_ = b.sendMarkdown(chatID, text, markup)
}

// SendMarkdown delivers a message to a chat
func (b *Bot) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	return b.sendMarkdown(chatID, text, nil)
}

// NotifyAdmins sends text to every nutritionist account
func (b *Bot) NotifyAdmins(ctx context.Context, text string) {
	b.notifyAdminsWithMarkup(text, nil)
}

func (b *Bot) notifyAdminsWithMarkup(text string, markup any) {
	for id := range b.admins {
		if err := b.sendMarkdown(id, text, markup); err != nil {
			b.logger.Warn("Failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
}

// forwardFile sends a stored Telegram file to chatID
func (b *Bot) forwardFile(chatID int64, fileType, fileID, caption string) error {
	var c tgbotapi.Chattable
	switch fileType {
	case "photo":
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		p.Caption = caption
		c = p
	default:
		d := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
		d.Caption = caption
		c = d
	}
	_, err := b.api.Send(c)
	return err
}

func (b *Bot) answerCallback(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

// optionsKeyboard lays options out two per row as flow:<flow>:<step key>:<value>
// buttons, so a press only answers the step that offered it
func optionsKeyboard(flowName, key string, options []flows.Option) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for i, o := range options {
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(o.Label, optionData(flowName, key, o.Value)))

		// Add row when we have 2 buttons or it's the last option
		if len(currentRow) == 2 || i == len(options)-1 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func optionData(flowName, key, value string) string {
	return "flow:" + flowName + ":" + key + ":" + value
}

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func backToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar ao menu", "menu:main")))
}

// state helpers

func (b *Bot) getState(userID int64) *ConversationState {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	return b.states[userID]
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) *ConversationState {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	s := b.states[userID]
	delete(b.states, userID)
	return s
}

// adminsReplyingTo returns the admins currently answering patientID
func (b *Bot) adminsReplyingTo(patientID int64) []int64 {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	var ids []int64
	for id, s := range b.states {
		if s.Mode == modeAdminReply && s.PatientID == patientID {
			ids = append(ids, id)
		}
	}
	return ids
}

// date formats t as DD/MM/YYYY in the bot's time zone
func (b *Bot) date(t time.Time) string {
	return t.In(b.loc).Format("02/01/2006")
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.LastName != "" {
		return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
	}
	return u.FirstName
}
