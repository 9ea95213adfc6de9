package bot

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/ai"
	"nutribot/internal/conversation"
	"nutribot/internal/payment"
	"nutribot/internal/storage"
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	StopReceivingUpdates()
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api      telegramAPI
	token    string
	db       storage.Storage
	events   storage.EventLog
	payments *payment.Service
	ai       ai.Completer
	admins   map[int64]bool
	loc      *time.Location
	now      func() time.Time

	// engines drive the guided forms, flowOrder is the text routing priority
	engines   map[string]*conversation.Engine
	flowOrder []string

	states   map[int64]*ConversationState
	statesMu sync.RWMutex
	locks    *conversation.KeyedMutex

	logger *zap.Logger
}

// Open-ended modes that are not guided forms
const (
	modeChat       = "chat"        // patient talking to the nutritionist
	modeAdminReply = "admin_reply" // admin answering one patient
)

// ConversationState tracks an open-ended mode of a user
type ConversationState struct {
	Mode      string
	PatientID int64 // patient an admin is replying to
}

// Options carries the collaborators of the bot
type Options struct {
	DB       storage.Storage
	Events   storage.EventLog
	Payments *payment.Service // nil disables checkout
	AI       ai.Completer
	Admins   []int64
	Location *time.Location
	// NewStore creates the session store of one flow
	NewStore func(flow string) conversation.Store
}
