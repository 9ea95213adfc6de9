package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/ai"
	"nutribot/internal/conversation"
	"nutribot/internal/flows"
	"nutribot/internal/storage"
)

// NewBot creates a new Telegram bot
func NewBot(token string, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))
	return newBot(api, token, opts, logger), nil
}

func newBot(api telegramAPI, token string, opts Options, logger *zap.Logger) *Bot {
	admins := make(map[int64]bool)
	for _, id := range opts.Admins {
		admins[id] = true
	}
	if opts.Events == nil {
		opts.Events = storage.NopEventLog{}
	}
	if opts.AI == nil {
		opts.AI = ai.Disabled{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NewStore == nil {
		opts.NewStore = func(flow string) conversation.Store { return conversation.NewMemoryStore(flow) }
	}

	b := &Bot{
		api:      api,
		token:    token,
		db:       opts.DB,
		events:   opts.Events,
		payments: opts.Payments,
		ai:       opts.AI,
		admins:   admins,
		loc:      opts.Location,
		now:      time.Now,
		engines:  make(map[string]*conversation.Engine),
		states:   make(map[int64]*ConversationState),
		locks:    conversation.NewKeyedMutex(),
		logger:   logger,
	}

	// Routing priority: admin and short flows first, registration last
	for _, f := range []*conversation.Flow{
		flows.NewBroadcast(b.completeBroadcast),
		flows.NewReminderCreate(b.loc, b.clock, b.completeReminder),
		flows.NewQuestionnaire(b.completeQuestionnaire),
		flows.NewWeightLog(b.completeWeight),
		flows.NewWorkout(b.completeWorkout),
		flows.NewPantry(b.completePantry),
		flows.NewDiary(b.completeDiary),
		flows.NewCalorieLog(b.completeCalories),
		flows.NewRegistration(b.completeRegistration),
	} {
		b.engines[f.Name()] = conversation.NewEngine(f, opts.NewStore(f.Name()), logger)
		b.flowOrder = append(b.flowOrder, f.Name())
	}
	return b
}

func (b *Bot) clock() time.Time {
	return b.now()
}

// IsAdmin reports whether userID is a nutritionist account
func (b *Bot) IsAdmin(userID int64) bool {
	return b.admins[userID]
}
