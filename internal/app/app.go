package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutribot/internal/ai"
	"nutribot/internal/bot"
	"nutribot/internal/config"
	"nutribot/internal/conversation"
	"nutribot/internal/payment"
	"nutribot/internal/scheduler"
	"nutribot/internal/storage"
	"nutribot/internal/storage/ch"
	"nutribot/internal/storage/pg"
	"nutribot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	db        storage.Storage
	events    storage.EventLog
	redis     *redis.Client
	bot       *bot.Bot
	scheduler *scheduler.Scheduler
	server    *echo.Echo
}

// New creates and initializes a new application instance
func New() (*App, error) {
	cfg, envFound, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if !envFound {
		logger.Info("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting nutritionist bot...", zap.String("env", cfg.Env))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initAnalytics(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initBot(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.scheduler = scheduler.New(app.db, app.events, app.bot, cfg.Location(), logger)
	app.initHTTPServer()

	return app, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDev() || cfg.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initDatabase connects to Postgres, or the in-memory store in mock mode
func (a *App) initDatabase(ctx context.Context) error {
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		a.db = stubs.NewMockDB()
		return a.db.Initialize(ctx)
	}

	a.logger.Info("Running Postgres migrations")
	if err := pg.Migrate(ctx, a.config.DatabaseURL); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := pg.NewPostgresDB(ctx, a.config.DatabaseURL, a.config.DBMaxConns, a.config.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initAnalytics connects the ClickHouse event log when a host is configured
func (a *App) initAnalytics() error {
	if !a.config.AnalyticsEnabled() {
		a.logger.Info("Analytics disabled, CLICKHOUSE_HOST not set")
		a.events = storage.NopEventLog{}
		return nil
	}

	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.String("database", a.config.ClickHouseDatabase),
		zap.Bool("tls", a.config.ClickHouseUseTLS),
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := ch.Migrate(ctx,
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to migrate ClickHouse: %w", err)
	}

	events, err := ch.NewClickHouseDB(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	a.events = events
	return nil
}

// initBot builds the session stores, optional integrations and the Telegram bot
func (a *App) initBot(ctx context.Context) error {
	newStore, err := a.sessionStores(ctx)
	if err != nil {
		return err
	}

	var payments *payment.Service
	gateway, err := payment.NewMercadoPago(a.config.MercadoPagoAccessToken)
	switch {
	case err == nil:
		payments = payment.NewService(a.db, gateway, a.config.PublicURL, a.logger)
	case errors.Is(err, payment.ErrNotConfigured):
		a.logger.Warn("MERCADOPAGO_ACCESS_TOKEN not set, checkout disabled")
	default:
		return fmt.Errorf("failed to create payment gateway: %w", err)
	}

	var completer ai.Completer = ai.Disabled{}
	client, err := ai.NewOpenAI(a.config.OpenAIAPIKey, a.config.OpenAIModel)
	switch {
	case err == nil:
		completer = client
	case errors.Is(err, ai.ErrNotConfigured):
		a.logger.Warn("OPENAI_API_KEY not set, AI features disabled")
	default:
		return fmt.Errorf("failed to create AI client: %w", err)
	}

	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Options{
		DB:       a.db,
		Events:   a.events,
		Payments: payments,
		AI:       completer,
		Admins:   a.config.AdminUserIDs,
		Location: a.config.Location(),
		NewStore: newStore,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("admins", a.config.AdminUserIDs))

	a.bot = telegramBot
	return nil
}

func (a *App) sessionStores(ctx context.Context) (func(string) conversation.Store, error) {
	if a.config.SessionStore != config.SessionStoreRedis {
		a.logger.Info("Using in-memory conversation sessions")
		return func(flow string) conversation.Store { return conversation.NewMemoryStore(flow) }, nil
	}

	client, err := conversation.NewRedisClient(ctx, a.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redis = client
	a.logger.Info("Using Redis conversation sessions", zap.Duration("ttl", a.config.SessionTTL))

	ttl := a.config.SessionTTL
	return func(flow string) conversation.Store { return conversation.NewRedisStore(client, flow, ttl) }, nil
}

// initHTTPServer registers health, webhook, payment and admin routes
func (a *App) initHTTPServer() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(bot.RequestLogger(a.logger))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/", func(c echo.Context) error {
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		return c.String(http.StatusOK, fmt.Sprintf("Nutritionist bot is running (mode: %s)", mode))
	})

	bot.NewHTTPServer(a.bot, a.config.WebhookMode).RegisterRoutes(e)
	a.server = e

	go func() {
		addr := ":" + a.config.Port
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Updates arrive on /telegram-webhook")
	} else {
		go func() {
			if err := a.bot.Start(); err != nil {
				a.logger.Error("Polling stopped", zap.Error(err))
			}
		}()
	}

	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	defer a.logger.Sync() //nolint:errcheck

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	a.scheduler.Stop()
	if !a.config.WebhookMode {
		a.bot.Stop()
	}

	if err := a.closeStores(); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// closeStores releases whichever of events, redis and db were opened
func (a *App) closeStores() error {
	var errs []error
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close analytics: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
