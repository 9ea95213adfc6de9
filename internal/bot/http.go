package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"nutribot/internal/models"
	"nutribot/internal/payment"
	"nutribot/internal/storage"
)

// initDataMaxAge is how long a Mini App initData stays valid
const initDataMaxAge = 24 * time.Hour

// HTTPServer serves the Telegram webhook, payment callbacks and the admin API
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
}

// NewHTTPServer creates the HTTP handlers of the bot
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
	}
}

// RegisterRoutes registers the bot routes on e
func (hs *HTTPServer) RegisterRoutes(e *echo.Echo) {
	e.POST("/telegram-webhook", hs.handleTelegramWebhook)
	e.POST("/webhook/mercadopago", hs.handleMercadoPago)
	e.GET("/payment/:result", hs.handlePaymentReturn)

	admin := e.Group("/api/admin", hs.authMiddleware)
	admin.GET("/stats", hs.handleStats)
	admin.GET("/patients", hs.handlePatients)
	admin.GET("/patients/:id/records", hs.handlePatientRecords)
	admin.GET("/analytics", hs.handleAnalytics)
}

// RequestLogger logs every request with zap
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if err != nil {
				logger.Warn("request", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("request", fields...)
			return nil
		}
	}
}

// handleTelegramWebhook acknowledges immediately and handles the update in background
func (hs *HTTPServer) handleTelegramWebhook(c echo.Context) error {
	var update tgbotapi.Update
	if err := sonic.ConfigDefault.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		hs.bot.logger.Warn("Failed to decode webhook update", zap.Error(err))
		return c.NoContent(http.StatusBadRequest)
	}

	go hs.bot.HandleUpdate(update)
	return c.NoContent(http.StatusOK)
}

// mpNotification is the Mercado Pago webhook body. data.id arrives as a
// string or a number depending on the notification version.
type mpNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (n mpNotification) paymentID() string {
	return strings.Trim(string(n.Data.ID), `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// handleMercadoPago applies payment notifications. Unknown payments are
// acknowledged; other failures return 500 so the gateway retries.
func (hs *HTTPServer) handleMercadoPago(c echo.Context) error {
	var n mpNotification
	if err := c.Bind(&n); err != nil {
		hs.bot.logger.Debug("Mercado Pago notification without JSON body", zap.Error(err))
	}

	kind := firstNonEmpty(n.Type, c.QueryParam("type"), c.QueryParam("topic"))
	paymentID := firstNonEmpty(n.paymentID(), c.QueryParam("data.id"), c.QueryParam("id"))
	if kind != "payment" || paymentID == "" {
		return c.NoContent(http.StatusOK)
	}

	hs.bot.logger.Info("Payment notification received",
		zap.String("payment_id", paymentID),
		zap.String("action", n.Action))

	err := hs.bot.HandlePaymentNotification(c.Request().Context(), paymentID)
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, payment.ErrNotConfigured):
		hs.bot.logger.Warn("Ignoring payment notification", zap.String("payment_id", paymentID), zap.Error(err))
		return c.NoContent(http.StatusOK)
	default:
		hs.bot.logger.Error("Failed to process payment notification", zap.String("payment_id", paymentID), zap.Error(err))
		return c.NoContent(http.StatusInternalServerError)
	}
}

var paymentPages = map[string]string{
	"success": "✅ Pagamento aprovado! Você já pode voltar ao Telegram.",
	"pending": "⏳ Pagamento em processamento. Avisaremos no Telegram assim que for confirmado.",
	"failure": "❌ O pagamento não foi concluído. Volte ao Telegram para tentar novamente.",
}

// handlePaymentReturn serves the pages the checkout redirects to
func (hs *HTTPServer) handlePaymentReturn(c echo.Context) error {
	text, ok := paymentPages[c.Param("result")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}
	return c.HTML(http.StatusOK, fmt.Sprintf(
		`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Pagamento</title></head>`+
			`<body style="font-family:sans-serif;text-align:center;padding:3em"><p>%s</p></body></html>`, text))
}

// validateTelegramInitData validates the Telegram Mini App initData and
// returns the user id
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	// data-check-string: sorted key=value pairs joined by newlines
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(hs.bot.token))
	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(dataCheckString.String()))
	if !hmac.Equal([]byte(hex.EncodeToString(h.Sum(nil))), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing auth_date")
	}
	if hs.bot.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}
	var userData struct {
		ID int64 `json:"id"`
	}
	if err := sonic.UnmarshalString(userStr, &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	if !hs.bot.IsAdmin(userData.ID) {
		return 0, fmt.Errorf("user not allowed")
	}
	return userData.ID, nil
}

// authMiddleware accepts admins authenticated by Mini App initData.
// In polling mode (webhookMode=false), authentication is skipped for easier local development.
func (hs *HTTPServer) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !hs.webhookMode {
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", c.Request().URL.Path),
			)
			return next(c)
		}

		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(authHeader, "tma ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", c.RealIP()),
			)
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		c.Set("user_id", userID)
		return next(c)
	}
}

type statsResponse struct {
	TotalPatients int `json:"total_patients"`
	ActivePlans   int `json:"active_plans"`
	ExpiringSoon  int `json:"expiring_soon"`
	Expired       int `json:"expired"`
	TotalFiles    int `json:"total_files"`
	FoodRecords   int `json:"food_records"`
}

func (hs *HTTPServer) handleStats(c echo.Context) error {
	stats, err := hs.bot.db.GetDashboardStats(c.Request().Context(), hs.bot.now())
	if err != nil {
		hs.bot.logger.Error("Failed to get dashboard stats", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch stats")
	}
	return c.JSON(http.StatusOK, statsResponse(*stats))
}

type patientResponse struct {
	TelegramID    int64     `json:"telegram_id"`
	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	Weight        float64   `json:"weight"`
	Height        float64   `json:"height"`
	Objective     string    `json:"objective"`
	PlanStatus    string    `json:"plan_status"`
	PlanEndDate   time.Time `json:"plan_end_date"`
	ActivePlan    bool      `json:"active_plan"`
	DaysRemaining int       `json:"days_remaining"`
}

func (hs *HTTPServer) handlePatients(c echo.Context) error {
	patients, err := hs.bot.db.ListPatients(c.Request().Context())
	if err != nil {
		hs.bot.logger.Error("Failed to list patients", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch patients")
	}

	now := hs.bot.now()
	out := make([]patientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientResponse{
			TelegramID:    p.TelegramID,
			Name:          p.Name,
			Age:           p.Age,
			Gender:        p.Gender,
			Weight:        p.Weight,
			Height:        p.Height,
			Objective:     p.Objective,
			PlanStatus:    p.PlanStatus,
			PlanEndDate:   p.PlanEndDate,
			ActivePlan:    p.HasActivePlan(now),
			DaysRemaining: p.DaysRemaining(now),
		})
	}
	return c.JSON(http.StatusOK, out)
}

type recordResponse struct {
	ID        int64                 `json:"id"`
	Type      string                `json:"type"`
	Answers   []models.RecordAnswer `json:"answers"`
	CreatedAt time.Time             `json:"created_at"`
}

func (hs *HTTPServer) handlePatientRecords(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid patient id")
	}

	ctx := c.Request().Context()
	if _, err := hs.bot.db.GetPatient(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		hs.bot.logger.Error("Failed to get patient", zap.Int64("patient_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch patient")
	}

	records, err := hs.bot.db.ListFoodRecords(ctx, id)
	if err != nil {
		hs.bot.logger.Error("Failed to list food records", zap.Int64("patient_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch records")
	}

	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{ID: r.ID, Type: r.RecordType, Answers: r.Answers, CreatedAt: r.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

type eventCountResponse struct {
	Type  string `json:"type"`
	Count uint64 `json:"count"`
}

// handleAnalytics returns event counts for the last ?days= days (default 30)
func (hs *HTTPServer) handleAnalytics(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be between 1 and 365")
		}
		days = n
	}

	since := hs.bot.now().AddDate(0, 0, -days)
	counts, err := hs.bot.events.CountByType(c.Request().Context(), since)
	if err != nil {
		hs.bot.logger.Error("Failed to count events", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch analytics")
	}

	out := make([]eventCountResponse, 0, len(counts))
	for _, ec := range counts {
		out = append(out, eventCountResponse(ec))
	}
	return c.JSON(http.StatusOK, out)
}
