package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutribot/internal/models"
	"nutribot/internal/payment"
)

type fakeGateway struct {
	payments map[string]payment.PaymentInfo
	err      error
	calls    int
}

func (g *fakeGateway) CreatePreference(context.Context, payment.PreferenceRequest) (payment.Preference, error) {
	return payment.Preference{ID: "pref-1", InitPoint: "https://mp.example/checkout/pref-1"}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (payment.PaymentInfo, error) {
	g.calls++
	if g.err != nil {
		return payment.PaymentInfo{}, g.err
	}
	info, ok := g.payments[id]
	if !ok {
		return payment.PaymentInfo{}, errors.New("payment not found")
	}
	return info, nil
}

type httpEnv struct {
	*testEnv
	echo    *echo.Echo
	gateway *fakeGateway
}

func newHTTPEnv(t *testing.T, webhookMode bool) *httpEnv {
	t.Helper()
	env := newTestEnv(t, nil)
	gw := &fakeGateway{payments: make(map[string]payment.PaymentInfo)}

	svc := payment.NewService(env.db, gw, "https://nutri.example", zap.NewNop())
	svc.SetClock(env.bot.now)
	env.bot.payments = svc

	e := echo.New()
	NewHTTPServer(env.bot, webhookMode).RegisterRoutes(e)
	return &httpEnv{testEnv: env, echo: e, gateway: gw}
}

func (h *httpEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func (h *httpEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return h.do(req)
}

func (h *httpEnv) seedPendingPayment(t *testing.T, ref string) {
	t.Helper()
	_, err := h.db.CreatePayment(context.Background(), models.Payment{
		TelegramID: patientID, PlanType: "monthly", Amount: 150, PlanDays: 30,
		Status: models.PaymentPending, ExternalRef: ref,
	})
	require.NoError(t, err)
}

func TestMercadoPagoWebhook_ApprovesOnce(t *testing.T) {
	h := newHTTPEnv(t, true)
	h.seedPatient(t, patientID, false)
	h.seedPendingPayment(t, "100_abc")
	h.gateway.payments["555"] = payment.PaymentInfo{ID: "555", Status: models.PaymentApproved, ExternalReference: "100_abc"}
	ctx := context.Background()

	rec := h.postJSON("/webhook/mercadopago", `{"type":"payment","action":"payment.updated","data":{"id":"555"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	p, err := h.db.GetPatient(ctx, patientID)
	require.NoError(t, err)
	assert.True(t, p.HasActivePlan(h.now))
	wantEnd := h.now.AddDate(0, 0, 30)
	assert.True(t, p.PlanEndDate.Equal(wantEnd))

	assert.True(t, h.api.received(patientID, "Pagamento aprovado"))
	assert.True(t, h.api.received(adminID, "Pagamento aprovado"))

	reminders, err := h.db.ListPendingReminders(ctx, patientID)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)

	// numeric id, repeated notification
	h.api.reset()
	rec = h.postJSON("/webhook/mercadopago", `{"type":"payment","data":{"id":555}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	p, err = h.db.GetPatient(ctx, patientID)
	require.NoError(t, err)
	assert.True(t, p.PlanEndDate.Equal(wantEnd))
	assert.Empty(t, h.api.texts(patientID))
}

func TestMercadoPagoWebhook_QueryParams(t *testing.T) {
	h := newHTTPEnv(t, true)
	h.seedPatient(t, patientID, false)
	h.seedPendingPayment(t, "100_abc")
	h.gateway.payments["777"] = payment.PaymentInfo{ID: "777", Status: models.PaymentApproved, ExternalReference: "100_abc"}

	rec := h.do(httptest.NewRequest(http.MethodPost, "/webhook/mercadopago?topic=payment&id=777", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	pay, err := h.db.GetPaymentByReference(context.Background(), "100_abc")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, pay.Status)
	assert.Equal(t, "777", pay.PaymentID)
}

func TestMercadoPagoWebhook_Errors(t *testing.T) {
	t.Run("unknown reference is acknowledged", func(t *testing.T) {
		h := newHTTPEnv(t, true)
		h.gateway.payments["1"] = payment.PaymentInfo{ID: "1", Status: models.PaymentApproved, ExternalReference: "100_missing"}

		rec := h.postJSON("/webhook/mercadopago", `{"type":"payment","data":{"id":"1"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("gateway failure asks for a retry", func(t *testing.T) {
		h := newHTTPEnv(t, true)
		h.gateway.err = errors.New("timeout")

		rec := h.postJSON("/webhook/mercadopago", `{"type":"payment","data":{"id":"1"}}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("other topics are ignored", func(t *testing.T) {
		h := newHTTPEnv(t, true)

		rec := h.postJSON("/webhook/mercadopago", `{"type":"merchant_order","data":{"id":"1"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, h.gateway.calls)
	})

	t.Run("rejected payment notifies the patient", func(t *testing.T) {
		h := newHTTPEnv(t, true)
		h.seedPatient(t, patientID, false)
		h.seedPendingPayment(t, "100_abc")
		h.gateway.payments["9"] = payment.PaymentInfo{ID: "9", Status: models.PaymentRejected, ExternalReference: "100_abc"}

		rec := h.postJSON("/webhook/mercadopago", `{"type":"payment","data":{"id":"9"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, h.api.received(patientID, "não aprovado"))
	})
}

func TestCheckoutCallback(t *testing.T) {
	h := newHTTPEnv(t, true)
	h.seedPatient(t, patientID, false)

	h.callback(patientID, "pay:quarterly")
	assert.Contains(t, h.api.last(patientID), "Plano Trimestral")
	assert.Contains(t, h.api.last(patientID), "R$ 400,00")
}

func TestTelegramWebhook_BadBody(t *testing.T) {
	h := newHTTPEnv(t, true)

	rec := h.postJSON("/telegram-webhook", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentReturnPages(t *testing.T) {
	h := newHTTPEnv(t, true)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/payment/success", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pagamento aprovado")

	rec = h.do(httptest.NewRequest(http.MethodGet, "/payment/whatever", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// signInitData builds Mini App initData the way Telegram signs it
func signInitData(token string, userID int64, authDate time.Time) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"Ana"}`, userID))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(lines, "\n")))
	values.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return values.Encode()
}

func (h *httpEnv) getAdmin(path, initData string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if initData != "" {
		req.Header.Set(echo.HeaderAuthorization, "tma "+initData)
	}
	return h.do(req)
}

func TestAdminAPI_Auth(t *testing.T) {
	h := newHTTPEnv(t, true)
	h.seedPatient(t, patientID, true)

	tests := []struct {
		name     string
		initData string
		want     int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"admin", signInitData(h.bot.token, adminID, h.now), http.StatusOK},
		{"patient is not admin", signInitData(h.bot.token, patientID, h.now), http.StatusUnauthorized},
		{"wrong token", signInitData("other:token", adminID, h.now), http.StatusUnauthorized},
		{"expired", signInitData(h.bot.token, adminID, h.now.Add(-25*time.Hour)), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.getAdmin("/api/admin/stats", tt.initData)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminAPI_PollingModeSkipsAuth(t *testing.T) {
	h := newHTTPEnv(t, false)
	h.seedPatient(t, patientID, true)

	rec := h.getAdmin("/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statsResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 1, stats.ActivePlans)

	rec = h.getAdmin("/api/admin/patients", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var patients []patientResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &patients))
	require.Len(t, patients, 1)
	assert.Equal(t, 20, patients[0].DaysRemaining)
}

func TestAdminAPI_PatientRecords(t *testing.T) {
	h := newHTTPEnv(t, false)
	h.seedPatient(t, patientID, true)
	_, err := h.db.CreateFoodRecord(context.Background(), models.FoodRecord{
		TelegramID: patientID,
		RecordType: "recordatorio_24h",
		Answers:    []models.RecordAnswer{{Key: "breakfast", Value: "café"}},
	})
	require.NoError(t, err)

	rec := h.getAdmin("/api/admin/patients/abc/records", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.getAdmin("/api/admin/patients/42/records", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.getAdmin("/api/admin/patients/100/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []recordResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "café", records[0].Answers[0].Value)
}

func TestAdminAPI_AnalyticsDays(t *testing.T) {
	h := newHTTPEnv(t, false)

	assert.Equal(t, http.StatusBadRequest, h.getAdmin("/api/admin/analytics?days=0", "").Code)
	assert.Equal(t, http.StatusOK, h.getAdmin("/api/admin/analytics?days=7", "").Code)
}
