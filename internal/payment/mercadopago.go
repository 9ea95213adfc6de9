package payment

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

// MercadoPago is a Gateway backed by the Mercado Pago SDK
type MercadoPago struct {
	preferences preference.Client
	payments    mppayment.Client
}

type mercadoPagoOptions struct {
	httpClient *http.Client
}

// MercadoPagoOption customizes the client
type MercadoPagoOption func(*mercadoPagoOptions)

// WithHTTPClient replaces the HTTP client the SDK sends requests with
func WithHTTPClient(c *http.Client) MercadoPagoOption {
	return func(o *mercadoPagoOptions) {
		o.httpClient = c
	}
}

// NewMercadoPago creates a client; an empty token returns ErrNotConfigured
func NewMercadoPago(accessToken string, opts ...MercadoPagoOption) (*MercadoPago, error) {
	if accessToken == "" {
		return nil, ErrNotConfigured
	}

	o := mercadoPagoOptions{httpClient: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.New(accessToken, config.WithHTTPClient(o.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to configure mercadopago: %w", err)
	}
	return &MercadoPago{
		preferences: preference.NewClient(cfg),
		payments:    mppayment.NewClient(cfg),
	}, nil
}

// CreatePreference creates a checkout preference for one plan
func (m *MercadoPago) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	body := preference.Request{
		Items: []preference.ItemRequest{{
			Title:       req.Plan.Name,
			Description: req.Plan.Description,
			Quantity:    1,
			CurrencyID:  "BRL",
			UnitPrice:   req.Plan.Price,
		}},
		PaymentMethods: &preference.PaymentMethodsRequest{
			Installments:        12,
			DefaultInstallments: 1,
		},
		Metadata: map[string]any{
			"telegram_id": req.TelegramID,
			"plan_type":   req.Plan.Type,
		},
		ExternalReference:   req.ExternalRef,
		StatementDescriptor: "NUTRICAO",
	}
	if req.PayerName != "" {
		body.Payer = &preference.PayerRequest{Name: req.PayerName}
	}
	if base := strings.TrimRight(req.PublicURL, "/"); base != "" {
		body.BackURLs = &preference.BackURLsRequest{
			Success: base + "/payment/success",
			Failure: base + "/payment/failure",
			Pending: base + "/payment/pending",
		}
		body.AutoReturn = "approved"
		body.NotificationURL = base + "/webhook/mercadopago"
	}

	pref, err := m.preferences.Create(ctx, body)
	if err != nil {
		return Preference{}, fmt.Errorf("failed to create preference: %w", err)
	}
	return Preference{ID: pref.ID, InitPoint: pref.InitPoint}, nil
}

// GetPayment fetches a payment by id
func (m *MercadoPago) GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("invalid payment id %q: %w", paymentID, err)
	}

	p, err := m.payments.Get(ctx, id)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("failed to get payment %s: %w", paymentID, err)
	}
	return PaymentInfo{
		ID:                strconv.Itoa(p.ID),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		PaymentMethodID:   p.PaymentMethodID,
		Amount:            p.TransactionAmount,
	}, nil
}
