package payment

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no gateway credentials are set
var ErrNotConfigured = errors.New("payment gateway not configured")

// PreferenceRequest describes a checkout to create
type PreferenceRequest struct {
	Plan        Plan
	TelegramID  int64
	PayerName   string
	ExternalRef string
	// PublicURL enables return URLs and webhook notifications when set
	PublicURL string
}

// Preference is a created checkout
type Preference struct {
	ID        string
	InitPoint string
}

// PaymentInfo is the gateway's view of a payment
type PaymentInfo struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	PaymentMethodID   string
	Amount            float64
}

// Gateway creates checkouts and reports payment status
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
	GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error)
}
