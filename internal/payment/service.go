package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutribot/internal/models"
)

// Store is the persistence the payment service needs
type Store interface {
	GetPatient(ctx context.Context, telegramID int64) (*models.Patient, error)
	UpdatePlan(ctx context.Context, telegramID int64, status string, start, end time.Time) error
	CreatePayment(ctx context.Context, payment models.Payment) (*models.Payment, error)
	GetPaymentByReference(ctx context.Context, externalRef string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, externalRef, status, paymentID string, paidAt *time.Time) (bool, error)
}

// Service runs checkouts and applies gateway notifications to patient plans
type Service struct {
	store     Store
	gateway   Gateway
	publicURL string
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a payment service
func NewService(store Store, gateway Gateway, publicURL string, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		gateway:   gateway,
		publicURL: publicURL,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Checkout creates a gateway preference for the plan and stores a pending payment
func (s *Service) Checkout(ctx context.Context, patient models.Patient, planType string) (*models.Payment, error) {
	plan, err := PlanByType(planType)
	if err != nil {
		return nil, err
	}

	ref := NewExternalRef(patient.TelegramID)
	pref, err := s.gateway.CreatePreference(ctx, PreferenceRequest{
		Plan:        plan,
		TelegramID:  patient.TelegramID,
		PayerName:   patient.Name,
		ExternalRef: ref,
		PublicURL:   s.publicURL,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.store.CreatePayment(ctx, models.Payment{
		TelegramID:   patient.TelegramID,
		PlanType:     plan.Type,
		Amount:       plan.Price,
		PlanDays:     plan.Days,
		Status:       models.PaymentPending,
		PreferenceID: pref.ID,
		ExternalRef:  ref,
		PaymentLink:  pref.InitPoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	s.logger.Info("Checkout created",
		zap.Int64("user_id", patient.TelegramID),
		zap.String("plan", plan.Type),
		zap.String("reference", ref))
	return payment, nil
}

// Outcome is the result of applying one notification
type Outcome struct {
	Payment *models.Payment
	Status  string
	// Approved is true only the first time a payment is seen approved
	Approved bool
	Patient  *models.Patient
}

// ExtendPlan adds days to the plan, starting from the current end when it is still in the future
func ExtendPlan(p models.Patient, days int, now time.Time) (start, end time.Time) {
	if p.HasActivePlan(now) {
		return p.PlanStartDate, p.PlanEndDate.AddDate(0, 0, days)
	}
	return now, now.AddDate(0, 0, days)
}

// ProcessNotification fetches a payment from the gateway and applies it.
// Repeated or concurrent notifications for an approved payment do not extend the plan again.
func (s *Service) ProcessNotification(ctx context.Context, paymentID string) (*Outcome, error) {
	info, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.GetPaymentByReference(ctx, info.ExternalReference)
	if err != nil {
		return nil, fmt.Errorf("failed to find payment %q: %w", info.ExternalReference, err)
	}

	out := &Outcome{Payment: payment, Status: info.Status}
	if payment.Status == models.PaymentApproved {
		return out, nil
	}

	now := s.now()
	var paidAt *time.Time
	if info.Status == models.PaymentApproved {
		paidAt = &now
	}
	updated, err := s.store.UpdatePaymentStatus(ctx, payment.ExternalRef, info.Status, info.ID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if !updated {
		// A concurrent notification approved it first
		s.logger.Info("Payment already approved", zap.String("external_reference", payment.ExternalRef))
		payment.Status = models.PaymentApproved
		return out, nil
	}
	payment.Status = info.Status
	payment.PaymentID = info.ID
	payment.PaidAt = paidAt

	if info.Status != models.PaymentApproved {
		return out, nil
	}

	patient, err := s.store.GetPatient(ctx, payment.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	start, end := ExtendPlan(*patient, payment.PlanDays, now)
	if err := s.store.UpdatePlan(ctx, patient.TelegramID, models.PlanActive, start, end); err != nil {
		return nil, fmt.Errorf("failed to extend plan: %w", err)
	}
	patient.PlanStatus = models.PlanActive
	patient.PlanStartDate = start
	patient.PlanEndDate = end

	s.logger.Info("Payment approved",
		zap.Int64("user_id", patient.TelegramID),
		zap.String("payment_id", info.ID),
		zap.Time("plan_end", end))

	out.Approved = true
	out.Patient = patient
	return out, nil
}
