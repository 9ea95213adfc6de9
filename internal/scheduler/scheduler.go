// Package scheduler runs the periodic jobs: reminder dispatch and the
// daily digest of plans about to expire.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"nutribot/internal/models"
	"nutribot/internal/storage"
)

// Cron expressions of the built-in jobs
const (
	ReminderSpec = "*/2 * * * *"
	DigestSpec   = "0 9 * * *"
)

// ExpiringWindow is how far ahead the digest looks
const ExpiringWindow = 7 * 24 * time.Hour

const jobTimeout = time.Minute

// Notifier delivers Markdown messages
type Notifier interface {
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	NotifyAdmins(ctx context.Context, text string)
}

// Store is the storage subset the jobs need
type Store interface {
	ListDueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
	ListPatientsWithPlanEndingBetween(ctx context.Context, from, to time.Time) ([]models.Patient, error)
}

// Scheduler provides cron-based job scheduling
type Scheduler struct {
	cron     *cron.Cron
	db       Store
	events   storage.EventLog
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a scheduler; jobs run in loc
func New(db Store, events storage.EventLog, notifier Notifier, loc *time.Location, logger *zap.Logger) *Scheduler {
	if events == nil {
		events = storage.NopEventLog{}
	}
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	return &Scheduler{
		cron:     c,
		db:       db,
		events:   events,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// AddJob schedules a task using the provided cron expression
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Start registers the built-in jobs and starts the cron loop.
// Due reminders are dispatched once immediately.
func (s *Scheduler) Start() error {
	if err := s.AddJob(ReminderSpec, s.runJob("reminders", s.DispatchReminders)); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	if err := s.AddJob(DigestSpec, s.runJob("expiring digest", s.ExpiringDigest)); err != nil {
		return fmt.Errorf("failed to schedule digest: %w", err)
	}
	s.cron.Start()
	go s.runJob("reminders", s.DispatchReminders)()
	s.logger.Info("Scheduler started", zap.String("location", s.loc.String()))
	return nil
}

// Stop stops the cron scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// DispatchReminders sends every due reminder. A reminder that fails to send
// stays pending and is retried on the next run.
func (s *Scheduler) DispatchReminders(ctx context.Context) error {
	now := s.now()
	due, err := s.db.ListDueReminders(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}

	for _, r := range due {
		if err := s.notifier.SendMarkdown(ctx, r.TelegramID, "🔔 *Lembrete*\n\n"+r.Message); err != nil {
			s.logger.Warn("Failed to send reminder",
				zap.Int64("reminder_id", r.ID),
				zap.Int64("user_id", r.TelegramID),
				zap.Error(err))
			continue
		}
		if err := s.db.MarkReminderSent(ctx, r.ID, now); err != nil {
			s.logger.Error("Failed to mark reminder sent", zap.Int64("reminder_id", r.ID), zap.Error(err))
			continue
		}
		if err := s.events.Record(ctx, models.Event{
			OccurredAt: now,
			Type:       models.EventReminderSent,
			TelegramID: r.TelegramID,
			Details:    r.Type,
		}); err != nil {
			s.logger.Warn("Failed to record event", zap.Error(err))
		}
		s.logger.Info("Reminder sent", zap.Int64("reminder_id", r.ID), zap.Int64("user_id", r.TelegramID))
	}
	return nil
}

// ExpiringDigest tells the admins which plans end within ExpiringWindow.
// Nothing is sent when no plan is expiring.
func (s *Scheduler) ExpiringDigest(ctx context.Context) error {
	now := s.now()
	patients, err := s.db.ListPatientsWithPlanEndingBetween(ctx, now, now.Add(ExpiringWindow))
	if err != nil {
		return fmt.Errorf("failed to list expiring plans: %w", err)
	}
	if len(patients) == 0 {
		return nil
	}
	s.notifier.NotifyAdmins(ctx, FormatExpiringPlans(patients, now, s.loc))
	return nil
}
