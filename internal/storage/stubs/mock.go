package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"nutribot/internal/models"
	"nutribot/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu          sync.RWMutex
	patients    map[int64]models.Patient
	foodRecords []models.FoodRecord
	weights     []models.WeightEntry
	reminders   map[int64]models.Reminder
	chat        []models.ChatMessage
	files       []models.PatientFile
	diary       []models.DiaryEntry
	calories    []models.CalorieEntry
	payments    map[string]models.Payment
	nextID      int64
	now         func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		patients:  make(map[int64]models.Patient),
		reminders: make(map[int64]models.Reminder),
		payments:  make(map[string]models.Payment),
		now:       time.Now,
	}
}

// SetClock overrides the clock used for created_at timestamps
func (m *MockDB) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MockDB) id() int64 {
	m.nextID++
	return m.nextID
}

// Initialize is a no-op for the mock
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// GetPatient returns the patient or storage.ErrNotFound
func (m *MockDB) GetPatient(ctx context.Context, telegramID int64) (*models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[telegramID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// UpsertPatient inserts or replaces the patient keeping the original created_at
func (m *MockDB) UpsertPatient(ctx context.Context, patient models.Patient) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.patients[patient.TelegramID]; ok {
		patient.CreatedAt = existing.CreatedAt
	} else {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now
	m.patients[patient.TelegramID] = patient
	return &patient, nil
}

// ListPatients returns all patients sorted by name
func (m *MockDB) ListPatients(ctx context.Context) ([]models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	patients := make([]models.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		patients = append(patients, p)
	}
	sort.Slice(patients, func(i, j int) bool {
		return patients[i].Name < patients[j].Name
	})
	return patients, nil
}

// ListPatientsWithPlanEndingBetween returns active patients whose plan ends in [from, to)
func (m *MockDB) ListPatientsWithPlanEndingBetween(ctx context.Context, from, to time.Time) ([]models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var patients []models.Patient
	for _, p := range m.patients {
		if p.PlanStatus != models.PlanActive {
			continue
		}
		if !p.PlanEndDate.Before(from) && p.PlanEndDate.Before(to) {
			patients = append(patients, p)
		}
	}
	sort.Slice(patients, func(i, j int) bool {
		return patients[i].PlanEndDate.Before(patients[j].PlanEndDate)
	})
	return patients, nil
}

// UpdatePlan changes the plan status and dates
func (m *MockDB) UpdatePlan(ctx context.Context, telegramID int64, status string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[telegramID]
	if !ok {
		return storage.ErrNotFound
	}
	p.PlanStatus = status
	p.PlanStartDate = start
	p.PlanEndDate = end
	p.UpdatedAt = m.now()
	m.patients[telegramID] = p
	return nil
}

// UpdatePatientWeight sets the current weight of the patient
func (m *MockDB) UpdatePatientWeight(ctx context.Context, telegramID int64, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[telegramID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Weight = weight
	p.UpdatedAt = m.now()
	m.patients[telegramID] = p
	return nil
}

// CreateFoodRecord stores a questionnaire
func (m *MockDB) CreateFoodRecord(ctx context.Context, record models.FoodRecord) (*models.FoodRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.id()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	m.foodRecords = append(m.foodRecords, record)
	return &record, nil
}

// LatestFoodRecordSince returns the newest record created at or after since
func (m *MockDB) LatestFoodRecordSince(ctx context.Context, telegramID int64, since time.Time) (*models.FoodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.FoodRecord
	for i := range m.foodRecords {
		r := m.foodRecords[i]
		if r.TelegramID != telegramID || r.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// ListFoodRecords returns the patient's records newest first
func (m *MockDB) ListFoodRecords(ctx context.Context, telegramID int64) ([]models.FoodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.FoodRecord
	for _, r := range m.foodRecords {
		if r.TelegramID == telegramID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// GetFoodRecord returns a record by id
func (m *MockDB) GetFoodRecord(ctx context.Context, id int64) (*models.FoodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.foodRecords {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, storage.ErrNotFound
}

// AddWeightEntry appends a weight measurement
func (m *MockDB) AddWeightEntry(ctx context.Context, telegramID int64, weight float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.weights = append(m.weights, models.WeightEntry{
		ID:         m.id(),
		TelegramID: telegramID,
		Weight:     weight,
		RecordedAt: at,
	})
	return nil
}

// ListWeightEntries returns the patient's weights oldest first
func (m *MockDB) ListWeightEntries(ctx context.Context, telegramID int64) ([]models.WeightEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []models.WeightEntry
	for _, e := range m.weights {
		if e.TelegramID == telegramID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
	return entries, nil
}

// CreateReminder stores a reminder
func (m *MockDB) CreateReminder(ctx context.Context, reminder models.Reminder) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reminder.ID = m.id()
	reminder.CreatedAt = m.now()
	m.reminders[reminder.ID] = reminder
	return &reminder, nil
}

// ListDueReminders returns unsent reminders scheduled at or before now
func (m *MockDB) ListDueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []models.Reminder
	for _, r := range m.reminders {
		if !r.Sent && !r.ScheduledFor.After(now) {
			due = append(due, r)
		}
	}
	sortReminders(due)
	return due, nil
}

// MarkReminderSent flags a reminder as delivered
func (m *MockDB) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Sent = true
	r.SentAt = &at
	m.reminders[id] = r
	return nil
}

// ListPendingReminders returns the patient's unsent reminders soonest first
func (m *MockDB) ListPendingReminders(ctx context.Context, telegramID int64) ([]models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []models.Reminder
	for _, r := range m.reminders {
		if r.TelegramID == telegramID && !r.Sent {
			pending = append(pending, r)
		}
	}
	sortReminders(pending)
	return pending, nil
}

// DeleteReminder removes a reminder owned by telegramID
func (m *MockDB) DeleteReminder(ctx context.Context, telegramID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.TelegramID != telegramID {
		return storage.ErrNotFound
	}
	delete(m.reminders, id)
	return nil
}

// DeletePendingReminders removes the patient's unsent reminders of one type
func (m *MockDB) DeletePendingReminders(ctx context.Context, telegramID int64, reminderType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, r := range m.reminders {
		if r.TelegramID == telegramID && r.Type == reminderType && !r.Sent {
			delete(m.reminders, id)
			deleted++
		}
	}
	return deleted, nil
}

func sortReminders(rs []models.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].ScheduledFor.Equal(rs[j].ScheduledFor) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].ScheduledFor.Before(rs[j].ScheduledFor)
	})
}

// AddChatMessage appends a relay message
func (m *MockDB) AddChatMessage(ctx context.Context, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = m.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	m.chat = append(m.chat, msg)
	return nil
}

// ListChatMessages returns the last limit messages of the patient, oldest first
func (m *MockDB) ListChatMessages(ctx context.Context, telegramID int64, limit int) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var msgs []models.ChatMessage
	for _, c := range m.chat {
		if c.TelegramID == telegramID {
			msgs = append(msgs, c)
		}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// CountUnreadMessages counts patient messages after the last nutritionist message
func (m *MockDB) CountUnreadMessages(ctx context.Context, telegramID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.chat {
		if c.TelegramID != telegramID {
			continue
		}
		if c.SenderType == models.SenderNutritionist {
			count = 0
			continue
		}
		count++
	}
	return count, nil
}

// AddPatientFile stores file metadata
func (m *MockDB) AddPatientFile(ctx context.Context, file models.PatientFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file.ID = m.id()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = m.now()
	}
	m.files = append(m.files, file)
	return nil
}

// ListPatientFiles returns the patient's files newest first
func (m *MockDB) ListPatientFiles(ctx context.Context, telegramID int64) ([]models.PatientFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []models.PatientFile
	for _, f := range m.files {
		if f.TelegramID == telegramID {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// CreatePayment stores a payment attempt keyed by its external reference
func (m *MockDB) CreatePayment(ctx context.Context, payment models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	payment.ID = m.id()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	m.payments[payment.ExternalRef] = payment
	return &payment, nil
}

// GetPaymentByReference returns a payment by external reference
func (m *MockDB) GetPaymentByReference(ctx context.Context, externalRef string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[externalRef]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// UpdatePaymentStatus records the gateway status unless the payment is already approved
func (m *MockDB) UpdatePaymentStatus(ctx context.Context, externalRef, status, paymentID string, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[externalRef]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Status == models.PaymentApproved {
		return false, nil
	}
	p.Status = status
	p.PaymentID = paymentID
	p.PaidAt = paidAt
	p.UpdatedAt = m.now()
	m.payments[externalRef] = p
	return true, nil
}

// AddDiaryEntry stores a food diary entry
func (m *MockDB) AddDiaryEntry(ctx context.Context, entry models.DiaryEntry) (*models.DiaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.id()
	entry.CreatedAt = m.now()
	m.diary = append(m.diary, entry)
	return &entry, nil
}

// ListDiaryEntries returns entries created at or after since, oldest first
func (m *MockDB) ListDiaryEntries(ctx context.Context, telegramID int64, since time.Time) ([]models.DiaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []models.DiaryEntry
	for _, e := range m.diary {
		if e.TelegramID == telegramID && !e.CreatedAt.Before(since) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// CountDiaryEntries counts all diary entries of the patient
func (m *MockDB) CountDiaryEntries(ctx context.Context, telegramID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.diary {
		if e.TelegramID == telegramID {
			count++
		}
	}
	return count, nil
}

// AddCalorieEntry stores a calorie estimate
func (m *MockDB) AddCalorieEntry(ctx context.Context, entry models.CalorieEntry) (*models.CalorieEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.id()
	entry.CreatedAt = m.now()
	m.calories = append(m.calories, entry)
	return &entry, nil
}

// SumCaloriesSince totals the kcal of entries created at or after since
func (m *MockDB) SumCaloriesSince(ctx context.Context, telegramID int64, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, e := range m.calories {
		if e.TelegramID == telegramID && !e.CreatedAt.Before(since) {
			total += e.TotalKcal
		}
	}
	return total, nil
}

// GetDashboardStats aggregates patient and file counters
func (m *MockDB) GetDashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.DashboardStats{
		TotalPatients: len(m.patients),
		TotalFiles:    len(m.files),
		FoodRecords:   len(m.foodRecords),
	}
	soon := now.AddDate(0, 0, 7)
	for _, p := range m.patients {
		if !p.HasActivePlan(now) {
			stats.Expired++
			continue
		}
		stats.ActivePlans++
		if p.PlanEndDate.Before(soon) {
			stats.ExpiringSoon++
		}
	}
	return stats, nil
}

// Close is a no-op for the mock
func (m *MockDB) Close() error {
	return nil
}
