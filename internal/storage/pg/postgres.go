package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutribot/internal/models"
	"nutribot/internal/storage"
)

// PostgresDB implements storage.Storage on PostgreSQL
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPool opens a connection pool and verifies it with a ping
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

// NewPostgresDB connects to PostgreSQL
func NewPostgresDB(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PostgresDB, error) {
	pool, err := NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return &PostgresDB{pool: pool}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	return nil
}

const patientColumns = `telegram_id, name, age, gender, weight, height, activity_level, objective, restrictions,
	plan_status, COALESCE(plan_start_date, 'epoch'::timestamptz), COALESCE(plan_end_date, 'epoch'::timestamptz),
	created_at, updated_at`

func scanPatient(row pgx.Row) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.TelegramID, &p.Name, &p.Age, &p.Gender, &p.Weight, &p.Height, &p.ActivityLevel,
		&p.Objective, &p.Restrictions, &p.PlanStatus, &p.PlanStartDate, &p.PlanEndDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPatient returns the patient or storage.ErrNotFound
func (db *PostgresDB) GetPatient(ctx context.Context, telegramID int64) (*models.Patient, error) {
	p, err := scanPatient(db.pool.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE telegram_id = $1`, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

// UpsertPatient inserts or updates the patient keeping created_at
func (db *PostgresDB) UpsertPatient(ctx context.Context, patient models.Patient) (*models.Patient, error) {
	p, err := scanPatient(db.pool.QueryRow(ctx, `
		INSERT INTO patients (telegram_id, name, age, gender, weight, height, activity_level, objective,
			restrictions, plan_status, plan_start_date, plan_end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			weight = EXCLUDED.weight,
			height = EXCLUDED.height,
			activity_level = EXCLUDED.activity_level,
			objective = EXCLUDED.objective,
			restrictions = EXCLUDED.restrictions,
			plan_status = EXCLUDED.plan_status,
			plan_start_date = EXCLUDED.plan_start_date,
			plan_end_date = EXCLUDED.plan_end_date,
			updated_at = NOW()
		RETURNING `+patientColumns,
		patient.TelegramID, patient.Name, patient.Age, patient.Gender, patient.Weight, patient.Height,
		patient.ActivityLevel, patient.Objective, patient.Restrictions, patient.PlanStatus,
		patient.PlanStartDate, patient.PlanEndDate))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert patient: %w", err)
	}
	return p, nil
}

func (db *PostgresDB) queryPatients(ctx context.Context, query string, args ...any) ([]models.Patient, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

// ListPatients returns all patients sorted by name
func (db *PostgresDB) ListPatients(ctx context.Context) ([]models.Patient, error) {
	return db.queryPatients(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name`)
}

// ListPatientsWithPlanEndingBetween returns active patients whose plan ends in [from, to)
func (db *PostgresDB) ListPatientsWithPlanEndingBetween(ctx context.Context, from, to time.Time) ([]models.Patient, error) {
	return db.queryPatients(ctx, `SELECT `+patientColumns+` FROM patients
		WHERE plan_status = $1 AND plan_end_date >= $2 AND plan_end_date < $3
		ORDER BY plan_end_date`, models.PlanActive, from, to)
}

// UpdatePlan changes the plan status and dates
func (db *PostgresDB) UpdatePlan(ctx context.Context, telegramID int64, status string, start, end time.Time) error {
	tag, err := db.pool.Exec(ctx, `UPDATE patients
		SET plan_status = $2, plan_start_date = $3, plan_end_date = $4, updated_at = NOW()
		WHERE telegram_id = $1`, telegramID, status, start, end)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdatePatientWeight sets the current weight of the patient
func (db *PostgresDB) UpdatePatientWeight(ctx context.Context, telegramID int64, weight float64) error {
	tag, err := db.pool.Exec(ctx, `UPDATE patients SET weight = $2, updated_at = NOW() WHERE telegram_id = $1`,
		telegramID, weight)
	if err != nil {
		return fmt.Errorf("failed to update weight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanFoodRecord(row pgx.Row) (*models.FoodRecord, error) {
	var r models.FoodRecord
	var data []byte
	if err := row.Scan(&r.ID, &r.TelegramID, &r.RecordType, &data, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(data, &r.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode food record %d: %w", r.ID, err)
	}
	return &r, nil
}

// CreateFoodRecord stores a questionnaire as ordered JSON pairs
func (db *PostgresDB) CreateFoodRecord(ctx context.Context, record models.FoodRecord) (*models.FoodRecord, error) {
	data, err := sonic.Marshal(record.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode food record: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	r, err := scanFoodRecord(db.pool.QueryRow(ctx, `
		INSERT INTO food_records (telegram_id, record_type, data, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, telegram_id, record_type, data, created_at`,
		record.TelegramID, record.RecordType, data, createdAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create food record: %w", err)
	}
	return r, nil
}

// LatestFoodRecordSince returns the newest record created at or after since
func (db *PostgresDB) LatestFoodRecordSince(ctx context.Context, telegramID int64, since time.Time) (*models.FoodRecord, error) {
	r, err := scanFoodRecord(db.pool.QueryRow(ctx, `
		SELECT id, telegram_id, record_type, data, created_at FROM food_records
		WHERE telegram_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`, telegramID, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest food record: %w", err)
	}
	return r, nil
}

// ListFoodRecords returns the patient's records newest first
func (db *PostgresDB) ListFoodRecords(ctx context.Context, telegramID int64) ([]models.FoodRecord, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, telegram_id, record_type, data, created_at FROM food_records
		WHERE telegram_id = $1 ORDER BY created_at DESC`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list food records: %w", err)
	}
	defer rows.Close()

	var records []models.FoodRecord
	for rows.Next() {
		r, err := scanFoodRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// GetFoodRecord returns a record by id
func (db *PostgresDB) GetFoodRecord(ctx context.Context, id int64) (*models.FoodRecord, error) {
	r, err := scanFoodRecord(db.pool.QueryRow(ctx, `
		SELECT id, telegram_id, record_type, data, created_at FROM food_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get food record: %w", err)
	}
	return r, nil
}

// AddWeightEntry appends a weight measurement
func (db *PostgresDB) AddWeightEntry(ctx context.Context, telegramID int64, weight float64, at time.Time) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO weight_history (telegram_id, weight, recorded_at) VALUES ($1, $2, $3)`,
		telegramID, weight, at)
	if err != nil {
		return fmt.Errorf("failed to add weight entry: %w", err)
	}
	return nil
}

// ListWeightEntries returns the patient's weights oldest first
func (db *PostgresDB) ListWeightEntries(ctx context.Context, telegramID int64) ([]models.WeightEntry, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, telegram_id, weight, recorded_at FROM weight_history
		WHERE telegram_id = $1 ORDER BY recorded_at, id`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight entries: %w", err)
	}
	defer rows.Close()

	var entries []models.WeightEntry
	for rows.Next() {
		var e models.WeightEntry
		if err := rows.Scan(&e.ID, &e.TelegramID, &e.Weight, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const reminderColumns = `id, telegram_id, reminder_type, message, scheduled_for, sent, sent_at, created_at`

func (db *PostgresDB) queryReminders(ctx context.Context, query string, args ...any) ([]models.Reminder, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.TelegramID, &r.Type, &r.Message, &r.ScheduledFor, &r.Sent, &r.SentAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// CreateReminder stores a reminder
func (db *PostgresDB) CreateReminder(ctx context.Context, reminder models.Reminder) (*models.Reminder, error) {
	var r models.Reminder
	err := db.pool.QueryRow(ctx, `
		INSERT INTO reminders (telegram_id, reminder_type, message, scheduled_for)
		VALUES ($1, $2, $3, $4)
		RETURNING `+reminderColumns,
		reminder.TelegramID, reminder.Type, reminder.Message, reminder.ScheduledFor,
	).Scan(&r.ID, &r.TelegramID, &r.Type, &r.Message, &r.ScheduledFor, &r.Sent, &r.SentAt, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return &r, nil
}

// ListDueReminders returns unsent reminders scheduled at or before now
func (db *PostgresDB) ListDueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	return db.queryReminders(ctx, `SELECT `+reminderColumns+` FROM reminders
		WHERE sent = FALSE AND scheduled_for <= $1 ORDER BY scheduled_for, id`, now)
}

// MarkReminderSent flags a reminder as delivered
func (db *PostgresDB) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := db.pool.Exec(ctx, `UPDATE reminders SET sent = TRUE, sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPendingReminders returns the patient's unsent reminders soonest first
func (db *PostgresDB) ListPendingReminders(ctx context.Context, telegramID int64) ([]models.Reminder, error) {
	return db.queryReminders(ctx, `SELECT `+reminderColumns+` FROM reminders
		WHERE telegram_id = $1 AND sent = FALSE ORDER BY scheduled_for, id`, telegramID)
}

// DeleteReminder removes a reminder owned by telegramID
func (db *PostgresDB) DeleteReminder(ctx context.Context, telegramID, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1 AND telegram_id = $2`, id, telegramID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePendingReminders removes the patient's unsent reminders of one type
func (db *PostgresDB) DeletePendingReminders(ctx context.Context, telegramID int64, reminderType string) (int, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM reminders
		WHERE telegram_id = $1 AND reminder_type = $2 AND sent = FALSE`, telegramID, reminderType)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AddDiaryEntry stores a food diary entry
func (db *PostgresDB) AddDiaryEntry(ctx context.Context, entry models.DiaryEntry) (*models.DiaryEntry, error) {
	e := entry
	err := db.pool.QueryRow(ctx, `
		INSERT INTO food_diary (telegram_id, meal_type, photo_file_id, observation)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		entry.TelegramID, entry.MealType, entry.PhotoFileID, entry.Observation,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add diary entry: %w", err)
	}
	return &e, nil
}

// ListDiaryEntries returns entries created at or after since, oldest first
func (db *PostgresDB) ListDiaryEntries(ctx context.Context, telegramID int64, since time.Time) ([]models.DiaryEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, telegram_id, meal_type, photo_file_id, observation, created_at FROM food_diary
		WHERE telegram_id = $1 AND created_at >= $2 ORDER BY created_at, id`, telegramID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DiaryEntry
	for rows.Next() {
		var e models.DiaryEntry
		if err := rows.Scan(&e.ID, &e.TelegramID, &e.MealType, &e.PhotoFileID, &e.Observation, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountDiaryEntries counts all diary entries of the patient
func (db *PostgresDB) CountDiaryEntries(ctx context.Context, telegramID int64) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM food_diary WHERE telegram_id = $1`, telegramID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count diary entries: %w", err)
	}
	return count, nil
}

// AddCalorieEntry stores a calorie estimate with its items as JSONB
func (db *PostgresDB) AddCalorieEntry(ctx context.Context, entry models.CalorieEntry) (*models.CalorieEntry, error) {
	items, err := sonic.Marshal(entry.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calorie items: %w", err)
	}

	e := entry
	err = db.pool.QueryRow(ctx, `
		INSERT INTO calorie_log (telegram_id, entry_text, items, total_kcal)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		entry.TelegramID, entry.Text, items, entry.TotalKcal,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add calorie entry: %w", err)
	}
	return &e, nil
}

// SumCaloriesSince totals the kcal of entries created at or after since
func (db *PostgresDB) SumCaloriesSince(ctx context.Context, telegramID int64, since time.Time) (int, error) {
	var total int
	err := db.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_kcal), 0) FROM calorie_log
		WHERE telegram_id = $1 AND created_at >= $2`, telegramID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum calories: %w", err)
	}
	return total, nil
}

// AddChatMessage appends a relay message
func (db *PostgresDB) AddChatMessage(ctx context.Context, msg models.ChatMessage) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO chat_messages (telegram_id, sender_type, message_type, message_text, file_id, file_name)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.TelegramID, msg.SenderType, msg.MessageType, msg.Text, msg.FileID, msg.FileName)
	if err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the last limit messages of the patient, oldest first
func (db *PostgresDB) ListChatMessages(ctx context.Context, telegramID int64, limit int) ([]models.ChatMessage, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, telegram_id, sender_type, message_type, message_text, file_id, file_name, created_at
		FROM (
			SELECT * FROM chat_messages WHERE telegram_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id`, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.TelegramID, &m.SenderType, &m.MessageType, &m.Text, &m.FileID, &m.FileName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountUnreadMessages counts patient messages after the last nutritionist message
func (db *PostgresDB) CountUnreadMessages(ctx context.Context, telegramID int64) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE telegram_id = $1 AND sender_type = $2
		AND id > COALESCE((
			SELECT MAX(id) FROM chat_messages WHERE telegram_id = $1 AND sender_type = $3
		), 0)`, telegramID, models.SenderPatient, models.SenderNutritionist).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// AddPatientFile stores file metadata
func (db *PostgresDB) AddPatientFile(ctx context.Context, file models.PatientFile) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO patient_files (telegram_id, file_id, file_name, file_type) VALUES ($1, $2, $3, $4)`,
		file.TelegramID, file.FileID, file.FileName, file.FileType)
	if err != nil {
		return fmt.Errorf("failed to add patient file: %w", err)
	}
	return nil
}

// ListPatientFiles returns the patient's files newest first
func (db *PostgresDB) ListPatientFiles(ctx context.Context, telegramID int64) ([]models.PatientFile, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, telegram_id, file_id, file_name, file_type, created_at FROM patient_files
		WHERE telegram_id = $1 ORDER BY created_at DESC, id DESC`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient files: %w", err)
	}
	defer rows.Close()

	var files []models.PatientFile
	for rows.Next() {
		var f models.PatientFile
		if err := rows.Scan(&f.ID, &f.TelegramID, &f.FileID, &f.FileName, &f.FileType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

const paymentColumns = `id, telegram_id, plan_type, amount, plan_days, status, preference_id, external_reference,
	payment_id, payment_link, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.TelegramID, &p.PlanType, &p.Amount, &p.PlanDays, &p.Status, &p.PreferenceID,
		&p.ExternalRef, &p.PaymentID, &p.PaymentLink, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment stores a payment attempt
func (db *PostgresDB) CreatePayment(ctx context.Context, payment models.Payment) (*models.Payment, error) {
	p, err := scanPayment(db.pool.QueryRow(ctx, `
		INSERT INTO payments (telegram_id, plan_type, amount, plan_days, status, preference_id,
			external_reference, payment_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		payment.TelegramID, payment.PlanType, payment.Amount, payment.PlanDays, payment.Status,
		payment.PreferenceID, payment.ExternalRef, payment.PaymentLink))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

// GetPaymentByReference returns a payment by external reference
func (db *PostgresDB) GetPaymentByReference(ctx context.Context, externalRef string) (*models.Payment, error) {
	p, err := scanPayment(db.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE external_reference = $1`, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// UpdatePaymentStatus records the gateway status unless the payment is already approved.
// Concurrent notifications for one payment race on the row lock and only one sees the update.
func (db *PostgresDB) UpdatePaymentStatus(ctx context.Context, externalRef, status, paymentID string, paidAt *time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE payments
		SET status = $2, payment_id = $3, paid_at = $4, updated_at = NOW()
		WHERE external_reference = $1 AND status <> $5`,
		externalRef, status, paymentID, paidAt, models.PaymentApproved)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	err = db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE external_reference = $1)`, externalRef).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// GetDashboardStats aggregates patient and file counters
func (db *PostgresDB) GetDashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE plan_status = $1 AND plan_end_date > $2),
			COUNT(*) FILTER (WHERE plan_status = $1 AND plan_end_date > $2 AND plan_end_date < $3),
			COUNT(*) FILTER (WHERE NOT (plan_status = $1 AND plan_end_date > $2) OR plan_end_date IS NULL),
			(SELECT COUNT(*) FROM patient_files),
			(SELECT COUNT(*) FROM food_records)
		FROM patients`, models.PlanActive, now, now.AddDate(0, 0, 7),
	).Scan(&stats.TotalPatients, &stats.ActivePlans, &stats.ExpiringSoon, &stats.Expired, &stats.TotalFiles, &stats.FoodRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	return &stats, nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}
