package models

import "time"

// Plan statuses
const (
	PlanActive   = "active"
	PlanInactive = "inactive"
)

// Patient represents a registered patient
type Patient struct {
	TelegramID    int64
	Name          string
	Age           int
	Gender        string // "Masculino" or "Feminino"
	Weight        float64
	Height        float64
	ActivityLevel string
	Objective     string
	Restrictions  string
	PlanStatus    string
	PlanStartDate time.Time
	PlanEndDate   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FirstName returns the first word of the patient's name
func (p Patient) FirstName() string {
	for i, r := range p.Name {
		if r == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}

// HasActivePlan reports whether the plan is active at now
func (p Patient) HasActivePlan(now time.Time) bool {
	return p.PlanStatus == PlanActive && now.Before(p.PlanEndDate)
}

// DaysRemaining returns the whole days left until the plan ends, rounded up, never negative
func (p Patient) DaysRemaining(now time.Time) int {
	diff := p.PlanEndDate.Sub(now)
	if diff <= 0 {
		return 0
	}
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// FoodRecord is a submitted nutrition questionnaire
type FoodRecord struct {
	ID         int64
	TelegramID int64
	RecordType string
	// Answers holds the questionnaire as ordered key/value pairs
	Answers   []RecordAnswer
	CreatedAt time.Time
}

// RecordAnswer is one questionnaire answer
type RecordAnswer struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WeightEntry is one weight measurement
type WeightEntry struct {
	ID         int64
	TelegramID int64
	Weight     float64
	RecordedAt time.Time
}

// Meal types of the food diary
const (
	MealBreakfast      = "cafe"
	MealMorningSnack   = "lanche_manha"
	MealLunch          = "almoco"
	MealAfternoonSnack = "lanche_tarde"
	MealDinner         = "jantar"
	MealSupper         = "ceia"
)

// DiaryEntry is one photographed meal of the food diary
type DiaryEntry struct {
	ID          int64
	TelegramID  int64
	MealType    string
	PhotoFileID string
	Observation string
	CreatedAt   time.Time
}

// CalorieItem is one food of a calorie estimate
type CalorieItem struct {
	Name string  `json:"name"`
	Kcal float64 `json:"kcal"`
}

// CalorieEntry is one estimated meal of the calorie log
type CalorieEntry struct {
	ID         int64
	TelegramID int64
	Text       string
	Items      []CalorieItem
	TotalKcal  int
	CreatedAt  time.Time
}

// Reminder types
const (
	ReminderPlanRenewal = "plan_renewal"
	ReminderWeightCheck = "weight_check"
	ReminderAppointment = "appointment"
	ReminderCustom      = "custom"
)

// Reminder is a message scheduled for delivery to a patient
type Reminder struct {
	ID           int64
	TelegramID   int64
	Type         string
	Message      string
	ScheduledFor time.Time
	Sent         bool
	SentAt       *time.Time
	CreatedAt    time.Time
}

// Chat sender and message types
const (
	SenderPatient      = "patient"
	SenderNutritionist = "nutritionist"

	MessageText     = "text"
	MessagePhoto    = "photo"
	MessageDocument = "document"
)

// ChatMessage is one message of the patient/nutritionist relay
type ChatMessage struct {
	ID          int64
	TelegramID  int64 // patient the conversation belongs to
	SenderType  string
	MessageType string
	Text        string
	FileID      string
	FileName    string
	CreatedAt   time.Time
}

// PatientFile is a file a patient sent to the nutritionist
type PatientFile struct {
	ID         int64
	TelegramID int64
	FileID     string
	FileName   string
	FileType   string
	CreatedAt  time.Time
}

// Payment statuses as reported by the gateway
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// Payment is a plan purchase attempt
type Payment struct {
	ID           int64
	TelegramID   int64
	PlanType     string
	Amount       float64
	PlanDays     int
	Status       string
	PreferenceID string
	ExternalRef  string
	PaymentID    string
	PaymentLink  string
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DashboardStats summarizes patients for the admin dashboard
type DashboardStats struct {
	TotalPatients int
	ActivePlans   int
	ExpiringSoon  int // active plans ending within 7 days
	Expired       int
	TotalFiles    int
	FoodRecords   int
}

// Analytics event types
const (
	EventRegistrationCompleted  = "registration_completed"
	EventQuestionnaireSubmitted = "questionnaire_submitted"
	EventWeightLogged           = "weight_logged"
	EventPaymentApproved        = "payment_approved"
	EventReminderSent           = "reminder_sent"
	EventDiaryEntry             = "diary_entry"
	EventCaloriesLogged         = "calories_logged"
)

// Event is one analytics fact about a patient
type Event struct {
	OccurredAt time.Time
	Type       string
	TelegramID int64
	Flow       string
	Value      float64
	Details    string
}

// EventCount is the number of events of one type
type EventCount struct {
	Type  string
	Count uint64
}
