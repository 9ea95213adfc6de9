package flows

import (
	"strings"

	"nutribot/internal/conversation"
	"nutribot/internal/models"
)

// Food diary answer keys
const (
	KeyDiaryMeal        = "meal_type"
	KeyDiaryPhoto       = "photo"
	KeyDiaryObservation = "observation"
)

// NoObservation is the button value that skips the diary observation
const NoObservation = "-"

// MaxObservationLength bounds the free-text note of a diary entry
const MaxObservationLength = 500

// MealTypes are the meals a diary entry can belong to
var MealTypes = []Option{
	{Value: models.MealBreakfast, Label: "☕ Café da Manhã"},
	{Value: models.MealMorningSnack, Label: "🥐 Lanche da Manhã"},
	{Value: models.MealLunch, Label: "🍽️ Almoço"},
	{Value: models.MealAfternoonSnack, Label: "🍎 Lanche da Tarde"},
	{Value: models.MealDinner, Label: "🌙 Jantar"},
	{Value: models.MealSupper, Label: "🌜 Ceia"},
}

// DiaryObservationOptions is the single skip button of the observation step
var DiaryObservationOptions = []Option{{Value: NoObservation, Label: "✅ Sem Observação"}}

// DiaryOptions returns the buttons offered at a diary step
func DiaryOptions(key string) []Option {
	switch key {
	case KeyDiaryMeal:
		return MealTypes
	case KeyDiaryObservation:
		return DiaryObservationOptions
	}
	return nil
}

// IsPhotoStep reports whether the step only accepts a photo, never text
func IsPhotoStep(flow, key string) bool {
	return flow == FlowDiary && key == KeyDiaryPhoto
}

// DiaryPhotoRequired is the reply to text sent where a photo is expected
const DiaryPhotoRequired = "📷 Envie uma *foto* da sua refeição para continuar, ou /menu para cancelar."

func validatePhotoID(raw string) (any, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return nil, conversation.Invalid(DiaryPhotoRequired)
	}
	return id, nil
}

func validateObservation(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == NoObservation || strings.EqualFold(s, "sem observação") || strings.EqualFold(s, "sem observacao") {
		return "", nil
	}
	if len([]rune(s)) > MaxObservationLength {
		return nil, conversation.Invalid("❌ Observação muito longa. Use no máximo 500 caracteres.")
	}
	return s, nil
}

// DiaryEntryFromAnswers maps a completed diary flow to an entry
func DiaryEntryFromAnswers(telegramID int64, a conversation.Answers) models.DiaryEntry {
	return models.DiaryEntry{
		TelegramID:  telegramID,
		MealType:    a.String(KeyDiaryMeal),
		PhotoFileID: a.String(KeyDiaryPhoto),
		Observation: a.String(KeyDiaryObservation),
	}
}

// NewDiary builds the meal photo flow: meal type, photo, optional observation
func NewDiary(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key:      KeyDiaryMeal,
			Prompt:   "📸 *Registrar Refeição*\n\nSelecione o tipo de refeição:",
			Validate: Choice(MealTypes, nil, "Escolha o tipo de refeição pelos botões abaixo."),
		},
		{
			Key: KeyDiaryPhoto,
			Prompt: "📷 Envie uma foto da sua refeição.\n\n" +
				"💡 *Dica:* Tire a foto de cima para mostrar todos os alimentos no prato!",
			Validate: validatePhotoID,
		},
		{
			Key: KeyDiaryObservation,
			Prompt: "✅ Foto recebida!\n\n" +
				"Quer adicionar alguma observação? (Ex: \"Comi tudo\", \"Fiquei com fome depois\", \"Muito tempero\")\n\n" +
				"Envie o texto ou toque em *Sem Observação*.",
			Validate: validateObservation,
		},
	}
	return conversation.NewFlow(FlowDiary, steps, onComplete)
}
