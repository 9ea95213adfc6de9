package flows

import (
	"nutribot/internal/conversation"
	"nutribot/internal/models"
)

// Flow names, also used as session store namespaces
const (
	FlowRegistration  = "registration"
	FlowQuestionnaire = "questionnaire"
	FlowWeight        = "weight"
	FlowReminder      = "reminder"
	FlowBroadcast     = "broadcast"
	FlowWorkout       = "workout"
	FlowPantry        = "pantry"
	FlowDiary         = "diary"
	FlowCalories      = "calories"
)

// Registration answer keys
const (
	KeyName          = "name"
	KeyAge           = "age"
	KeyGender        = "gender"
	KeyWeight        = "weight"
	KeyHeight        = "height"
	KeyActivityLevel = "activity_level"
	KeyObjective     = "objective"
	KeyRestrictions  = "restrictions"
)

// RegistrationIntro is sent before the first registration question
const RegistrationIntro = "🌟 *Bem-vindo ao Sistema de Gestão Nutricional!*\n\n" +
	"Vamos criar seu perfil personalizado.\n" +
	"São apenas *8 perguntas rápidas*.\n\n" +
	"📝 Responda cada pergunta com atenção para receber o melhor acompanhamento possível."

// RegistrationSteps returns the patient onboarding questions
func RegistrationSteps() []conversation.Step {
	return []conversation.Step{
		{Key: KeyName, Prompt: "👤 *Passo 1 de 8*\n\nQual é o seu *nome completo*?", Validate: ValidateName},
		{Key: KeyAge, Prompt: "🎂 *Passo 2 de 8*\n\nQual é a sua *idade*?\n_Exemplo: 25_", Validate: ValidateAge},
		{Key: KeyGender, Prompt: "⚧ *Passo 3 de 8*\n\nQual é o seu *sexo*?\n\nResponda: *M* (Masculino) ou *F* (Feminino)", Validate: ValidateGender},
		{Key: KeyWeight, Prompt: "⚖️ *Passo 4 de 8*\n\nQual é o seu *peso* em kg?\n_Exemplo: 70.5_", Validate: ValidateWeight},
		{Key: KeyHeight, Prompt: "📏 *Passo 5 de 8*\n\nQual é a sua *altura* em cm?\n_Exemplo: 175_", Validate: ValidateHeight},
		{Key: KeyActivityLevel, Prompt: "🏃 *Passo 6 de 8*\n\nQual é o seu *nível de atividade*? Escolha e responda apenas a sigla:\n\n" +
			"• S = Sedentário - Pouco ou nenhum exercício (x1.2)\n" +
			"• L = Leve - 1-3x/semana (x1.375)\n" +
			"• M = Moderado - 3-5x/semana (x1.55)\n" +
			"• A = Ativo - 6-7x/semana (x1.725)\n" +
			"• MA = Muito Ativo - Treino intenso/2x dia (x1.9)\n\n" +
			"Responda: S, L, M, A ou MA.", Validate: ValidateActivityLevel},
		{Key: KeyObjective, Prompt: "🎯 *Passo 7 de 8*\n\nQual é o seu *principal objetivo*?\n_Exemplo: Ganhar massa muscular, emagrecer, melhorar saúde..._", Validate: ValidateObjective},
		{Key: KeyRestrictions, Prompt: "🥗 *Passo 8 de 8*\n\nPossui *restrições alimentares*?\n_Exemplo: Lactose, glúten, vegetariano...\nSe não tiver, responda: Sem restrições_", Validate: ValidateRestrictions},
	}
}

// RegistrationError wraps a validation reason the way registration re-prompts it
func RegistrationError(step conversation.Step, reason string) string {
	return "❌ *Ops! Algo deu errado...*\n\n" + reason + "\n\n💡 _Por favor, tente novamente._"
}

// NewRegistration builds the 8-step registration flow
func NewRegistration(onComplete conversation.CompletionHandler) *conversation.Flow {
	return conversation.NewFlow(FlowRegistration, RegistrationSteps(), onComplete,
		conversation.WithInvalidFormatter(RegistrationError))
}

// PatientFromAnswers maps a completed registration onto a patient record
func PatientFromAnswers(telegramID int64, answers conversation.Answers) models.Patient {
	age, _ := answers.Int(KeyAge)
	weight, _ := answers.Float(KeyWeight)
	height, _ := answers.Float(KeyHeight)

	return models.Patient{
		TelegramID:    telegramID,
		Name:          answers.String(KeyName),
		Age:           age,
		Gender:        answers.String(KeyGender),
		Weight:        weight,
		Height:        height,
		ActivityLevel: answers.String(KeyActivityLevel),
		Objective:     answers.String(KeyObjective),
		Restrictions:  answers.String(KeyRestrictions),
	}
}
