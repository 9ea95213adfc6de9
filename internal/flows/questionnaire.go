package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nutribot/internal/conversation"
	"nutribot/internal/models"
	"nutribot/internal/storage"
)

// RecordTypeQuestionnaire is the record type of stored questionnaires
const RecordTypeQuestionnaire = "recordatorio_24h"

// QuestionnaireIntro is sent before the first question
const QuestionnaireIntro = "📋 *Questionário Nutricional Completo*\n\n" +
	"São *16 perguntas objetivas* para personalizarmos seu plano.\n\n" +
	"💡 Responda com detalhes. Se algo não se aplica, escreva \"Não\"."

const shortAnswer = "❌ *Resposta muito curta*\n\nPor favor, seja mais específico."

var questionnaireQuestions = []struct {
	key, prompt string
}{
	{"dados_basicos", "1) *Nome, idade, altura e peso atual:*"},
	{"objetivo", "2) *Objetivo principal* (ex: emagrecer, ganhar massa, saúde, exames):"},
	{"doencas", "3) *Tem alguma doença diagnosticada?*"},
	{"medicamentos", "4) *Usa medicamentos ou suplementos? Quais?*"},
	{"cirurgias", "5) *Já fez cirurgias? Qual/Quando?*"},
	{"exames", "6) *Possui exames recentes?* (Se sim, descreva):"},
	{"rotina", "7) *Como é sua rotina diária?* (horários, trabalho, sono):"},
	{"atividade_fisica", "8) *Pratica atividade física?* Qual e quantas vezes por semana?"},
	{"refeicoes", "9) *Quantas refeições faz por dia e como costuma comer?*"},
	{"alergias", "10) *Tem alergias, intolerâncias ou alimentos que evita?*"},
	{"intestino", "11) *Como funciona seu intestino?* (frequência, gases, inchaço):"},
	{"alcool", "12) *Consome álcool?* Com que frequência?"},
	{"agua", "13) *Bebe quanta água por dia?*"},
	{"emocional", "14) *Tem ansiedade, compulsão ou belisca muito durante o dia?*"},
	{"preferencias", "15) *Que alimentos você mais gosta e menos gosta?*"},
	{"meta_peso", "16) *Qual seu peso ideal ou meta desejada?*"},
}

// QuestionnaireLabels maps answer keys to short titles used when showing a record
var QuestionnaireLabels = map[string]string{
	"dados_basicos":    "Dados básicos",
	"objetivo":         "Objetivo",
	"doencas":          "Doenças",
	"medicamentos":     "Medicamentos/suplementos",
	"cirurgias":        "Cirurgias",
	"exames":           "Exames",
	"rotina":           "Rotina",
	"atividade_fisica": "Atividade física",
	"refeicoes":        "Refeições",
	"alergias":         "Alergias/intolerâncias",
	"intestino":        "Intestino",
	"alcool":           "Álcool",
	"agua":             "Água",
	"emocional":        "Emocional",
	"preferencias":     "Preferências",
	"meta_peso":        "Meta de peso",
}

// QuestionnaireSteps returns the 16 intake questions
func QuestionnaireSteps() []conversation.Step {
	steps := make([]conversation.Step, len(questionnaireQuestions))
	for i, q := range questionnaireQuestions {
		steps[i] = conversation.Step{Key: q.key, Prompt: q.prompt, Validate: MinLength(2, shortAnswer)}
	}
	return steps
}

// NewQuestionnaire builds the 16-step questionnaire flow.
// Short answers are rejected without repeating the question.
func NewQuestionnaire(onComplete conversation.CompletionHandler) *conversation.Flow {
	return conversation.NewFlow(FlowQuestionnaire, QuestionnaireSteps(), onComplete,
		conversation.WithInvalidFormatter(func(_ conversation.Step, reason string) string { return reason }))
}

// RecordAnswers converts collected answers into stored record pairs, keeping order
func RecordAnswers(answers conversation.Answers) []models.RecordAnswer {
	items := answers.Items()
	out := make([]models.RecordAnswer, len(items))
	for i, a := range items {
		out[i] = models.RecordAnswer{Key: a.Key, Value: answers.String(a.Key)}
	}
	return out
}

// Eligibility reasons
const (
	ReasonPlanInactive  = "plan_inactive"
	ReasonAlreadyFilled = "already_filled"
	ReasonError         = "error"
)

// Eligibility is the answer to "may this patient start the questionnaire now"
type Eligibility struct {
	Allowed bool
	Reason  string
	Message string
}

// RecordFinder is the storage subset the eligibility check needs
type RecordFinder interface {
	GetPatient(ctx context.Context, telegramID int64) (*models.Patient, error)
	LatestFoodRecordSince(ctx context.Context, telegramID int64, since time.Time) (*models.FoodRecord, error)
}

// CheckQuestionnaireEligibility requires an active plan and at most one questionnaire per calendar month
func CheckQuestionnaireEligibility(ctx context.Context, db RecordFinder, telegramID int64, now time.Time) (Eligibility, error) {
	patient, err := db.GetPatient(ctx, telegramID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Eligibility{Reason: ReasonError, Message: "❌ Erro ao verificar disponibilidade."}, fmt.Errorf("failed to load patient: %w", err)
	}
	if patient == nil || patient.PlanStatus != models.PlanActive {
		return Eligibility{
			Reason: ReasonPlanInactive,
			Message: "🔒 *Recurso Premium*\n\nO Questionário Alimentar é exclusivo para planos ativos.\n\n" +
				"💰 Clique em *Renovar Plano* para ativar seu acesso!",
		}, nil
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last, err := db.LatestFoodRecordSince(ctx, telegramID, firstOfMonth)
	if errors.Is(err, storage.ErrNotFound) {
		return Eligibility{Allowed: true}, nil
	}
	if err != nil {
		return Eligibility{Reason: ReasonError, Message: "❌ Erro ao verificar disponibilidade."}, fmt.Errorf("failed to check food records: %w", err)
	}

	next := firstOfMonth.AddDate(0, 1, 0)
	return Eligibility{
		Reason: ReasonAlreadyFilled,
		Message: fmt.Sprintf("📝 *Questionário Já Enviado*\n\nVocê já preencheu o questionário deste mês em %s.\n\n📅 Próximo disponível: %s",
			last.CreatedAt.In(now.Location()).Format("02/01/2006"), next.Format("02/01/2006")),
	}, nil
}
