package ai

import (
	"context"
	"fmt"
	"strings"
)

// WorkoutRequest holds the wizard choices, as display labels
type WorkoutRequest struct {
	Level     string
	Group     string
	Type      string
	Exercises int
}

const workoutSystem = "Você é um personal trainer que escreve treinos claros, seguros e profissionais em Markdown. " +
	"Separe seções com linhas em branco, use bullets, sem tabelas."

// WorkoutPrompt builds the prompt for a strength workout
func WorkoutPrompt(req WorkoutRequest) Prompt {
	user := strings.Join([]string{
		"Gere um treino de musculação em português, com Markdown limpo e espaçado.",
		fmt.Sprintf("Nível: %s.", req.Level),
		fmt.Sprintf("Grupamento principal ou conjugado: %s.", req.Group),
		fmt.Sprintf("Estratégia: %s.", req.Type),
		fmt.Sprintf("Quantidade de exercícios: %d.", req.Exercises),
		"Formato desejado (sem tabelas):",
		"## 🔥 Aquecimento (2 bullets curtos)",
		"- Nome - 1-2 séries - 12-15 reps - 30-45s descanso",
		"## 🏋️ Treino Principal",
		"- Nome - séries x reps - descanso - dica curta de execução",
		"- Repita até atingir o total de exercícios solicitado",
		"## ✅ Finalização",
		"- Alongamento ou respiração - 2-3 min",
		"## ⚠️ Dica de segurança",
		"- 1 bullet curta e prática",
		"Use bullets, deixe linhas em branco entre seções, não use tabelas nem blocos enormes.",
	}, " ")
	return Prompt{System: workoutSystem, User: user, Temperature: 0.6, MaxTokens: 750}
}

// Workout generates a workout plan
func Workout(ctx context.Context, c Completer, req WorkoutRequest) (string, error) {
	return c.Complete(ctx, WorkoutPrompt(req))
}

const recipeFormat = "TÍTULO, linha \"━━━━━━━━━━━━━━━━\", INGREDIENTES em lista, MODO DE PREPARO numerado, " +
	"INFO NUTRICIONAL ESTIMADA (kcal aproximada por porção), DICAS com 2 bullets."

// PantryPrompt builds a recipe prompt restricted to the given ingredients.
// targetKcal <= 0 asks for moderate calories.
func PantryPrompt(ingredients string, targetKcal int) Prompt {
	system := "Você é um nutricionista. Gere uma receita única em português usando apenas os ingredientes fornecidos (se possível). " +
		"Se faltar algo, sugira substituições simples. Formato: " + recipeFormat + " Seja conciso, direto e organizado."

	user := fmt.Sprintf("Ingredientes disponíveis: %s.\n", strings.TrimSpace(ingredients))
	if targetKcal > 0 {
		user += fmt.Sprintf("Tente aproximar ~%d kcal no total se der.", targetKcal)
	} else {
		user += "Use calorias moderadas."
	}
	return Prompt{System: system, User: user, Temperature: 0.35, MaxTokens: 500}
}

// PantryRecipe generates a recipe from what the patient has at home
func PantryRecipe(ctx context.Context, c Completer, ingredients string, targetKcal int) (string, error) {
	return c.Complete(ctx, PantryPrompt(ingredients, targetKcal))
}

// RemainingPrompt builds a recipe prompt that closes the day's remaining calories
func RemainingPrompt(remaining int) Prompt {
	system := "Você é um nutricionista. Gere uma receita única em português, organizada e didática. Formate assim: " +
		recipeFormat + " Use linguagem clara, sem floreios."
	user := fmt.Sprintf("Quero uma receita com cerca de %d kcal para ajudar a fechar minha meta diária.", remaining)
	return Prompt{System: system, User: user, Temperature: 0.4, MaxTokens: 500}
}

// RemainingRecipe generates a recipe for the kcal left in the day
func RemainingRecipe(ctx context.Context, c Completer, remaining int) (string, error) {
	return c.Complete(ctx, RemainingPrompt(remaining))
}
