package flows

import (
	"fmt"
	"time"

	"nutribot/internal/conversation"
)

// KeyFoods holds the foods of a calorie log entry
const KeyFoods = "foods"

// CaloriesTimeout is how long a calorie log waits for the food list
const CaloriesTimeout = 10 * time.Minute

// CaloriesIntro shows the day's target, consumption and remaining calories
func CaloriesIntro(target, consumed int, activityLabel string) string {
	remaining := target - consumed
	if remaining < 0 {
		remaining = 0
	}
	return "🍽️ *Registrar Alimentos (Kcal)*\n\n" +
		fmt.Sprintf("Meta estimada hoje: *~%d kcal* (nível: %s).\n", target, activityLabel) +
		fmt.Sprintf("Já consumido hoje: *%d kcal*\n", consumed) +
		fmt.Sprintf("Restante: *%d kcal*", remaining)
}

// NewCalorieLog builds the single-step food calorie flow
func NewCalorieLog(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key: KeyFoods,
			Prompt: "Envie os alimentos neste formato:\n" +
				"`100g de arroz branco; 200g de frango grelhado; 1 banana média`\n\n" +
				"Vou estimar as calorias e mostrar quanto resta da sua meta.",
			Validate: MinLength(3, "❌ Informe os alimentos e as quantidades (ex: 100g de arroz)."),
		},
	}
	return conversation.NewFlow(FlowCalories, steps, onComplete)
}
