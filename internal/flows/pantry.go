package flows

import (
	"time"

	"nutribot/internal/conversation"
)

// KeyIngredients holds the pantry ingredient list
const KeyIngredients = "ingredients"

// PantryTimeout is how long a pantry request waits for the ingredient list
const PantryTimeout = 10 * time.Minute

// NewPantry builds the single-step "cook with what I have" flow
func NewPantry(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key: KeyIngredients,
			Prompt: "🍳 *Gerar receita com o que você tem*\n\n" +
				"Envie uma lista dos ingredientes disponíveis (ex: arroz, frango, cenoura, ovos).\n" +
				"Vou criar uma receita prática usando esses itens. Se quiser, informe também utensílios ou restrições.",
			Validate: MinLength(3, "❌ Envie pelo menos um ingrediente (ex: arroz, frango)."),
		},
	}
	return conversation.NewFlow(FlowPantry, steps, onComplete)
}
