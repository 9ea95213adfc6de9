package flows

import (
	"fmt"

	"nutribot/internal/conversation"
)

// KeyNewWeight holds the weight logged by the weight flow
const KeyNewWeight = "new_weight"

// WeightPrompt introduces the weight flow with the previous weight
func WeightPrompt(previous float64) string {
	return fmt.Sprintf("⚖️ *Registrar Novo Peso*\n\n💡 _Peso anterior: %.1f kg_", previous)
}

func validateLoggedWeight(raw string) (any, error) {
	v, err := ValidateWeight(raw)
	if err != nil {
		return nil, conversation.Invalid(fmt.Sprintf("❌ *Peso inválido*\n\nInforme um valor entre %.0fkg e %.0fkg.\n📝 Exemplo: `72.5`", MinWeight, MaxWeight))
	}
	return v, nil
}

// NewWeightLog builds the single-step weight logging flow
func NewWeightLog(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{Key: KeyNewWeight, Prompt: "Digite seu peso atual em kg.\n\n📝 Exemplo: `72.5` ou `72`", Validate: validateLoggedWeight},
	}
	return conversation.NewFlow(FlowWeight, steps, onComplete,
		conversation.WithInvalidFormatter(func(_ conversation.Step, reason string) string { return reason }))
}
