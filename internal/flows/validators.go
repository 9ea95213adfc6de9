package flows

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"nutribot/internal/conversation"
)

// Registration limits
const (
	MinAge    = 10
	MaxAge    = 120
	MinWeight = 20.0
	MaxWeight = 400.0
	MinHeight = 100.0
	MaxHeight = 250.0
)

// NoRestrictions is stored when the restrictions answer is left blank
const NoRestrictions = "Sem restrições"

// Activity level codes stored on the patient
const (
	ActivitySedentary  = "sedentary"
	ActivityLight      = "light"
	ActivityModerate   = "moderate"
	ActivityActive     = "active"
	ActivityVeryActive = "veryActive"
)

var activitySynonyms = map[string]string{
	"s": ActivitySedentary, "sed": ActivitySedentary, "sedentario": ActivitySedentary, "sedentário": ActivitySedentary,
	"l": ActivityLight, "leve": ActivityLight, "light": ActivityLight,
	"m": ActivityModerate, "mod": ActivityModerate, "moderado": ActivityModerate,
	"a": ActivityActive, "ativo": ActivityActive, "active": ActivityActive,
	"ma": ActivityVeryActive, "va": ActivityVeryActive, "muito ativo": ActivityVeryActive,
	"muitoativo": ActivityVeryActive, "veryactive": ActivityVeryActive, "very active": ActivityVeryActive,
}

// parseDecimal accepts "70.5" and "70,5"; ok is false for anything that is not a finite number
func parseDecimal(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidateName requires at least 3 characters
func ValidateName(raw string) (any, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return nil, conversation.Invalid("👤 O campo nome é obrigatório.")
	}
	if len([]rune(name)) < 3 {
		return nil, conversation.Invalid("👤 O nome deve ter pelo menos 3 caracteres.\n_Exemplo: João Silva_")
	}
	return name, nil
}

// ValidateAge accepts whole years in [MinAge, MaxAge]
func ValidateAge(raw string) (any, error) {
	v, ok := parseDecimal(raw)
	if !ok {
		return nil, conversation.Invalid("🎂 Idade inválida.\n\nInforme apenas números.\n_Exemplo: 25_")
	}
	if v != math.Trunc(v) || v < MinAge || v > MaxAge {
		return nil, conversation.Invalid(fmt.Sprintf(
			"🎂 Idade inválida.\n\nInforme um número inteiro entre *%d* e *%d* anos.\n_Exemplo: 25_", MinAge, MaxAge))
	}
	return int(v), nil
}

// ValidateGender maps M/F to the stored label
func ValidateGender(raw string) (any, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M":
		return "Masculino", nil
	case "F":
		return "Feminino", nil
	}
	return nil, conversation.Invalid("Por favor, responda apenas *M* ou *F*")
}

// ValidateWeight accepts kilograms in [MinWeight, MaxWeight], rounded to one decimal
func ValidateWeight(raw string) (any, error) {
	v, ok := parseDecimal(raw)
	if !ok {
		return nil, conversation.Invalid("⚖️ Peso inválido.\n\nInforme apenas números.\n_Exemplo: 70 ou 70.5_")
	}
	v = math.Round(v*10) / 10
	if v < MinWeight || v > MaxWeight {
		return nil, conversation.Invalid(fmt.Sprintf(
			"⚖️ Peso fora do intervalo permitido.\n\nInforme um valor entre *%.0fkg* e *%.0fkg*.\n_Exemplo: 70.5_", MinWeight, MaxWeight))
	}
	return v, nil
}

// ValidateHeight accepts centimeters in [MinHeight, MaxHeight]
func ValidateHeight(raw string) (any, error) {
	v, ok := parseDecimal(raw)
	if !ok {
		return nil, conversation.Invalid("📏 Altura inválida.\n\nInforme apenas números.\n_Exemplo: 175_")
	}
	if v < MinHeight || v > MaxHeight {
		return nil, conversation.Invalid(fmt.Sprintf(
			"📏 Altura inválida.\n\nInforme um valor entre *%.0fcm* e *%.0fcm*.\n_Exemplo: 175_", MinHeight, MaxHeight))
	}
	return v, nil
}

// ValidateActivityLevel normalizes the answer to an activity code
func ValidateActivityLevel(raw string) (any, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return nil, conversation.Invalid("Informe um nível de atividade.")
	}
	if code, ok := activitySynonyms[value]; ok {
		return code, nil
	}
	return nil, conversation.Invalid("Escolha: Sedentário, Leve, Moderado, Ativo ou Muito Ativo (pode usar S/L/M/A/MA).")
}

// ValidateObjective requires a non-empty answer
func ValidateObjective(raw string) (any, error) {
	objective := strings.TrimSpace(raw)
	if objective == "" {
		return nil, conversation.Invalid("🎯 O campo objetivo é obrigatório.\n\n_Exemplo: Emagrecer, ganhar massa muscular, melhorar saúde..._")
	}
	return objective, nil
}

// ValidateRestrictions defaults a blank answer to NoRestrictions
func ValidateRestrictions(raw string) (any, error) {
	if r := strings.TrimSpace(raw); r != "" {
		return r, nil
	}
	return NoRestrictions, nil
}

// MinLength accepts trimmed text of at least n characters
func MinLength(n int, reason string) conversation.Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		if len([]rune(s)) < n {
			return nil, conversation.Invalid(reason)
		}
		return s, nil
	}
}

// Option is one accepted answer of a choice step
type Option struct {
	Value string
	Label string
}

// Choice accepts an option value or its label, case-insensitively, and stores the value.
// Extra aliases map to option values.
func Choice(options []Option, aliases map[string]string, reason string) conversation.Validator {
	return func(raw string) (any, error) {
		in := strings.ToLower(strings.TrimSpace(raw))
		if v, ok := aliases[in]; ok {
			in = v
		}
		for _, o := range options {
			if in == strings.ToLower(o.Value) || in == strings.ToLower(o.Label) {
				return o.Value, nil
			}
		}
		return nil, conversation.Invalid(reason)
	}
}

// LabelOf returns the label of the option with the given value, or the value itself
func LabelOf(options []Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
