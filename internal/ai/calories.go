package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"

	"nutribot/internal/models"
)

// ErrUnparseableEstimate is returned when the model reply carries no usable total
var ErrUnparseableEstimate = errors.New("ai: calorie estimate could not be parsed")

// Estimate is the calorie breakdown of a meal description
type Estimate struct {
	Items []models.CalorieItem `json:"items"`
	Total *float64             `json:"total_kcal"`
}

// TotalKcal returns the rounded total
func (e Estimate) TotalKcal() int {
	if e.Total == nil {
		return 0
	}
	return int(math.Round(*e.Total))
}

const estimateSystem = "Você é um nutricionista. Receba uma lista de alimentos com quantidades em gramas ou unidades. " +
	"Retorne JSON com calorias estimadas por item e total. Use chaves: items (array de {name, kcal}), " +
	"total_kcal (number). Responda apenas JSON."

// EstimatePrompt asks for a JSON calorie estimate of foods
func EstimatePrompt(foods string) Prompt {
	return Prompt{System: estimateSystem, User: strings.TrimSpace(foods), Temperature: 0.2, MaxTokens: 300}
}

var fencedJSON = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ParseEstimate reads the model reply, with or without a fenced json block
func ParseEstimate(reply string) (Estimate, error) {
	raw := strings.TrimSpace(reply)
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	var e Estimate
	if err := sonic.UnmarshalString(raw, &e); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrUnparseableEstimate, err)
	}
	if e.Total == nil || *e.Total < 0 {
		return Estimate{}, ErrUnparseableEstimate
	}
	return e, nil
}

// EstimateCalories asks the model for the calories of foods
func EstimateCalories(ctx context.Context, c Completer, foods string) (Estimate, error) {
	reply, err := c.Complete(ctx, EstimatePrompt(foods))
	if err != nil {
		return Estimate{}, err
	}
	return ParseEstimate(reply)
}
