package nutrition

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nutribot/internal/models"
)

func TestClassifyBMI(t *testing.T) {
	testCases := []struct {
		bmi      float64
		expected string
	}{
		{18.4, "Abaixo do peso"},
		{18.5, "Peso normal"},
		{24.9, "Peso normal"},
		{25, "Sobrepeso"},
		{30, "Obesidade Grau I"},
		{35, "Obesidade Grau II"},
		{40, "Obesidade Grau III"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ClassifyBMI(tc.bmi).Label, "bmi %.1f", tc.bmi)
	}
}

func TestAnalyze(t *testing.T) {
	testCases := []struct {
		name     string
		patient  models.Patient
		bmi      float64
		bmr      int
		calories int
		macros   Macros
	}{
		{
			name: "female losing weight",
			patient: models.Patient{Weight: 65.2, Height: 168, Age: 29, Gender: "Feminino",
				ActivityLevel: "moderate", Objective: "Emagrecer"},
			bmi: 23.1, bmr: 1396, calories: 2164,
			macros: Macros{Protein: 189, Carbs: 162, Fats: 84},
		},
		{
			name: "male gaining muscle",
			patient: models.Patient{Weight: 80, Height: 180, Age: 30, Gender: "Masculino",
				ActivityLevel: "sedentary", Objective: "Ganhar massa muscular"},
			bmi: 24.7, bmr: 1780, calories: 2136,
			macros: Macros{Protein: 160, Carbs: 240, Fats: 59},
		},
		{
			name: "unknown activity counts as sedentary",
			patient: models.Patient{Weight: 80, Height: 180, Age: 30, Gender: "Masculino",
				ActivityLevel: "", Objective: "saúde"},
			bmi: 24.7, bmr: 1780, calories: 2136,
			macros: Macros{Protein: 160, Carbs: 214, Fats: 71},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := Analyze(tc.patient)
			assert.Equal(t, tc.bmi, a.BMI)
			assert.Equal(t, tc.bmr, a.BMR)
			assert.Equal(t, tc.calories, a.Calories)
			assert.Equal(t, tc.macros, a.Macros)
		})
	}
}

func TestAnalysis_Format(t *testing.T) {
	p := models.Patient{Weight: 65.2, Height: 168, Age: 29, Gender: "Feminino", ActivityLevel: "light", Objective: "Emagrecer"}
	text := Analyze(p).Format(p)

	assert.Contains(t, text, "*23.1* - Peso normal")
	assert.Contains(t, text, "Nível de atividade: Leve")
	assert.True(t, strings.HasSuffix(text, "objetivo: Emagrecer_"))
}

func TestSummarizeWeights(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	_, ok := SummarizeWeights(nil)
	assert.False(t, ok)

	stats, ok := SummarizeWeights([]models.WeightEntry{
		{Weight: 80, RecordedAt: start},
		{Weight: 79.1, RecordedAt: start.AddDate(0, 0, 7)},
		{Weight: 78, RecordedAt: start.AddDate(0, 0, 14)},
	})
	assert.True(t, ok)
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, -2.0, stats.Change)
	assert.Equal(t, -2.5, stats.PercentChange)
	assert.Equal(t, -1.0, stats.PerWeek)
	assert.Equal(t, 14, stats.Days)
}

func TestFormatWeightHistory(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	var entries []models.WeightEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, models.WeightEntry{Weight: 90 - float64(i)*0.5, RecordedAt: start.AddDate(0, 0, i)})
	}

	text := FormatWeightHistory(entries, time.UTC)
	assert.Contains(t, text, "📉 *Variação:* -5.5 kg")
	assert.Contains(t, text, "Registros (12)")
	assert.Contains(t, text, "e mais 2 registro(s)")

	assert.Contains(t, FormatWeightHistory(nil, time.UTC), "ainda não possui registros")
}
