// Package nutrition computes body and energy indicators from a patient profile.
package nutrition

import (
	"fmt"
	"math"
	"strings"
	"time"

	"nutribot/internal/models"
)

// BMIClass is the WHO classification of a BMI value
type BMIClass struct {
	Label string
	Emoji string
}

// BMI returns weight / height² with height in centimeters, rounded to one decimal
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

// ClassifyBMI maps a BMI to its WHO class
func ClassifyBMI(bmi float64) BMIClass {
	switch {
	case bmi < 18.5:
		return BMIClass{"Abaixo do peso", "⚠️"}
	case bmi < 25:
		return BMIClass{"Peso normal", "✅"}
	case bmi < 30:
		return BMIClass{"Sobrepeso", "⚠️"}
	case bmi < 35:
		return BMIClass{"Obesidade Grau I", "🔴"}
	case bmi < 40:
		return BMIClass{"Obesidade Grau II", "🔴"}
	default:
		return BMIClass{"Obesidade Grau III", "🔴"}
	}
}

// IsMale reports whether a stored gender label is male
func IsMale(gender string) bool {
	g := strings.ToLower(strings.TrimSpace(gender))
	return g == "masculino" || g == "m" || g == "male"
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal/day, rounded
func BMR(weightKg, heightCm float64, age int, male bool) int {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if male {
		return int(math.Round(base + 5))
	}
	return int(math.Round(base - 161))
}

var activityMultipliers = map[string]float64{
	"sedentary":  1.2,
	"light":      1.375,
	"moderate":   1.55,
	"active":     1.725,
	"veryActive": 1.9,
}

var activityLabels = map[string]string{
	"sedentary":  "Sedentário",
	"light":      "Leve",
	"moderate":   "Moderado",
	"active":     "Ativo",
	"veryActive": "Muito Ativo",
}

// ActivityLabel returns the Portuguese label of an activity code
func ActivityLabel(level string) string {
	if l, ok := activityLabels[level]; ok {
		return l
	}
	return activityLabels["sedentary"]
}

// TDEE multiplies the BMR by the activity factor; unknown levels count as sedentary
func TDEE(bmr int, level string) int {
	m, ok := activityMultipliers[level]
	if !ok {
		m = activityMultipliers["sedentary"]
	}
	return int(math.Round(float64(bmr) * m))
}

// Macros is a daily macronutrient split in grams
type Macros struct {
	Protein int
	Carbs   int
	Fats    int
}

var (
	lossKeywords = []string{"emagrec", "perder peso", "definir", "definição", "secar"}
	gainKeywords = []string{"ganhar massa", "hipertrofia", "bulking", "massa muscular"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// SplitMacros distributes kcal by objective: 35/30/35 for weight loss, 30/45/25 for gain, 30/40/30 otherwise
func SplitMacros(kcal int, objective string) Macros {
	protein, carbs, fats := 0.30, 0.40, 0.30
	obj := strings.ToLower(objective)
	switch {
	case containsAny(obj, lossKeywords):
		protein, carbs, fats = 0.35, 0.30, 0.35
	case containsAny(obj, gainKeywords):
		protein, carbs, fats = 0.30, 0.45, 0.25
	}

	k := float64(kcal)
	return Macros{
		Protein: int(math.Round(k * protein / 4)),
		Carbs:   int(math.Round(k * carbs / 4)),
		Fats:    int(math.Round(k * fats / 9)),
	}
}

// Analysis is the full set of indicators for a patient
type Analysis struct {
	BMI      float64
	Class    BMIClass
	BMR      int
	Calories int
	Macros   Macros
}

// Analyze computes the indicators of a patient
func Analyze(p models.Patient) Analysis {
	bmi := BMI(p.Weight, p.Height)
	bmr := BMR(p.Weight, p.Height, p.Age, IsMale(p.Gender))
	kcal := TDEE(bmr, p.ActivityLevel)
	return Analysis{
		BMI:      bmi,
		Class:    ClassifyBMI(bmi),
		BMR:      bmr,
		Calories: kcal,
		Macros:   SplitMacros(kcal, p.Objective),
	}
}

// MealTarget is the calorie target of one of four daily meals
func (a Analysis) MealTarget() int {
	return int(math.Round(float64(a.Calories) / 4))
}

// Format renders the analysis as a Markdown message
func (a Analysis) Format(p models.Patient) string {
	var sb strings.Builder
	sb.WriteString("🧮 *Análise Nutricional Completa*\n\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString("📊 *IMC (Índice de Massa Corporal)*\n")
	sb.WriteString(fmt.Sprintf("   %s *%.1f* - %s\n\n", a.Class.Emoji, a.BMI, a.Class.Label))
	sb.WriteString("🔥 *TMB (Taxa Metabólica Basal)*\n")
	sb.WriteString(fmt.Sprintf("   %d kcal/dia em repouso\n\n", a.BMR))
	sb.WriteString("🍽️ *Necessidade Calórica Diária*\n")
	sb.WriteString(fmt.Sprintf("   %d kcal/dia\n", a.Calories))
	sb.WriteString(fmt.Sprintf("   _(Nível de atividade: %s)_\n\n", ActivityLabel(p.ActivityLevel)))
	sb.WriteString("⚖️ *Distribuição de Macronutrientes*\n")
	sb.WriteString(fmt.Sprintf("   🥩 Proteína: *%dg/dia*\n", a.Macros.Protein))
	sb.WriteString(fmt.Sprintf("   🍚 Carboidrato: *%dg/dia*\n", a.Macros.Carbs))
	sb.WriteString(fmt.Sprintf("   🥑 Gordura: *%dg/dia*\n", a.Macros.Fats))
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━\n\n")
	sb.WriteString(fmt.Sprintf("💡 _Valores calculados com base no seu perfil e objetivo: %s_", p.Objective))
	return sb.String()
}

// WeightStats summarizes a weight history
type WeightStats struct {
	Entries       int
	Start         float64
	Latest        float64
	Change        float64 // kg, one decimal
	PercentChange float64 // two decimals
	PerWeek       float64 // kg per week, two decimals
	Days          int
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// SummarizeWeights computes stats over entries ordered oldest first.
// ok is false when there are no entries.
func SummarizeWeights(entries []models.WeightEntry) (WeightStats, bool) {
	if len(entries) == 0 {
		return WeightStats{}, false
	}
	first, last := entries[0], entries[len(entries)-1]

	change := last.Weight - first.Weight
	var pct float64
	if first.Weight > 0 {
		pct = change / first.Weight * 100
	}
	days := last.RecordedAt.Sub(first.RecordedAt).Hours() / 24
	weeks := math.Max(days/7, 0.1)

	return WeightStats{
		Entries:       len(entries),
		Start:         first.Weight,
		Latest:        last.Weight,
		Change:        round(change, 1),
		PercentChange: round(pct, 2),
		PerWeek:       round(change/weeks, 2),
		Days:          int(math.Round(days)),
	}, true
}

func signed(v float64, format string) string {
	if v > 0 {
		return "+" + fmt.Sprintf(format, v)
	}
	return fmt.Sprintf(format, v)
}

// TrendEmoji returns the arrow for a weight change
func TrendEmoji(change float64) string {
	switch {
	case change > 0:
		return "📈"
	case change < 0:
		return "📉"
	default:
		return "➡️"
	}
}

// FormatWeightHistory renders the stats and the last ten entries
func FormatWeightHistory(entries []models.WeightEntry, loc *time.Location) string {
	stats, ok := SummarizeWeights(entries)
	if !ok {
		return "📊 *Histórico de Peso*\n\n📭 Você ainda não possui registros de peso.\n\nUse /peso para adicionar seu primeiro peso!"
	}

	var sb strings.Builder
	sb.WriteString("📊 *Histórico de Evolução de Peso*\n\n")
	sb.WriteString("═══════════════════\n")
	sb.WriteString(fmt.Sprintf("⚖️ *Peso Inicial:* %.1f kg\n", stats.Start))
	sb.WriteString(fmt.Sprintf("📍 *Peso Atual:* %.1f kg\n", stats.Latest))
	sb.WriteString(fmt.Sprintf("%s *Variação:* %s kg (%s%%)\n", TrendEmoji(stats.Change), signed(stats.Change, "%.1f"), signed(stats.PercentChange, "%.2f")))
	sb.WriteString(fmt.Sprintf("📅 *Tempo:* %d dias\n", stats.Days))
	sb.WriteString(fmt.Sprintf("📈 *Média/semana:* %s kg\n", signed(stats.PerWeek, "%.2f")))
	sb.WriteString("═══════════════════\n\n")
	sb.WriteString(fmt.Sprintf("📝 *Registros (%d):*\n\n", stats.Entries))

	recent := entries
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for i, e := range recent {
		sb.WriteString(fmt.Sprintf("%d. %.1f kg - %s\n", i+1, e.Weight, e.RecordedAt.In(loc).Format("02/01/2006 15:04")))
	}
	if len(entries) > 10 {
		sb.WriteString(fmt.Sprintf("\n_... e mais %d registro(s)_", len(entries)-10))
	}
	return sb.String()
}
