package flows

import (
	"strconv"

	"nutribot/internal/conversation"
)

// Workout answer keys
const (
	KeyWorkoutLevel     = "level"
	KeyWorkoutGroup     = "group"
	KeyWorkoutType      = "training_type"
	KeyWorkoutExercises = "exercises"
)

// MaxWorkoutExercises is the largest exercise count offered
const MaxWorkoutExercises = 8

// WorkoutLevels are the training levels
var WorkoutLevels = []Option{
	{Value: "iniciante", Label: "Iniciante"},
	{Value: "intermediario", Label: "Intermediário"},
	{Value: "avancado", Label: "Avançado"},
}

// WorkoutGroups are the muscle groups, single or combined
var WorkoutGroups = []Option{
	{Value: "fullbody", Label: "Corpo inteiro"},
	{Value: "peito", Label: "Peito"},
	{Value: "costas", Label: "Costas"},
	{Value: "pernas", Label: "Pernas (quadríceps)"},
	{Value: "posterior", Label: "Posterior/Glúteos"},
	{Value: "ombros", Label: "Ombros"},
	{Value: "biceps", Label: "Bíceps"},
	{Value: "triceps", Label: "Tríceps"},
	{Value: "core", Label: "Core/Abdômen"},
	{Value: "hiit", Label: "HIIT/Cardio"},
	{Value: "peito_triceps", Label: "Peito + Tríceps (conjugado)"},
	{Value: "costas_biceps", Label: "Costas + Bíceps (conjugado)"},
	{Value: "ombros_trapezio", Label: "Ombros + Trapézio (conjugado)"},
	{Value: "pernas_gluteo", Label: "Pernas + Glúteo (conjugado)"},
}

// WorkoutTypes are the training strategies
var WorkoutTypes = []Option{
	{Value: "piramide", Label: "Pirâmide"},
	{Value: "gvt", Label: "GVT (10x10)"},
	{Value: "circuito", Label: "Circuito"},
	{Value: "fullbody", Label: "Full Body"},
	{Value: "push_pull_legs", Label: "Push/Pull/Legs"},
	{Value: "upper_lower", Label: "Upper/Lower"},
	{Value: "hiit_forca", Label: "HIIT + Força"},
	{Value: "five_by_five", Label: "Força 5x5"},
}

// WorkoutExerciseOptions offers 1 to MaxWorkoutExercises exercises
func WorkoutExerciseOptions() []Option {
	opts := make([]Option, MaxWorkoutExercises)
	for i := range opts {
		n := strconv.Itoa(i + 1)
		opts[i] = Option{Value: n, Label: n + " exercícios"}
	}
	return opts
}

// WorkoutOptions returns the buttons offered at a workout step
func WorkoutOptions(key string) []Option {
	switch key {
	case KeyWorkoutLevel:
		return WorkoutLevels
	case KeyWorkoutGroup:
		return WorkoutGroups
	case KeyWorkoutType:
		return WorkoutTypes
	case KeyWorkoutExercises:
		return WorkoutExerciseOptions()
	}
	return nil
}

func validateExercises(raw string) (any, error) {
	v, ok := parseDecimal(raw)
	if !ok || v != float64(int(v)) || v < 1 || v > MaxWorkoutExercises {
		return nil, conversation.Invalid("Escolha entre 1 e 8 exercícios.")
	}
	return int(v), nil
}

// NewWorkout builds the four-step workout wizard
func NewWorkout(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key:      KeyWorkoutLevel,
			Prompt:   "🏋️ *Gerar treino*\n\nEscolha o seu nível:",
			Validate: Choice(WorkoutLevels, nil, "Escolha um nível pelos botões abaixo."),
		},
		{
			Key:      KeyWorkoutGroup,
			Prompt:   "Agora selecione o grupamento que deseja treinar:",
			Validate: Choice(WorkoutGroups, nil, "Escolha um grupamento pelos botões abaixo."),
		},
		{
			Key:      KeyWorkoutType,
			Prompt:   "Escolha o tipo de treino:",
			Validate: Choice(WorkoutTypes, nil, "Escolha um tipo de treino pelos botões abaixo."),
		},
		{
			Key:      KeyWorkoutExercises,
			Prompt:   "Quantos exercícios quer no treino?\n\n⏳ Leva cerca de 30s para gerar. Clique apenas 1 vez e aguarde.",
			Validate: validateExercises,
		},
	}
	return conversation.NewFlow(FlowWorkout, steps, onComplete)
}
