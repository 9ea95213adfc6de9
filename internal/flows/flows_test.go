package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutribot/internal/conversation"
	"nutribot/internal/models"
	"nutribot/internal/storage/stubs"
)

type captured struct {
	calls   int
	answers conversation.Answers
}

func (c *captured) handle(_ context.Context, _ int64, answers conversation.Answers) (string, error) {
	c.calls++
	c.answers = answers
	return "ok", nil
}

func newEngine(flow *conversation.Flow) *conversation.Engine {
	return conversation.NewEngine(flow, conversation.NewMemoryStore(flow.Name()), zap.NewNop())
}

func submitAll(t *testing.T, e *conversation.Engine, owner int64, inputs ...string) conversation.Result {
	t.Helper()
	var res conversation.Result
	for _, in := range inputs {
		var err error
		res, err = e.Submit(context.Background(), owner, in)
		require.NoError(t, err)
		require.True(t, res.Handled)
	}
	return res
}

func TestRegistration_HappyPath(t *testing.T) {
	rec := &captured{}
	e := newEngine(NewRegistration(rec.handle))
	ctx := context.Background()

	prompt, err := e.Start(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Passo 1 de 8")

	res := submitAll(t, e, 1, "Ana Souza", "29", "F", "65.2", "168", "M", "emagrecer", "")
	assert.True(t, res.Done)
	assert.Equal(t, "ok", res.Reply)
	require.Equal(t, 1, rec.calls)

	assert.Equal(t, []string{KeyName, KeyAge, KeyGender, KeyWeight, KeyHeight, KeyActivityLevel, KeyObjective, KeyRestrictions},
		rec.answers.Keys())
	assert.Equal(t, NoRestrictions, rec.answers.String(KeyRestrictions))

	p := PatientFromAnswers(1, rec.answers)
	assert.Equal(t, "Ana Souza", p.Name)
	assert.Equal(t, 29, p.Age)
	assert.Equal(t, "Feminino", p.Gender)
	assert.Equal(t, 65.2, p.Weight)
	assert.Equal(t, 168.0, p.Height)
	assert.Equal(t, ActivityModerate, p.ActivityLevel)

	active, err := e.Active(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRegistration_ValidationRetry(t *testing.T) {
	rec := &captured{}
	e := newEngine(NewRegistration(rec.handle))
	ctx := context.Background()

	_, err := e.Start(ctx, 1)
	require.NoError(t, err)
	submitAll(t, e, 1, "Ana Souza", "29", "F")

	res, err := e.Submit(ctx, 1, "abc")
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Done)
	assert.Contains(t, res.Reply, "Ops! Algo deu errado")
	assert.Contains(t, res.Reply, "Informe apenas números")

	s, err := e.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, s.StepIndex)

	res = submitAll(t, e, 1, "71.0")
	assert.Contains(t, res.Reply, "Passo 5 de 8")
	s, _ = e.Current(ctx, 1)
	assert.Equal(t, 4, s.StepIndex)
}

func TestRegistration_AgeOutOfRange(t *testing.T) {
	rec := &captured{}
	e := newEngine(NewRegistration(rec.handle))
	ctx := context.Background()

	_, err := e.Start(ctx, 1)
	require.NoError(t, err)
	submitAll(t, e, 1, "Ana Souza")

	for _, bad := range []string{"5", "200"} {
		res, err := e.Submit(ctx, 1, bad)
		require.NoError(t, err)
		assert.Contains(t, res.Reply, "entre *10* e *120*")
		s, _ := e.Current(ctx, 1)
		assert.Equal(t, 1, s.StepIndex)
	}

	res := submitAll(t, e, 1, "34")
	assert.Contains(t, res.Reply, "Passo 3 de 8")
}

func TestFlows_HaveNoDuplicateKeys(t *testing.T) {
	noop := func(context.Context, int64, conversation.Answers) (string, error) { return "", nil }
	flows := []*conversation.Flow{
		NewRegistration(noop),
		NewQuestionnaire(noop),
		NewWeightLog(noop),
		NewReminderCreate(time.UTC, time.Now, noop),
		NewBroadcast(noop),
		NewWorkout(noop),
		NewPantry(noop),
	}
	for _, f := range flows {
		assert.Empty(t, f.DuplicateKeys(), f.Name())
	}
	assert.Equal(t, 8, flows[0].Len())
	assert.Equal(t, 16, flows[1].Len())
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name     string
		validate conversation.Validator
		input    string
		want     any
		wantErr  bool
	}{
		{"name trimmed", ValidateName, "  João Silva ", "João Silva", false},
		{"name too short", ValidateName, "Jo", nil, true},
		{"name empty", ValidateName, "   ", nil, true},
		{"age", ValidateAge, "34", 34, false},
		{"age decimal", ValidateAge, "34.5", nil, true},
		{"age text", ValidateAge, "trinta", nil, true},
		{"gender lower", ValidateGender, "m", "Masculino", false},
		{"gender invalid", ValidateGender, "x", nil, true},
		{"weight comma", ValidateWeight, "70,56", 70.6, false},
		{"weight min edge", ValidateWeight, "20", 20.0, false},
		{"weight too heavy", ValidateWeight, "401", nil, true},
		{"weight NaN", ValidateWeight, "NaN", nil, true},
		{"height", ValidateHeight, "175", 175.0, false},
		{"height too short", ValidateHeight, "99", nil, true},
		{"activity synonym", ValidateActivityLevel, "Muito Ativo", ActivityVeryActive, false},
		{"activity code", ValidateActivityLevel, "S", ActivitySedentary, false},
		{"activity unknown", ValidateActivityLevel, "talvez", nil, true},
		{"objective empty", ValidateObjective, "", nil, true},
		{"restrictions kept", ValidateRestrictions, " lactose ", "lactose", false},
		{"restrictions default", ValidateRestrictions, "   ", NoRestrictions, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.validate(tt.input)
			if tt.wantErr {
				var verr *conversation.ValidationError
				require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
				assert.NotEmpty(t, verr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuestionnaire_ShortAnswerIsRejected(t *testing.T) {
	rec := &captured{}
	e := newEngine(NewQuestionnaire(rec.handle))
	ctx := context.Background()

	_, err := e.Start(ctx, 1)
	require.NoError(t, err)

	res, err := e.Submit(ctx, 1, "x")
	require.NoError(t, err)
	assert.Equal(t, shortAnswer, res.Reply)

	inputs := make([]string, 16)
	for i := range inputs {
		inputs[i] = "resposta"
	}
	res = submitAll(t, e, 1, inputs...)
	assert.True(t, res.Done)

	record := RecordAnswers(rec.answers)
	require.Len(t, record, 16)
	assert.Equal(t, "dados_basicos", record[0].Key)
	assert.Equal(t, "meta_peso", record[15].Key)
	for _, r := range record {
		assert.NotEmpty(t, QuestionnaireLabels[r.Key], r.Key)
	}
}

func TestCheckQuestionnaireEligibility(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

	db := stubs.NewMockDB()
	_, err := db.UpsertPatient(ctx, models.Patient{TelegramID: 1, Name: "Ana", PlanStatus: models.PlanActive, PlanEndDate: now.AddDate(0, 0, 10)})
	require.NoError(t, err)
	_, err = db.UpsertPatient(ctx, models.Patient{TelegramID: 2, Name: "Bia", PlanStatus: models.PlanInactive})
	require.NoError(t, err)

	t.Run("unknown patient", func(t *testing.T) {
		el, err := CheckQuestionnaireEligibility(ctx, db, 99, now)
		require.NoError(t, err)
		assert.False(t, el.Allowed)
		assert.Equal(t, ReasonPlanInactive, el.Reason)
	})

	t.Run("inactive plan", func(t *testing.T) {
		el, err := CheckQuestionnaireEligibility(ctx, db, 2, now)
		require.NoError(t, err)
		assert.Equal(t, ReasonPlanInactive, el.Reason)
		assert.Contains(t, el.Message, "Recurso Premium")
	})

	t.Run("record last month does not count", func(t *testing.T) {
		_, err := db.CreateFoodRecord(ctx, models.FoodRecord{TelegramID: 1, CreatedAt: time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)})
		require.NoError(t, err)

		el, err := CheckQuestionnaireEligibility(ctx, db, 1, now)
		require.NoError(t, err)
		assert.True(t, el.Allowed)
	})

	t.Run("already filled this month", func(t *testing.T) {
		_, err := db.CreateFoodRecord(ctx, models.FoodRecord{TelegramID: 1, CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)})
		require.NoError(t, err)

		el, err := CheckQuestionnaireEligibility(ctx, db, 1, now)
		require.NoError(t, err)
		assert.False(t, el.Allowed)
		assert.Equal(t, ReasonAlreadyFilled, el.Reason)
		assert.Contains(t, el.Message, "02/04/2026")
		assert.Contains(t, el.Message, "01/05/2026")
	})
}

func TestParseReminderDate(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	at, err := ParseReminderDate("25/11/2026 14:30", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 25, 14, 30, 0, 0, time.UTC), at)

	at, err = ParseReminderDate("11/05/2026 7:05", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, 7, at.Hour())

	for _, bad := range []string{"25-11-2026 14:30", "31/02/2026 10:00", "10/05/2026 24:00", "amanhã"} {
		_, err := ParseReminderDate(bad, time.UTC, now)
		assert.Error(t, err, bad)
	}

	_, err = ParseReminderDate("09/05/2026 10:00", time.UTC, now)
	var verr *conversation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "futuro")
}

func TestReminderCreate_StoresTime(t *testing.T) {
	rec := &captured{}
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(NewReminderCreate(time.UTC, func() time.Time { return now }, rec.handle))

	_, err := e.Start(context.Background(), 1)
	require.NoError(t, err)
	res := submitAll(t, e, 1, "Tomar creatina", "11/05/2026 08:00")
	require.True(t, res.Done)

	at, err := ReminderTime(rec.answers)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC), at.UTC())
	assert.Equal(t, "Tomar creatina", rec.answers.String(KeyReminderMessage))
}

func TestWorkout_AcceptsButtonValuesAndLabels(t *testing.T) {
	rec := &captured{}
	e := newEngine(NewWorkout(rec.handle))

	_, err := e.Start(context.Background(), 1)
	require.NoError(t, err)
	res := submitAll(t, e, 1, "intermediario", "Peito + Tríceps (conjugado)", "gvt", "6")
	require.True(t, res.Done)

	assert.Equal(t, "intermediario", rec.answers.String(KeyWorkoutLevel))
	assert.Equal(t, "peito_triceps", rec.answers.String(KeyWorkoutGroup))
	assert.Equal(t, "Intermediário", LabelOf(WorkoutLevels, rec.answers.String(KeyWorkoutLevel)))
	n, ok := rec.answers.Int(KeyWorkoutExercises)
	require.True(t, ok)
	assert.Equal(t, 6, n)

	assert.Len(t, WorkoutOptions(KeyWorkoutExercises), MaxWorkoutExercises)
}

func TestBroadcast_TargetAliases(t *testing.T) {
	v, err := Choice(BroadcastTargets, broadcastAliases, "x")("V")
	require.NoError(t, err)
	assert.Equal(t, TargetExpiring, v)

	_, err = Choice(BroadcastTargets, broadcastAliases, "x")("ninguém")
	assert.Error(t, err)
}
