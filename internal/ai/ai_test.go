package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = body
	return m.resp, m.err
}

func reply(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

type fakeCompleter struct {
	got Prompt
	out string
	err error
}

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	f.got = p
	return f.out, f.err
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	c, err := NewOpenAI("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.model)
}

func TestOpenAI_Complete(t *testing.T) {
	mock := &mockChatService{resp: reply("  Treino pronto  ")}
	c := &OpenAI{chat: mock, model: DefaultModel}

	out, err := c.Complete(context.Background(), Prompt{System: "sys", User: "user", Temperature: 0.6, MaxTokens: 750})
	require.NoError(t, err)
	assert.Equal(t, "Treino pronto", out)

	assert.Equal(t, DefaultModel, mock.params.Model)
	assert.Len(t, mock.params.Messages, 2)
	assert.Equal(t, 0.6, mock.params.Temperature.Value)
	assert.Equal(t, int64(750), mock.params.MaxTokens.Value)
}

func TestOpenAI_CompleteErrors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockChatService
		want error
	}{
		{name: "no choices", mock: &mockChatService{resp: &openai.ChatCompletion{}}, want: ErrEmptyResponse},
		{name: "blank content", mock: &mockChatService{resp: reply("   ")}, want: ErrEmptyResponse},
		{name: "api error", mock: &mockChatService{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &OpenAI{chat: tt.mock, model: DefaultModel}
			_, err := c.Complete(context.Background(), Prompt{User: "x"})
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), Prompt{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestWorkoutPrompt(t *testing.T) {
	f := &fakeCompleter{out: "## 🔥 Aquecimento"}
	out, err := Workout(context.Background(), f, WorkoutRequest{Level: "Intermediário", Group: "Peito e tríceps", Type: "Hipertrofia", Exercises: 6})
	require.NoError(t, err)
	assert.Equal(t, "## 🔥 Aquecimento", out)

	assert.Equal(t, 0.6, f.got.Temperature)
	assert.Equal(t, 750, f.got.MaxTokens)
	assert.Contains(t, f.got.User, "Nível: Intermediário.")
	assert.Contains(t, f.got.User, "Quantidade de exercícios: 6.")
}

func TestRecipePrompts(t *testing.T) {
	p := PantryPrompt(" ovos, tomate ", 540)
	assert.Equal(t, 0.35, p.Temperature)
	assert.True(t, strings.HasPrefix(p.User, "Ingredientes disponíveis: ovos, tomate."))
	assert.Contains(t, p.User, "~540 kcal")

	p = PantryPrompt("arroz", 0)
	assert.Contains(t, p.User, "calorias moderadas")

	p = RemainingPrompt(600)
	assert.Equal(t, 0.4, p.Temperature)
	assert.Equal(t, 500, p.MaxTokens)
	assert.Contains(t, p.User, "cerca de 600 kcal")
	assert.Contains(t, p.User, "fechar minha meta")
}

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		total   int
		items   int
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"items":[{"name":"arroz","kcal":130},{"name":"frango","kcal":330.4}],"total_kcal":460.4}`,
			total: 460,
			items: 2,
		},
		{
			name:  "fenced block",
			reply: "Aqui está:\n```json\n{\"items\":[],\"total_kcal\":95}\n```",
			total: 95,
		},
		{name: "missing total", reply: `{"items":[]}`, wantErr: true},
		{name: "prose", reply: "Não sei estimar.", wantErr: true},
		{name: "negative", reply: `{"total_kcal":-5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEstimate(tt.reply)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnparseableEstimate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, e.TotalKcal())
			assert.Len(t, e.Items, tt.items)
		})
	}
}

func TestEstimateCalories(t *testing.T) {
	f := &fakeCompleter{out: `{"items":[{"name":"banana","kcal":105}],"total_kcal":105}`}
	e, err := EstimateCalories(context.Background(), f, " 1 banana média ")
	require.NoError(t, err)
	assert.Equal(t, 105, e.TotalKcal())
	assert.Equal(t, "1 banana média", f.got.User)
	assert.Equal(t, 0.2, f.got.Temperature)
}
