package quizgen

import (
	"context"
	"errors"
	"testing"

	"quizforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is an llms.Model that replays a canned response and records
// the prompts it was given.
type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, mc := range messages {
		for _, part := range mc.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tc.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *fakeModel) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func testSpec() domain.PromptSpec {
	return domain.PromptSpec{
		Topic:         "Photosynthesis",
		Count:         2,
		Difficulty:    domain.DifficultyMedium,
		QuestionTypes: []domain.QuestionType{domain.QuestionTypeMultipleChoice},
	}
}

func TestGenerateParsesProviderResponse(t *testing.T) {
	model := &fakeModel{response: `<think>planning the questions</think>
Here you go:
[
  {"description": "What pigment absorbs light?", "options": ["Chlorophyll", "Keratin", "Melanin", "Hemoglobin"], "answer": "Chlorophyll", "explanation": "Chlorophyll absorbs light for photosynthesis."},
  {"description": "Where does photosynthesis occur?", "options": ["Chloroplast", "Nucleus", "Ribosome", "Mitochondrion"], "answer": "Chloroplast", "explanation": "Chloroplasts host the light reactions."}
]`}
	g := NewLLMGenerator(model, 0)

	items, err := g.Generate(context.Background(), testSpec())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Chlorophyll", items[0].Answer)
	assert.Equal(t, 0, items[0].OrderIndex)
	assert.Equal(t, 1, items[1].OrderIndex)

	require.NotEmpty(t, model.prompts)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Photosynthesis")
	assert.Contains(t, prompt, "Quantity: 2")
	assert.Contains(t, prompt, "multiple_choice")
	assert.NotContains(t, prompt, "independent reviewer")
}

func TestGenerateInjectsPriorRejection(t *testing.T) {
	model := &fakeModel{response: `[{"description": "q", "options": ["a","b"], "answer": "a", "explanation": "e"}]`}
	g := NewLLMGenerator(model, 0)

	spec := testSpec()
	spec.PriorRejection = "question 1 answer was wrong"
	_, err := g.Generate(context.Background(), spec)
	require.NoError(t, err)

	require.NotEmpty(t, model.prompts)
	assert.Contains(t, model.prompts[0], "independent reviewer")
	assert.Contains(t, model.prompts[0], "question 1 answer was wrong")
}

func TestGenerateGroundsOnProvidedContext(t *testing.T) {
	model := &fakeModel{response: `[{"description": "q", "options": ["a","b"], "answer": "a", "explanation": "e"}]`}
	g := NewLLMGenerator(model, 0)

	spec := testSpec()
	spec.Context = "The Krebs cycle occurs in the mitochondrial matrix."
	_, err := g.Generate(context.Background(), spec)
	require.NoError(t, err)

	require.NotEmpty(t, model.prompts)
	assert.Contains(t, model.prompts[0], "STRICTLY")
	assert.Contains(t, model.prompts[0], "Krebs cycle")
}

func TestGenerateSkipsIncompleteQuestions(t *testing.T) {
	model := &fakeModel{response: `[
  {"description": "", "options": ["a"], "answer": "a", "explanation": "e"},
  {"description": "good one", "options": ["a","b"], "answer": "a", "explanation": "e"}
]`}
	g := NewLLMGenerator(model, 0)

	items, err := g.Generate(context.Background(), testSpec())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "good one", items[0].Description)
	assert.Equal(t, 0, items[0].OrderIndex)
}

func TestGenerateTransientOnUnparseableResponse(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no array", "I cannot help with that."},
		{"malformed json", `[{"description": }`},
		{"empty array", `[]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewLLMGenerator(&fakeModel{response: tc.response}, 0)
			_, err := g.Generate(context.Background(), testSpec())
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.ErrCodeProviderTransient))
		})
	}
}

func TestGenerateClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code domain.ErrorCode
	}{
		{"auth failure is fatal", errors.New("401 unauthorized"), domain.ErrCodeProviderFatal},
		{"bad api key is fatal", errors.New("invalid api key provided"), domain.ErrCodeProviderFatal},
		{"missing model is fatal", errors.New("model not found: qwen9"), domain.ErrCodeProviderFatal},
		{"connection error is transient", errors.New("connection refused"), domain.ErrCodeProviderTransient},
		{"rate limit is transient", errors.New("too many requests"), domain.ErrCodeProviderTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewLLMGenerator(&fakeModel{err: tc.err}, 0)
			_, err := g.Generate(context.Background(), testSpec())
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, tc.code))
		})
	}
}
