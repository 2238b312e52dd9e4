package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationRequestValidate(t *testing.T) {
	limits := RequestLimits{MaxSets: 10, MaxQuestionsPerSet: 50}

	t.Run("valid request with defaults applied", func(t *testing.T) {
		req := GenerationRequest{Topic: "Go", QuestionsPerSet: 5, NumSets: 2}
		require.NoError(t, req.Validate(limits))
		assert.Equal(t, DifficultyMedium, req.Difficulty)
		assert.Equal(t, []QuestionType{QuestionTypeMultipleChoice}, req.QuestionTypes)
	})

	t.Run("context alone is enough", func(t *testing.T) {
		req := GenerationRequest{Context: "some study material", QuestionsPerSet: 5, NumSets: 1}
		assert.NoError(t, req.Validate(limits))
	})

	t.Run("explicit values preserved", func(t *testing.T) {
		req := GenerationRequest{
			Topic:           "Go",
			QuestionsPerSet: 5,
			NumSets:         1,
			Difficulty:      DifficultyHard,
			QuestionTypes:   []QuestionType{QuestionTypeTrueFalse, QuestionTypeShortAnswer},
		}
		require.NoError(t, req.Validate(limits))
		assert.Equal(t, DifficultyHard, req.Difficulty)
		assert.Len(t, req.QuestionTypes, 2)
	})

	rejected := []struct {
		name string
		req  GenerationRequest
	}{
		{"missing topic and context", GenerationRequest{QuestionsPerSet: 5, NumSets: 1}},
		{"non-positive questions", GenerationRequest{Topic: "Go", QuestionsPerSet: 0, NumSets: 1}},
		{"non-positive sets", GenerationRequest{Topic: "Go", QuestionsPerSet: 5, NumSets: -1}},
		{"sets over limit", GenerationRequest{Topic: "Go", QuestionsPerSet: 5, NumSets: 11}},
		{"questions over limit", GenerationRequest{Topic: "Go", QuestionsPerSet: 51, NumSets: 1}},
		{"unknown difficulty", GenerationRequest{Topic: "Go", QuestionsPerSet: 5, NumSets: 1, Difficulty: "brutal"}},
		{"unknown question type", GenerationRequest{Topic: "Go", QuestionsPerSet: 5, NumSets: 1, QuestionTypes: []QuestionType{"essay"}}},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate(limits)
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeInvalidRequest))
		})
	}
}

func TestStatusTerminality(t *testing.T) {
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusCancelled.IsTerminal())

	assert.False(t, SetStatusGenerating.IsTerminal())
	assert.False(t, SetStatusRetrying.IsTerminal())
	assert.True(t, SetStatusAccepted.IsTerminal())
	assert.True(t, SetStatusFailed.IsTerminal())
}

func TestSetJobSnapshotIsDetached(t *testing.T) {
	job := &SetJob{
		Index:            1,
		Status:           SetStatusAccepted,
		Items:            []Question{{Description: "q", Answer: "a"}},
		RejectionReasons: []string{"first try failed"},
	}
	snap := job.Snapshot()

	job.Items[0].Answer = "changed"
	job.RejectionReasons[0] = "changed"

	assert.Equal(t, "a", snap.Items[0].Answer)
	assert.Equal(t, "first try failed", snap.RejectionReasons[0])
}
