package dto

import "quizforge/internal/domain"

// SubmitRunRequest is the request body for starting a generation run.
// @Description Parameters for a new question generation run
type SubmitRunRequest struct {
	Topic           string   `json:"topic"`
	Context         string   `json:"context,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
	QuestionsPerSet int      `json:"questions_per_set"`
	NumSets         int      `json:"num_sets"`
	Difficulty      string   `json:"difficulty,omitempty"`
	QuestionTypes   []string `json:"question_types,omitempty"`
}

// ToDomain maps the request body onto the immutable domain request.
func (r *SubmitRunRequest) ToDomain(requestingUser string) domain.GenerationRequest {
	types := make([]domain.QuestionType, len(r.QuestionTypes))
	for i, qt := range r.QuestionTypes {
		types[i] = domain.QuestionType(qt)
	}
	return domain.GenerationRequest{
		Topic:           r.Topic,
		Context:         r.Context,
		Instructions:    r.Instructions,
		QuestionsPerSet: r.QuestionsPerSet,
		NumSets:         r.NumSets,
		Difficulty:      domain.Difficulty(r.Difficulty),
		QuestionTypes:   types,
		RequestingUser:  requestingUser,
	}
}

// SubmitRunResponse acknowledges a submitted run.
type SubmitRunResponse struct {
	RunID string `json:"run_id"`
}

// CancelRunResponse acknowledges a cancellation request.
type CancelRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
}
