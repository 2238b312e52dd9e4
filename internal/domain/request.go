package domain

import "fmt"

// Difficulty of the generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType of the generated questions.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// RequestLimits are the configured ceilings a GenerationRequest is
// checked against before any work starts.
type RequestLimits struct {
	MaxSets            int
	MaxQuestionsPerSet int
}

// GenerationRequest describes one user-initiated run: N sets of M
// questions about a topic or a supplied context blob. It is immutable
// once a run starts.
type GenerationRequest struct {
	Topic           string         `json:"topic"`
	Context         string         `json:"context,omitempty"`
	Instructions    string         `json:"instructions,omitempty"`
	QuestionsPerSet int            `json:"questions_per_set"`
	NumSets         int            `json:"num_sets"`
	Difficulty      Difficulty     `json:"difficulty"`
	QuestionTypes   []QuestionType `json:"question_types"`
	RequestingUser  string         `json:"requesting_user"`
}

// Validate rejects size/shape violations with an INVALID_REQUEST error.
func (r *GenerationRequest) Validate(limits RequestLimits) error {
	if r.Topic == "" && r.Context == "" {
		return NewInvalidRequestError("either topic or context is required")
	}
	if r.QuestionsPerSet <= 0 {
		return NewInvalidRequestError("questions_per_set must be positive")
	}
	if r.NumSets <= 0 {
		return NewInvalidRequestError("num_sets must be positive")
	}
	if limits.MaxSets > 0 && r.NumSets > limits.MaxSets {
		return NewInvalidRequestError(fmt.Sprintf("num_sets exceeds maximum of %d", limits.MaxSets))
	}
	if limits.MaxQuestionsPerSet > 0 && r.QuestionsPerSet > limits.MaxQuestionsPerSet {
		return NewInvalidRequestError(fmt.Sprintf("questions_per_set exceeds maximum of %d", limits.MaxQuestionsPerSet))
	}
	switch r.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	case "":
		r.Difficulty = DifficultyMedium
	default:
		return NewInvalidRequestError(fmt.Sprintf("unknown difficulty: %s", r.Difficulty))
	}
	if len(r.QuestionTypes) == 0 {
		r.QuestionTypes = []QuestionType{QuestionTypeMultipleChoice}
	}
	for _, qt := range r.QuestionTypes {
		switch qt {
		case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer:
		default:
			return NewInvalidRequestError(fmt.Sprintf("unknown question type: %s", qt))
		}
	}
	return nil
}
