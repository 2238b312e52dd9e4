package validator

import (
	"context"
	"encoding/json"
	"fmt"

	"quizforge/internal/domain"
	"quizforge/internal/logger"
	"quizforge/internal/util"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// LLMValidator implements domain.ValidatorAdapter: an independent
// model pass that fact-checks a generated set and returns an
// all-or-nothing verdict.
type LLMValidator struct {
	llm llms.Model
}

func NewLLMValidator(llm llms.Model) domain.ValidatorAdapter {
	return &LLMValidator{llm: llm}
}

// verdictPayload is the JSON shape the validator model is instructed
// to produce.
type verdictPayload struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
	Analysis string `json:"analysis"`
	Issues   []struct {
		Index   int    `json:"index"`
		Problem string `json:"problem"`
	} `json:"issues"`
}

// Validate runs the correctness check. Transport and parse failures
// surface as VALIDATOR_UNAVAILABLE so the set job retries them within
// its attempt budget.
func (v *LLMValidator) Validate(ctx context.Context, items []domain.Question, spec domain.PromptSpec) (*domain.Verdict, error) {
	l := logger.Get()

	if len(items) == 0 {
		return &domain.Verdict{Accepted: false, Reason: "empty question set"}, nil
	}

	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, domain.NewValidatorUnavailableError(err)
	}

	prompt := buildValidationPrompt(spec, string(itemsJSON))
	l.Debug("Calling validator", zap.Int("items", len(items)), zap.String("topic", spec.Topic))

	response, err := llms.GenerateFromSinglePrompt(ctx, v.llm, prompt,
		llms.WithTemperature(0.1),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, domain.NewValidatorUnavailableError(err)
	}

	jsonStr := util.ExtractJSONObject(response)
	if jsonStr == "" {
		l.Warn("No JSON object in validator response",
			zap.String("response", util.TruncateString(response, 300)))
		return nil, domain.NewValidatorUnavailableError(fmt.Errorf("no JSON object in validator response"))
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		l.Warn("Failed to unmarshal validator response",
			zap.Error(err),
			zap.String("json", util.TruncateString(jsonStr, 300)))
		return nil, domain.NewValidatorUnavailableError(err)
	}

	verdict := &domain.Verdict{
		Accepted: payload.Accepted,
		Reason:   payload.Reason,
		Report:   payload.Analysis,
	}
	for _, issue := range payload.Issues {
		verdict.PerItemDetail = append(verdict.PerItemDetail, domain.ItemIssue{
			Index:   issue.Index,
			Problem: issue.Problem,
		})
	}
	// Any item-level issue rejects the whole set for this attempt.
	if len(verdict.PerItemDetail) > 0 {
		verdict.Accepted = false
		if verdict.Reason == "" {
			verdict.Reason = fmt.Sprintf("%d question(s) flagged by reviewer", len(verdict.PerItemDetail))
		}
	}

	l.Debug("Validator verdict",
		zap.Bool("accepted", verdict.Accepted),
		zap.Int("issues", len(verdict.PerItemDetail)),
	)
	return verdict, nil
}

func buildValidationPrompt(spec domain.PromptSpec, itemsJSON string) string {
	contextPart := "General knowledge"
	if spec.Context != "" {
		contextPart = util.TruncateString(spec.Context, 500)
	}

	return fmt.Sprintf(`You are an expert academic editor and fact-checker.
Your task is to validate the following questions on the topic: %q.

Context provided to the generator:
%s

Input Questions (JSON):
%s

Validate each question by checking:
1. Relevance: Is the question strictly related to the topic/content?
2. Correctness: Is the "answer" field definitely correct?
3. Clarity: Is the question phrased clearly?
4. Options Quality: Are all options plausible but only one correct?

Respond with ONLY a JSON object in the following format:
{
  "accepted": true or false,
  "reason": "one-sentence summary when rejecting, empty when accepting",
  "analysis": "your detailed per-question validation report",
  "issues": [{"index": 0, "problem": "what is wrong with that question"}]
}

Accept the set only if every question passes all four checks. List every
failing question in "issues" with its zero-based index.`, spec.Topic, contextPart, itemsJSON)
}
