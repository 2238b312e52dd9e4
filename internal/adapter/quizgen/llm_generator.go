package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"quizforge/internal/domain"
	"quizforge/internal/logger"
	"quizforge/internal/util"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LLMGenerator implements domain.GeneratorAdapter on top of a
// langchaingo model. It owns prompt construction, response parsing and
// the transient/fatal error classification the set job retry policy
// depends on.
type LLMGenerator struct {
	llm     llms.Model
	limiter *rate.Limiter
}

// NewLLMGenerator creates a generator adapter. requestsPerSecond of
// zero disables throttling.
func NewLLMGenerator(llm llms.Model, requestsPerSecond float64) domain.GeneratorAdapter {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &LLMGenerator{llm: llm, limiter: limiter}
}

// Generate asks the provider for one batch of questions and parses the
// JSON array out of its reply.
func (g *LLMGenerator) Generate(ctx context.Context, spec domain.PromptSpec) ([]domain.Question, error) {
	l := logger.Get()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, domain.NewProviderTransientError("rate limiter wait interrupted", err)
		}
	}

	prompt := buildPrompt(spec)
	l.Debug("Calling generation provider",
		zap.String("topic", spec.Topic),
		zap.Int("count", spec.Count),
		zap.Bool("has_prior_rejection", spec.PriorRejection != ""),
	)

	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(0.7),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	jsonStr := util.ExtractJSONArray(response)
	if jsonStr == "" {
		l.Warn("No JSON array in provider response",
			zap.String("response", util.TruncateString(response, 300)))
		return nil, domain.NewProviderTransientError("no JSON array in provider response", nil)
	}

	var items []domain.Question
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		l.Warn("Failed to unmarshal provider response",
			zap.Error(err),
			zap.String("json", util.TruncateString(jsonStr, 300)))
		return nil, domain.NewProviderTransientError("malformed JSON from provider", err)
	}

	questions := make([]domain.Question, 0, len(items))
	for _, q := range items {
		if q.Description == "" || q.Answer == "" {
			l.Warn("Provider returned incomplete question, skipping",
				zap.String("description", util.TruncateString(q.Description, 100)))
			continue
		}
		q.OrderIndex = len(questions)
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.NewProviderTransientError("provider returned no usable questions", nil)
	}

	l.Debug("Generation provider returned questions", zap.Int("count", len(questions)))
	return questions, nil
}

func buildPrompt(spec domain.PromptSpec) string {
	var grounding string
	if spec.Context != "" {
		grounding = fmt.Sprintf("Base your questions STRICTLY on the following content:\n---\n%s\n---", spec.Context)
	} else {
		grounding = fmt.Sprintf("Generate questions based on general knowledge of the topic: %q.", spec.Topic)
	}

	types := make([]string, len(spec.QuestionTypes))
	for i, qt := range spec.QuestionTypes {
		types[i] = string(qt)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert educational content generator.
Task: Create a question bank.

Parameters:
- Topic: %s
- Quantity: %d
- Difficulty: %s
- Types: %s

Instructions:
%s
`, spec.Topic, spec.Count, spec.Difficulty, strings.Join(types, ", "), grounding)

	if spec.Instructions != "" {
		fmt.Fprintf(&b, "User specific instructions:\n%s\n", spec.Instructions)
	}

	b.WriteString(`
1. Ensure questions are accurate, relevant, and grammatically correct.
2. Provide clear and distinct options for multiple choice questions.
3. The "answer" field must be the exact string text of the correct option.
4. Provide a helpful "explanation" for why the answer is correct.
5. Output MUST be a single valid JSON array of objects with the fields
   "description", "options", "answer", "explanation".
6. Create UNIQUE questions. Do not repeat questions if called multiple times in a sequence.
`)

	if spec.PriorRejection != "" {
		fmt.Fprintf(&b, `
A previous attempt at this question set was rejected by an independent reviewer.
Reviewer feedback:
%s

Correct every problem the reviewer raised in this new set.
`, spec.PriorRejection)
	}
	return b.String()
}

// classifyProviderError separates retryable provider failures from the
// auth/config class that must abort the whole run.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"api key", "unauthorized", "401", "403", "permission denied", "invalid credentials", "model not found"} {
		if strings.Contains(msg, marker) {
			return domain.NewProviderFatalError("provider rejected credentials or configuration", err)
		}
	}
	return domain.NewProviderTransientError("provider call failed", err)
}
