package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/llm"
)

// LLMGenerator implements Generator using the LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// NewLLMGenerator creates a new LLMGenerator with the given provider and config.
func NewLLMGenerator(provider llm.Provider, cfg Config) *LLMGenerator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &LLMGenerator{provider: provider, config: cfg}
}

// questionSetOutput is the raw LLM response before validation.
type questionSetOutput struct {
	Questions []struct {
		Text       string   `json:"text"`
		Type       string   `json:"type"`
		Options    []string `json:"options"`
		Category   string   `json:"category"`
		Difficulty string   `json:"difficulty"`
	} `json:"questions"`
}

// Generate asks the model for a set and validates it, retrying once the
// validators report a retryable failure.
func (g *LLMGenerator) Generate(ctx context.Context, input GenerateInput) ([]assessment.Question, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestionGen)

	var lastErr error
	for attempt := 0; attempt < g.config.MaxAttempts; attempt++ {
		qs, err := g.generateOnce(ctx, input)
		if err == nil {
			return qs, nil
		}
		lastErr = err

		var verr *ValidationError
		if !errors.As(err, &verr) || !verr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (g *LLMGenerator) generateOnce(ctx context.Context, input GenerateInput) ([]assessment.Question, error) {
	req := llm.Request{
		System:      systemPrompt(input.Type),
		Messages:    llm.UserMessage(buildUserMessage(input, g.config)),
		Schema:      QuestionSetSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	var raw questionSetOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	qs := make([]assessment.Question, 0, len(raw.Questions))
	for _, r := range raw.Questions {
		opts := make([]string, 0, len(r.Options))
		for _, o := range r.Options {
			opts = append(opts, strings.TrimSpace(o))
		}
		qs = append(qs, assessment.Question{
			Text:       strings.TrimSpace(r.Text),
			Kind:       assessment.NormalizeKind(r.Type),
			Options:    opts,
			Category:   r.Category,
			Difficulty: r.Difficulty,
		})
	}

	if verr := RunValidators(g.config.Validators, qs, input); verr != nil {
		return nil, verr
	}
	return qs, nil
}
