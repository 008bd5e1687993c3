package questiongen

import (
	"fmt"
	"strings"

	"github.com/taru-edu/taru/internal/assessment"
)

const (
	maxTextLen   = 500
	maxOptionLen = 200
	minOptions   = 2
	maxOptions   = 8
)

// CountValidator rejects sets of the wrong size.
type CountValidator struct{}

func (v *CountValidator) Name() string { return "count" }

func (v *CountValidator) Validate(qs []assessment.Question, input GenerateInput) *ValidationError {
	if len(qs) == 0 {
		return &ValidationError{Validator: v.Name(), Index: -1, Message: "no questions", Retryable: true}
	}
	if input.Count > 0 && len(qs) != input.Count {
		return &ValidationError{
			Validator: v.Name(),
			Index:     -1,
			Message:   fmt.Sprintf("got %d questions, want %d", len(qs), input.Count),
			Retryable: true,
		}
	}
	return nil
}

// StructuralValidator checks text and options of every question.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(qs []assessment.Question, _ GenerateInput) *ValidationError {
	fail := func(i int, msg string) *ValidationError {
		return &ValidationError{Validator: v.Name(), Index: i, Message: msg, Retryable: true}
	}

	for i, q := range qs {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return fail(i, "text is empty")
		}
		if len(text) > maxTextLen {
			return fail(i, fmt.Sprintf("text exceeds %d characters", maxTextLen))
		}
		// Every kind Taru serves is a select kind.
		if len(q.Options) < minOptions {
			return fail(i, fmt.Sprintf("needs at least %d options", minOptions))
		}
		if len(q.Options) > maxOptions {
			return fail(i, fmt.Sprintf("has more than %d options", maxOptions))
		}

		seen := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			o = strings.TrimSpace(o)
			if o == "" {
				return fail(i, "option is empty")
			}
			if len(o) > maxOptionLen {
				return fail(i, fmt.Sprintf("option exceeds %d characters", maxOptionLen))
			}
			// Multi-select answers are comma-joined, so an option with a
			// comma could not be split back.
			if q.Kind == assessment.KindMultiSelect && strings.Contains(o, ",") {
				return fail(i, "multi-select option contains a comma")
			}
			key := strings.ToLower(o)
			if seen[key] {
				return fail(i, fmt.Sprintf("duplicate option %q", o))
			}
			seen[key] = true
		}
	}
	return nil
}
