// Package questiongen produces the question set for an assessment session
// and makes sure each session is generated at most once.
package questiongen

import (
	"context"

	"github.com/taru-edu/taru/internal/assessment"
)

// Generator produces a fresh question set.
type Generator interface {
	// Generate returns a validated set. IDs are assigned by the caller.
	Generate(ctx context.Context, input GenerateInput) ([]assessment.Question, error)
}

// GenerateInput holds the context for one generation request.
type GenerateInput struct {
	Type assessment.Type

	// Count is the number of questions wanted.
	Count int

	// PriorQuestions holds texts from an earlier set of this user, so a
	// forced regeneration asks for new material.
	PriorQuestions []string
}
