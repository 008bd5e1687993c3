// Package scoring turns a completed set of responses into an assessment
// result, either through an LLM, an external workflow or a local heuristic.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/llm"
)

// Scorer produces a result for a completed session.
type Scorer interface {
	Score(ctx context.Context, input ScoreInput) (*assessment.Result, error)
}

// ScoreInput is everything a scorer sees about one session.
type ScoreInput struct {
	UserID         string
	Type           assessment.Type
	TotalQuestions int
	Responses      []assessment.Response
}

// UpstreamError is a non-2xx reply from the scoring workflow.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("scoring workflow returned %d: %s", e.StatusCode, e.Body)
}

// IsUpstream reports whether err came from a remote scorer rather than
// from bad input.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) || errors.Is(err, ErrUnrecognizedShape) || llm.IsUpstream(err)
}
