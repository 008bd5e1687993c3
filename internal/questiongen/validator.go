package questiongen

import (
	"fmt"

	"github.com/taru-edu/taru/internal/assessment"
)

// Validator checks a generated set. Implementations are stateless.
type Validator interface {
	// Name is a short identifier used in errors, e.g. "structural".
	Name() string

	Validate(qs []assessment.Question, input GenerateInput) *ValidationError
}

// ValidationError describes why a generated set was rejected.
type ValidationError struct {
	Validator string
	// Index is the 0-based offending question, or -1 for the whole set.
	Index     int
	Message   string
	Retryable bool
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("validator %q: question %d: %s", e.Validator, e.Index+1, e.Message)
	}
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// RunValidators applies vs in order and returns the first failure.
func RunValidators(vs []Validator, qs []assessment.Question, input GenerateInput) *ValidationError {
	for _, v := range vs {
		if verr := v.Validate(qs, input); verr != nil {
			return verr
		}
	}
	return nil
}
