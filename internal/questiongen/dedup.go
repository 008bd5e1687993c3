package questiongen

import (
	"fmt"
	"strings"

	"github.com/taru-edu/taru/internal/assessment"
)

// DuplicateValidator rejects sets that repeat a question.
type DuplicateValidator struct{}

func (v *DuplicateValidator) Name() string { return "duplicate" }

func (v *DuplicateValidator) Validate(qs []assessment.Question, _ GenerateInput) *ValidationError {
	seen := make(map[string]int, len(qs))
	for i, q := range qs {
		key := normalizeText(q.Text)
		if j, ok := seen[key]; ok {
			return &ValidationError{
				Validator: v.Name(),
				Index:     i,
				Message:   fmt.Sprintf("repeats question %d", j+1),
				Retryable: true,
			}
		}
		seen[key] = i
	}
	return nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// buildDedup formats prior questions for the prompt, keeping the most
// recent max entries. Returns "None" if there are none.
func buildDedup(prior []string, max int) string {
	if len(prior) == 0 {
		return "None"
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}

	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
