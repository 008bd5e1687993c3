package questiongen

import (
	"fmt"
	"strings"

	"github.com/taru-edu/taru/internal/assessment"
)

const baseRules = `Rules:
- Write in clear, friendly language suitable for school students aged 12-18.
- Every question is multiple choice. Use "single_select" when exactly one option applies and "multi_select" when the learner may pick several.
- Give between 3 and 6 options per question. Options must be distinct and must not contain commas.
- Never repeat a question, and do not reuse any question from the "previously asked" list.
- Give every question a short category label.`

var systemPrompts = map[assessment.Type]string{
	assessment.TypeDiagnostic: `You are an education counsellor building a diagnostic assessment for Taru, a career and learning guidance product.
The assessment measures the learner's current strengths across reasoning, numeracy, language and problem solving so that later recommendations fit their level.
Questions with a correct answer should be single_select. Mix easy, medium and hard questions.

` + baseRules,

	assessment.TypeInterest: `You are an education counsellor building an interest assessment for Taru, a career and learning guidance product.
The assessment discovers which subjects, activities and career areas the learner enjoys. There are no right answers.
Prefer multi_select where a learner could reasonably like several options.

` + baseRules,

	assessment.TypeLearningStyle: `You are an education counsellor building a learning style assessment for Taru, a career and learning guidance product.
The assessment identifies how the learner prefers to take in and practise new material (visual, auditory, reading/writing, hands-on). There are no right answers.

` + baseRules,
}

func systemPrompt(t assessment.Type) string {
	if p, ok := systemPrompts[t]; ok {
		return p
	}
	return systemPrompts[assessment.TypeDiagnostic]
}

// buildUserMessage constructs the user message from GenerateInput and Config limits.
func buildUserMessage(input GenerateInput, cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Assessment: %s\n", input.Type.Title())
	fmt.Fprintf(&b, "Number of questions: %d\n", input.Count)

	b.WriteString("\nPreviously asked:\n")
	b.WriteString(buildDedup(input.PriorQuestions, cfg.MaxPriorQuestions))

	return b.String()
}
