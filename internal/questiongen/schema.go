package questiongen

import "github.com/taru-edu/taru/internal/llm"

// QuestionSetSchema defines the JSON schema for LLM question set responses.
var QuestionSetSchema = &llm.Schema{
	Name:        "assessment-questions",
	Description: "An ordered set of multiple-choice assessment questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{
							"type":        "string",
							"description": "The question shown to the learner",
						},
						"type": map[string]any{
							"type":        "string",
							"enum":        []any{"single_select", "multi_select"},
							"description": "single_select when exactly one option applies, multi_select when several may",
						},
						"options": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Between 2 and 8 distinct answer options. No commas inside multi_select options.",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Short topic label used when summarising results",
						},
						"difficulty": map[string]any{
							"type": "string",
							"enum": []any{"easy", "medium", "hard"},
						},
					},
					"required":             []any{"text", "type", "options", "category", "difficulty"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}
