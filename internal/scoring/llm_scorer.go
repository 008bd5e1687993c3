package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/llm"
)

// LLMScorerConfig holds configuration for the LLM scorer.
type LLMScorerConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultLLMScorerConfig returns sensible defaults.
func DefaultLLMScorerConfig() LLMScorerConfig {
	return LLMScorerConfig{
		MaxTokens:   1024,
		Temperature: 0.3,
	}
}

// LLMScorer scores a session with one structured-output request.
type LLMScorer struct {
	provider llm.Provider
	cfg      LLMScorerConfig
	now      func() time.Time
}

func NewLLMScorer(provider llm.Provider, cfg LLMScorerConfig) *LLMScorer {
	return &LLMScorer{provider: provider, cfg: cfg, now: time.Now}
}

// ResultSchema defines the JSON schema for LLM scoring responses.
var ResultSchema = &llm.Schema{
	Name:        "assessment-result",
	Description: "Score and written feedback for a completed assessment",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     100,
				"description": "Overall score from 0 to 100",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "Two to four encouraging sentences addressed to the learner",
			},
			"classification": map[string]any{
				"type":        "string",
				"description": "Short profile label, e.g. a learning style or interest cluster. Empty if not applicable.",
			},
			"recommendations": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Up to five concrete next steps",
			},
		},
		"required":             []any{"score", "summary", "classification", "recommendations"},
		"additionalProperties": false,
	},
}

type resultOutput struct {
	Score           int      `json:"score"`
	Summary         string   `json:"summary"`
	Classification  string   `json:"classification"`
	Recommendations []string `json:"recommendations"`
}

func (s *LLMScorer) Score(ctx context.Context, input ScoreInput) (*assessment.Result, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeScoring)

	msg, err := buildScoringMessage(input)
	if err != nil {
		return nil, fmt.Errorf("build scoring prompt: %w", err)
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      scoringSystemPrompt,
		Messages:    llm.UserMessage(msg),
		Schema:      ResultSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM scoring failed: %w", err)
	}

	var raw resultOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse scoring response: %w", err)
	}

	return &assessment.Result{
		Score:           assessment.ClampScore(raw.Score),
		TotalQuestions:  input.TotalQuestions,
		Summary:         raw.Summary,
		Classification:  raw.Classification,
		Recommendations: raw.Recommendations,
		ScoredAt:        s.now().UTC(),
	}, nil
}

const scoringSystemPrompt = `You are an education counsellor for Taru reviewing a learner's completed assessment.

Instructions:
- For a diagnostic assessment, score how well the learner did overall (0-100).
- For interest and learning style assessments there are no right answers: score how clear and consistent the learner's profile is, and name the profile in "classification".
- Answers marked SKIPPED were not answered. Do not guess them; a high skip rate lowers confidence.
- Write the summary directly to the learner in a warm, encouraging tone.
- Recommendations must be concrete and achievable.`

var scoringUserTemplate = template.Must(template.New("scoring").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Assessment: {{.Title}}
Questions: {{.Total}}
Answered: {{.Answered}}, skipped: {{.Skipped}}

Responses:
{{range $i, $r := .Responses}}{{inc $i}}. [{{$r.Category}}] {{$r.QuestionText}}
   Answer: {{if $r.Skipped}}SKIPPED{{else}}{{$r.StudentAnswer}}{{end}}
{{end}}`))

func buildScoringMessage(input ScoreInput) (string, error) {
	data := struct {
		Title     string
		Total     int
		Answered  int
		Skipped   int
		Responses []assessment.Response
	}{
		Title:     input.Type.Title(),
		Total:     input.TotalQuestions,
		Responses: input.Responses,
	}
	for _, r := range input.Responses {
		if r.Skipped() {
			data.Skipped++
		} else {
			data.Answered++
		}
	}

	var buf bytes.Buffer
	if err := scoringUserTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
