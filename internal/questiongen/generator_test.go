package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/llm"
)

func rawSet(n int, kind string) map[string]any {
	qs := make([]any, n)
	for i := range qs {
		qs[i] = map[string]any{
			"text":       "Question number " + string(rune('A'+i)),
			"type":       kind,
			"options":    []any{"Alpha", " Beta ", "Gamma"},
			"category":   "reasoning",
			"difficulty": "easy",
		}
	}
	return map[string]any{"questions": qs}
}

func TestLLMGeneratorParsesSet(t *testing.T) {
	mock := llm.NewMockJSON(rawSet(3, "multi_select"))
	g := NewLLMGenerator(mock, DefaultConfig())

	qs, err := g.Generate(context.Background(), GenerateInput{Type: assessment.TypeInterest, Count: 3})
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, assessment.KindMultiSelect, qs[0].Kind)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, qs[0].Options)
	assert.Empty(t, qs[0].ID, "IDs are assigned by the service")

	require.Equal(t, 1, mock.CallCount())
	req := mock.Requests()[0]
	assert.Equal(t, QuestionSetSchema, req.Schema)
	assert.Contains(t, req.System, "interest assessment")
	assert.Contains(t, req.Messages[0].Content, "Number of questions: 3")
}

func TestLLMGeneratorRetriesValidationFailure(t *testing.T) {
	mock := llm.NewMockJSON(rawSet(2, "single_select"))
	good, err := json.Marshal(rawSet(3, "single_select"))
	require.NoError(t, err)
	mock.AddResponse(llm.MockResponse{Content: good})

	g := NewLLMGenerator(mock, DefaultConfig())
	qs, err := g.Generate(context.Background(), GenerateInput{Type: assessment.TypeDiagnostic, Count: 3})
	require.NoError(t, err)
	assert.Len(t, qs, 3)
	assert.Equal(t, 2, mock.CallCount())
}

func TestLLMGeneratorGivesUpAfterMaxAttempts(t *testing.T) {
	mock := llm.NewMockJSON(rawSet(1, "single_select"))
	mock.AddResponse(llm.MockResponse{Content: []byte(`{"questions":[]}`)})

	g := NewLLMGenerator(mock, DefaultConfig())
	_, err := g.Generate(context.Background(), GenerateInput{Type: assessment.TypeDiagnostic, Count: 3})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "count", verr.Validator)
	assert.Equal(t, 2, mock.CallCount())
}

func TestLLMGeneratorDoesNotRetryProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}})
	g := NewLLMGenerator(mock, DefaultConfig())

	_, err := g.Generate(context.Background(), GenerateInput{Type: assessment.TypeDiagnostic, Count: 3})
	var rl *llm.ErrRateLimit
	assert.True(t, errors.As(err, &rl))
	assert.Equal(t, 1, mock.CallCount())
}

func TestValidators(t *testing.T) {
	q := func(text string, kind assessment.AnswerKind, opts ...string) assessment.Question {
		return assessment.Question{Text: text, Kind: kind, Options: opts}
	}

	tests := []struct {
		name      string
		qs        []assessment.Question
		count     int
		validator string
	}{
		{"valid", []assessment.Question{q("A?", assessment.KindSingleSelect, "x", "y")}, 1, ""},
		{"empty set", nil, 0, "count"},
		{"wrong count", []assessment.Question{q("A?", assessment.KindSingleSelect, "x", "y")}, 2, "count"},
		{"empty text", []assessment.Question{q("  ", assessment.KindSingleSelect, "x", "y")}, 0, "structural"},
		{"long text", []assessment.Question{q(strings.Repeat("a", 501), assessment.KindSingleSelect, "x", "y")}, 0, "structural"},
		{"one option", []assessment.Question{q("A?", assessment.KindSingleSelect, "x")}, 0, "structural"},
		{"duplicate option", []assessment.Question{q("A?", assessment.KindSingleSelect, "Yes", "yes")}, 0, "structural"},
		{"comma in multi option", []assessment.Question{q("A?", assessment.KindMultiSelect, "a, b", "c")}, 0, "structural"},
		{"comma in single option ok", []assessment.Question{q("A?", assessment.KindSingleSelect, "a, b", "c")}, 0, ""},
		{"repeated question", []assessment.Question{
			q("Which is best?", assessment.KindSingleSelect, "x", "y"),
			q("which  is BEST?", assessment.KindSingleSelect, "x", "y"),
		}, 0, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := RunValidators(DefaultConfig().Validators, tt.qs, GenerateInput{Count: tt.count})
			if tt.validator == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.validator, verr.Validator)
			assert.True(t, verr.Retryable)
		})
	}
}

func TestStaticBanksPassValidation(t *testing.T) {
	for _, typ := range assessment.Types {
		qs, err := StaticGenerator{}.Generate(context.Background(), GenerateInput{Type: typ})
		require.NoError(t, err, typ)
		assert.Nil(t, RunValidators(DefaultConfig().Validators, qs, GenerateInput{Type: typ}), typ)
	}

	qs, err := StaticGenerator{}.Generate(context.Background(), GenerateInput{Type: assessment.TypeDiagnostic, Count: 2})
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = StaticGenerator{}.Generate(context.Background(), GenerateInput{Type: "poetry"})
	assert.ErrorIs(t, err, assessment.ErrUnknownType)
}

func TestBuildUserMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPriorQuestions = 2

	msg := buildUserMessage(GenerateInput{
		Type:           assessment.TypeDiagnostic,
		Count:          10,
		PriorQuestions: []string{"old 1", "old 2", "old 3"},
	}, cfg)

	assert.Contains(t, msg, "Assessment: Diagnostic Assessment")
	assert.NotContains(t, msg, "old 1")
	assert.Contains(t, msg, "1. old 2\n2. old 3")

	empty := buildUserMessage(GenerateInput{Type: assessment.TypeInterest, Count: 5}, cfg)
	assert.Contains(t, empty, "Previously asked:\nNone")
}
