package assessment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SkipAnswer is the answer recorded for a question the learner chose not to
// answer. It is kept for scoring but is never treated as a prior answer.
const SkipAnswer = "Skipped"

// ErrUnknownType is returned for an assessment type Taru does not serve.
var ErrUnknownType = errors.New("unknown assessment type")

// Type identifies an assessment flavour.
type Type string

const (
	TypeDiagnostic    Type = "diagnostic"
	TypeInterest      Type = "interest"
	TypeLearningStyle Type = "learning-style"
)

// Types lists every assessment type in display order.
var Types = []Type{TypeDiagnostic, TypeInterest, TypeLearningStyle}

// ParseType validates a raw assessment type string.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Precursor returns the assessment a learner normally completes before t,
// or "" if t has none.
func (t Type) Precursor() Type {
	if t == TypeDiagnostic {
		return TypeInterest
	}
	return ""
}

// Title returns a human-readable name.
func (t Type) Title() string {
	switch t {
	case TypeDiagnostic:
		return "Diagnostic Assessment"
	case TypeInterest:
		return "Interest Assessment"
	case TypeLearningStyle:
		return "Learning Style Assessment"
	}
	return string(t)
}

// Question is one generated assessment item. Immutable once generated.
type Question struct {
	ID         string     `json:"id" bson:"id"`
	Text       string     `json:"text" bson:"text"`
	Kind       AnswerKind `json:"type" bson:"kind"`
	Options    []string   `json:"options" bson:"options"`
	Category   string     `json:"category" bson:"category"`
	Difficulty string     `json:"difficulty" bson:"difficulty"`
}

// Status is the lifecycle state of a session's progress.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Progress is the store-owned position of one user within one assessment.
type Progress struct {
	UserID    string     `bson:"userId"`
	Type      Type       `bson:"type"`
	Questions []Question `bson:"questions"`
	Cursor    int        `bson:"cursor"` // 1-based
	Status    Status     `bson:"status"`
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

// Total returns the number of questions in the session.
func (p *Progress) Total() int {
	return len(p.Questions)
}

// QuestionAt returns the question at the 1-based position n.
func (p *Progress) QuestionAt(n int) (Question, bool) {
	if n < 1 || n > len(p.Questions) {
		return Question{}, false
	}
	return p.Questions[n-1], true
}

// Percent returns completion progress in the range 0-100.
func (p *Progress) Percent() int {
	if p.Status == StatusCompleted {
		return 100
	}
	if len(p.Questions) == 0 {
		return 0
	}
	return (p.Cursor - 1) * 100 / len(p.Questions)
}

// Response is one recorded answer, denormalized for scoring.
type Response struct {
	QuestionID    string     `json:"questionId" bson:"questionId" validate:"required"`
	StudentAnswer string     `json:"studentAnswer" bson:"studentAnswer" validate:"required"`
	Kind          AnswerKind `json:"questionType" bson:"kind"`
	QuestionText  string     `json:"questionText" bson:"questionText"`
	Category      string     `json:"category" bson:"category"`
	AnsweredAt    time.Time  `json:"answeredAt,omitzero" bson:"answeredAt"`
}

// Skipped reports whether the response records a skip.
func (r Response) Skipped() bool {
	return r.StudentAnswer == SkipAnswer
}

// Result is the scored outcome of a completed session.
type Result struct {
	Score           int       `json:"score" bson:"score"`
	TotalQuestions  int       `json:"totalQuestions" bson:"totalQuestions"`
	Summary         string    `json:"summary" bson:"summary"`
	Classification  string    `json:"classification,omitempty" bson:"classification,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty" bson:"recommendations,omitempty"`
	ScoredAt        time.Time `json:"scoredAt,omitzero" bson:"scoredAt"`
}

// ClampScore bounds a raw score to 0-100.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// Overlay returns r with every non-zero field of scored applied on top.
func (r Result) Overlay(scored Result) Result {
	out := r
	if scored.Score != 0 {
		out.Score = ClampScore(scored.Score)
	}
	if scored.TotalQuestions > 0 {
		out.TotalQuestions = scored.TotalQuestions
	}
	if scored.Summary != "" {
		out.Summary = scored.Summary
	}
	if scored.Classification != "" {
		out.Classification = scored.Classification
	}
	if len(scored.Recommendations) > 0 {
		out.Recommendations = scored.Recommendations
	}
	if !scored.ScoredAt.IsZero() {
		out.ScoredAt = scored.ScoredAt
	}
	return out
}

// PlaceholderResult is returned by the store when a session completes before
// it has been scored.
func PlaceholderResult(total int) Result {
	return Result{
		TotalQuestions: total,
		Summary:        "Assessment completed. Your detailed results are being prepared.",
	}
}
