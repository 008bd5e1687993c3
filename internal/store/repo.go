package store

import (
	"context"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
)

// SessionRepo persists per-user assessment state. The sqlite Store and the
// mongo docstore both implement it.
type SessionRepo interface {
	// Progress returns the session progress, or nil if none exists.
	Progress(ctx context.Context, userID string, typ assessment.Type) (*assessment.Progress, error)

	// SaveProgress inserts or replaces the progress row for p.UserID/p.Type.
	SaveProgress(ctx context.Context, p *assessment.Progress) error

	// RecordAnswer upserts r and saves p as one unit of work.
	RecordAnswer(ctx context.Context, p *assessment.Progress, r assessment.Response) error

	// UpsertResponses stores responses keyed by question ID. A later answer
	// for the same question replaces the earlier one in place.
	UpsertResponses(ctx context.Context, userID string, typ assessment.Type, rs []assessment.Response) error

	// Responses returns stored responses in first-answered order.
	Responses(ctx context.Context, userID string, typ assessment.Type) ([]assessment.Response, error)

	// Result returns the cached result, or nil if none exists.
	Result(ctx context.Context, userID string, typ assessment.Type) (*assessment.Result, error)

	SaveResult(ctx context.Context, userID string, typ assessment.Type, r assessment.Result) error

	// DeleteSession removes progress, responses and result. Deleting a
	// session that does not exist is not an error.
	DeleteSession(ctx context.Context, userID string, typ assessment.Type) error
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	After   int64  // sequence > After
	Purpose string // exact match when set
}

// LLMRequestEventData captures a single LLM request.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// UsageByPurpose aggregates token usage per purpose label.
type UsageByPurpose struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// UsageByModel aggregates token usage per model for cost estimates.
type UsageByModel struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns the event with id, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]UsageByPurpose, error)
	LLMUsageByModel(ctx context.Context) ([]UsageByModel, error)
}
