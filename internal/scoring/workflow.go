package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
)

// maxWorkflowBody caps how much of a workflow reply is read.
const maxWorkflowBody = 1 << 20

// WorkflowScorer delegates scoring to an external AI workflow endpoint.
type WorkflowScorer struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWorkflowScorer posts to url. A zero timeout means no client timeout.
func NewWorkflowScorer(url string, timeout time.Duration) *WorkflowScorer {
	return &WorkflowScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

type workflowRequest struct {
	Type      assessment.Type       `json:"type"`
	UserID    string                `json:"userId"`
	Responses []assessment.Response `json:"responses"`
}

func (s *WorkflowScorer) Score(ctx context.Context, input ScoreInput) (*assessment.Result, error) {
	body, err := json.Marshal(workflowRequest{Type: input.Type, UserID: input.UserID, Responses: input.Responses})
	if err != nil {
		return nil, fmt.Errorf("encode workflow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkflowBody))
	if err != nil {
		return nil, fmt.Errorf("read workflow response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	payload, err := Normalize(data)
	if err != nil {
		return nil, err
	}

	res := payload.Result
	if res.TotalQuestions == 0 {
		res.TotalQuestions = input.TotalQuestions
	}
	if res.ScoredAt.IsZero() {
		res.ScoredAt = s.now().UTC()
	}
	return &res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
