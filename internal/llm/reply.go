package llm

import (
	"encoding/json"
	"net/http"
	"time"
)

// reply is the vendor-neutral part of a model answer, collected by each
// provider before the shared checks run.
type reply struct {
	text      string
	truncated bool
	model     string
	usage     Usage
}

// finish turns a reply into a Response. Fenced JSON is unwrapped, a
// truncated answer is an ErrMaxTokensExceeded and schema violations are an
// ErrInvalidResponse.
func (r reply) finish(schema *Schema) (*Response, error) {
	content := json.RawMessage(stripFences(r.text))
	if r.truncated {
		return nil, &ErrMaxTokensExceeded{Content: content}
	}
	if err := validateResponse(schema, content); err != nil {
		return nil, err
	}
	if r.usage.TotalTokens == 0 {
		r.usage.TotalTokens = r.usage.InputTokens + r.usage.OutputTokens
	}
	return &Response{Content: content, Usage: r.usage, Model: r.model, StopReason: "end"}, nil
}

// classify wraps a failed vendor call. Only a 429 is worth waiting out;
// everything else counts as the provider being unavailable.
func classify(err error, status int, retryAfter time.Duration) error {
	if status == http.StatusTooManyRequests {
		return &ErrRateLimit{RetryAfter: retryAfter, Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}
