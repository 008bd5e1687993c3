// Package client talks to the question store HTTP API on behalf of one
// signed-in learner.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/taru-edu/taru/internal/api"
	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/scoring"
	"github.com/taru-edu/taru/internal/session"
)

// maxBody bounds how much of a response is read.
const maxBody = 4 << 20

// StatusError is a non-2xx reply other than 401.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	Token string

	// Timeout bounds each request. Zero means no limit.
	Timeout time.Duration

	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Client implements session.Store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

var _ session.Store = (*Client)(nil)

func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		token:   opts.Token,
	}
}

// SetToken replaces the bearer token used for later requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func sessionPath(typ assessment.Type, op string) string {
	return "/api/assessments/" + url.PathEscape(string(typ)) + "/" + op
}

// send performs the request and returns the raw body of a 2xx reply.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s %s: %w", method, path, session.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var e api.ErrorResponse
		if json.Unmarshal(data, &e) == nil {
			se.Message = e.Error
		}
		return nil, se
	}
	return data, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	data, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, typ assessment.Type, force bool) (*session.Generated, error) {
	q := url.Values{"type": {string(typ)}}
	if force {
		q.Set("forceRegenerate", "true")
	}
	var resp api.GenerateResponse
	if err := c.call(ctx, http.MethodGet, sessionPath(typ, "generate-questions"), q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("generate %s questions: server reported failure", typ)
	}
	return &session.Generated{Count: len(resp.Questions), Cached: resp.Cached}, nil
}

func (c *Client) Current(ctx context.Context, typ assessment.Type) (*session.Position, error) {
	return c.question(ctx, typ, nil)
}

func (c *Client) Previous(ctx context.Context, typ assessment.Type, current int) (*session.Position, error) {
	return c.question(ctx, typ, url.Values{
		"previous":        {"true"},
		"currentQuestion": {strconv.Itoa(current)},
	})
}

func (c *Client) question(ctx context.Context, typ assessment.Type, q url.Values) (*session.Position, error) {
	var resp api.QuestionResponse
	if err := c.call(ctx, http.MethodGet, sessionPath(typ, "questions"), q, nil, &resp); err != nil {
		return nil, err
	}
	return &session.Position{
		Question:  resp.Question,
		Number:    resp.CurrentQuestion,
		Total:     resp.TotalQuestions,
		Percent:   resp.Progress,
		Status:    resp.Status,
		Completed: resp.Completed,
		Result:    resp.Result,
		Responses: resp.Responses,
	}, nil
}

func (c *Client) Advance(ctx context.Context, typ assessment.Type, questionID, answer string, number int) (*session.Advance, error) {
	q := url.Values{
		"questionId":     {questionID},
		"answer":         {answer},
		"questionNumber": {strconv.Itoa(number)},
	}
	var resp api.AdvanceResponse
	if err := c.call(ctx, http.MethodGet, sessionPath(typ, "questions"), q, nil, &resp); err != nil {
		return nil, err
	}
	return &session.Advance{Completed: resp.Completed, Status: resp.Status, Result: resp.Result}, nil
}

func (c *Client) StoreAnswers(ctx context.Context, typ assessment.Type, answers []assessment.Response) error {
	var resp api.StoreAnswersResponse
	err := c.call(ctx, http.MethodPost, sessionPath(typ, "store-answers"), nil, api.StoreAnswersRequest{Answers: answers}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New("store answers: server reported failure")
	}
	return nil
}

// Result accepts every result shape scoring.Normalize understands, so a
// store that forwards the scoring workflow's reply verbatim still works.
func (c *Client) Result(ctx context.Context, typ assessment.Type) (*assessment.Result, error) {
	data, err := c.send(ctx, http.MethodPost, sessionPath(typ, "result"), nil, struct{}{})
	if err != nil {
		return nil, err
	}
	p, err := scoring.Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &p.Result, nil
}

func (c *Client) Reset(ctx context.Context, typ assessment.Type) error {
	return c.call(ctx, http.MethodPost, sessionPath(typ, "reset"), nil, struct{}{}, nil)
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil, nil)
}
