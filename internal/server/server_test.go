package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/api"
	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/auth"
	"github.com/taru-edu/taru/internal/cache"
	"github.com/taru-edu/taru/internal/questiongen"
	"github.com/taru-edu/taru/internal/questionstore"
	"github.com/taru-edu/taru/internal/scoring"
	"github.com/taru-edu/taru/internal/store"
)

type switchScorer struct {
	fail bool
}

func (s *switchScorer) Score(ctx context.Context, in scoring.ScoreInput) (*assessment.Result, error) {
	if s.fail {
		return nil, &scoring.UpstreamError{StatusCode: http.StatusInternalServerError, Body: "workflow down"}
	}
	return scoring.NewHeuristicScorer().Score(ctx, in)
}

type testEnv struct {
	srv    *httptest.Server
	token  string
	scorer *switchScorer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := cache.NewLocalLocker()
	repo := st.SessionRepo()
	gen := questiongen.NewService(repo, questiongen.StaticGenerator{}, questiongen.Options{Locker: locker, Count: 3, Logger: logger})
	scorer := &switchScorer{}
	qs := questionstore.New(repo, gen, scorer, questionstore.Options{Locker: locker, Logger: logger})

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := issuer.Issue("learner-1")
	require.NoError(t, err)

	s := New(qs, gen, issuer, Config{}, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, token: token, scorer: scorer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func advancePath(q api.QuestionResponse, answer string) string {
	v := url.Values{}
	v.Set("questionId", q.Question.ID)
	v.Set("answer", answer)
	v.Set("questionNumber", fmt.Sprint(q.CurrentQuestion))
	return "/api/assessments/diagnostic/questions?" + v.Encode()
}

func TestHealthNeedsNoAuth(t *testing.T) {
	e := newTestEnv(t)
	e.token = ""

	var body map[string]string
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	e.token = ""
	var errBody api.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &errBody))
	assert.NotEmpty(t, errBody.Error)

	e.token = "bogus"
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, nil))
}

func TestUnknownType(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/assessments/astrology/questions", nil, nil))
}

func TestFullFlow(t *testing.T) {
	e := newTestEnv(t)

	var gen api.GenerateResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/assessments/diagnostic/generate-questions", nil, &gen))
	assert.True(t, gen.Success)
	assert.False(t, gen.Cached)
	require.Len(t, gen.Questions, 3)

	var again api.GenerateResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/generate-questions", nil, &again)
	assert.True(t, again.Cached)
	assert.Equal(t, gen.Questions[0].ID, again.Questions[0].ID)

	var q api.QuestionResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &q))
	require.NotNil(t, q.Question)
	assert.Equal(t, 1, q.CurrentQuestion)
	assert.Equal(t, 3, q.TotalQuestions)
	assert.Equal(t, assessment.StatusNotStarted, q.Status)
	assert.False(t, q.Completed)

	// Wrong position is a conflict.
	stale := q
	stale.CurrentQuestion = 2
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodGet, advancePath(stale, "30"), nil, nil))

	answers := []string{"30", assessment.SkipAnswer, "Quick"}
	var adv api.AdvanceResponse
	for i, a := range answers {
		require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, advancePath(q, a), nil, &adv))
		if i < len(answers)-1 {
			assert.False(t, adv.Completed)
			e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &q)
		}
	}
	assert.True(t, adv.Completed)
	assert.Equal(t, assessment.StatusCompleted, adv.Status)
	require.NotNil(t, adv.Result)
	assert.Equal(t, 3, adv.Result.TotalQuestions)

	var done api.QuestionResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &done)
	assert.True(t, done.Completed)
	assert.Len(t, done.Responses, 3)

	var stored api.StoreAnswersResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/assessments/diagnostic/store-answers", api.StoreAnswersRequest{
		Answers: []assessment.Response{{QuestionID: gen.Questions[0].ID, StudentAnswer: "30"}},
	}, &stored))
	assert.Equal(t, 1, stored.Stored)

	var res api.ResultResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/assessments/diagnostic/result", nil, &res))
	assert.False(t, res.Cached)
	assert.Equal(t, 66, res.Result.Score)

	var cached api.ResultResponse
	e.do(t, http.MethodPost, "/api/assessments/diagnostic/result", nil, &cached)
	assert.True(t, cached.Cached)

	var reset api.SuccessResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/assessments/diagnostic/reset", nil, &reset))
	assert.True(t, reset.Success)

	var fresh api.QuestionResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &fresh)
	assert.Equal(t, 1, fresh.CurrentQuestion)
	assert.NotEqual(t, gen.Questions[0].ID, fresh.Question.ID)
}

func TestPreviousNavigation(t *testing.T) {
	e := newTestEnv(t)

	var q api.QuestionResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &q)
	e.do(t, http.MethodGet, advancePath(q, "30"), nil, nil)

	var prev api.QuestionResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions?previous=true&currentQuestion=2", nil, &prev))
	assert.Equal(t, 1, prev.CurrentQuestion)
	assert.Equal(t, q.Question.ID, prev.Question.ID)

	var errBody api.ErrorResponse
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions?previous=true&currentQuestion=4", nil, &errBody))
	var still api.QuestionResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &still)
	assert.Equal(t, 1, still.CurrentQuestion, "previous never moves the cursor forward")


	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions?previous=true&currentQuestion=abc", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions?previous=true&currentQuestion=0", nil, &errBody))
	assert.Contains(t, errBody.Fields, "currentQuestion")
}

func TestValidationErrors(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, nil)

	var errBody api.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions?questionId=q1&questionNumber=1", nil, &errBody))
	assert.Contains(t, errBody.Fields, "answer")

	errBody = api.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/assessments/diagnostic/store-answers", map[string]any{
		"answers": []map[string]string{{"questionId": "q1"}},
	}, &errBody))
	assert.Contains(t, errBody.Fields, "answers[0].studentAnswer")
}

func TestResultBeforeCompletionConflicts(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, nil)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/assessments/diagnostic/result", nil, nil))
}

func TestScorerFailureIsBadGateway(t *testing.T) {
	e := newTestEnv(t)
	e.scorer.fail = true

	var q api.QuestionResponse
	e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &q)
	for range 3 {
		e.do(t, http.MethodGet, advancePath(q, "x"), nil, nil)
		e.do(t, http.MethodGet, "/api/assessments/diagnostic/questions", nil, &q)
	}
	assert.True(t, q.Completed)

	var errBody api.ErrorResponse
	assert.Equal(t, http.StatusBadGateway, e.do(t, http.MethodPost, "/api/assessments/diagnostic/result", nil, &errBody))
	assert.NotContains(t, errBody.Error, "workflow down", "upstream details are not leaked")
}

func TestRequestIDHeader(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer, err := auth.NewIssuer("x", 0)
	require.NoError(t, err)
	s := New(nil, nil, issuer, Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
