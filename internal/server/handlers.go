package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/taru-edu/taru/internal/api"
	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/auth"
	"github.com/taru-edu/taru/internal/questionstore"
)

type previousQuery struct {
	CurrentQuestion int `json:"currentQuestion" validate:"min=1"`
}

type advanceQuery struct {
	QuestionID     string `json:"questionId" validate:"required"`
	Answer         string `json:"answer" validate:"required"`
	QuestionNumber int    `json:"questionNumber" validate:"min=1"`
}

// session resolves the authenticated user and the {type} path variable.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, assessment.Type, bool) {
	typ, err := assessment.ParseType(mux.Vars(r)["type"])
	if err != nil {
		s.fail(w, r, err)
		return "", "", false
	}
	return auth.UserFrom(r.Context()), typ, true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return n, nil
}

// handleQuestions serves the current question, navigates back with
// previous=true, or records an answer when questionId is present.
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	user, typ, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	switch {
	case q.Get("previous") == "true":
		s.previous(w, r, user, typ)
	case q.Has("questionId"):
		s.advance(w, r, user, typ)
	default:
		cur, err := s.store.Current(r.Context(), user, typ)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, currentResponse(cur))
	}
}

func (s *Server) previous(w http.ResponseWriter, r *http.Request, user string, typ assessment.Type) {
	n, err := queryInt(r, "currentQuestion")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req := previousQuery{CurrentQuestion: n}
	if err := s.valid.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.store.Previous(r.Context(), user, typ, req.CurrentQuestion)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse(v))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request, user string, typ assessment.Type) {
	n, err := queryInt(r, "questionNumber")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	req := advanceQuery{QuestionID: q.Get("questionId"), Answer: q.Get("answer"), QuestionNumber: n}
	if err := s.valid.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.store.Advance(r.Context(), user, typ, req.QuestionID, req.Answer, req.QuestionNumber)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AdvanceResponse{Completed: out.Completed, Status: out.Status, Result: out.Result})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, typ, ok := s.session(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("forceRegenerate") == "true"

	res, err := s.gen.Ensure(r.Context(), user, typ, force)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.GenerateResponse{Success: true, Questions: res.Questions, Cached: res.Cached})
}

func (s *Server) handleStoreAnswers(w http.ResponseWriter, r *http.Request) {
	user, typ, ok := s.session(w, r)
	if !ok {
		return
	}

	var req api.StoreAnswersRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.valid.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.store.StoreAnswers(r.Context(), user, typ, req.Answers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StoreAnswersResponse{Success: true, Stored: n})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	user, typ, ok := s.session(w, r)
	if !ok {
		return
	}

	out, err := s.store.Result(r.Context(), user, typ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ResultResponse{Cached: out.Cached, Result: out.Result})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	user, typ, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.store.Reset(r.Context(), user, typ); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func questionResponse(v *questionstore.QuestionView) api.QuestionResponse {
	q := v.Question
	return api.QuestionResponse{
		Question:        &q,
		CurrentQuestion: v.Number,
		TotalQuestions:  v.Total,
		Progress:        v.Percent,
		Status:          v.Status,
	}
}

func currentResponse(cur *questionstore.Current) api.QuestionResponse {
	if !cur.Completed && cur.Question != nil {
		return questionResponse(cur.Question)
	}
	return api.QuestionResponse{
		Completed: true,
		Progress:  100,
		Status:    assessment.StatusCompleted,
		Result:    cur.Result,
		Responses: cur.Responses,
	}
}
