// Package api holds the JSON bodies exchanged between the question store
// server and its clients.
package api

import "github.com/taru-edu/taru/internal/assessment"

// QuestionResponse is returned by the questions endpoint. While the session
// is running Question is set; once finished Completed is true and Result
// and Responses describe the outcome.
type QuestionResponse struct {
	Question        *assessment.Question `json:"question,omitempty"`
	CurrentQuestion int                  `json:"currentQuestion,omitempty"`
	TotalQuestions  int                  `json:"totalQuestions,omitempty"`
	Progress        int                  `json:"progress"`
	Status          assessment.Status    `json:"status,omitempty"`

	Completed bool                  `json:"completed"`
	Result    *assessment.Result    `json:"result,omitempty"`
	Responses []assessment.Response `json:"responses,omitempty"`
}

// AdvanceResponse is returned after recording an answer.
type AdvanceResponse struct {
	Completed bool               `json:"completed"`
	Status    assessment.Status  `json:"status,omitempty"`
	Result    *assessment.Result `json:"result,omitempty"`
}

// GenerateResponse is returned by the generate-questions endpoint.
type GenerateResponse struct {
	Success   bool                  `json:"success"`
	Questions []assessment.Question `json:"questions"`
	Cached    bool                  `json:"cached"`
}

// StoreAnswersRequest is the bulk answer payload.
type StoreAnswersRequest struct {
	Answers []assessment.Response `json:"answers" validate:"required,dive"`
}

type StoreAnswersResponse struct {
	Success bool `json:"success"`
	Stored  int  `json:"stored"`
}

// ResultResponse carries a scored result.
type ResultResponse struct {
	Cached bool              `json:"cached,omitempty"`
	Result assessment.Result `json:"result"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
