package session

import (
	"context"
	"errors"

	"github.com/taru-edu/taru/internal/assessment"
)

var (
	// ErrBusy is returned when a navigation action is attempted while
	// another one is in flight. No request is sent.
	ErrBusy = errors.New("another action is in progress")

	// ErrEmptyAnswer rejects a submission with nothing selected.
	ErrEmptyAnswer = errors.New("Please provide an answer")

	// ErrFirstQuestion is returned by GoBack on question 1.
	ErrFirstQuestion = errors.New("already at the first question")

	// ErrUnauthorized is returned by a Store whose credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store is the question store as seen by one authenticated user. The HTTP
// client and the in-process adapter both implement it.
type Store interface {
	// Generate makes sure a question set exists. With force it replaces
	// the current set and discards its answers.
	Generate(ctx context.Context, typ assessment.Type, force bool) (*Generated, error)

	// Current returns the question at the store's cursor, or the
	// completion state.
	Current(ctx context.Context, typ assessment.Type) (*Position, error)

	// Previous returns the question before position current.
	Previous(ctx context.Context, typ assessment.Type, current int) (*Position, error)

	// Advance records answer for the question at number and moves the
	// cursor forward.
	Advance(ctx context.Context, typ assessment.Type, questionID, answer string, number int) (*Advance, error)

	StoreAnswers(ctx context.Context, typ assessment.Type, answers []assessment.Response) error
	Result(ctx context.Context, typ assessment.Type) (*assessment.Result, error)

	// Reset discards progress, responses and result. Resetting an empty
	// session succeeds.
	Reset(ctx context.Context, typ assessment.Type) error
}

// Generated reports the outcome of Store.Generate.
type Generated struct {
	Count  int
	Cached bool
}

// Position is a question with its place in the session, or the completion
// state when Completed is true.
type Position struct {
	Question *assessment.Question
	Number   int
	Total    int
	Percent  int

	// Status is empty for stores that only report the Completed flag.
	Status    assessment.Status
	Completed bool
	Result    *assessment.Result
	Responses []assessment.Response
}

// Advance reports whether recording an answer finished the session.
type Advance struct {
	Completed bool
	Status    assessment.Status
	Result    *assessment.Result
}
