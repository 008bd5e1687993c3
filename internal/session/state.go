package session

import "github.com/taru-edu/taru/internal/assessment"

// Phase is the single display mode of a controller. Exactly one phase is
// active at a time, so a submit and a skip can never both be in flight.
type Phase int

const (
	PhaseInitializing  Phase = iota // Checking for a session, generating if needed
	PhaseAwaitingEntry              // Gate shown before an untouched session
	PhaseInProgress                 // A question is loaded and awaiting input
	PhaseSubmitting                 // Recording an answer
	PhaseSkipping                   // Recording a skip
	PhaseGoingBack                  // Loading the previous question
	PhaseCompleted                  // Terminal; the result may still be loading
	PhaseErrored                    // An operation failed; Retry re-initializes
	PhaseLoginRequired              // The store rejected our credentials
)

var phaseNames = [...]string{
	PhaseInitializing:  "initializing",
	PhaseAwaitingEntry: "awaiting-entry",
	PhaseInProgress:    "in-progress",
	PhaseSubmitting:    "submitting",
	PhaseSkipping:      "skipping",
	PhaseGoingBack:     "going-back",
	PhaseCompleted:     "completed",
	PhaseErrored:       "errored",
	PhaseLoginRequired: "login-required",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Busy reports whether a navigation request is in flight.
func (p Phase) Busy() bool {
	return p == PhaseSubmitting || p == PhaseSkipping || p == PhaseGoingBack
}

// Snapshot is an immutable copy of the controller state for rendering.
type Snapshot struct {
	Phase Phase
	Type  assessment.Type

	// Question is set in InProgress and the busy phases.
	Question *assessment.Question
	Number   int
	Total    int
	Percent  int

	// Selection pre-fills the answer input for Question.
	Selection []string

	// Result is set once Completed. ResultLoading is true while the
	// scored result is still being fetched; Result is the placeholder
	// until then.
	Result        *assessment.Result
	ResultLoading bool

	// Error is the generic message shown in Errored.
	Error string

	// Validation is the inline message for a rejected submission.
	Validation string
}

// CanGoBack reports whether back navigation is available.
func (s Snapshot) CanGoBack() bool {
	return s.Phase == PhaseInProgress && s.Number > 1
}
