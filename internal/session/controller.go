// Package session drives one learner through an assessment: it loads the
// question at the store's cursor, records answers and skips, navigates back,
// and settles on a result once the store reports completion.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
)

// ErrWrongPhase is returned by an operation the current phase does not offer.
var ErrWrongPhase = errors.New("not available in the current phase")

const (
	genericError  = "Something went wrong. Please try again."
	loginRequired = "Your session has expired. Please log in again."
)

// Options configures a Controller.
type Options struct {
	Type assessment.Type

	// FromPrecursor is set when the learner arrives straight from the
	// precursor assessment. It enables the AwaitingEntry gate.
	FromPrecursor bool

	Logger *slog.Logger

	// Now stamps recorded answers. Defaults to time.Now.
	Now func() time.Time
}

// Controller is the assessment state machine for one learner and one
// assessment type. All methods are safe for concurrent use; navigation
// calls made while another is in flight return ErrBusy without I/O.
type Controller struct {
	store         Store
	typ           assessment.Type
	fromPrecursor bool
	log           *slog.Logger
	now           func() time.Time

	mu            sync.Mutex
	phase         Phase
	pos           *Position
	selection     []string
	result        *assessment.Result
	resultLoading bool
	errMsg        string
	validation    string
	answers       answerCache
	persisted     bool
	onChange      func(Snapshot)

	// epoch changes on every load and reset. Replies to requests issued
	// in an older epoch are dropped.
	epoch int
}

// New creates a controller in PhaseInitializing. Call LoadCurrent to begin.
func New(store Store, opts Options) *Controller {
	if opts.Type == "" {
		opts.Type = assessment.TypeDiagnostic
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:         store,
		typ:           opts.Type,
		fromPrecursor: opts.FromPrecursor,
		log:           opts.Logger.With("type", string(opts.Type)),
		now:           opts.Now,
		phase:         PhaseInitializing,
	}
}

// Type returns the assessment type this controller drives.
func (c *Controller) Type() assessment.Type {
	return c.typ
}

// OnChange registers fn to be called with a fresh snapshot after every
// state change. fn runs on the goroutine that made the change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:         c.phase,
		Type:          c.typ,
		Selection:     slices.Clone(c.selection),
		ResultLoading: c.resultLoading,
		Error:         c.errMsg,
		Validation:    c.validation,
	}
	if c.pos != nil && c.pos.Question != nil {
		q := *c.pos.Question
		q.Options = slices.Clone(q.Options)
		s.Question = &q
		s.Number = c.pos.Number
		s.Total = c.pos.Total
		s.Percent = c.pos.Percent
	}
	if c.result != nil {
		r := *c.result
		r.Recommendations = slices.Clone(r.Recommendations)
		s.Result = &r
	}
	return s
}

// unlockAndNotify releases the mutex and then runs the change hook.
func (c *Controller) unlockAndNotify() {
	snap := c.snapshotLocked()
	hook := c.onChange
	c.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}

// apply runs fn under the lock if epoch is still current, then notifies.
func (c *Controller) apply(epoch int, fn func()) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	fn()
	c.unlockAndNotify()
	return true
}

// LoadCurrent enters Initializing, makes sure a question set exists and
// shows the question at the store's cursor or the completed result.
func (c *Controller) LoadCurrent(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	epoch := c.enterInitializingLocked()
	c.unlockAndNotify()

	return c.load(ctx, epoch, true)
}

// Retry re-initializes after an error or after the learner logged in again.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseErrored && c.phase != PhaseLoginRequired {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	epoch := c.enterInitializingLocked()
	c.unlockAndNotify()

	return c.load(ctx, epoch, true)
}

func (c *Controller) enterInitializingLocked() int {
	c.epoch++
	c.phase = PhaseInitializing
	c.pos = nil
	c.selection = nil
	c.errMsg = ""
	c.validation = ""
	return c.epoch
}

func (c *Controller) load(ctx context.Context, epoch int, initial bool) error {
	// Generation is idempotent; it only creates a set when none exists.
	if _, err := c.store.Generate(ctx, c.typ, false); err != nil {
		return c.fail(epoch, err, true)
	}
	pos, err := c.store.Current(ctx, c.typ)
	if err != nil {
		return c.fail(epoch, err, true)
	}
	return c.show(ctx, epoch, pos, initial)
}

// show moves to the phase pos describes.
func (c *Controller) show(ctx context.Context, epoch int, pos *Position, initial bool) error {
	if pos.Completed || pos.Status == assessment.StatusCompleted {
		if initial && c.fromPrecursor && untouched(pos) {
			c.apply(epoch, func() {
				c.phase = PhaseAwaitingEntry
				c.pos = nil
				c.selection = nil
			})
			return nil
		}
		total := pos.Total
		if total == 0 {
			total = len(pos.Responses)
		}
		return c.complete(ctx, epoch, pos.Result, total)
	}

	if pos.Question == nil {
		return c.fail(epoch, errors.New("store returned neither a question nor completion"), initial)
	}

	q := *pos.Question
	q.Kind = assessment.NormalizeKind(string(q.Kind))
	p := *pos
	p.Question = &q

	c.apply(epoch, func() {
		c.phase = PhaseInProgress
		c.pos = &p
		c.selection = c.answers.prefill(q)
		c.validation = ""
	})
	return nil
}

// untouched reports whether a completed position carries no evidence the
// learner ever answered anything. Stores with an explicit status never
// report a finished session as untouched.
func untouched(pos *Position) bool {
	switch pos.Status {
	case assessment.StatusCompleted, assessment.StatusInProgress:
		return false
	case assessment.StatusNotStarted:
		return true
	}
	return (pos.Result == nil || pos.Result.TotalQuestions == 0) && len(pos.Responses) == 0
}

// Start leaves the AwaitingEntry gate by discarding the untouched session
// and loading a fresh one.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseAwaitingEntry {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	epoch := c.enterInitializingLocked()
	c.unlockAndNotify()

	if err := c.store.Reset(ctx, c.typ); err != nil {
		return c.fail(epoch, err, true)
	}
	return c.load(ctx, epoch, false)
}

// Submit records selection as the answer to the current question.
func (c *Controller) Submit(ctx context.Context, selection []string) error {
	return c.record(ctx, PhaseSubmitting, selection)
}

// Skip records the skip sentinel for the current question.
func (c *Controller) Skip(ctx context.Context) error {
	return c.record(ctx, PhaseSkipping, nil)
}

func (c *Controller) navigableLocked() error {
	if c.phase.Busy() {
		return ErrBusy
	}
	if c.phase != PhaseInProgress || c.pos == nil || c.pos.Question == nil {
		return ErrWrongPhase
	}
	return nil
}

func (c *Controller) record(ctx context.Context, next Phase, selection []string) error {
	c.mu.Lock()
	if err := c.navigableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	answer := assessment.SkipAnswer
	if next == PhaseSubmitting {
		answer = assessment.JoinAnswer(selection)
		if answer == "" {
			c.validation = ErrEmptyAnswer.Error()
			c.unlockAndNotify()
			return ErrEmptyAnswer
		}
		c.selection = slices.Clone(selection)
	} else {
		c.selection = []string{}
	}

	q := *c.pos.Question
	number, total := c.pos.Number, c.pos.Total
	epoch := c.epoch
	c.phase = next
	c.validation = ""
	c.answers.add(assessment.Response{
		QuestionID:    q.ID,
		StudentAnswer: answer,
		Kind:          q.Kind,
		QuestionText:  q.Text,
		Category:      q.Category,
		AnsweredAt:    c.now().UTC(),
	})
	c.unlockAndNotify()

	adv, err := c.store.Advance(ctx, c.typ, q.ID, answer, number)
	if err != nil {
		return c.fail(epoch, err, false)
	}
	if adv.Completed || adv.Status == assessment.StatusCompleted {
		return c.complete(ctx, epoch, adv.Result, total)
	}

	pos, err := c.store.Current(ctx, c.typ)
	if err != nil {
		return c.fail(epoch, err, false)
	}
	return c.show(ctx, epoch, pos, false)
}

// GoBack loads the question before the current one. It records nothing.
func (c *Controller) GoBack(ctx context.Context) error {
	c.mu.Lock()
	if err := c.navigableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.pos.Number <= 1 {
		c.mu.Unlock()
		return ErrFirstQuestion
	}
	number := c.pos.Number
	epoch := c.epoch
	c.phase = PhaseGoingBack
	c.validation = ""
	c.unlockAndNotify()

	pos, err := c.store.Previous(ctx, c.typ, number)
	if err != nil {
		return c.fail(epoch, err, false)
	}
	return c.show(ctx, epoch, pos, false)
}

// Reset discards the session in the store and all local state, then loads
// a freshly generated session.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.answers.clear()
	c.persisted = false
	c.result = nil
	c.resultLoading = false
	epoch := c.enterInitializingLocked()
	c.unlockAndNotify()

	if err := c.store.Reset(ctx, c.typ); err != nil {
		return c.fail(epoch, err, true)
	}
	return c.load(ctx, epoch, false)
}

// complete enters Completed with the store's placeholder result, persists
// the local answers once and overlays the scored result. Failures after
// this point are logged and leave the placeholder in place.
func (c *Controller) complete(ctx context.Context, epoch int, stored *assessment.Result, total int) error {
	placeholder := assessment.PlaceholderResult(total)
	if stored != nil {
		placeholder = placeholder.Overlay(*stored)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.phase == PhaseCompleted {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseCompleted
	c.pos = nil
	c.selection = nil
	c.result = &placeholder
	c.resultLoading = true
	var payload []assessment.Response
	if !c.persisted && c.answers.len() > 0 {
		payload = c.answers.payload()
		c.persisted = true
	}
	c.unlockAndNotify()

	if payload != nil {
		if err := c.store.StoreAnswers(ctx, c.typ, payload); err != nil {
			c.log.Warn("store answers failed", "answers", len(payload), "error", err)
		}
	}

	final := placeholder
	scored, err := c.store.Result(ctx, c.typ)
	switch {
	case err != nil:
		c.log.Warn("result unavailable, keeping placeholder", "error", err)
	case scored != nil:
		final = placeholder.Overlay(*scored)
	}

	c.apply(epoch, func() {
		c.result = &final
		c.resultLoading = false
	})
	return nil
}

// fail logs err and moves to Errored, or to LoginRequired when the store
// rejected our credentials during initialization.
func (c *Controller) fail(epoch int, err error, initializing bool) error {
	c.log.Error("assessment request failed", "error", err)
	c.apply(epoch, func() {
		c.pos = nil
		c.selection = nil
		if initializing && errors.Is(err, ErrUnauthorized) {
			c.phase = PhaseLoginRequired
			c.errMsg = loginRequired
			return
		}
		c.phase = PhaseErrored
		c.errMsg = genericError
	})
	return err
}
