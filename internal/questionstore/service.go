// Package questionstore is the server-side owner of assessment progress. It
// hands out the question at the cursor, records answers, moves the cursor
// and caches scored results.
package questionstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/cache"
	"github.com/taru-edu/taru/internal/questiongen"
	"github.com/taru-edu/taru/internal/scoring"
	"github.com/taru-edu/taru/internal/store"
)

var (
	// ErrCursorMismatch means an answer named a question other than the one
	// at the cursor, typically a stale or duplicated request.
	ErrCursorMismatch = errors.New("question does not match the current position")

	// ErrNotCompleted is returned when a result is requested too early.
	ErrNotCompleted = errors.New("assessment is not completed")

	// ErrNoSession means no questions were generated for the user yet.
	ErrNoSession = errors.New("no assessment session")

	// ErrCompleted rejects navigation within a finished session.
	ErrCompleted = errors.New("assessment already completed")

	// ErrScored rejects answer changes once a result has been cached.
	ErrScored = errors.New("assessment already scored")

	// ErrInvalidAnswer rejects a blank answer.
	ErrInvalidAnswer = errors.New("answer is required")
)

// Options configures a Service.
type Options struct {
	// Locker must be the one shared with the question generator.
	Locker cache.Locker
	Logger *slog.Logger
}

// Service implements the question store operations.
type Service struct {
	repo   store.SessionRepo
	gen    *questiongen.Service
	scorer scoring.Scorer
	locker cache.Locker
	logger *slog.Logger
	now    func() time.Time
}

func New(repo store.SessionRepo, gen *questiongen.Service, scorer scoring.Scorer, opts Options) *Service {
	s := &Service{
		repo:   repo,
		gen:    gen,
		scorer: scorer,
		locker: opts.Locker,
		logger: opts.Logger,
		now:    time.Now,
	}
	if s.locker == nil {
		s.locker = cache.NewLocalLocker()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// QuestionView is the question at a position together with progress.
type QuestionView struct {
	Question assessment.Question
	Number   int
	Total    int
	Percent  int
	Status   assessment.Status
}

// Current is what a learner sees on loading the assessment: either the
// question at the cursor or, once finished, the result and responses.
type Current struct {
	Completed bool
	Status    assessment.Status
	Question  *QuestionView
	Result    *assessment.Result
	Responses []assessment.Response
}

// AdvanceOutcome reports whether recording an answer finished the session.
type AdvanceOutcome struct {
	Completed bool
	Status    assessment.Status
	Result    *assessment.Result
}

// ResultOutcome is a scored result and whether it came from the cache.
type ResultOutcome struct {
	Result assessment.Result
	Cached bool
}

func (s *Service) lock(ctx context.Context, userID string, typ assessment.Type) (func(), error) {
	return s.locker.Lock(ctx, cache.SessionKey(userID, typ))
}

// Current generates the question set on first access and returns the
// learner's position.
func (s *Service) Current(ctx context.Context, userID string, typ assessment.Type) (*Current, error) {
	if _, err := s.gen.Ensure(ctx, userID, typ, false); err != nil {
		return nil, err
	}

	p, err := s.repo.Progress(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil {
		return nil, ErrNoSession
	}

	if p.Status == assessment.StatusCompleted || p.Cursor > p.Total() {
		return s.completedView(ctx, p)
	}
	return &Current{Status: p.Status, Question: view(p, p.Cursor)}, nil
}

func (s *Service) completedView(ctx context.Context, p *assessment.Progress) (*Current, error) {
	res, err := s.repo.Result(ctx, p.UserID, p.Type)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if res == nil {
		placeholder := assessment.PlaceholderResult(p.Total())
		res = &placeholder
	}
	rs, err := s.repo.Responses(ctx, p.UserID, p.Type)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	return &Current{Completed: true, Status: assessment.StatusCompleted, Result: res, Responses: rs}, nil
}

func view(p *assessment.Progress, n int) *QuestionView {
	q, ok := p.QuestionAt(n)
	if !ok {
		return nil
	}
	return &QuestionView{Question: q, Number: n, Total: p.Total(), Percent: p.Percent(), Status: p.Status}
}

// Previous moves the cursor to current-1, never below 1, and returns that
// question. Recorded answers are left untouched. The cursor only moves
// back: a current beyond cursor+1 is a mismatch.
func (s *Service) Previous(ctx context.Context, userID string, typ assessment.Type, current int) (*QuestionView, error) {
	unlock, err := s.lock(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.loadSession(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	if p.Status == assessment.StatusCompleted {
		return nil, ErrCompleted
	}

	if current > p.Cursor+1 {
		return nil, fmt.Errorf("%w: previous from %d, cursor at %d", ErrCursorMismatch, current, p.Cursor)
	}
	n := max(current-1, 1)
	if n != p.Cursor {
		p.Cursor = n
		if err := s.repo.SaveProgress(ctx, p); err != nil {
			return nil, fmt.Errorf("save progress: %w", err)
		}
	}
	return view(p, n), nil
}

// Advance records answer for the question at position number and moves the
// cursor past it. Re-sending the final answer of a completed session
// returns the completion again.
func (s *Service) Advance(ctx context.Context, userID string, typ assessment.Type, questionID, answer string, number int) (*AdvanceOutcome, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrInvalidAnswer
	}

	unlock, err := s.lock(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.loadSession(ctx, userID, typ)
	if err != nil {
		return nil, err
	}

	if p.Status == assessment.StatusCompleted {
		res, err := s.repo.Result(ctx, userID, typ)
		if err != nil {
			return nil, fmt.Errorf("load result: %w", err)
		}
		if res == nil {
			placeholder := assessment.PlaceholderResult(p.Total())
			res = &placeholder
		}
		return &AdvanceOutcome{Completed: true, Status: p.Status, Result: res}, nil
	}

	q, ok := p.QuestionAt(number)
	if number != p.Cursor || !ok || q.ID != questionID {
		return nil, fmt.Errorf("%w: got question %d (%s), cursor at %d", ErrCursorMismatch, number, questionID, p.Cursor)
	}

	resp := assessment.Response{
		QuestionID:    q.ID,
		StudentAnswer: answer,
		Kind:          q.Kind,
		QuestionText:  q.Text,
		Category:      q.Category,
		AnsweredAt:    s.now().UTC(),
	}

	p.Cursor = number + 1
	p.Status = assessment.StatusInProgress
	if p.Cursor > p.Total() {
		p.Status = assessment.StatusCompleted
	}
	if err := s.repo.RecordAnswer(ctx, p, resp); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	out := &AdvanceOutcome{Completed: p.Status == assessment.StatusCompleted, Status: p.Status}
	if out.Completed {
		placeholder := assessment.PlaceholderResult(p.Total())
		out.Result = &placeholder
		s.logger.Info("assessment completed", "user", userID, "type", typ, "questions", p.Total())
	}
	return out, nil
}

// StoreAnswers bulk-upserts responses once the session is completed and
// before it is scored, so a cached result always matches the stored
// answers. Answers for questions outside the set are dropped. It returns
// the number stored.
func (s *Service) StoreAnswers(ctx context.Context, userID string, typ assessment.Type, answers []assessment.Response) (int, error) {
	unlock, err := s.lock(ctx, userID, typ)
	if err != nil {
		return 0, err
	}
	defer unlock()

	p, err := s.loadSession(ctx, userID, typ)
	if err != nil {
		return 0, err
	}
	if p.Status != assessment.StatusCompleted {
		return 0, ErrNotCompleted
	}
	if res, err := s.repo.Result(ctx, userID, typ); err != nil {
		return 0, fmt.Errorf("load result: %w", err)
	} else if res != nil {
		return 0, ErrScored
	}

	byID := make(map[string]assessment.Question, p.Total())
	for _, q := range p.Questions {
		byID[q.ID] = q
	}

	now := s.now().UTC()
	keep := make([]assessment.Response, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			s.logger.Warn("dropping answer for unknown question", "user", userID, "type", typ, "question", a.QuestionID)
			continue
		}
		a.StudentAnswer = strings.TrimSpace(a.StudentAnswer)
		if a.StudentAnswer == "" {
			return 0, fmt.Errorf("%w: question %s", ErrInvalidAnswer, a.QuestionID)
		}
		a.Kind = q.Kind
		a.QuestionText = q.Text
		a.Category = q.Category
		if a.AnsweredAt.IsZero() {
			a.AnsweredAt = now
		}
		keep = append(keep, a)
	}

	if err := s.repo.UpsertResponses(ctx, userID, typ, keep); err != nil {
		return 0, fmt.Errorf("store answers: %w", err)
	}
	return len(keep), nil
}

// Result returns the cached result, scoring the session on first request.
func (s *Service) Result(ctx context.Context, userID string, typ assessment.Type) (*ResultOutcome, error) {
	if res, err := s.repo.Result(ctx, userID, typ); err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	} else if res != nil {
		return &ResultOutcome{Result: *res, Cached: true}, nil
	}

	unlock, err := s.lock(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another request may have scored while we waited.
	if res, err := s.repo.Result(ctx, userID, typ); err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	} else if res != nil {
		return &ResultOutcome{Result: *res, Cached: true}, nil
	}

	p, err := s.repo.Progress(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil || p.Status != assessment.StatusCompleted {
		return nil, ErrNotCompleted
	}

	rs, err := s.repo.Responses(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	start := s.now()
	scored, err := s.scorer.Score(ctx, scoring.ScoreInput{
		UserID:         userID,
		Type:           typ,
		TotalQuestions: p.Total(),
		Responses:      rs,
	})
	if err != nil {
		return nil, fmt.Errorf("score %s assessment: %w", typ, err)
	}

	res := assessment.PlaceholderResult(p.Total()).Overlay(*scored)
	if res.ScoredAt.IsZero() {
		res.ScoredAt = s.now().UTC()
	}
	if err := s.repo.SaveResult(ctx, userID, typ, res); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	s.logger.Info("assessment scored", "user", userID, "type", typ, "score", res.Score, "took", s.now().Sub(start))
	return &ResultOutcome{Result: res}, nil
}

// Reset discards the session and its cached question set. Resetting an
// empty session is a no-op.
func (s *Service) Reset(ctx context.Context, userID string, typ assessment.Type) error {
	unlock, err := s.lock(ctx, userID, typ)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.DeleteSession(ctx, userID, typ); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.gen.Forget(ctx, userID, typ); err != nil {
		return fmt.Errorf("forget question set: %w", err)
	}
	s.logger.Info("assessment reset", "user", userID, "type", typ)
	return nil
}

func (s *Service) loadSession(ctx context.Context, userID string, typ assessment.Type) (*assessment.Progress, error) {
	p, err := s.repo.Progress(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil || p.Total() == 0 {
		return nil, ErrNoSession
	}
	return p, nil
}
