package questiongen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/cache"
	"github.com/taru-edu/taru/internal/store"
)

// Options configures a Service. Zero values pick in-process defaults.
type Options struct {
	Cache  cache.QuestionSetCache
	Locker cache.Locker
	Count  int
	Logger *slog.Logger
}

// Service makes question generation idempotent per user and type.
type Service struct {
	repo   store.SessionRepo
	gen    Generator
	cache  cache.QuestionSetCache
	locker cache.Locker
	count  int
	logger *slog.Logger

	newID func() string
}

func NewService(repo store.SessionRepo, gen Generator, opts Options) *Service {
	s := &Service{
		repo:   repo,
		gen:    gen,
		cache:  opts.Cache,
		locker: opts.Locker,
		count:  opts.Count,
		logger: opts.Logger,
		newID:  uuid.NewString,
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryQuestionCache(0)
	}
	if s.locker == nil {
		s.locker = cache.NewLocalLocker()
	}
	if s.count <= 0 {
		s.count = DefaultCount
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// EnsureResult is the outcome of Ensure.
type EnsureResult struct {
	Questions []assessment.Question
	// Cached is true when no generation happened.
	Cached bool
}

// Ensure returns the session's question set, generating it on first use.
// Without force, repeated calls return the same set with Cached set.
// With force, a new set replaces the session and its recorded answers.
func (s *Service) Ensure(ctx context.Context, userID string, typ assessment.Type, force bool) (*EnsureResult, error) {
	unlock, err := s.locker.Lock(ctx, cache.SessionKey(userID, typ))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.Progress(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	if !force {
		if existing != nil && len(existing.Questions) > 0 {
			return &EnsureResult{Questions: existing.Questions, Cached: true}, nil
		}

		qs, ok, err := s.cache.Get(ctx, userID, typ)
		if err != nil {
			s.logger.Warn("question cache read failed", "user", userID, "type", typ, "err", err)
		}
		if ok {
			if err := s.saveFresh(ctx, userID, typ, qs); err != nil {
				return nil, err
			}
			return &EnsureResult{Questions: qs, Cached: true}, nil
		}
	}

	input := GenerateInput{Type: typ, Count: s.count}
	if existing != nil {
		for _, q := range existing.Questions {
			input.PriorQuestions = append(input.PriorQuestions, q.Text)
		}
	}

	qs, err := s.gen.Generate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("generate %s questions: %w", typ, err)
	}
	for i := range qs {
		qs[i].ID = s.newID()
	}

	if force && existing != nil {
		// Old answers refer to questions that no longer exist.
		if err := s.repo.DeleteSession(ctx, userID, typ); err != nil {
			return nil, fmt.Errorf("clear previous session: %w", err)
		}
	}
	if err := s.saveFresh(ctx, userID, typ, qs); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userID, typ, qs); err != nil {
		s.logger.Warn("question cache write failed", "user", userID, "type", typ, "err", err)
	}

	s.logger.Info("generated question set", "user", userID, "type", typ, "count", len(qs), "forced", force)
	return &EnsureResult{Questions: qs}, nil
}

// Forget drops the cached set for a session. Callers hold the session lock.
func (s *Service) Forget(ctx context.Context, userID string, typ assessment.Type) error {
	return s.cache.Delete(ctx, userID, typ)
}

func (s *Service) saveFresh(ctx context.Context, userID string, typ assessment.Type, qs []assessment.Question) error {
	p := &assessment.Progress{
		UserID:    userID,
		Type:      typ,
		Questions: qs,
		Cursor:    1,
		Status:    assessment.StatusNotStarted,
	}
	if err := s.repo.SaveProgress(ctx, p); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
