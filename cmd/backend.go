package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/taru-edu/taru/internal/cache"
	"github.com/taru-edu/taru/internal/config"
	"github.com/taru-edu/taru/internal/docstore"
	"github.com/taru-edu/taru/internal/llm"
	"github.com/taru-edu/taru/internal/questiongen"
	"github.com/taru-edu/taru/internal/questionstore"
	"github.com/taru-edu/taru/internal/scoring"
	"github.com/taru-edu/taru/internal/store"
)

// backend is everything the question store needs, built from config.
type backend struct {
	sqlite    *store.Store
	questions *questionstore.Service
	gen       *questiongen.Service
	closers   []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend wires the session repository, locks, question cache,
// generator and scorer. SQLite is always opened because it also keeps the
// LLM event log.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	b.sqlite, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	b.closers = append(b.closers, b.sqlite.Close)

	repo := b.sqlite.SessionRepo()
	if cfg.Store.Driver == "mongo" {
		ds, err := docstore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		b.closers = append(b.closers, func() error { return ds.Close(context.Background()) })
		repo = ds.SessionRepo()
	}

	var (
		locker    cache.Locker           = cache.NewLocalLocker()
		questions cache.QuestionSetCache = cache.NewMemoryQuestionCache(cfg.Cache.QuestionTTL)
	)
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		b.closers = append(b.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		locker = cache.NewRedisLocker(rdb, cfg.Cache.LockLease, logger)
		questions = cache.NewRedisQuestionCache(rdb, cfg.Cache.QuestionTTL)
	}

	var (
		generator questiongen.Generator = questiongen.StaticGenerator{}
		scorer    scoring.Scorer        = scoring.NewHeuristicScorer()
	)
	if !cfg.LLM.IsMock() {
		provider, err := llm.NewProvider(ctx, cfg.LLM, b.sqlite.EventRepo(), logger)
		if err != nil {
			return nil, fmt.Errorf("create LLM provider: %w", err)
		}
		generator = questiongen.NewLLMGenerator(provider, questiongen.DefaultConfig())
		scorer = scoring.NewLLMScorer(provider, scoring.DefaultLLMScorerConfig())
	} else {
		logger.Info("no LLM provider configured, using built-in questions and heuristic scoring")
	}
	if cfg.Scoring.WorkflowURL != "" {
		scorer = scoring.NewWorkflowScorer(cfg.Scoring.WorkflowURL, cfg.Scoring.Timeout)
	}

	b.gen = questiongen.NewService(repo, generator, questiongen.Options{
		Cache:  questions,
		Locker: locker,
		Count:  cfg.Generation.Count,
		Logger: logger,
	})
	b.questions = questionstore.New(repo, b.gen, scorer, questionstore.Options{
		Locker: locker,
		Logger: logger,
	})
	return b, nil
}
