package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taru-edu/taru/internal/assessment"
)

// QuestionSetCache remembers the question set generated for a user and
// assessment type, so replicas that race on first access, or a session whose
// progress row was lost, reuse one set instead of generating again.
type QuestionSetCache interface {
	// Get returns the cached set and true, or nil and false on a miss.
	Get(ctx context.Context, userID string, typ assessment.Type) ([]assessment.Question, bool, error)
	Set(ctx context.Context, userID string, typ assessment.Type, qs []assessment.Question) error
	Delete(ctx context.Context, userID string, typ assessment.Type) error
}

// RedisQuestionCache stores sets as JSON with a TTL.
type RedisQuestionCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisQuestionCache(client redis.Cmdable, ttl time.Duration) *RedisQuestionCache {
	return &RedisQuestionCache{client: client, ttl: ttl}
}

func questionsKey(userID string, typ assessment.Type) string {
	return "taru:questions:" + SessionKey(userID, typ)
}

func (c *RedisQuestionCache) Get(ctx context.Context, userID string, typ assessment.Type) ([]assessment.Question, bool, error) {
	data, err := c.client.Get(ctx, questionsKey(userID, typ)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get question set: %w", err)
	}

	var qs []assessment.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, false, fmt.Errorf("decode question set: %w", err)
	}
	return qs, len(qs) > 0, nil
}

func (c *RedisQuestionCache) Set(ctx context.Context, userID string, typ assessment.Type, qs []assessment.Question) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return fmt.Errorf("encode question set: %w", err)
	}
	if err := c.client.Set(ctx, questionsKey(userID, typ), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set question set: %w", err)
	}
	return nil
}

func (c *RedisQuestionCache) Delete(ctx context.Context, userID string, typ assessment.Type) error {
	if err := c.client.Del(ctx, questionsKey(userID, typ)).Err(); err != nil {
		return fmt.Errorf("delete question set: %w", err)
	}
	return nil
}

// MemoryQuestionCache is an in-process QuestionSetCache with expiry.
type MemoryQuestionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	questions []assessment.Question
	expires   time.Time
}

// NewMemoryQuestionCache creates a cache whose entries expire after ttl.
// A zero ttl keeps entries until deleted.
func NewMemoryQuestionCache(ttl time.Duration) *MemoryQuestionCache {
	return &MemoryQuestionCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryQuestionCache) Get(_ context.Context, userID string, typ assessment.Type) ([]assessment.Question, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := SessionKey(userID, typ)
	e, ok := c.entries[k]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, k)
		return nil, false, nil
	}
	return append([]assessment.Question(nil), e.questions...), true, nil
}

func (c *MemoryQuestionCache) Set(_ context.Context, userID string, typ assessment.Type, qs []assessment.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{questions: append([]assessment.Question(nil), qs...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[SessionKey(userID, typ)] = e
	return nil
}

func (c *MemoryQuestionCache) Delete(_ context.Context, userID string, typ assessment.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, SessionKey(userID, typ))
	return nil
}
