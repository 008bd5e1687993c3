package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/assessment"
)

func sampleQuestions() []assessment.Question {
	return []assessment.Question{
		{ID: "q1", Text: "Which subject do you enjoy most?", Kind: assessment.KindSingleSelect, Options: []string{"Math", "Art"}},
		{ID: "q2", Text: "Pick the activities you like.", Kind: assessment.KindMultiSelect, Options: []string{"Reading", "Coding"}},
	}
}

func TestLocalLockerSerializes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "u1:diagnostic")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots, "slots are released once idle")
}

func TestLocalLockerKeysIndependent(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "u1:diagnostic")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, "u1:interest")
	require.NoError(t, err)
	unlockB()
	unlockB() // idempotent
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(db, 30*time.Second, nil)
	l.newToken = func() string { return "tok-1" }
	l.poll = time.Millisecond

	mock.ExpectSetNX("taru:lock:u1:diagnostic", "tok-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX("taru:lock:u1:diagnostic", "tok-1", 30*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"taru:lock:u1:diagnostic"}, "tok-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "u1:diagnostic")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(db, time.Second, nil)
	l.newToken = func() string { return "tok" }

	mock.ExpectSetNX("taru:lock:k", "tok", time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), "k")
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedisLockerLogsFailedRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var logs bytes.Buffer
	l := NewRedisLocker(db, time.Minute, slog.New(slog.NewTextHandler(&logs, nil)))
	l.newToken = func() string { return "tok" }

	mock.ExpectSetNX("taru:lock:k", "tok", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"taru:lock:k"}, "tok").SetErr(errors.New("i/o timeout"))

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()

	assert.Contains(t, logs.String(), "release lock failed")
	assert.Contains(t, logs.String(), "i/o timeout")
	assert.Contains(t, logs.String(), "taru:lock:k")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQuestionCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisQuestionCache(db, time.Hour)
	ctx := context.Background()
	key := "taru:questions:u1:diagnostic"

	mock.ExpectGet(key).RedisNil()
	qs, ok, err := c.Get(ctx, "u1", assessment.TypeDiagnostic)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, qs)

	data, err := json.Marshal(sampleQuestions())
	require.NoError(t, err)

	mock.ExpectSet(key, data, time.Hour).SetVal("OK")
	require.NoError(t, c.Set(ctx, "u1", assessment.TypeDiagnostic, sampleQuestions()))

	mock.ExpectGet(key).SetVal(string(data))
	qs, ok, err = c.Get(ctx, "u1", assessment.TypeDiagnostic)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sampleQuestions(), qs)

	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, c.Delete(ctx, "u1", assessment.TypeDiagnostic))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQuestionCacheCorrupt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisQuestionCache(db, time.Hour)

	mock.ExpectGet("taru:questions:u1:interest").SetVal("{not json")
	_, _, err := c.Get(context.Background(), "u1", assessment.TypeInterest)
	assert.ErrorContains(t, err, "decode question set")
}

func TestMemoryQuestionCache(t *testing.T) {
	c := NewMemoryQuestionCache(time.Minute)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "u1", assessment.TypeDiagnostic)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "u1", assessment.TypeDiagnostic, sampleQuestions()))
	qs, ok, err := c.Get(ctx, "u1", assessment.TypeDiagnostic)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, qs, 2)

	// Callers cannot mutate the cached slice.
	qs[0].Text = "changed"
	again, _, _ := c.Get(ctx, "u1", assessment.TypeDiagnostic)
	assert.Equal(t, "Which subject do you enjoy most?", again[0].Text)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "u1", assessment.TypeDiagnostic)
	require.NoError(t, err)
	assert.False(t, ok, "expired")

	require.NoError(t, c.Set(ctx, "u1", assessment.TypeDiagnostic, sampleQuestions()))
	require.NoError(t, c.Delete(ctx, "u1", assessment.TypeDiagnostic))
	_, ok, _ = c.Get(ctx, "u1", assessment.TypeDiagnostic)
	assert.False(t, ok)
}
