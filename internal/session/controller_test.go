package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/assessment"
)

// fakeStore mirrors the question store's cursor rules in memory.
type fakeStore struct {
	mu sync.Mutex

	size      int
	kinds     map[int]assessment.AnswerKind
	questions []assessment.Question
	cursor    int
	completed bool

	generated int
	resets    int
	advances  []string
	previous  int
	stored    [][]assessment.Response

	result     *assessment.Result
	resultErr  error
	currentErr error

	// When set, Advance signals advanceStarted and then waits on gate.
	gate           chan struct{}
	advanceStarted chan struct{}
}

func newFakeStore(size int) *fakeStore {
	return &fakeStore{size: size, cursor: 1, kinds: map[int]assessment.AnswerKind{}}
}

func (f *fakeStore) Generate(_ context.Context, _ assessment.Type, force bool) (*Generated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.questions) > 0 && !force {
		return &Generated{Count: len(f.questions), Cached: true}, nil
	}
	f.generated++
	f.questions = nil
	for i := 1; i <= f.size; i++ {
		kind := assessment.AnswerKind("mcq")
		if k, ok := f.kinds[i]; ok {
			kind = k
		}
		f.questions = append(f.questions, assessment.Question{
			ID:       fmt.Sprintf("q%d", i),
			Text:     fmt.Sprintf("Question %d", i),
			Kind:     kind,
			Options:  []string{"A", "B", "Paris", "London"},
			Category: "general",
		})
	}
	f.cursor = 1
	f.completed = false
	return &Generated{Count: len(f.questions)}, nil
}

func (f *fakeStore) positionLocked(n int) *Position {
	q := f.questions[n-1]
	return &Position{
		Question: &q,
		Number:   n,
		Total:    len(f.questions),
		Percent:  (n - 1) * 100 / len(f.questions),
		Status:   assessment.StatusInProgress,
	}
}

func (f *fakeStore) Current(_ context.Context, _ assessment.Type) (*Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	if f.completed {
		return &Position{Completed: true, Status: assessment.StatusCompleted, Total: len(f.questions)}, nil
	}
	return f.positionLocked(f.cursor), nil
}

func (f *fakeStore) Previous(_ context.Context, _ assessment.Type, current int) (*Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previous++
	f.cursor = min(max(current-1, 1), len(f.questions))
	return f.positionLocked(f.cursor), nil
}

func (f *fakeStore) Advance(_ context.Context, _ assessment.Type, questionID, answer string, number int) (*Advance, error) {
	f.mu.Lock()
	f.advances = append(f.advances, answer)
	gate, started := f.gate, f.advanceStarted
	f.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if number != f.cursor || f.questions[number-1].ID != questionID {
		return nil, errors.New("cursor mismatch")
	}
	f.cursor++
	if f.cursor > len(f.questions) {
		f.completed = true
		placeholder := assessment.PlaceholderResult(len(f.questions))
		return &Advance{Completed: true, Status: assessment.StatusCompleted, Result: &placeholder}, nil
	}
	return &Advance{Status: assessment.StatusInProgress}, nil
}

func (f *fakeStore) StoreAnswers(_ context.Context, _ assessment.Type, answers []assessment.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, append([]assessment.Response(nil), answers...))
	return nil
}

func (f *fakeStore) Result(_ context.Context, _ assessment.Type) (*assessment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

func (f *fakeStore) Reset(_ context.Context, _ assessment.Type) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.questions = nil
	f.cursor = 1
	f.completed = false
	return nil
}

func newLoaded(t *testing.T, store Store) *Controller {
	t.Helper()
	c := New(store, Options{Type: assessment.TypeDiagnostic})
	require.NoError(t, c.LoadCurrent(context.Background()))
	require.Equal(t, PhaseInProgress, c.Snapshot().Phase)
	return c
}

func TestLoadCurrentGeneratesOnce(t *testing.T) {
	store := newFakeStore(3)
	c := newLoaded(t, store)
	require.NoError(t, c.LoadCurrent(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, 1, store.generated)
	assert.Equal(t, 1, snap.Number)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, "q1", snap.Question.ID)
	assert.Equal(t, assessment.KindSingleSelect, snap.Question.Kind, "raw kinds are normalized")
	assert.Empty(t, snap.Selection)
	assert.False(t, snap.CanGoBack())
}

func TestSkipNeverPrefills(t *testing.T) {
	ctx := context.Background()
	c := newLoaded(t, newFakeStore(3))

	require.NoError(t, c.Skip(ctx))
	require.Equal(t, 2, c.Snapshot().Number)

	require.NoError(t, c.GoBack(ctx))
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Number)
	assert.Equal(t, []string{}, snap.Selection)
}

func TestAnswerPrefillsOnBack(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(3)
	store.kinds[2] = "checkbox"
	c := newLoaded(t, store)

	require.NoError(t, c.Submit(ctx, []string{"Paris"}))
	require.NoError(t, c.Submit(ctx, []string{"A", "London"}))
	require.Equal(t, 3, c.Snapshot().Number)

	require.NoError(t, c.GoBack(ctx))
	snap := c.Snapshot()
	assert.Equal(t, assessment.KindMultiSelect, snap.Question.Kind)
	assert.Equal(t, []string{"A", "London"}, snap.Selection)

	require.NoError(t, c.GoBack(ctx))
	assert.Equal(t, []string{"Paris"}, c.Snapshot().Selection)

	assert.ErrorIs(t, c.GoBack(ctx), ErrFirstQuestion)
	assert.Equal(t, 2, store.previous)
}

func TestEmptySubmitIsRejectedLocally(t *testing.T) {
	store := newFakeStore(2)
	c := newLoaded(t, store)

	err := c.Submit(context.Background(), []string{" "})
	require.ErrorIs(t, err, ErrEmptyAnswer)

	snap := c.Snapshot()
	assert.Equal(t, PhaseInProgress, snap.Phase)
	assert.Equal(t, "Please provide an answer", snap.Validation)
	assert.Empty(t, store.advances)

	require.NoError(t, c.Submit(context.Background(), []string{"A"}))
	assert.Empty(t, c.Snapshot().Validation)
}

func TestCompletionSurvivesScorerFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(2)
	store.resultErr = errors.New("upstream status 500")
	c := newLoaded(t, store)

	var completions int
	var last Phase
	c.OnChange(func(s Snapshot) {
		if s.Phase == PhaseCompleted && last != PhaseCompleted {
			completions++
		}
		last = s.Phase
	})

	require.NoError(t, c.Submit(ctx, []string{"A"}))
	require.NoError(t, c.Submit(ctx, []string{"B"}))

	snap := c.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, 1, completions)
	assert.False(t, snap.ResultLoading)
	require.NotNil(t, snap.Result)
	assert.Equal(t, assessment.PlaceholderResult(2), *snap.Result)
	assert.Len(t, store.stored, 1)

	assert.ErrorIs(t, c.Submit(ctx, []string{"A"}), ErrWrongPhase)
}

func TestCompletionOverlaysScoredResult(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(1)
	store.result = &assessment.Result{Score: 80, Summary: "Strong reasoning", Classification: "Analyst"}
	c := newLoaded(t, store)

	var sawLoading bool
	c.OnChange(func(s Snapshot) {
		if s.Phase == PhaseCompleted && s.ResultLoading {
			sawLoading = true
			assert.Equal(t, assessment.PlaceholderResult(1).Summary, s.Result.Summary)
		}
	})

	require.NoError(t, c.Submit(ctx, []string{"A"}))
	snap := c.Snapshot()
	assert.True(t, sawLoading)
	assert.Equal(t, 80, snap.Result.Score)
	assert.Equal(t, "Strong reasoning", snap.Result.Summary)
	assert.Equal(t, 1, snap.Result.TotalQuestions, "placeholder total is kept")
	assert.Equal(t, "Analyst", snap.Result.Classification)
}

func TestNavigationIsMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(3)
	c := newLoaded(t, store)

	store.gate = make(chan struct{})
	store.advanceStarted = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, []string{"A"}) }()

	select {
	case <-store.advanceStarted:
	case <-time.After(time.Second):
		t.Fatal("advance never started")
	}
	assert.Equal(t, PhaseSubmitting, c.Snapshot().Phase)

	assert.ErrorIs(t, c.Skip(ctx), ErrBusy)
	assert.ErrorIs(t, c.GoBack(ctx), ErrBusy)
	assert.ErrorIs(t, c.Submit(ctx, []string{"B"}), ErrBusy)
	assert.ErrorIs(t, c.Reset(ctx), ErrBusy)

	close(store.gate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"A"}, store.advances)
	assert.Zero(t, store.previous)
	assert.Equal(t, 2, c.Snapshot().Number)
}

func TestResetStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(3)
	c := newLoaded(t, store)

	require.NoError(t, c.Submit(ctx, []string{"Paris"}))
	require.NoError(t, c.Reset(ctx))

	snap := c.Snapshot()
	assert.Equal(t, PhaseInProgress, snap.Phase)
	assert.Equal(t, 1, snap.Number)
	assert.Equal(t, []string{}, snap.Selection, "old answer for q1 must not pre-fill")
	assert.Equal(t, 1, store.resets)
	assert.Equal(t, 2, store.generated)

	for range 3 {
		require.NoError(t, c.Skip(ctx))
	}
	require.Len(t, store.stored, 1)
	for _, r := range store.stored[0] {
		assert.True(t, r.Skipped(), "no answer from before the reset survives")
	}

	// Resetting a completed session loads a new one.
	require.NoError(t, c.Reset(ctx))
	assert.Equal(t, PhaseInProgress, c.Snapshot().Phase)
	assert.Nil(t, c.Snapshot().Result)
}

func TestThreeQuestionPayload(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(3)
	c := newLoaded(t, store)

	require.NoError(t, c.Submit(ctx, []string{"A"}))
	require.NoError(t, c.Skip(ctx))
	require.NoError(t, c.Submit(ctx, []string{"B"}))

	assert.Equal(t, PhaseCompleted, c.Snapshot().Phase)
	require.Len(t, store.stored, 1)
	payload := store.stored[0]
	require.Len(t, payload, 3)
	var got []string
	for _, r := range payload {
		got = append(got, r.StudentAnswer)
	}
	assert.Equal(t, []string{"A", "Skipped", "B"}, got)
	assert.Equal(t, "Question 1", payload[0].QuestionText)
	assert.Equal(t, "general", payload[0].Category)
}

func TestReansweredQuestionKeepsLatestAnswer(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(2)
	c := newLoaded(t, store)

	require.NoError(t, c.Submit(ctx, []string{"A"}))
	require.NoError(t, c.GoBack(ctx))
	require.NoError(t, c.Submit(ctx, []string{"B"}))
	require.NoError(t, c.Submit(ctx, []string{"Paris"}))

	require.Len(t, store.stored, 1)
	payload := store.stored[0]
	require.Len(t, payload, 2)
	assert.Equal(t, "q1", payload[0].QuestionID)
	assert.Equal(t, "B", payload[0].StudentAnswer)
	assert.Equal(t, "Paris", payload[1].StudentAnswer)
}

func TestErrorsAndRetry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(2)
	store.currentErr = errors.New("unexpected end of JSON input")
	c := New(store, Options{})

	require.Error(t, c.LoadCurrent(ctx))
	snap := c.Snapshot()
	assert.Equal(t, PhaseErrored, snap.Phase)
	assert.Equal(t, genericError, snap.Error, "raw errors are never shown")

	store.currentErr = nil
	require.NoError(t, c.Retry(ctx))
	assert.Equal(t, PhaseInProgress, c.Snapshot().Phase)
	assert.Empty(t, c.Snapshot().Error)

	assert.ErrorIs(t, c.Retry(ctx), ErrWrongPhase)
}

func TestUnauthorizedRequiresLogin(t *testing.T) {
	store := newFakeStore(2)
	store.currentErr = fmt.Errorf("fetch question: %w", ErrUnauthorized)
	c := New(store, Options{})

	require.ErrorIs(t, c.LoadCurrent(context.Background()), ErrUnauthorized)
	assert.Equal(t, PhaseLoginRequired, c.Snapshot().Phase)
}

// completedStore reports completion with whatever evidence it is given.
type completedStore struct {
	*fakeStore
	pos Position
}

func (s *completedStore) Current(ctx context.Context, typ assessment.Type) (*Position, error) {
	s.mu.Lock()
	reset := s.resets > 0
	s.mu.Unlock()
	if reset {
		return s.fakeStore.Current(ctx, typ)
	}
	p := s.pos
	return &p, nil
}

func TestAwaitingEntryGate(t *testing.T) {
	placeholder := assessment.PlaceholderResult(0)
	answered := assessment.PlaceholderResult(5)

	tests := []struct {
		name          string
		pos           Position
		fromPrecursor bool
		want          Phase
	}{
		{"legacy flag, no evidence, from precursor", Position{Completed: true, Result: &placeholder}, true, PhaseAwaitingEntry},
		{"legacy flag, no evidence, direct", Position{Completed: true}, false, PhaseCompleted},
		{"legacy flag with responses", Position{Completed: true, Responses: []assessment.Response{{QuestionID: "q1", StudentAnswer: "A"}}}, true, PhaseCompleted},
		{"legacy flag with scored total", Position{Completed: true, Result: &answered}, true, PhaseCompleted},
		{"explicit completed status", Position{Completed: true, Status: assessment.StatusCompleted}, true, PhaseCompleted},
		{"explicit not started", Position{Completed: true, Status: assessment.StatusNotStarted}, true, PhaseAwaitingEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &completedStore{fakeStore: newFakeStore(2), pos: tt.pos}
			c := New(store, Options{FromPrecursor: tt.fromPrecursor})
			require.NoError(t, c.LoadCurrent(context.Background()))
			assert.Equal(t, tt.want, c.Snapshot().Phase)
		})
	}
}

func TestStartLeavesGate(t *testing.T) {
	ctx := context.Background()
	store := &completedStore{fakeStore: newFakeStore(2), pos: Position{Completed: true}}
	c := New(store, Options{FromPrecursor: true})
	require.NoError(t, c.LoadCurrent(ctx))
	require.Equal(t, PhaseAwaitingEntry, c.Snapshot().Phase)
	assert.ErrorIs(t, c.Submit(ctx, []string{"A"}), ErrWrongPhase)

	require.NoError(t, c.Start(ctx))
	snap := c.Snapshot()
	assert.Equal(t, PhaseInProgress, snap.Phase)
	assert.Equal(t, 1, snap.Number)
	assert.Equal(t, 1, store.resets)

	assert.ErrorIs(t, c.Start(ctx), ErrWrongPhase)
}

func TestAnswerCachePayload(t *testing.T) {
	var c answerCache
	c.add(assessment.Response{QuestionID: "q1", StudentAnswer: "A"})
	c.add(assessment.Response{QuestionID: "q2", StudentAnswer: assessment.SkipAnswer})
	c.add(assessment.Response{QuestionID: "q1", StudentAnswer: "C"})

	assert.Equal(t, 3, c.len())
	r, ok := c.latest("q1")
	require.True(t, ok)
	assert.Equal(t, "C", r.StudentAnswer)

	got := c.payload()
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].StudentAnswer)
	assert.True(t, got[1].Skipped())

	assert.Equal(t, []string{}, c.prefill(assessment.Question{ID: "q2"}))
	assert.Equal(t, []string{}, c.prefill(assessment.Question{ID: "q9"}))

	c.clear()
	assert.Empty(t, c.payload())
}
