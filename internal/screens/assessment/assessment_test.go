package assessment

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	asmt "github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/session"
)

// memStore is an in-memory session.Store with a forward-only cursor.
type memStore struct {
	mu           sync.Mutex
	questions    []asmt.Question
	cursor       int
	done         bool
	untouched    bool // report a finished but never started session
	unauthorized bool
	stored       []asmt.Response
	resets       int
}

func newMemStore() *memStore {
	return &memStore{questions: []asmt.Question{
		{ID: "q1", Text: "Which shapes have four sides?", Kind: asmt.KindMultiSelect, Options: []string{"Square", "Triangle", "Rectangle"}, Category: "Geometry"},
		{ID: "q2", Text: "What is 7 x 8?", Kind: asmt.KindSingleSelect, Options: []string{"54", "56", "58"}, Category: "Arithmetic"},
		{ID: "q3", Text: "How do you like to learn?", Kind: asmt.KindSingleSelect, Options: []string{"Reading", "Doing"}},
	}}
}

func (m *memStore) position() *session.Position {
	q := m.questions[m.cursor]
	return &session.Position{
		Question: &q,
		Number:   m.cursor + 1,
		Total:    len(m.questions),
		Percent:  m.cursor * 100 / len(m.questions),
		Status:   asmt.StatusInProgress,
	}
}

func (m *memStore) Generate(context.Context, asmt.Type, bool) (*session.Generated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unauthorized {
		return nil, session.ErrUnauthorized
	}
	return &session.Generated{Count: len(m.questions)}, nil
}

func (m *memStore) Current(context.Context, asmt.Type) (*session.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.untouched {
		return &session.Position{Completed: true, Status: asmt.StatusNotStarted}, nil
	}
	if m.done {
		return &session.Position{Completed: true, Status: asmt.StatusCompleted, Total: len(m.questions)}, nil
	}
	return m.position(), nil
}

func (m *memStore) Previous(_ context.Context, _ asmt.Type, current int) (*session.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = current - 2
	return m.position(), nil
}

func (m *memStore) Advance(context.Context, asmt.Type, string, string, int) (*session.Advance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor++
	if m.cursor == len(m.questions) {
		m.done = true
		return &session.Advance{Completed: true, Status: asmt.StatusCompleted}, nil
	}
	return &session.Advance{Status: asmt.StatusInProgress}, nil
}

func (m *memStore) StoreAnswers(_ context.Context, _ asmt.Type, rs []asmt.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, rs...)
	return nil
}

func (m *memStore) Result(context.Context, asmt.Type) (*asmt.Result, error) {
	return &asmt.Result{
		Score:           80,
		TotalQuestions:  len(m.questions),
		Summary:         "Great work on shapes.",
		Recommendations: []string{"Practice times tables"},
	}, nil
}

func (m *memStore) Reset(context.Context, asmt.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor, m.done, m.untouched = 0, false, false
	m.resets++
	return nil
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func newScreen(t *testing.T, st session.Store, opts Options, sopts session.Options) *Screen {
	t.Helper()
	sopts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Logger = sopts.Logger
	return New(session.New(st, sopts), opts)
}

// load runs the initial load synchronously, the way Init would off the
// UI goroutine.
func load(t *testing.T, s *Screen) {
	t.Helper()
	_ = s.ctrl.LoadCurrent(context.Background())
	s.Update(changedMsg{})
}

// press sends a key and, when it starts a controller operation, runs the
// operation to completion and delivers the result.
func press(t *testing.T, s *Screen, msg tea.Msg) {
	t.Helper()
	_, cmd := s.Update(msg)
	require.NotNil(t, cmd, "key should start an operation")
	done, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	s.Update(done)
}

func TestAnswerFlow(t *testing.T) {
	st := newMemStore()
	s := newScreen(t, st, Options{}, session.Options{Type: asmt.TypeDiagnostic})
	load(t, s)

	require.Equal(t, session.PhaseInProgress, s.snap.Phase)
	view := s.View(100, 30)
	assert.Contains(t, view, "Which shapes have four sides?")
	assert.Contains(t, view, "Geometry")
	assert.Equal(t, "Question 1 of 3", s.Status())

	s.Update(keyPress('1'))
	s.Update(keyPress('3'))
	press(t, s, specialKey(tea.KeyEnter))
	assert.Equal(t, 2, s.snap.Number)

	press(t, s, keyPress('s'))
	assert.Equal(t, 3, s.snap.Number)

	s.Update(specialKey(tea.KeyDown))
	s.Update(specialKey(tea.KeySpace))
	press(t, s, specialKey(tea.KeyEnter))

	require.Equal(t, session.PhaseCompleted, s.snap.Phase)
	assert.False(t, s.snap.ResultLoading)
	view = s.View(100, 30)
	assert.Contains(t, view, "80%")
	assert.Contains(t, view, "Great work on shapes.")
	assert.Contains(t, view, "Practice times tables")

	require.Len(t, st.stored, 3)
	assert.Equal(t, "Square, Rectangle", st.stored[0].StudentAnswer)
	assert.Equal(t, asmt.SkipAnswer, st.stored[1].StudentAnswer)
	assert.Equal(t, "Doing", st.stored[2].StudentAnswer)
}

func TestEnterWithoutPickShowsValidation(t *testing.T) {
	s := newScreen(t, newMemStore(), Options{}, session.Options{})
	load(t, s)

	press(t, s, specialKey(tea.KeyEnter))
	assert.Equal(t, session.PhaseInProgress, s.snap.Phase)
	assert.Equal(t, 1, s.snap.Number)
	assert.Contains(t, s.View(100, 30), session.ErrEmptyAnswer.Error())
}

func TestBackRestoresPicks(t *testing.T) {
	s := newScreen(t, newMemStore(), Options{}, session.Options{})
	load(t, s)

	press(t, s, keyPress('b'))
	assert.Contains(t, s.View(100, 30), "first question")

	s.Update(keyPress('1'))
	s.Update(keyPress('3'))
	press(t, s, specialKey(tea.KeyEnter))
	press(t, s, specialKey(tea.KeyLeft))

	assert.Equal(t, 1, s.snap.Number)
	assert.Equal(t, []string{"Square", "Rectangle"}, s.choices.Selection())

	// A skipped question comes back with nothing picked.
	press(t, s, specialKey(tea.KeyEnter))
	press(t, s, keyPress('s'))
	press(t, s, keyPress('b'))
	assert.Equal(t, 2, s.snap.Number)
	assert.Empty(t, s.choices.Selection())
}

func TestSingleSelectReplacesPick(t *testing.T) {
	st := newMemStore()
	st.cursor = 1
	s := newScreen(t, st, Options{}, session.Options{})
	load(t, s)

	s.Update(keyPress('1'))
	s.Update(keyPress('2'))
	assert.Equal(t, []string{"56"}, s.choices.Selection())
	s.Update(keyPress('2'))
	assert.Empty(t, s.choices.Selection(), "picking again clears")
}

func TestGateThenStart(t *testing.T) {
	st := newMemStore()
	st.untouched = true
	s := newScreen(t, st, Options{}, session.Options{Type: asmt.TypeDiagnostic, FromPrecursor: true})
	load(t, s)

	require.Equal(t, session.PhaseAwaitingEntry, s.snap.Phase)
	assert.Contains(t, s.View(100, 30), "Ready for the Diagnostic Assessment?")

	press(t, s, specialKey(tea.KeyEnter))
	assert.Equal(t, session.PhaseInProgress, s.snap.Phase)
	assert.Equal(t, 1, st.resets)
}

func TestLoginThenRetry(t *testing.T) {
	st := newMemStore()
	st.unauthorized = true
	var got string
	s := newScreen(t, st, Options{Login: func(tok string) {
		got = tok
		st.mu.Lock()
		st.unauthorized = false
		st.mu.Unlock()
	}}, session.Options{})
	load(t, s)

	require.Equal(t, session.PhaseLoginRequired, s.snap.Phase)
	assert.Contains(t, s.View(100, 30), "log in again")

	for _, r := range "tok-9" {
		s.Update(keyPress(r))
	}
	press(t, s, specialKey(tea.KeyEnter))

	assert.Equal(t, "tok-9", got)
	assert.Equal(t, session.PhaseInProgress, s.snap.Phase)
}

func TestRetakeAfterCompletion(t *testing.T) {
	st := newMemStore()
	st.done = true
	s := newScreen(t, st, Options{}, session.Options{})
	load(t, s)

	require.Equal(t, session.PhaseCompleted, s.snap.Phase)
	press(t, s, keyPress('r'))
	assert.Equal(t, session.PhaseInProgress, s.snap.Phase)
	assert.Equal(t, 1, s.snap.Number)
}

func TestChangesWakeScreen(t *testing.T) {
	s := newScreen(t, newMemStore(), Options{}, session.Options{})
	wait := s.waitForChange()

	go func() { _ = s.ctrl.LoadCurrent(context.Background()) }()

	msg := wait()
	assert.IsType(t, changedMsg{}, msg)
}

func TestContinueToNextAssessment(t *testing.T) {
	st := newMemStore()
	st.done = true
	opened := 0
	s := newScreen(t, st, Options{
		NextType: asmt.TypeDiagnostic,
		OpenNext: func() tea.Cmd {
			opened++
			return nil
		},
	}, session.Options{Type: asmt.TypeInterest})
	load(t, s)

	require.Equal(t, session.PhaseCompleted, s.snap.Phase)
	assert.Contains(t, s.View(100, 30), "continue to the Diagnostic Assessment")
	s.Update(keyPress('n'))
	assert.Equal(t, 1, opened)
}
