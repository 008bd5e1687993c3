package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"

	"github.com/taru-edu/taru/internal/screen"
)

type stubScreen struct {
	title   string
	inits   int
	updates int
}

func (s *stubScreen) Init() tea.Cmd {
	s.inits++
	return nil
}

func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) {
	s.updates++
	return s, nil
}

func (s *stubScreen) View(int, int) string { return s.title }
func (s *stubScreen) Title() string        { return s.title }

func TestPushAndPop(t *testing.T) {
	home := &stubScreen{title: "home"}
	r := New(home)

	quiz := &stubScreen{title: "quiz"}
	r.Update(PushScreenMsg{Screen: quiz})
	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "quiz", r.View(80, 24))
	assert.Equal(t, 1, quiz.inits)

	r.Update(PopScreenMsg{})
	assert.Equal(t, "home", r.Active().Title())
	assert.False(t, r.Pop(), "the root screen stays")
	assert.Equal(t, 1, r.Depth())
}

func TestReplaceKeepsDepth(t *testing.T) {
	r := New(&stubScreen{title: "home"})
	r.Push(&stubScreen{title: "login"})

	next := &stubScreen{title: "quiz"}
	r.Update(ReplaceScreenMsg{Screen: next})
	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "quiz", r.Active().Title())
	assert.Equal(t, 1, next.inits)

	r.Pop()
	assert.Equal(t, "home", r.Active().Title(), "the replaced screen is gone")
}

func TestForwardsToActive(t *testing.T) {
	home := &stubScreen{title: "home"}
	top := &stubScreen{title: "top"}
	r := New(home)
	r.Push(top)

	r.Update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	assert.Equal(t, 1, top.updates)
	assert.Zero(t, home.updates)
}
