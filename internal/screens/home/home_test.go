package home

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/router"
	"github.com/taru-edu/taru/internal/screen"
)

type stubScreen struct{ typ assessment.Type }

func (s *stubScreen) Init() tea.Cmd                           { return nil }
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubScreen) View(int, int) string                    { return "" }
func (s *stubScreen) Title() string                           { return s.typ.Title() }

func TestPickOpensAssessment(t *testing.T) {
	h := New(func(typ assessment.Type, fromPrecursor bool) screen.Screen {
		assert.False(t, fromPrecursor)
		return &stubScreen{typ: typ}
	})
	view := h.View(100, 30)
	for _, typ := range assessment.Types {
		assert.Contains(t, view, typ.Title())
	}
	assert.Contains(t, view, "best after the Interest Assessment")

	h.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)

	push, ok := cmd().(router.PushScreenMsg)
	require.True(t, ok)
	assert.Equal(t, assessment.TypeInterest.Title(), push.Screen.Title())
}
