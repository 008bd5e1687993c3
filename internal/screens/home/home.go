// Package home is the assessment picker shown when taru starts without a
// type.
package home

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/router"
	"github.com/taru-edu/taru/internal/screen"
	"github.com/taru-edu/taru/internal/ui/components"
	"github.com/taru-edu/taru/internal/ui/layout"
	"github.com/taru-edu/taru/internal/ui/theme"
)

// Opener builds the screen for one assessment.
type Opener func(typ assessment.Type, fromPrecursor bool) screen.Screen

// HomeScreen lists the assessment types.
type HomeScreen struct {
	menu components.Menu
}

var (
	_ screen.Screen          = (*HomeScreen)(nil)
	_ screen.KeyHintProvider = (*HomeScreen)(nil)
)

func New(open Opener) *HomeScreen {
	items := make([]components.MenuItem, 0, len(assessment.Types))
	for _, typ := range assessment.Types {
		item := components.MenuItem{
			Label: typ.Title(),
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{Screen: open(typ, false)}
				}
			},
		}
		if pre := typ.Precursor(); pre != "" {
			item.Detail = "best after the " + pre.Title()
		}
		items = append(items, item)
	}
	return &HomeScreen{menu: components.NewMenu(items)}
}

func (h *HomeScreen) Init() tea.Cmd { return nil }

func (h *HomeScreen) Title() string { return "Assessments" }

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Begin"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Choose an assessment"))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Render("Your progress is saved, so you can pick up where you left off."))
	b.WriteString("\n\n")
	b.WriteString(h.menu.View())
	return theme.Card.Width(min(width-4, 80)).Render(b.String())
}
