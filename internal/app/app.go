// Package app is the root Bubble Tea model for taking assessments in the
// terminal.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "charm.land/bubbletea/v2"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/router"
	"github.com/taru-edu/taru/internal/screen"
	asmtscreen "github.com/taru-edu/taru/internal/screens/assessment"
	"github.com/taru-edu/taru/internal/screens/home"
	"github.com/taru-edu/taru/internal/session"
	"github.com/taru-edu/taru/internal/ui/layout"
)

// Options configures Run.
type Options struct {
	// NewController builds the controller for one assessment.
	NewController func(typ assessment.Type, fromPrecursor bool) *session.Controller

	// Type opens that assessment directly instead of the picker.
	Type          assessment.Type
	FromPrecursor bool

	// Login is handed a replacement token after the store rejects ours.
	Login func(token string)

	Context context.Context
	Logger  *slog.Logger
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

func newAppModel(opts Options) AppModel {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	var open home.Opener
	open = func(typ assessment.Type, fromPrecursor bool) screen.Screen {
		so := asmtscreen.Options{
			Context: opts.Context,
			Login:   opts.Login,
			Logger:  opts.Logger,
		}
		if next := following(typ); next != "" {
			so.NextType = next
			so.OpenNext = func() tea.Cmd {
				return func() tea.Msg {
					return router.ReplaceScreenMsg{Screen: open(next, true)}
				}
			}
		}
		return asmtscreen.New(opts.NewController(typ, fromPrecursor), so)
	}

	var root screen.Screen = home.New(open)
	if opts.Type != "" {
		root = open(opts.Type, opts.FromPrecursor)
	}
	return AppModel{router: router.New(root)}
}

// following returns the assessment whose precursor is typ.
func following(typ assessment.Type) assessment.Type {
	for _, t := range assessment.Types {
		if t.Precursor() == typ {
			return t
		}
	}
	return ""
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, tea.Quit
		}
	}

	return m, m.router.Update(msg)
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

// render draws the whole frame for the current size.
func (m AppModel) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	var title, status string
	hints := []layout.KeyHint{{Key: "Esc", Description: "Back"}, {Key: "Ctrl+C", Description: "Quit"}}
	if active != nil {
		title = active.Title()
		if sp, ok := active.(screen.StatusProvider); ok {
			status = sp.Status()
		}
		if hp, ok := active.(screen.KeyHintProvider); ok {
			hints = hp.KeyHints()
		}
	}

	header := layout.RenderHeader(title, status, m.width)
	footer := layout.RenderFooter(hints, m.width)
	content := m.router.View(m.width, layout.ContentHeight(m.height))
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the program and blocks until the learner quits.
func Run(opts Options) error {
	if opts.NewController == nil {
		return fmt.Errorf("app: no controller factory")
	}
	p := tea.NewProgram(newAppModel(opts), tea.WithContext(orBackground(opts.Context)))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
