// Package assessment is the screen a learner takes an assessment on. It
// owns no assessment state: every key is turned into a call on a
// session.Controller, run off the UI goroutine, and the view is drawn
// from the controller's latest snapshot.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	asmt "github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/screen"
	"github.com/taru-edu/taru/internal/session"
	"github.com/taru-edu/taru/internal/ui/components"
	"github.com/taru-edu/taru/internal/ui/layout"
	"github.com/taru-edu/taru/internal/ui/theme"
)

// Options configures a Screen.
type Options struct {
	// Context bounds every controller call. Defaults to Background.
	Context context.Context

	// Login receives a token the learner pasted after the store rejected
	// the previous one. Without it the login phase only offers a retry.
	Login func(token string)

	// NextType is the assessment that follows this one. OpenNext, when
	// set, is run from the result view to move on to it.
	NextType asmt.Type
	OpenNext func() tea.Cmd

	Logger *slog.Logger
}

// Screen implements screen.Screen for one assessment.
type Screen struct {
	ctrl     *session.Controller
	ctx      context.Context
	login    func(string)
	next     asmt.Type
	openNext func() tea.Cmd
	log      *slog.Logger
	changes  chan struct{}

	snap    session.Snapshot
	shown   string // question the choices were built for
	choices components.Choices
	spin    spinner.Model
	token   components.TextInput
	notice  string
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
	_ screen.StatusProvider  = (*Screen)(nil)
)

// New wires the screen to ctrl. The controller's change hook is taken
// over by the screen.
func New(ctrl *session.Controller, opts Options) *Screen {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Screen{
		ctrl:     ctrl,
		ctx:      opts.Context,
		login:    opts.Login,
		next:     opts.NextType,
		openNext: opts.OpenNext,
		log:      opts.Logger,
		changes:  make(chan struct{}, 1),
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(theme.Selected),
		),
		token: components.NewTextInput("Paste your access token", true, 4096),
	}
	ctrl.OnChange(func(session.Snapshot) {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	})
	s.snap = ctrl.Snapshot()
	return s
}

func (s *Screen) Init() tea.Cmd {
	return tea.Batch(
		s.waitForChange(),
		s.run("load", s.ctrl.LoadCurrent),
		s.spin.Tick,
	)
}

func (s *Screen) Title() string {
	return s.ctrl.Type().Title()
}

// Status shows the question counter while a question is on screen.
func (s *Screen) Status() string {
	switch {
	case s.snap.Phase == session.PhaseCompleted:
		return "Completed"
	case s.snap.Number > 0 && s.snap.Total > 0:
		return fmt.Sprintf("Question %d of %d", s.snap.Number, s.snap.Total)
	}
	return ""
}

func (s *Screen) KeyHints() []layout.KeyHint {
	switch s.snap.Phase {
	case session.PhaseInProgress:
		hints := []layout.KeyHint{
			{Key: "↑↓", Description: "Move"},
			{Key: "Space", Description: "Pick"},
			{Key: "Enter", Description: "Submit"},
			{Key: "S", Description: "Skip"},
		}
		if s.snap.CanGoBack() {
			hints = append(hints, layout.KeyHint{Key: "B", Description: "Back"})
		}
		return append(hints,
			layout.KeyHint{Key: "Ctrl+R", Description: "Restart"},
			layout.KeyHint{Key: "Esc", Description: "Leave"},
		)
	case session.PhaseAwaitingEntry:
		return []layout.KeyHint{{Key: "Enter", Description: "Start"}, {Key: "Esc", Description: "Leave"}}
	case session.PhaseCompleted:
		if s.snap.ResultLoading {
			return []layout.KeyHint{{Key: "Esc", Description: "Leave"}}
		}
		hints := []layout.KeyHint{{Key: "R", Description: "Take again"}}
		if s.canContinue() {
			hints = append(hints, layout.KeyHint{Key: "N", Description: "Continue"})
		}
		return append(hints, layout.KeyHint{Key: "Esc", Description: "Leave"})
	case session.PhaseErrored:
		return []layout.KeyHint{{Key: "Enter", Description: "Try again"}, {Key: "Esc", Description: "Leave"}}
	case session.PhaseLoginRequired:
		return []layout.KeyHint{{Key: "Enter", Description: "Sign in"}, {Key: "Esc", Description: "Leave"}}
	}
	return []layout.KeyHint{{Key: "Esc", Description: "Leave"}}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		s.refresh()
		return s, s.waitForChange()

	case opDoneMsg:
		s.handleDone(msg)
		return s, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.snap.Phase == session.PhaseLoginRequired {
		var cmd tea.Cmd
		s.token, cmd = s.token.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *Screen) canContinue() bool {
	return s.next != "" && s.openNext != nil
}

// waitForChange blocks until the controller reports a change.
func (s *Screen) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-s.changes
		return changedMsg{}
	}
}

// run calls op off the UI goroutine.
func (s *Screen) run(name string, op func(context.Context) error) tea.Cmd {
	ctx := s.ctx
	return func() tea.Msg {
		return opDoneMsg{Op: name, Err: op(ctx)}
	}
}

// refresh copies the controller's state and rebuilds the option list when
// a different question is shown.
func (s *Screen) refresh() {
	prev := s.snap.Phase
	s.snap = s.ctrl.Snapshot()

	if s.snap.Phase != session.PhaseInProgress {
		if !s.snap.Phase.Busy() {
			s.shown = ""
		}
		if s.snap.Phase == session.PhaseLoginRequired && prev != session.PhaseLoginRequired {
			s.token.Reset()
		}
		return
	}

	q := s.snap.Question
	key := fmt.Sprintf("%s#%d", q.ID, s.snap.Number)
	if key != s.shown {
		s.shown = key
		s.notice = ""
		s.choices = components.NewChoices(q.Options, q.Kind == asmt.KindMultiSelect, s.snap.Selection)
	}
}

func (s *Screen) handleDone(msg opDoneMsg) {
	switch {
	case msg.Err == nil:
	case errors.Is(msg.Err, session.ErrFirstQuestion):
		s.notice = "This is the first question."
	case errors.Is(msg.Err, session.ErrBusy),
		errors.Is(msg.Err, session.ErrWrongPhase),
		errors.Is(msg.Err, session.ErrEmptyAnswer):
		// The snapshot already says everything the learner needs.
	default:
		s.log.Debug("assessment operation failed", "op", msg.Op, "error", msg.Err)
	}
	s.refresh()
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	switch s.snap.Phase {
	case session.PhaseInProgress:
		switch key {
		case "enter":
			s.notice = ""
			sel := s.choices.Selection()
			return s, s.run("submit", func(ctx context.Context) error {
				return s.ctrl.Submit(ctx, sel)
			})
		case "s":
			s.notice = ""
			return s, s.run("skip", s.ctrl.Skip)
		case "b", "left":
			s.notice = ""
			return s, s.run("back", s.ctrl.GoBack)
		case "ctrl+r":
			return s, s.run("reset", s.ctrl.Reset)
		}
		s.choices, _ = s.choices.Update(msg)
		return s, nil

	case session.PhaseAwaitingEntry:
		if key == "enter" {
			return s, s.run("start", s.ctrl.Start)
		}

	case session.PhaseCompleted:
		if s.snap.ResultLoading {
			break
		}
		switch {
		case key == "r":
			return s, s.run("reset", s.ctrl.Reset)
		case key == "n" && s.canContinue():
			return s, s.openNext()
		}

	case session.PhaseErrored:
		if key == "enter" || key == "r" {
			return s, s.run("retry", s.ctrl.Retry)
		}

	case session.PhaseLoginRequired:
		if key == "enter" {
			if tok := s.token.Value(); tok != "" && s.login != nil {
				s.login(tok)
			}
			return s, s.run("retry", s.ctrl.Retry)
		}
		var cmd tea.Cmd
		s.token, cmd = s.token.Update(msg)
		return s, cmd
	}
	return s, nil
}
