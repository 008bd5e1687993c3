package assessment

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/taru-edu/taru/internal/session"
	"github.com/taru-edu/taru/internal/ui/components"
	"github.com/taru-edu/taru/internal/ui/theme"
)

func (s *Screen) View(width, height int) string {
	inner := min(max(width-8, 20), 90)

	var body string
	switch s.snap.Phase {
	case session.PhaseInitializing:
		body = s.renderWaiting("Preparing your questions...")
	case session.PhaseAwaitingEntry:
		body = s.renderGate(inner)
	case session.PhaseInProgress, session.PhaseSubmitting, session.PhaseSkipping, session.PhaseGoingBack:
		body = s.renderQuestion(inner)
	case session.PhaseCompleted:
		body = s.renderResult(inner)
	case session.PhaseErrored:
		body = s.renderError(inner)
	case session.PhaseLoginRequired:
		body = s.renderLogin(inner)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 4).
		Render(body)
}

func (s *Screen) renderWaiting(label string) string {
	return s.spin.View() + " " + theme.Subtitle.Render(label)
}

func (s *Screen) renderGate(width int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Ready for the " + s.ctrl.Type().Title() + "?"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Foreground(theme.Text).Render(
		"Nice work finishing the last step. This assessment has a fresh set of questions waiting for you."))
	b.WriteString("\n\n")
	b.WriteString(components.NewButton("Start", true, nil).View())
	return b.String()
}

func (s *Screen) renderQuestion(width int) string {
	snap := s.snap
	if snap.Question == nil {
		return s.renderWaiting("Loading...")
	}
	q := snap.Question

	var b strings.Builder
	label := fmt.Sprintf("Question %d of %d", snap.Number, snap.Total)
	b.WriteString(components.NewProgressBar(label, snap.Percent, width).View())
	b.WriteString("\n")
	if q.Category != "" {
		b.WriteString(theme.Hint.Render(q.Category))
	}
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Foreground(theme.Text).
		Bold(true).
		Render(q.Text))
	b.WriteString("\n\n")
	b.WriteString(s.choices.View())
	b.WriteString("\n")

	switch {
	case snap.Phase == session.PhaseSubmitting:
		b.WriteString(s.renderWaiting("Saving your answer..."))
	case snap.Phase == session.PhaseSkipping:
		b.WriteString(s.renderWaiting("Skipping..."))
	case snap.Phase == session.PhaseGoingBack:
		b.WriteString(s.renderWaiting("Going back..."))
	case snap.Validation != "":
		b.WriteString(theme.WarningText.Render(snap.Validation))
	case s.notice != "":
		b.WriteString(theme.Hint.Render(s.notice))
	}
	return b.String()
}

func (s *Screen) renderResult(width int) string {
	res := s.snap.Result
	var b strings.Builder
	b.WriteString(theme.Title.Render(s.ctrl.Type().Title() + " complete"))
	b.WriteString("\n\n")

	if res == nil {
		b.WriteString(s.renderWaiting("Scoring your answers..."))
		return b.String()
	}

	b.WriteString(theme.Score.Render(fmt.Sprintf("%d%%", res.Score)))
	if res.TotalQuestions > 0 {
		b.WriteString(theme.Subtitle.Render(fmt.Sprintf("  across %d questions", res.TotalQuestions)))
	}
	if res.Classification != "" {
		b.WriteString("\n" + theme.Selected.Render(res.Classification))
	}
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Foreground(theme.Text).Render(res.Summary))

	if len(res.Recommendations) > 0 {
		b.WriteString("\n\n" + theme.Subtitle.Render("Next steps") + "\n")
		for _, r := range res.Recommendations {
			b.WriteString(lipgloss.NewStyle().Width(width).Foreground(theme.Text).Render("• " + r))
			b.WriteString("\n")
		}
	}

	if s.snap.ResultLoading {
		b.WriteString("\n\n" + s.renderWaiting("Scoring your answers..."))
	} else if s.canContinue() {
		b.WriteString("\n\n" + theme.Hint.Render("Press N to continue to the "+s.next.Title()+"."))
	}
	return theme.Card.Width(width).Render(b.String())
}

func (s *Screen) renderError(width int) string {
	return lipgloss.NewStyle().Width(width).Render(
		theme.ErrorText.Render(s.snap.Error) + "\n\n" +
			theme.Hint.Render("Press Enter to try again."))
}

func (s *Screen) renderLogin(width int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Width(width).Render(theme.WarningText.Render(s.snap.Error)))
	b.WriteString("\n\n")
	if s.login != nil {
		b.WriteString(theme.Subtitle.Render("Access token"))
		b.WriteString("\n")
		b.WriteString(s.token.View())
		b.WriteString("\n\n")
		b.WriteString(theme.Hint.Render("Paste a new token and press Enter."))
	} else {
		b.WriteString(theme.Hint.Render("Press Enter to try again."))
	}
	return b.String()
}
