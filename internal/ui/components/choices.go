package components

import (
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/taru-edu/taru/internal/ui/theme"
)

// Choices is an option list for one question. In single mode picking an
// option replaces the previous pick; in multi mode picks toggle.
type Choices struct {
	Options []string
	Multi   bool
	Cursor  int
	picked  []bool
}

// NewChoices builds a list with the options in selection already picked.
// Entries of selection that are not options are ignored. The cursor
// starts on the first picked option.
func NewChoices(options []string, multi bool, selection []string) Choices {
	c := Choices{
		Options: options,
		Multi:   multi,
		picked:  make([]bool, len(options)),
	}
	first := -1
	for i, opt := range options {
		if slices.Contains(selection, opt) {
			if !multi && first >= 0 {
				continue
			}
			c.picked[i] = true
			if first < 0 {
				first = i
			}
		}
	}
	if first > 0 {
		c.Cursor = first
	}
	return c
}

// Update moves the cursor and picks options. Enter is left to the caller.
func (c Choices) Update(msg tea.Msg) (Choices, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(c.Options) == 0 {
		return c, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if c.Cursor > 0 {
			c.Cursor--
		}
	case "down", "j":
		if c.Cursor < len(c.Options)-1 {
			c.Cursor++
		}
	case "space", "x":
		c.toggle(c.Cursor)
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			if i := int(key[0] - '1'); i < len(c.Options) {
				c.Cursor = i
				c.toggle(i)
			}
		}
	}
	return c, nil
}

func (c *Choices) toggle(i int) {
	if c.Multi {
		c.picked[i] = !c.picked[i]
		return
	}
	was := c.picked[i]
	clear(c.picked)
	c.picked[i] = !was
}

// Selection returns the picked options in display order.
func (c Choices) Selection() []string {
	out := []string{}
	for i, p := range c.picked {
		if p {
			out = append(out, c.Options[i])
		}
	}
	return out
}

func (c Choices) View() string {
	var b strings.Builder
	for i, opt := range c.Options {
		mark := "( )"
		if c.Multi {
			mark = "[ ]"
		}
		if c.picked[i] {
			if c.Multi {
				mark = "[x]"
			} else {
				mark = "(•)"
			}
		}
		prefix := "  "
		if i == c.Cursor {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%d. %s %s", prefix, i+1, mark, opt)

		style := theme.Unselected
		switch {
		case c.picked[i]:
			style = theme.Checked
		case i == c.Cursor:
			style = theme.Selected
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}
	if c.Multi {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render("\n  Select all that apply."))
	}
	return b.String()
}
