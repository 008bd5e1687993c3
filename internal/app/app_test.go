package app

import (
	"context"
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/session"
)

// offlineStore fails every call; these tests never reach the store.
type offlineStore struct{}

var errOffline = errors.New("offline")

func (offlineStore) Generate(context.Context, assessment.Type, bool) (*session.Generated, error) {
	return nil, errOffline
}
func (offlineStore) Current(context.Context, assessment.Type) (*session.Position, error) {
	return nil, errOffline
}
func (offlineStore) Previous(context.Context, assessment.Type, int) (*session.Position, error) {
	return nil, errOffline
}
func (offlineStore) Advance(context.Context, assessment.Type, string, string, int) (*session.Advance, error) {
	return nil, errOffline
}
func (offlineStore) StoreAnswers(context.Context, assessment.Type, []assessment.Response) error {
	return errOffline
}
func (offlineStore) Result(context.Context, assessment.Type) (*assessment.Result, error) {
	return nil, errOffline
}
func (offlineStore) Reset(context.Context, assessment.Type) error { return errOffline }

func testOptions(opened *[]assessment.Type) Options {
	return Options{
		NewController: func(typ assessment.Type, fromPrecursor bool) *session.Controller {
			*opened = append(*opened, typ)
			return session.New(offlineStore{}, session.Options{Type: typ, FromPrecursor: fromPrecursor})
		},
	}
}

func TestStartsOnPicker(t *testing.T) {
	var opened []assessment.Type
	m := newAppModel(testOptions(&opened))
	assert.Equal(t, "Assessments", m.router.Active().Title())
	assert.Empty(t, opened)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(AppModel)
	content := m.render()
	assert.Contains(t, content, "Taru")
	assert.Contains(t, content, "Choose an assessment")

	next, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Contains(t, next.(AppModel).render(), "Terminal too small")
}

func TestTypeOpensAssessmentDirectly(t *testing.T) {
	var opened []assessment.Type
	opts := testOptions(&opened)
	opts.Type = assessment.TypeInterest
	m := newAppModel(opts)

	require.Equal(t, []assessment.Type{assessment.TypeInterest}, opened)
	assert.Equal(t, 1, m.router.Depth())
	assert.Equal(t, assessment.TypeInterest.Title(), m.router.Active().Title())

	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFollowing(t *testing.T) {
	assert.Equal(t, assessment.TypeDiagnostic, following(assessment.TypeInterest))
	assert.Equal(t, assessment.Type(""), following(assessment.TypeDiagnostic))
}
