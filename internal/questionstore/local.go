package questionstore

import (
	"context"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/session"
)

// Local serves one user's sessions in-process, so the assessment can run
// without the HTTP server in between.
type Local struct {
	svc    *Service
	userID string
}

var _ session.Store = (*Local)(nil)

// ForUser returns a session.Store bound to userID.
func (s *Service) ForUser(userID string) *Local {
	return &Local{svc: s, userID: userID}
}

func (l *Local) Generate(ctx context.Context, typ assessment.Type, force bool) (*session.Generated, error) {
	res, err := l.svc.gen.Ensure(ctx, l.userID, typ, force)
	if err != nil {
		return nil, err
	}
	return &session.Generated{Count: len(res.Questions), Cached: res.Cached}, nil
}

func (l *Local) Current(ctx context.Context, typ assessment.Type) (*session.Position, error) {
	cur, err := l.svc.Current(ctx, l.userID, typ)
	if err != nil {
		return nil, err
	}
	if cur.Completed || cur.Question == nil {
		return &session.Position{
			Completed: true,
			Status:    assessment.StatusCompleted,
			Result:    cur.Result,
			Responses: cur.Responses,
		}, nil
	}
	return position(cur.Question), nil
}

func (l *Local) Previous(ctx context.Context, typ assessment.Type, current int) (*session.Position, error) {
	v, err := l.svc.Previous(ctx, l.userID, typ, current)
	if err != nil {
		return nil, err
	}
	return position(v), nil
}

func (l *Local) Advance(ctx context.Context, typ assessment.Type, questionID, answer string, number int) (*session.Advance, error) {
	out, err := l.svc.Advance(ctx, l.userID, typ, questionID, answer, number)
	if err != nil {
		return nil, err
	}
	return &session.Advance{Completed: out.Completed, Status: out.Status, Result: out.Result}, nil
}

func (l *Local) StoreAnswers(ctx context.Context, typ assessment.Type, answers []assessment.Response) error {
	_, err := l.svc.StoreAnswers(ctx, l.userID, typ, answers)
	return err
}

func (l *Local) Result(ctx context.Context, typ assessment.Type) (*assessment.Result, error) {
	out, err := l.svc.Result(ctx, l.userID, typ)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (l *Local) Reset(ctx context.Context, typ assessment.Type) error {
	return l.svc.Reset(ctx, l.userID, typ)
}

func position(v *QuestionView) *session.Position {
	q := v.Question
	return &session.Position{
		Question: &q,
		Number:   v.Number,
		Total:    v.Total,
		Percent:  v.Percent,
		Status:   v.Status,
	}
}
