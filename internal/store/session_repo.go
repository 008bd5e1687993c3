package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/taru-edu/taru/internal/assessment"
)

// sessionRepo implements SessionRepo on SQLite.
type sessionRepo struct {
	drv *entsql.Driver
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func sessionKey(userID string, typ assessment.Type) *entsql.Predicate {
	return entsql.And(entsql.EQ("user_id", userID), entsql.EQ("type", string(typ)))
}

func (r *sessionRepo) Progress(ctx context.Context, userID string, typ assessment.Type) (*assessment.Progress, error) {
	b := builder()
	q, args := b.Select("questions", "cursor", "status", "created_at", "updated_at").
		From(b.Table(tableProgress)).
		Where(sessionKey(userID, typ)).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		questions        string
		cursor           int
		status           string
		created, updated int64
	)
	if err := rows.Scan(&questions, &cursor, &status, &created, &updated); err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}

	p := &assessment.Progress{
		UserID:    userID,
		Type:      typ,
		Cursor:    cursor,
		Status:    assessment.Status(status),
		CreatedAt: time.UnixMilli(created).UTC(),
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}
	if err := json.Unmarshal([]byte(questions), &p.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return p, nil
}

func (r *sessionRepo) SaveProgress(ctx context.Context, p *assessment.Progress) error {
	return saveProgress(ctx, r.drv, p)
}

func saveProgress(ctx context.Context, ex dialect.ExecQuerier, p *assessment.Progress) error {
	questions, err := json.Marshal(p.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	q, args := builder().Insert(tableProgress).
		Columns("user_id", "type", "questions", "cursor", "status", "created_at", "updated_at").
		Values(p.UserID, string(p.Type), string(questions), p.Cursor, string(p.Status),
			p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("user_id", "type"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range []string{"questions", "cursor", "status", "updated_at"} {
					u.SetExcluded(c)
				}
			}),
		).
		Query()
	if err := ex.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (r *sessionRepo) RecordAnswer(ctx context.Context, p *assessment.Progress, resp assessment.Response) (err error) {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = upsertResponses(ctx, tx, p.UserID, p.Type, []assessment.Response{resp}); err != nil {
		return err
	}
	if err = saveProgress(ctx, tx, p); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *sessionRepo) UpsertResponses(ctx context.Context, userID string, typ assessment.Type, rs []assessment.Response) error {
	return upsertResponses(ctx, r.drv, userID, typ, rs)
}

func upsertResponses(ctx context.Context, ex dialect.ExecQuerier, userID string, typ assessment.Type, rs []assessment.Response) error {
	if len(rs) == 0 {
		return nil
	}

	ins := builder().Insert(tableResponses).
		Columns("user_id", "type", "question_id", "answer", "kind", "question_text", "category", "answered_at")
	now := time.Now().UTC()
	for _, resp := range rs {
		at := resp.AnsweredAt
		if at.IsZero() {
			at = now
		}
		ins.Values(userID, string(typ), resp.QuestionID, resp.StudentAnswer, string(resp.Kind),
			resp.QuestionText, resp.Category, at.UnixMilli())
	}
	// The row id is kept on conflict, so ordering by id gives first-answered order.
	q, args := ins.OnConflict(
		entsql.ConflictColumns("user_id", "type", "question_id"),
		entsql.ResolveWith(func(u *entsql.UpdateSet) {
			for _, c := range []string{"answer", "kind", "question_text", "category", "answered_at"} {
				u.SetExcluded(c)
			}
		}),
	).Query()

	if err := ex.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("upsert responses: %w", err)
	}
	return nil
}

func (r *sessionRepo) Responses(ctx context.Context, userID string, typ assessment.Type) ([]assessment.Response, error) {
	b := builder()
	q, args := b.Select("question_id", "answer", "kind", "question_text", "category", "answered_at").
		From(b.Table(tableResponses)).
		Where(sessionKey(userID, typ)).
		OrderBy("id").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []assessment.Response
	for rows.Next() {
		var (
			resp assessment.Response
			kind string
			at   int64
		)
		if err := rows.Scan(&resp.QuestionID, &resp.StudentAnswer, &kind, &resp.QuestionText, &resp.Category, &at); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		resp.Kind = assessment.AnswerKind(kind)
		resp.AnsweredAt = time.UnixMilli(at).UTC()
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Result(ctx context.Context, userID string, typ assessment.Type) (*assessment.Result, error) {
	b := builder()
	q, args := b.Select("result").
		From(b.Table(tableResults)).
		Where(sessionKey(userID, typ)).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	var res assessment.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

func (r *sessionRepo) SaveResult(ctx context.Context, userID string, typ assessment.Type, res assessment.Result) error {
	if res.ScoredAt.IsZero() {
		res.ScoredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	q, args := builder().Insert(tableResults).
		Columns("user_id", "type", "result", "scored_at").
		Values(userID, string(typ), string(raw), res.ScoredAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("user_id", "type"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteSession(ctx context.Context, userID string, typ assessment.Type) (err error) {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{tableResponses, tableResults, tableProgress} {
		q, args := builder().Delete(table).Where(sessionKey(userID, typ)).Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
