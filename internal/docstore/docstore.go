// Package docstore implements the session repository on MongoDB for
// deployments that run several API replicas against a shared database.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/store"
)

const (
	collProgress  = "assessment_progress"
	collResponses = "assessment_responses"
	collResults   = "assessment_results"
)

// DocStore holds the mongo client and database handle.
type DocStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the connection with a ping and ensures the
// indexes the repository relies on.
func Connect(ctx context.Context, uri, database string) (*DocStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	ds := &DocStore{client: client, db: client.Database(database)}
	if err := ds.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return ds, nil
}

func (d *DocStore) ensureIndexes(ctx context.Context) error {
	sessionKey := bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}
	unique := options.Index().SetUnique(true)

	indexes := map[string]mongo.IndexModel{
		collProgress: {Keys: sessionKey, Options: unique},
		collResults:  {Keys: sessionKey, Options: unique},
		collResponses: {
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "questionId", Value: 1}},
			Options: unique,
		},
	}
	for coll, model := range indexes {
		if _, err := d.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", coll, err)
		}
	}
	return nil
}

// Close disconnects the client.
func (d *DocStore) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// SessionRepo returns a store.SessionRepo backed by this database.
func (d *DocStore) SessionRepo() store.SessionRepo {
	return newSessionRepo(d.db)
}

func newSessionRepo(db *mongo.Database) *sessionRepo {
	return &sessionRepo{
		progress:  db.Collection(collProgress),
		responses: db.Collection(collResponses),
		results:   db.Collection(collResults),
	}
}

type sessionRepo struct {
	progress  *mongo.Collection
	responses *mongo.Collection
	results   *mongo.Collection
}

// responseDoc is a stored Response plus its session key. Order is set once
// on insert so re-answers keep their original position.
type responseDoc struct {
	UserID              string `bson:"userId"`
	Type                string `bson:"type"`
	Order               int64  `bson:"order"`
	assessment.Response `bson:",inline"`
}

type resultDoc struct {
	UserID string            `bson:"userId"`
	Type   string            `bson:"type"`
	Result assessment.Result `bson:"result"`
}

func key(userID string, typ assessment.Type) bson.M {
	return bson.M{"userId": userID, "type": string(typ)}
}

func (r *sessionRepo) Progress(ctx context.Context, userID string, typ assessment.Type) (*assessment.Progress, error) {
	var p assessment.Progress
	err := r.progress.FindOne(ctx, key(userID, typ)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find progress: %w", err)
	}
	return &p, nil
}

func (r *sessionRepo) SaveProgress(ctx context.Context, p *assessment.Progress) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.progress.ReplaceOne(ctx, key(p.UserID, p.Type), p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// RecordAnswer writes the response before the cursor so a crash between the
// two leaves an answer without an advanced cursor, which the client retries.
func (r *sessionRepo) RecordAnswer(ctx context.Context, p *assessment.Progress, resp assessment.Response) error {
	if err := r.UpsertResponses(ctx, p.UserID, p.Type, []assessment.Response{resp}); err != nil {
		return err
	}
	return r.SaveProgress(ctx, p)
}

func (r *sessionRepo) UpsertResponses(ctx context.Context, userID string, typ assessment.Type, rs []assessment.Response) error {
	if len(rs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(rs))
	for i, resp := range rs {
		if resp.AnsweredAt.IsZero() {
			resp.AnsweredAt = now
		}
		filter := key(userID, typ)
		filter["questionId"] = resp.QuestionID
		update := bson.M{
			"$set": bson.M{
				"studentAnswer": resp.StudentAnswer,
				"kind":          resp.Kind,
				"questionText":  resp.QuestionText,
				"category":      resp.Category,
				"answeredAt":    resp.AnsweredAt,
			},
			"$setOnInsert": bson.M{"order": now.UnixNano() + int64(i)},
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	if _, err := r.responses.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("upsert responses: %w", err)
	}
	return nil
}

func (r *sessionRepo) Responses(ctx context.Context, userID string, typ assessment.Type) ([]assessment.Response, error) {
	cursor, err := r.responses.Find(ctx, key(userID, typ), options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find responses: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []responseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}

	out := make([]assessment.Response, len(docs))
	for i, d := range docs {
		out[i] = d.Response
	}
	return out, nil
}

func (r *sessionRepo) Result(ctx context.Context, userID string, typ assessment.Type) (*assessment.Result, error) {
	var doc resultDoc
	err := r.results.FindOne(ctx, key(userID, typ)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find result: %w", err)
	}
	return &doc.Result, nil
}

func (r *sessionRepo) SaveResult(ctx context.Context, userID string, typ assessment.Type, res assessment.Result) error {
	if res.ScoredAt.IsZero() {
		res.ScoredAt = time.Now().UTC()
	}
	doc := resultDoc{UserID: userID, Type: string(typ), Result: res}
	if _, err := r.results.ReplaceOne(ctx, key(userID, typ), doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteSession(ctx context.Context, userID string, typ assessment.Type) error {
	for _, coll := range []*mongo.Collection{r.responses, r.results, r.progress} {
		if _, err := coll.DeleteMany(ctx, key(userID, typ)); err != nil {
			return fmt.Errorf("delete from %s: %w", coll.Name(), err)
		}
	}
	return nil
}
