package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/component/mongodb"
)

const identifierIndexName = "identifier_unique_sparse"

// Collections MongoDB 集合名.
type Collections struct {
	Tickets  string
	Versions string
	Events   string
}

// MongoStore 基于 MongoDB 的 Store 实现.
type MongoStore struct {
	client   *mongodb.Client
	tickets  *mongo.Collection
	versions *mongo.Collection
	events   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore binds the collections and ensures their indexes.
func NewMongoStore(ctx context.Context, client *mongodb.Client, names Collections) (*MongoStore, error) {
	s := &MongoStore{
		client:   client,
		tickets:  client.Collection(names.Tickets),
		versions: client.Collection(names.Versions),
		events:   client.Collection(names.Events),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the indexes the service relies on. A legacy
// identifier index that is not unique+sparse is dropped first, otherwise
// tickets without an identifier would collide on null.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if err := s.dropLegacyIdentifierIndex(ctx); err != nil {
		return err
	}

	ticketIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identifier", Value: 1}},
			Options: options.Index().SetName(identifierIndexName).SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "linear_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := s.tickets.Indexes().CreateMany(ctx, ticketIdx); err != nil {
		return fmt.Errorf("create ticket indexes: %w", err)
	}

	if _, err := s.versions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ticketId", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create version indexes: %w", err)
	}

	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "ticketId", Value: 1}, {Key: "operation", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) dropLegacyIdentifierIndex(ctx context.Context) error {
	specs, err := s.tickets.Indexes().ListSpecifications(ctx)
	if err != nil {
		return fmt.Errorf("list ticket indexes: %w", err)
	}
	for _, spec := range specs {
		if spec.Name == identifierIndexName || !isIdentifierOnlyIndex(spec.KeysDocument) {
			continue
		}
		if spec.Unique != nil && *spec.Unique && spec.Sparse != nil && *spec.Sparse {
			continue
		}
		logger.Warnw("dropping legacy identifier index", "index", spec.Name)
		if _, err := s.tickets.Indexes().DropOne(ctx, spec.Name); err != nil {
			return fmt.Errorf("drop index %s: %w", spec.Name, err)
		}
	}
	return nil
}

func isIdentifierOnlyIndex(keys bson.Raw) bool {
	elems, err := keys.Elements()
	return err == nil && len(elems) == 1 && elems[0].Key() == "identifier"
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close is a no-op; the shared client is closed by its owner.
func (s *MongoStore) Close() error {
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	doc := t.Clone()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	if _, err := s.tickets.InsertOne(ctx, doc); err != nil {
		return nil, translateWriteError(err)
	}
	return doc, nil
}

func (s *MongoStore) FindOne(ctx context.Context, f Filter) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.tickets.FindOne(ctx, filterDocument(f)).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) FindMany(ctx context.Context, f Filter, opts ListOptions) ([]*model.Ticket, int64, error) {
	filter := filterDocument(f)

	total, err := s.tickets.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.tickets.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*model.Ticket, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, id primitive.ObjectID, p *Patch) (*model.Ticket, error) {
	var t model.Ticket
	err := s.tickets.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		updateDocument(p),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, translateWriteError(err)
	}
	return &t, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, id primitive.ObjectID) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.tickets.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) All(ctx context.Context, fn func(*model.Ticket) error) error {
	cur, err := s.tickets.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var t model.Ticket
		if err := cur.Decode(&t); err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoStore) InsertVersions(ctx context.Context, versions []*model.TicketVersion) error {
	if len(versions) == 0 {
		return nil
	}
	docs := make([]any, 0, len(versions))
	for _, v := range versions {
		if v.ID.IsZero() {
			v.ID = primitive.NewObjectID()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = Now()
		}
		docs = append(docs, v)
	}
	_, err := s.versions.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) ListVersions(ctx context.Context, ticketID primitive.ObjectID) ([]*model.TicketVersion, error) {
	cur, err := s.versions.Find(ctx, bson.M{"ticketId": ticketID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*model.TicketVersion, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) RecordEvent(ctx context.Context, e *model.ConsistencyEvent) error {
	now := Now()
	set := bson.M{"reason": e.Reason, "updatedAt": now}
	if e.Identifier != "" {
		set["identifier"] = e.Identifier
	}
	_, err := s.events.UpdateOne(ctx,
		bson.M{"ticketId": e.TicketID, "operation": e.Operation, "status": model.EventPending},
		bson.M{
			"$set":         set,
			"$inc":         bson.M{"revision": 1},
			"$setOnInsert": bson.M{"createdAt": now, "attempts": 0},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) ListEvents(ctx context.Context, status model.EventStatus, limit int) ([]*model.ConsistencyEvent, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ConsistencyEvent, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ResolveEvent(ctx context.Context, id primitive.ObjectID, revision int64) error {
	now := Now()
	res, err := s.events.UpdateOne(ctx,
		bson.M{"_id": id, "revision": revision, "status": model.EventPending},
		bson.M{"$set": bson.M{"status": model.EventResolved, "resolvedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.events.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrEventChanged
}

func (s *MongoStore) IncrementAttempts(ctx context.Context, id primitive.ObjectID, reason string) error {
	res, err := s.events.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"reason": reason, "updatedAt": Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func filterDocument(f Filter) bson.M {
	doc := bson.M{}
	if f.ID != nil {
		doc["_id"] = *f.ID
	}
	if f.Identifier != "" {
		doc["identifier"] = f.Identifier
	}
	if f.LinearID != "" {
		doc["linear_id"] = f.LinearID
	}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	if f.Priority != "" {
		doc["priority"] = f.Priority
	}
	return doc
}

func updateDocument(p *Patch) bson.M {
	set := bson.M{}
	unset := bson.M{}

	switch {
	case p.ClearIdentifier:
		unset["identifier"] = ""
	case p.Identifier != nil:
		set["identifier"] = *p.Identifier
	}
	switch {
	case p.ClearLinearID:
		unset["linear_id"] = ""
	case p.LinearID != nil:
		set["linear_id"] = *p.LinearID
	}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Priority != nil {
		set["priority"] = *p.Priority
	}
	if p.ContextualChange != nil {
		set["contextualChange"] = *p.ContextualChange
	}
	for k, v := range p.Extensions {
		set[k] = v
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = Now()
	}
	set["updatedAt"] = updatedAt

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(p.PushComments) > 0 {
		update["$push"] = bson.M{"comments": bson.M{"$each": p.PushComments}}
	}
	return update
}

func translateWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateIdentifier, err)
	}
	return err
}

