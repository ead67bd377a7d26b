// Package mongo provides a MongoDB-backed conversation.Store.
//
// Snapshots are stored one document per conversation, replaced wholesale on
// every save. The version guard relies on a unique index over the
// conversation id: a save whose version does not exceed the stored one
// matches no document and trips the duplicate-key error on insert, which
// surfaces as conversation.ErrStaleSnapshot.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/conversation"
)

const (
	defaultCollection = "plan_conversations"
	defaultOpTimeout  = 5 * time.Second
	clientName        = "conversation-mongo"
)

// Options configures the Mongo conversation store.
type Options struct {
	// Client is the connected driver client.
	Client *mongodriver.Client
	// Database names the database holding the collection.
	Database string
	// Collection overrides the default collection name.
	Collection string
	// Timeout bounds each storage operation. Defaults to 5s.
	Timeout time.Duration
}

// Store implements conversation.Store backed by MongoDB. It also implements
// health.Pinger for liveness checks.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

var _ conversation.Store = (*Store)(nil)
var _ health.Pinger = (*Store)(nil)

// New returns a Store and ensures its indexes.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	name := opts.Collection
	if name == "" {
		name = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(name)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return newStoreWithCollection(opts.Client, coll, timeout)
}

func newStoreWithCollection(client *mongodriver.Client, coll collection, timeout time.Duration) (*Store, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Store{mongo: client, coll: coll, timeout: timeout}, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string { return clientName }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Save implements conversation.Store.
func (s *Store) Save(ctx context.Context, snap *conversation.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("snapshot id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{
		"conversation_id": snap.ID,
		"version":         bson.M{"$lt": snap.Version},
	}
	_, err := s.coll.ReplaceOne(ctx, filter, fromSnapshot(snap), true)
	if mongodriver.IsDuplicateKeyError(err) {
		return conversation.ErrStaleSnapshot
	}
	return err
}

// Load implements conversation.Store.
func (s *Store) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	if id == "" {
		return nil, errors.New("conversation id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc snapshotDocument
	if err := s.coll.FindOne(ctx, bson.M{"conversation_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	return doc.toSnapshot(), nil
}

// Delete implements conversation.Store. Deleting an absent conversation is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("conversation id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"conversation_id": id})
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

type (
	pendingDocument struct {
		StepIndex int    `bson:"step_index"`
		ActionID  string `bson:"action_id"`
		Name      string `bson:"name"`
		Prompt    string `bson:"prompt"`
	}

	suppliedDocument struct {
		StepIndex int            `bson:"step_index"`
		ActionID  string         `bson:"action_id"`
		Values    map[string]any `bson:"values"`
	}

	snapshotDocument struct {
		ConversationID string             `bson:"conversation_id"`
		Version        int                `bson:"version"`
		Instruction    string             `bson:"instruction"`
		PlanDoc        string             `bson:"plan_doc"`
		Pending        []pendingDocument  `bson:"pending"`
		Supplied       []suppliedDocument `bson:"supplied"`
		Reply          string             `bson:"reply"`
		UpdatedAt      time.Time          `bson:"updated_at"`
	}
)

func fromSnapshot(s *conversation.Snapshot) snapshotDocument {
	doc := snapshotDocument{
		ConversationID: s.ID,
		Version:        s.Version,
		Instruction:    s.Instruction,
		PlanDoc:        s.PlanDoc,
		Reply:          s.Reply,
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
	for _, p := range s.Pending {
		doc.Pending = append(doc.Pending, pendingDocument{
			StepIndex: p.StepIndex,
			ActionID:  string(p.ActionID),
			Name:      p.Name,
			Prompt:    p.Prompt,
		})
	}
	for _, sv := range s.Supplied {
		doc.Supplied = append(doc.Supplied, suppliedDocument{
			StepIndex: sv.StepIndex,
			ActionID:  string(sv.ActionID),
			Values:    sv.Values,
		})
	}
	return doc
}

func (d snapshotDocument) toSnapshot() *conversation.Snapshot {
	s := &conversation.Snapshot{
		ID:          d.ConversationID,
		Version:     d.Version,
		Instruction: d.Instruction,
		PlanDoc:     d.PlanDoc,
		Reply:       d.Reply,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, p := range d.Pending {
		s.Pending = append(s.Pending, conversation.Pending{
			StepIndex: p.StepIndex,
			ActionID:  catalog.ID(p.ActionID),
			Name:      p.Name,
			Prompt:    p.Prompt,
		})
	}
	for _, sv := range d.Supplied {
		s.Supplied = append(s.Supplied, conversation.StepValues{
			StepIndex: sv.StepIndex,
			ActionID:  catalog.ID(sv.ActionID),
			Values:    sv.Values,
		})
	}
	return s
}

type collection interface {
	FindOne(ctx context.Context, filter any) singleResult
	ReplaceOne(ctx context.Context, filter, replacement any, upsert bool) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any) singleResult {
	return c.coll.FindOne(ctx, filter)
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, upsert bool) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(upsert))
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error) {
	return v.view.CreateOne(ctx, model)
}
