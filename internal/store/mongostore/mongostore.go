// Package mongostore implements store.RemoteStore on MongoDB. Live
// subscriptions use change streams, which need a replica set or sharded
// cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/store"
)

type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     *zap.SugaredLogger
}

func Connect(ctx context.Context, uri, database string, timeout time.Duration, log *zap.SugaredLogger) (*MongoStore, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MongoStore{client: client, db: client.Database(database), timeout: timeout, log: log}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetDocument(ctx context.Context, collection, id string) (*store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &store.Document{Collection: collection, ID: id, Raw: raw}, nil
}

func (s *MongoStore) SetDocument(ctx context.Context, collection, id string, data any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, data, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.updateOne(ctx, collection, id, bson.M{"$set": bson.M(fields)})
}

func (s *MongoStore) AppendToArrayField(ctx context.Context, collection, id, field string, elem any) error {
	return s.updateOne(ctx, collection, id, bson.M{"$addToSet": bson.M{field: elem}})
}

func (s *MongoStore) RemoveFromArrayField(ctx context.Context, collection, id, field string, elem any) error {
	return s.updateOne(ctx, collection, id, bson.M{"$pull": bson.M{field: elem}})
}

func (s *MongoStore) updateOne(ctx context.Context, collection, id string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]*store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{field: value}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*store.Document{}
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		id, _ := raw.Lookup("_id").StringValueOK()
		out = append(out, &store.Document{Collection: collection, ID: id, Raw: raw})
	}
	return out, cur.Err()
}

type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  bson.RawValue `bson:"fullDocument"`
}

// document is the snapshot after the event; absent after a delete.
func (ev changeEvent) document(collection, id string) *store.Document {
	doc := &store.Document{Collection: collection, ID: id}
	if ev.OperationType != "delete" && ev.FullDocument.Type == bson.TypeEmbeddedDocument {
		doc.Raw = ev.FullDocument.Document()
	}
	return doc
}

// SubscribeDocument opens the change stream before reading the current state
// so no write between the two is lost.
func (s *MongoStore) SubscribeDocument(ctx context.Context, collection, id string) (store.Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	coll := s.db.Collection(collection)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}}}
	cs, err := coll.Watch(wctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s/%s: %w", collection, id, err)
	}

	feed := store.NewFeed(cancel)
	go func() {
		defer cs.Close(context.Background())

		initial, err := s.GetDocument(wctx, collection, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			feed.Publish(&store.Document{Collection: collection, ID: id})
		case err != nil:
			feed.Fail(err)
			return
		default:
			feed.Publish(initial)
		}

		for cs.Next(wctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				s.log.Warnw("decode change event", "collection", collection, "id", id, "error", err)
				continue
			}
			feed.Publish(ev.document(collection, id))
		}
		if err := cs.Err(); err != nil && wctx.Err() == nil {
			feed.Fail(err)
			return
		}
		feed.Close()
	}()
	return feed, nil
}
