package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const parentField = "_parent"

// NewMongo will create a document store backed by a mongo database.
// Each collection path maps to the mongo collection named by the path
// head; scoped paths keep their parent key in a "_parent" field.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{DB: db}
}

// Mongo is the mongo-backed document store adapter
type Mongo struct {
	DB *mongo.Database
}

func (m *Mongo) collection(path string) (*mongo.Collection, string) {
	name, parent := SplitCollection(path)
	return m.DB.Collection(name), parent
}

func fromBSON(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if k == "_id" || k == parentField {
			continue
		}
		doc[k] = normalizeValue(v)
	}
	return doc
}

// normalizeValue strips driver types out of decoded documents so
// consumers only ever see plain maps, slices and time values
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := map[string]interface{}{}
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case bson.D:
		out := map[string]interface{}{}
		for _, item := range val {
			out[item.Key] = normalizeValue(item.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case primitive.DateTime:
		return val.Time()
	default:
		return v
	}
}

// Get a document by collection path and key
func (m *Mongo) Get(ctx context.Context, collection, key string) (Document, error) {
	coll, _ := m.collection(collection)
	raw := bson.M{}
	err := coll.FindOne(ctx, bson.M{"_id": key}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrKeyNotFound{Collection: collection, Key: key}
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(raw), nil
}

// Set will create or replace a document, generating a key when none given
func (m *Mongo) Set(ctx context.Context, collection, key string, doc Document) (string, error) {
	coll, parent := m.collection(collection)
	if key == "" {
		key = primitive.NewObjectID().Hex()
	}
	raw := bson.M{}
	for k, v := range doc {
		raw[k] = v
	}
	if parent != "" {
		raw[parentField] = parent
	}
	opts := options.Replace().SetUpsert(true)
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": key}, raw, opts)
	if err != nil {
		return "", err
	}
	return key, nil
}

// Update will merge fields into an existing document.
// A nil field value deletes that field.
func (m *Mongo) Update(ctx context.Context, collection, key string, fields Document) error {
	return m.merge(ctx, collection, key, fields, nil)
}

// Upsert will merge fields into a document, creating it when absent.
// The upsert rides a single UpdateOne, so concurrent upserts on a
// fresh key all land their fields.
func (m *Mongo) Upsert(ctx context.Context, collection, key string, fields Document) error {
	coll, parent := m.collection(collection)
	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if parent != "" {
		update["$setOnInsert"] = bson.M{parentField: parent}
	}
	opts := options.Update().SetUpsert(true)
	_, err := coll.UpdateOne(ctx, bson.M{"_id": key}, update, opts)
	return err
}

// UpdateIf will merge fields only when the stored document still
// carries every field value in expect; the comparison rides on the
// mongo filter, so it is atomic with the write
func (m *Mongo) UpdateIf(ctx context.Context, collection, key string, fields Document, expect Document) error {
	return m.merge(ctx, collection, key, fields, expect)
}

func (m *Mongo) merge(ctx context.Context, collection, key string, fields Document, expect Document) error {
	coll, _ := m.collection(collection)
	filter := bson.M{"_id": key}
	for k, v := range expect {
		filter[k] = v
	}
	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// missed: tell an absent document apart from a failed precondition
	count, err := coll.CountDocuments(ctx, bson.M{"_id": key})
	if err != nil {
		return err
	}
	if count > 0 {
		return &ErrConditionFailed{Collection: collection, Key: key}
	}
	return &ErrKeyNotFound{Collection: collection, Key: key}
}

// Delete a document; removing an absent key is a no-op
func (m *Mongo) Delete(ctx context.Context, collection, key string) error {
	coll, _ := m.collection(collection)
	_, err := coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// ListKeys will return every key in a collection
func (m *Mongo) ListKeys(ctx context.Context, collection string) ([]string, error) {
	coll, parent := m.collection(collection)
	filter := bson.M{}
	if parent != "" {
		filter[parentField] = parent
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	keys := []string{}
	for cursor.Next(ctx) {
		row := struct {
			ID string `bson:"_id"`
		}{}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		keys = append(keys, row.ID)
	}
	return keys, cursor.Err()
}

// Subscribe will open a change stream on a collection.
// Delete events carry no full document, so on scoped collections they
// cannot be attributed to a parent and are dropped from the feed;
// consumers of this core only act on added documents.
func (m *Mongo) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	coll, parent := m.collection(collection)
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := coll.Watch(streamCtx, mongo.Pipeline{}, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &mongoSubscription{
		stream: stream,
		cancel: cancel,
		ctx:    streamCtx,
		parent: parent,
		out:    make(chan Change),
	}
	go sub.pump()
	return sub, nil
}

type mongoSubscription struct {
	stream *mongo.ChangeStream
	cancel context.CancelFunc
	ctx    context.Context
	parent string
	out    chan Change
}

func (s *mongoSubscription) Changes() <-chan Change {
	return s.out
}

// Cancel will close the underlying change stream; the changes channel
// closes once the pump drains
func (s *mongoSubscription) Cancel() {
	s.cancel()
}

func (s *mongoSubscription) pump() {
	defer close(s.out)
	defer s.stream.Close(context.Background())
	for s.stream.Next(s.ctx) {
		event := struct {
			OperationType string `bson:"operationType"`
			DocumentKey   struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
			FullDocument bson.M `bson:"fullDocument"`
		}{}
		if err := s.stream.Decode(&event); err != nil {
			continue
		}
		var kind string
		switch event.OperationType {
		case "insert":
			kind = Added
		case "update", "replace":
			kind = Modified
		case "delete":
			kind = Removed
		default:
			continue
		}
		if s.parent != "" {
			if kind == Removed {
				continue
			}
			if event.FullDocument[parentField] != s.parent {
				continue
			}
		}
		change := Change{Kind: kind, Key: event.DocumentKey.ID}
		if event.FullDocument != nil {
			change.Doc = fromBSON(event.FullDocument)
		}
		select {
		case s.out <- change:
		case <-s.ctx.Done():
			return
		}
	}
}
