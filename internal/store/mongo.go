package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoConnectTimeout = 10 * time.Second
	mongoCollection     = "documents"

	fieldCollection = "_collection"
	fieldDocID      = "_docid"
	fieldData       = "data"
)

// Mongo is a Store over one MongoDB collection. Each document is wrapped as
// {_id: "<collection>/<id>", _collection, _docid, data}.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to uri and uses the given database.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldCollection, Value: 1}, {Key: fieldDocID, Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create mongo index: %w", err)
	}

	return &Mongo{client: client, coll: coll}, nil
}

func mongoID(ref Ref) string {
	return ref.String()
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, ref Ref) (Document, error) {
	var raw bson.M
	err := m.coll.FindOne(ctx, bson.M{"_id": mongoID(ref)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return fromWrapper(raw)
}

// Set implements Store.
func (m *Mongo) Set(ctx context.Context, ref Ref, doc Document, merge bool) error {
	norm, err := NormalizeDocument(doc)
	if err != nil {
		return err
	}

	if !merge {
		_, err = m.coll.ReplaceOne(ctx,
			bson.M{"_id": mongoID(ref)},
			wrapper(ref, norm),
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("set %s: %w", ref, err)
		}
		return nil
	}

	set := bson.D{}
	for _, k := range sortedKeys(norm) {
		set = append(set, bson.E{Key: fieldData + "." + k, Value: toBSON(norm[k])})
	}
	update := bson.D{
		{Key: "$setOnInsert", Value: bson.D{
			{Key: fieldCollection, Value: ref.Collection},
			{Key: fieldDocID, Value: ref.ID},
		}},
	}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	} else {
		update[0].Value = append(update[0].Value.(bson.D), bson.E{Key: fieldData, Value: bson.D{}})
	}

	_, err = m.coll.UpdateOne(ctx, bson.M{"_id": mongoID(ref)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// Create implements Store.
func (m *Mongo) Create(ctx context.Context, ref Ref, doc Document) error {
	norm, err := NormalizeDocument(doc)
	if err != nil {
		return err
	}

	_, err = m.coll.InsertOne(ctx, wrapper(ref, norm))
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", ref, err)
	}
	return nil
}

// Delete implements Store.
func (m *Mongo) Delete(ctx context.Context, ref Ref) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": mongoID(ref)}); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// List implements Store. Entries are ordered by id.
func (m *Mongo) List(ctx context.Context, collection string, opts ListOptions) ([]Entry, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: fieldDocID, Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := m.coll.Find(ctx, bson.M{fieldCollection: collection}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []Entry
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		doc, err := fromWrapper(raw)
		if err != nil {
			return nil, err
		}
		id, _ := raw[fieldDocID].(string)
		out = append(out, Entry{ID: id, Data: doc})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// ArrayUnion implements Store. Embedded documents are written with sorted
// keys so $addToSet equality matches independent of map order.
func (m *Mongo) ArrayUnion(ctx context.Context, ref Ref, field string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}

	update := bson.D{
		{Key: "$setOnInsert", Value: bson.D{
			{Key: fieldCollection, Value: ref.Collection},
			{Key: fieldDocID, Value: ref.ID},
		}},
		{Key: "$addToSet", Value: bson.D{{Key: fieldData + "." + field, Value: toBSON(norm)}}},
	}
	_, err = m.coll.UpdateOne(ctx, bson.M{"_id": mongoID(ref)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("array union %s.%s: %w", ref, field, err)
	}
	return nil
}

// ArrayRemove implements Store. $eq keeps $pull from treating an embedded
// document as a partial-match query.
func (m *Mongo) ArrayRemove(ctx context.Context, ref Ref, field string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}

	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": mongoID(ref)},
		bson.D{{Key: "$pull", Value: bson.D{{
			Key:   fieldData + "." + field,
			Value: bson.D{{Key: "$eq", Value: toBSON(norm)}},
		}}}},
	)
	if err != nil {
		return fmt.Errorf("array remove %s.%s: %w", ref, field, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close implements Store.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func wrapper(ref Ref, doc Document) bson.D {
	return bson.D{
		{Key: "_id", Value: mongoID(ref)},
		{Key: fieldCollection, Value: ref.Collection},
		{Key: fieldDocID, Value: ref.ID},
		{Key: fieldData, Value: toBSON(map[string]any(doc))},
	}
}

func fromWrapper(raw bson.M) (Document, error) {
	data := fromBSON(raw[fieldData])
	if data == nil {
		return Document{}, nil
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, errors.New("mongo: stored data is not an object")
	}
	return NormalizeDocument(Document(obj))
}

// toBSON converts a normalized JSON value to BSON with deterministic key order.
func toBSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		d := make(bson.D, 0, len(t))
		for _, k := range sortedKeys(t) {
			d = append(d, bson.E{Key: k, Value: toBSON(t[k])})
		}
		return d
	case []any:
		a := make(bson.A, len(t))
		for i, el := range t {
			a[i] = toBSON(el)
		}
		return a
	default:
		return v
	}
}

// fromBSON converts decoded BSON back to plain JSON-compatible values.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = fromBSON(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = fromBSON(el)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = fromBSON(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = fromBSON(el)
		}
		return out
	case primitive.DateTime:
		return Timestamp(t.Time())
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
