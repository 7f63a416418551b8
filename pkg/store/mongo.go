package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store over the smartwalk MongoDB database.
type Mongo struct {
	client   *mongo.Client
	places   *mongo.Collection
	keywords *mongo.Collection
}

// Open connects to uri and selects database.
func Open(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", uri, err)
	}

	db := client.Database(database)
	return &Mongo{
		client:   client,
		places:   db.Collection(PlaceCollection),
		keywords: db.Collection(KeywordCollection),
	}, nil
}

func (m *Mongo) Keywords(ctx context.Context) ([]Keyword, error) {
	cur, err := m.keywords.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find keywords: %w", err)
	}

	var keywords []Keyword
	if err := cur.All(ctx, &keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return keywords, nil
}

type placeLocation struct {
	Location Location `bson:"location"`
}

func (m *Mongo) LocationsWithin(ctx context.Context, b BBox) ([]Location, error) {
	filter := bson.D{{Key: "location", Value: bson.D{{Key: "$within", Value: bson.D{
		{Key: "$box", Value: bson.A{bson.A{b.W, b.S}, bson.A{b.E, b.N}}},
	}}}}}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "location", Value: 1}})

	cur, err := m.places.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find places within %+v: %w", b, err)
	}

	var docs []placeLocation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}

	locations := make([]Location, len(docs))
	for i, d := range docs {
		locations[i] = d.Location
	}
	return locations, nil
}

func (m *Mongo) PlaceIdentifiers(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.places.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find place identifiers: %w", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		ids = append(ids, rawID(cur.Current.Lookup("_id")))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate place identifiers: %w", err)
	}
	return ids, nil
}

func rawID(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return v.String()
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
