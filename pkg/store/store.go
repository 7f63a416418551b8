// Package store reads benchmark inputs from the smartwalk document store.
package store

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

const (
	DefaultURI        = "mongodb://localhost:27017"
	DefaultDatabase   = "smartwalk"
	PlaceCollection   = "place"
	KeywordCollection = "keyword"
)

// ErrEmpty means the store has nothing to sample from.
var ErrEmpty = errors.New("empty sample")

// Keyword is a keyword with its observed frequency.
type Keyword struct {
	Keyword string  `json:"keyword" bson:"keyword" msgpack:"keyword"`
	Count   float64 `json:"count" bson:"count" msgpack:"count"`
}

// Location is a WGS84 point.
type Location struct {
	Lon float64 `json:"lon" bson:"lon" msgpack:"lon" toml:"lon"`
	Lat float64 `json:"lat" bson:"lat" msgpack:"lat" toml:"lat"`
}

// BBox is a bounding box given by its west, north, east and south edges.
type BBox struct {
	W float64 `json:"w" msgpack:"w" toml:"w"`
	N float64 `json:"n" msgpack:"n" toml:"n"`
	E float64 `json:"e" msgpack:"e" toml:"e"`
	S float64 `json:"s" msgpack:"s" toml:"s"`
}

// World covers every location the store can hold.
var World = BBox{W: -180.0, N: 85.06, E: 180.0, S: -85.06}

// Contains tells whether l lies within the box, edges included.
func (b BBox) Contains(l Location) bool {
	return l.Lon >= b.W && l.Lon <= b.E && l.Lat >= b.S && l.Lat <= b.N
}

// Encloses tells whether o lies entirely within b.
func (b BBox) Encloses(o BBox) bool {
	return o.W >= b.W && o.E <= b.E && o.S >= b.S && o.N <= b.N
}

// Store is a read-only view over keywords and places.
type Store interface {
	Keywords(ctx context.Context) ([]Keyword, error)
	LocationsWithin(ctx context.Context, bbox BBox) ([]Location, error)
	PlaceIdentifiers(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Opener acquires a Store handle.
type Opener func(ctx context.Context) (Store, error)

// MongoOpener opens a MongoDB backed store.
func MongoOpener(uri, database string) Opener {
	return func(ctx context.Context) (Store, error) { return Open(ctx, uri, database) }
}

// SnapshotOpener opens a snapshot file.
func SnapshotOpener(path string) Opener {
	return func(context.Context) (Store, error) { return LoadSnapshot(path) }
}

// With acquires a handle, passes it to fn and always releases it.
func With(ctx context.Context, open Opener, fn func(Store) error) (err error) {
	s, err := open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, s.Close(ctx))
	}()

	return fn(s)
}
