package bench

import (
	"context"
	"fmt"

	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
)

// EntityPlaces fetches places picked uniformly by identifier.
type EntityPlaces struct {
	base
	places []string
}

func (e *EntityPlaces) Init(ctx context.Context, c *walkperf.Config, s store.Store) (*walkperf.BenchOption, error) {
	places, err := s.PlaceIdentifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("place identifiers: %w", err)
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("%w: no places", store.ErrEmpty)
	}
	e.places = places
	log.Debug("places loaded", "bench", e.spec.Name, "places", len(places))

	return e.connect(c)
}

func (e *EntityPlaces) Invoke(ctx context.Context, c *walkperf.Config, _ walkperf.Point) (*walkperf.Result, error) {
	id := pick(c.Rand, e.places)
	result, _, err := e.get(ctx, smartwalk.EntityPlaceURI(id))
	if err != nil {
		return nil, err
	}
	result.Input = id
	return result, nil
}
