package bench

import (
	"context"
	"fmt"

	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/sampler"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
)

// SearchDirecs asks for directions through panel+2 waypoints drawn within the bucket's city,
// and plots the response time against the distance of the first direction.
type SearchDirecs struct {
	base
	cities [][]store.Location
}

func (d *SearchDirecs) Init(ctx context.Context, c *walkperf.Config, s store.Store) (*walkperf.BenchOption, error) {
	d.cities = make([][]store.Location, d.spec.NumBuckets())
	for i := range d.cities {
		name := d.spec.BucketLabel(i)
		city, ok := CityByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown city %q", name)
		}

		locations, err := locationsWithin(ctx, s, city.Name, city.BBox)
		if err != nil {
			return nil, err
		}
		d.cities[i] = locations
		log.Debug("locations loaded", "bench", d.spec.Name, "city", city.Name, "locations", len(locations))
	}

	return d.connect(c)
}

func (d *SearchDirecs) Invoke(ctx context.Context, c *walkperf.Config, p walkperf.Point) (*walkperf.Result, error) {
	city := d.cities[p.Bucket]
	waypoints := make([]store.Location, int(p.PanelValue)+2)
	for i := range waypoints {
		waypoints[i] = pick(c.Rand, city)
	}

	uri, err := smartwalk.SearchDirecsURI(smartwalk.DirecsQuery{Waypoints: waypoints})
	if err != nil {
		return nil, err
	}

	result, body, err := d.get(ctx, uri)
	if err != nil || d.dry {
		return result, err
	}

	metres, err := smartwalk.FirstDistance(body)
	if err != nil {
		return nil, err
	}
	result.X = metres / 1000
	return result, nil
}

// SearchPlaces looks for places around a random location. Panels are the number of
// categories, 0 meaning no category at all; buckets are the radius in km.
type SearchPlaces struct {
	base
	locations []store.Location
	picker    *sampler.PrefixPicker
}

func (sp *SearchPlaces) Init(ctx context.Context, c *walkperf.Config, s store.Store) (*walkperf.BenchOption, error) {
	locations, err := locationsWithin(ctx, s, "world", store.World)
	if err != nil {
		return nil, err
	}
	if _, sp.picker, err = keywordPicker(ctx, s); err != nil {
		return nil, err
	}
	sp.locations = locations

	return sp.connect(c)
}

func (sp *SearchPlaces) Invoke(ctx context.Context, c *walkperf.Config, p walkperf.Point) (*walkperf.Result, error) {
	uri, err := smartwalk.SearchPlacesURI(smartwalk.PlacesQuery{
		Center:     pick(c.Rand, sp.locations),
		Radius:     p.BucketValue * 1000,
		Categories: categories(c.Rand, sp.picker, int(p.PanelValue)),
	})
	if err != nil {
		return nil, err
	}

	result, _, err := sp.get(ctx, uri)
	return result, err
}

// SearchRoutes looks for round trip routes from a random location. Panels are the number of
// categories to visit, buckets the maximum route distance in km.
type SearchRoutes struct {
	base
	locations []store.Location
	picker    *sampler.PrefixPicker
}

func (sr *SearchRoutes) Init(ctx context.Context, c *walkperf.Config, s store.Store) (*walkperf.BenchOption, error) {
	locations, err := locationsWithin(ctx, s, "world", store.World)
	if err != nil {
		return nil, err
	}
	if _, sr.picker, err = keywordPicker(ctx, s); err != nil {
		return nil, err
	}
	sr.locations = locations

	return sr.connect(c)
}

func (sr *SearchRoutes) Invoke(ctx context.Context, c *walkperf.Config, p walkperf.Point) (*walkperf.Result, error) {
	point := pick(c.Rand, sr.locations)
	uri, err := smartwalk.SearchRoutesURI(smartwalk.RoutesQuery{
		Source:      point,
		Target:      point,
		MaxDistance: p.BucketValue * 1000,
		Categories:  categories(c.Rand, sr.picker, int(p.PanelValue)),
	})
	if err != nil {
		return nil, err
	}

	result, _, err := sr.get(ctx, uri)
	return result, err
}
