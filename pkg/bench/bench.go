// Package bench holds the smartwalk benchmarks, registered by name on import.
package bench

import (
	"context"
	"fmt"

	"github.com/bingoohuang/jj"
	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/logger"
	"github.com/bingoohuang/walkperf/pkg/sampler"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
	"github.com/samber/lo"
)

var log = logger.New("bench")

func init() {
	walkperf.Register("advice/keywords", func(s *walkperf.Spec) walkperf.Benchable {
		return &AdviceKeywords{base: base{spec: s}}
	})
	walkperf.Register("entity/places", func(s *walkperf.Spec) walkperf.Benchable {
		return &EntityPlaces{base: base{spec: s}}
	})
	walkperf.Register("search/direcs", func(s *walkperf.Spec) walkperf.Benchable {
		return &SearchDirecs{base: base{spec: s}}
	})
	walkperf.Register("search/places", func(s *walkperf.Spec) walkperf.Benchable {
		return &SearchPlaces{base: base{spec: s}}
	})
	walkperf.Register("search/routes", func(s *walkperf.Spec) walkperf.Benchable {
		return &SearchRoutes{base: base{spec: s}}
	})
}

// City is a named bounding box the direction benchmark draws its waypoints from.
type City struct {
	Name string
	BBox store.BBox
}

var Cities = []City{
	{Name: "Prague", BBox: store.BBox{W: 14.18, N: 50.20, E: 14.80, S: 49.90}},
	{Name: "Brno", BBox: store.BBox{W: 16.52, N: 49.27, E: 16.72, S: 49.12}},
	{Name: "Ostrava", BBox: store.BBox{W: 18.14, N: 49.88, E: 18.36, S: 49.75}},
	{Name: "Plzen", BBox: store.BBox{W: 13.29, N: 49.79, E: 13.44, S: 49.69}},
	{Name: "Liberec", BBox: store.BBox{W: 14.99, N: 50.81, E: 15.11, S: 50.68}},
}

// CityBBoxes returns the boxes of Cities, in order.
func CityBBoxes() []store.BBox {
	return lo.Map(Cities, func(c City, _ int) store.BBox { return c.BBox })
}

// CityByName finds a city of Cities.
func CityByName(name string) (City, bool) {
	return lo.Find(Cities, func(c City) bool { return c.Name == name })
}

// base is shared by all benchmarks: the spec, the API client and the dry switch.
type base struct {
	spec    *walkperf.Spec
	client  *smartwalk.Client
	dry     bool
	verbose int
}

func (b *base) Name(context.Context, *walkperf.Config) string { return b.spec.Name }

// connect prepares the client, skipped in dry mode where no request is sent.
func (b *base) connect(c *walkperf.Config) (*walkperf.BenchOption, error) {
	b.dry = c.IsDry()
	b.verbose = c.Verbose
	if b.dry {
		return &walkperf.BenchOption{}, nil
	}

	client, err := smartwalk.New(c.BaseURL, c.Timeout)
	if err != nil {
		return nil, err
	}
	b.client = client
	return &walkperf.BenchOption{}, nil
}

func (b *base) Final(context.Context, *walkperf.Config) error {
	if b.client != nil {
		b.client.Close()
	}
	return nil
}

// get requests uri and turns the timed response into a result.
func (b *base) get(ctx context.Context, uri string) (*walkperf.Result, []byte, error) {
	if b.dry {
		return &walkperf.Result{Input: uri, Status: []string{"dry"}}, nil, nil
	}

	rsp, err := b.client.Get(ctx, uri)
	if err != nil {
		return nil, nil, err
	}

	if b.verbose >= 3 {
		log.Debug("response", "uri", uri, "body", string(jj.Pretty(rsp.Body)))
	}

	return &walkperf.Result{
		Cost:      rsp.Cost,
		Input:     uri,
		Status:    []string{"200"},
		ReadBytes: int64(len(rsp.Body)),
	}, rsp.Body, nil
}

// pick draws an element uniformly.
func pick[T any](src interface{ Intn(int) int }, items []T) T {
	return items[src.Intn(len(items))]
}

// locationsWithin loads the locations of bbox, failing when there are none.
func locationsWithin(ctx context.Context, s store.Store, name string, bbox store.BBox) ([]store.Location, error) {
	locations, err := s.LocationsWithin(ctx, bbox)
	if err != nil {
		return nil, fmt.Errorf("locations within %s: %w", name, err)
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("%w: no locations within %s", store.ErrEmpty, name)
	}
	return locations, nil
}

// keywordPicker loads the keyword corpus and builds its weighted picker.
func keywordPicker(ctx context.Context, s store.Store) (*store.Corpus, *sampler.PrefixPicker, error) {
	keywords, err := s.Keywords(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("keywords: %w", err)
	}

	corpus := store.NewCorpus(keywords)
	if corpus.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: no keywords", store.ErrEmpty)
	}

	picker, err := corpus.Picker(sampler.MaxPrefixLen)
	if err != nil {
		return nil, nil, err
	}
	return corpus, picker, nil
}

// categories draws n keywords by frequency into unfiltered categories.
func categories(src sampler.Source, picker *sampler.PrefixPicker, n int) []smartwalk.Category {
	return smartwalk.Categories(lo.Times(n, func(int) string { return picker.Keyword(src) })...)
}
