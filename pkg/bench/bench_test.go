package bench

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
	"github.com/bingoohuang/walkperf/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type fakeAPI struct {
	sync.Mutex
	requests []string
	queries  []string
	args     []map[string]string
}

func (a *fakeAPI) seen() (paths, queries []string, args []map[string]string) {
	a.Lock()
	defer a.Unlock()
	return append(paths, a.requests...), append(queries, a.queries...), append(args, a.args...)
}

// startAPI serves a fake smartwalk API on a local port and returns its base url.
func startAPI(t *testing.T, entityStatus int) (*fakeAPI, string) {
	api := &fakeAPI{}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		_ = fasthttp.Serve(ln, func(ctx *fasthttp.RequestCtx) {
			args := map[string]string{}
			ctx.QueryArgs().VisitAll(func(k, v []byte) { args[string(k)] = string(v) })

			api.Lock()
			api.requests = append(api.requests, string(ctx.Path()))
			api.queries = append(api.queries, args["query"])
			api.args = append(api.args, args)
			api.Unlock()

			path := string(ctx.Path())
			switch {
			case strings.HasPrefix(path, "/entity/places/"):
				ctx.SetStatusCode(entityStatus)
				ctx.SetBodyString(`{}`)
			case path == "/search/direcs":
				ctx.SetBodyString(`[{"distance": 2500.0, "duration": 1800}]`)
			default:
				ctx.SetBodyString(`[]`)
			}
		})
	}()

	return api, "http://" + ln.Addr().String()
}

var (
	keywords = []store.Keyword{{Keyword: "museum", Count: 10}, {Keyword: "park", Count: 5}, {Keyword: "zoo", Count: 1}}
	inCity   = []store.Location{
		{Lon: 14.4, Lat: 50.0}, {Lon: 16.6, Lat: 49.2}, {Lon: 18.2, Lat: 49.8}, {Lon: 13.35, Lat: 49.74}, {Lon: 15.05, Lat: 50.75},
	}
)

func testSnapshot() *store.Snapshot {
	s := &store.Snapshot{Words: keywords, Places: []string{"p1", "p2", "p3"}}
	for i, c := range Cities {
		s.Regions = append(s.Regions, store.Region{BBox: c.BBox, Locations: inCity[i : i+1]})
	}
	return s
}

func newConfig(t *testing.T, snap *store.Snapshot, baseURL string, features ...string) *walkperf.Config {
	c := &walkperf.Config{
		BaseURL: baseURL, Seed: 7, OutDir: t.TempDir(), Trials: 2,
		Features: util.NewFeatures(append(features, "nochart")...),
		Opener:   func(context.Context) (store.Store, error) { return snap, nil },
	}
	require.NoError(t, c.Setup())
	return c
}

func spec(t *testing.T, name string) *walkperf.Spec {
	specs, err := walkperf.Select(walkperf.DefaultSuite(), []string{name})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	return specs[0]
}

func run(t *testing.T, c *walkperf.Config, name string) (*walkperf.Measurements, error) {
	s := spec(t, name)
	fn, err := walkperf.Lookup(s)
	require.NoError(t, err)
	m, _, err := c.Run(context.Background(), s, fn)
	return m, err
}

func TestCities(t *testing.T) {
	assert.Len(t, CityBBoxes(), 5)
	for i, c := range Cities {
		assert.True(t, c.BBox.Contains(inCity[i]), c.Name)
	}

	c, ok := CityByName("Ostrava")
	assert.True(t, ok)
	assert.Equal(t, 18.36, c.BBox.E)
	_, ok = CityByName("Vienna")
	assert.False(t, ok)
}

func TestAdviceKeywords(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusOK)
	m, err := run(t, newConfig(t, testSnapshot(), baseURL), "advice/keywords")
	require.NoError(t, err)
	assert.Equal(t, 8, m.Len())

	paths, _, allArgs := api.seen()
	require.Len(t, allArgs, 8)
	counts := map[string]int{}
	for i, args := range allArgs {
		assert.Equal(t, "/advice/keywords", paths[i])
		prefix := args["prefix"]
		assert.True(t, strings.HasPrefix("museum", prefix) || strings.HasPrefix("park", prefix) ||
			strings.HasPrefix("zoo", prefix), prefix)
		assert.NotEmpty(t, prefix)
		assert.LessOrEqual(t, len([]rune(prefix)), 5)
		counts[args["count"]]++
	}
	assert.Equal(t, map[string]int{"1": 2, "3": 2, "5": 2, "7": 2}, counts)
}

func TestEntityPlaces(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusOK)
	m, err := run(t, newConfig(t, testSnapshot(), baseURL), "entity/places")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	paths, _, _ := api.seen()
	for _, path := range paths {
		assert.Contains(t, []string{"/entity/places/p1", "/entity/places/p2", "/entity/places/p3"}, path)
	}
}

func TestEntityPlacesStatusFails(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusNotFound)
	_, err := run(t, newConfig(t, testSnapshot(), baseURL), "entity/places")

	var se *smartwalk.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fasthttp.StatusNotFound, se.Code)
	paths, _, _ := api.seen()
	assert.Len(t, paths, 1)
}

func TestSearchDirecs(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusOK)
	c := newConfig(t, testSnapshot(), baseURL)
	c.Trials = 1

	m, err := run(t, c, "search/direcs")
	require.NoError(t, err)
	assert.Equal(t, 20, m.Len())
	assert.Equal(t, []float64{2.5}, m.Cell(3, 4).X)

	_, queries, _ := api.seen()
	waypoints := map[int]int{}
	for i, query := range queries {
		var q smartwalk.DirecsQuery
		require.NoError(t, json.Unmarshal([]byte(query), &q))
		waypoints[len(q.Waypoints)]++

		// trials go panel by panel, city by city
		city := inCity[i%5]
		for _, w := range q.Waypoints {
			assert.Equal(t, city, w)
		}
	}
	assert.Equal(t, map[int]int{2: 5, 3: 5, 5: 5, 7: 5}, waypoints)
}

func TestSearchPlaces(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusOK)
	c := newConfig(t, testSnapshot(), baseURL)
	c.Trials = 1

	m, err := run(t, c, "search/places")
	require.NoError(t, err)
	assert.Equal(t, 24, m.Len())

	paths, queries, _ := api.seen()
	categories := map[int]int{}
	for i, query := range queries {
		assert.Equal(t, "/search/places", paths[i])
		var q smartwalk.PlacesQuery
		require.NoError(t, json.Unmarshal([]byte(query), &q))
		assert.Contains(t, []float64{1000, 3000, 5000, 7000, 10000, 15000}, q.Radius)
		assert.Contains(t, inCity, q.Center)
		assert.NotNil(t, q.Categories)
		categories[len(q.Categories)]++
		for _, cat := range q.Categories {
			assert.Contains(t, []string{"museum", "park", "zoo"}, cat.Keyword)
		}
	}
	assert.Equal(t, map[int]int{0: 6, 1: 6, 2: 6, 3: 6}, categories)
	assert.Contains(t, queries[len(queries)-1], `"categories":[]`)
}

func TestSearchRoutes(t *testing.T) {
	api, baseURL := startAPI(t, fasthttp.StatusOK)
	c := newConfig(t, testSnapshot(), baseURL)
	c.Trials = 1

	m, err := run(t, c, "search/routes")
	require.NoError(t, err)
	assert.Equal(t, 24, m.Len())

	_, queries, _ := api.seen()
	for _, query := range queries {
		var q smartwalk.RoutesQuery
		require.NoError(t, json.Unmarshal([]byte(query), &q))
		assert.Equal(t, q.Source, q.Target)
		assert.Contains(t, []float64{1000, 3000, 6000, 10000, 15000, 30000}, q.MaxDistance)
		assert.Contains(t, []int{1, 2, 3, 5}, len(q.Categories))
		assert.Empty(t, q.Arrows)
	}
	assert.Contains(t, queries[0], `"arrows":[]`)
}

func TestDryRunSendsNothing(t *testing.T) {
	c := newConfig(t, testSnapshot(), "http://127.0.0.1:1", "dry")
	m, err := run(t, c, "search/places")
	require.NoError(t, err)
	assert.Equal(t, 4*6*2, m.Len())
	for _, s := range m.Samples {
		assert.True(t, strings.HasPrefix(s.Input, "/search/places?query="))
	}
}

func TestEmptyStore(t *testing.T) {
	c := newConfig(t, &store.Snapshot{}, "http://127.0.0.1:1")
	for _, name := range []string{"advice/keywords", "entity/places", "search/direcs", "search/places", "search/routes"} {
		_, err := run(t, c, name)
		assert.True(t, errors.Is(err, store.ErrEmpty), name)
	}
}

func TestSameSeedSameInputs(t *testing.T) {
	inputs := func() []string {
		c := newConfig(t, testSnapshot(), "http://127.0.0.1:1", "dry")
		m, err := run(t, c, "advice/keywords")
		require.NoError(t, err)
		var in []string
		for _, s := range m.Samples {
			in = append(in, s.Input)
		}
		return in
	}

	assert.Equal(t, inputs(), inputs())
}
