package smartwalk

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bingoohuang/jj"
	"github.com/bingoohuang/walkperf/pkg/store"
)

// Filters narrows a category. Benchmarks always send it empty.
type Filters struct{}

type Category struct {
	Keyword string  `json:"keyword"`
	Filters Filters `json:"filters"`
}

// Arrow orders two categories within a route by their indices.
type Arrow struct {
	Tail int `json:"tail"`
	Head int `json:"head"`
}

type DirecsQuery struct {
	Waypoints []store.Location `json:"waypoints"`
}

type PlacesQuery struct {
	Center     store.Location `json:"center"`
	Radius     float64        `json:"radius"`
	Categories []Category     `json:"categories"`
}

type RoutesQuery struct {
	Source      store.Location `json:"source"`
	Target      store.Location `json:"target"`
	MaxDistance float64        `json:"maxDistance"`
	Categories  []Category     `json:"categories"`
	Arrows      []Arrow        `json:"arrows"`
}

// Categories wraps keywords into unfiltered categories, never returning nil.
func Categories(keywords ...string) []Category {
	categories := make([]Category, len(keywords))
	for i, k := range keywords {
		categories[i] = Category{Keyword: k}
	}
	return categories
}

// AdviceKeywordsURI asks for at most count keyword completions of prefix.
func AdviceKeywordsURI(prefix string, count int) string {
	return "/advice/keywords?prefix=" + url.QueryEscape(prefix) + "&count=" + strconv.Itoa(count)
}

// EntityPlaceURI fetches the full representation of one place.
func EntityPlaceURI(smartID string) string {
	return "/entity/places/" + url.PathEscape(smartID)
}

func SearchDirecsURI(q DirecsQuery) (string, error) { return queryURI("/search/direcs", q) }

func SearchPlacesURI(q PlacesQuery) (string, error) {
	if q.Categories == nil {
		q.Categories = []Category{}
	}
	return queryURI("/search/places", q)
}

func SearchRoutesURI(q RoutesQuery) (string, error) {
	if q.Categories == nil {
		q.Categories = []Category{}
	}
	if q.Arrows == nil {
		q.Arrows = []Arrow{}
	}
	return queryURI("/search/routes", q)
}

func queryURI(path string, q interface{}) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("serialize %s query: %w", path, err)
	}
	return path + "?query=" + url.QueryEscape(string(data)), nil
}

// FirstDistance returns the distance in metres of the first direction in a search/direcs response.
func FirstDistance(body []byte) (float64, error) {
	v := jj.GetBytes(body, "0.distance")
	if !v.Exists() {
		return 0, fmt.Errorf("no distance in response %.64s", body)
	}
	return v.Float(), nil
}
