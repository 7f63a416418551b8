package walkperf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/go-homedir"
	"github.com/thoas/go-funk"
)

type ChartKind string

const (
	BoxChart     ChartKind = "box"
	ScatterChart ChartKind = "scatter"
)

// Spec is one parameterized benchmark: panels × buckets × trials.
type Spec struct {
	Name   string `toml:"name"`
	Output string `toml:"output"`
	// Trials per (panel, bucket) cell.
	Trials int `toml:"trials"`

	// Panels is the outer parameter, one sub-chart each. Empty means a single panel.
	Panels      []float64 `toml:"panels"`
	PanelTitles []string  `toml:"panel_titles"`

	// Buckets is the x axis parameter of box charts. BucketLabels name the buckets,
	// and alone they define the buckets, e.g. the cities of search/direcs.
	Buckets      []float64 `toml:"buckets"`
	BucketLabels []string  `toml:"bucket_labels"`

	Chart  ChartKind `toml:"chart"`
	XLabel string    `toml:"x_label"`
	YLabel string    `toml:"y_label"`
	// YFloor keeps the y axis at least this high in ms, so panels stay comparable.
	YFloor float64 `toml:"y_floor"`
}

func (s *Spec) NumPanels() int {
	if n := len(s.Panels); n > 0 {
		return n
	}
	return 1
}

func (s *Spec) NumBuckets() int {
	n := len(s.Buckets)
	if l := len(s.BucketLabels); l > n {
		n = l
	}
	if n == 0 {
		return 1
	}
	return n
}

// Total returns the number of trials of a full run.
func (s *Spec) Total() int { return s.NumPanels() * s.NumBuckets() * s.Trials }

func (s *Spec) PanelValue(i int) float64 {
	if i < len(s.Panels) {
		return s.Panels[i]
	}
	return 0
}

func (s *Spec) PanelTitle(i int) string {
	if i < len(s.PanelTitles) {
		return s.PanelTitles[i]
	}
	if i < len(s.Panels) {
		return formatFloat64(s.Panels[i])
	}
	return s.Name
}

func (s *Spec) BucketValue(i int) float64 {
	if i < len(s.Buckets) {
		return s.Buckets[i]
	}
	return float64(i)
}

func (s *Spec) BucketLabel(i int) string {
	if i < len(s.BucketLabels) {
		return s.BucketLabels[i]
	}
	if i < len(s.Buckets) {
		return formatFloat64(s.Buckets[i])
	}
	return ""
}

// Point returns the address of a trial.
func (s *Spec) Point(panel, bucket, trial int) Point {
	return Point{
		Panel: panel, Bucket: bucket, Trial: trial,
		PanelValue: s.PanelValue(panel), BucketValue: s.BucketValue(bucket), BucketLabel: s.BucketLabel(bucket),
	}
}

// WithTrials returns a copy with the trial count replaced.
func (s *Spec) WithTrials(n int) *Spec {
	c := *s
	c.Trials = n
	return &c
}

func (s *Spec) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("benchmark without name")
	case s.Trials <= 0:
		return fmt.Errorf("%s: trials must be positive, got %d", s.Name, s.Trials)
	case s.Chart != BoxChart && s.Chart != ScatterChart:
		return fmt.Errorf("%s: unknown chart %q", s.Name, s.Chart)
	case s.Output == "":
		return fmt.Errorf("%s: no output name", s.Name)
	}
	return nil
}

const responseTime = "Response time, ms"

// DefaultSuite returns the five smartwalk benchmarks.
func DefaultSuite() []*Spec {
	return []*Spec{
		{
			Name: "advice/keywords", Output: "perf-advice-keywords", Trials: 100,
			Buckets: []float64{1, 3, 5, 7},
			Chart:   BoxChart, XLabel: "Max number of options", YLabel: responseTime,
		},
		{
			Name: "entity/places", Output: "perf-entity-places", Trials: 100,
			Chart: BoxChart, YLabel: responseTime,
		},
		{
			Name: "search/direcs", Output: "perf-search-direcs", Trials: 50,
			Panels:       []float64{0, 1, 3, 5},
			PanelTitles:  []string{"2 points", "3 points", "5 points", "7 points"},
			BucketLabels: []string{"Prague", "Brno", "Ostrava", "Plzen", "Liberec"},
			Chart:        ScatterChart, XLabel: "Distance, km", YLabel: responseTime,
		},
		{
			Name: "search/places", Output: "perf-search-places", Trials: 50,
			Panels:      []float64{1, 2, 3, 0},
			PanelTitles: []string{"1 category", "2 categories", "3 categories", "∞ categories"},
			Buckets:     []float64{1, 3, 5, 7, 10, 15},
			Chart:       BoxChart, XLabel: "Radius, km", YLabel: responseTime, YFloor: 1000,
		},
		{
			Name: "search/routes", Output: "perf-search-routes", Trials: 50,
			Panels:      []float64{1, 2, 3, 5},
			PanelTitles: []string{"1 category", "2 categories", "3 categories", "5 categories"},
			Buckets:     []float64{1, 3, 6, 10, 15, 30},
			Chart:       BoxChart, XLabel: "Max distance, km", YLabel: responseTime, YFloor: 2000,
		},
	}
}

type suiteFile struct {
	Bench []*Spec `toml:"bench"`
}

// LoadSuite overlays the [[bench]] tables of a TOML file on base, matching by name.
// Unknown names are appended as new benchmarks. An empty path returns base.
func LoadSuite(path string, base []*Spec) ([]*Spec, error) {
	if path == "" {
		return base, nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	var f suiteFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode suite %s, err: %w", path, err)
	}

	return mergeSuite(base, f.Bench)
}

func mergeSuite(base, overrides []*Spec) ([]*Spec, error) {
	index := make(map[string]*Spec, len(base))
	for _, s := range base {
		index[s.Name] = s
	}

	for _, o := range overrides {
		if dst, ok := index[o.Name]; ok {
			overlay(dst, o)
			continue
		}
		base = append(base, o)
		index[o.Name] = o
	}

	for _, s := range base {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func overlay(dst, src *Spec) {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.Trials > 0 {
		dst.Trials = src.Trials
	}
	if src.Panels != nil {
		dst.Panels = src.Panels
	}
	if src.PanelTitles != nil {
		dst.PanelTitles = src.PanelTitles
	}
	if src.Buckets != nil {
		dst.Buckets = src.Buckets
	}
	if src.BucketLabels != nil {
		dst.BucketLabels = src.BucketLabels
	}
	if src.Chart != "" {
		dst.Chart = src.Chart
	}
	if src.XLabel != "" {
		dst.XLabel = src.XLabel
	}
	if src.YLabel != "" {
		dst.YLabel = src.YLabel
	}
	if src.YFloor > 0 {
		dst.YFloor = src.YFloor
	}
}

// Select keeps the specs whose names match any of the doublestar patterns, all of them without patterns.
func Select(specs []*Spec, patterns []string) ([]*Spec, error) {
	patterns = funk.FilterString(patterns, func(p string) bool { return strings.TrimSpace(p) != "" })
	if len(patterns) == 0 {
		return specs, nil
	}

	var selected []*Spec
	for _, s := range specs {
		for _, p := range patterns {
			ok, err := doublestar.Match(p, s.Name)
			if err != nil {
				return nil, fmt.Errorf("bad benchmark pattern %s, err: %w", p, err)
			}
			if ok {
				selected = append(selected, s)
				break
			}
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: nothing matches %v", ErrUnknownBenchmark, patterns)
	}
	return selected, nil
}

func formatFloat64(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
