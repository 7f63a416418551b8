package walkperf

import (
	"math"
	"sort"

	"github.com/bingoohuang/walkperf/pkg/util"
)

// Sample is one timed trial as written to the raw samples file.
type Sample struct {
	Panel  int          `json:"panel"`
	Bucket int          `json:"bucket"`
	X      util.Float64 `json:"x"`
	Millis util.Float64 `json:"ms"`
	Input  string       `json:"input,omitempty"`
}

// Series holds the points of one (panel, bucket) cell in trial order.
type Series struct {
	X []float64
	Y []float64
}

func (s *Series) Len() int { return len(s.Y) }

// Measurements collects the response times of one benchmark run, indexed by panel and bucket.
type Measurements struct {
	Name    string
	cells   [][]*Series
	Samples []Sample
}

func NewMeasurements(spec *Spec) *Measurements {
	cells := make([][]*Series, spec.NumPanels())
	for i := range cells {
		cells[i] = make([]*Series, spec.NumBuckets())
		for j := range cells[i] {
			cells[i][j] = &Series{}
		}
	}
	return &Measurements{Name: spec.Name, cells: cells, Samples: make([]Sample, 0, spec.Total())}
}

// Add records a response time in ms at p. x is the scatter abscissa, ignored by box charts.
func (m *Measurements) Add(p Point, x, millis float64, input string) {
	s := m.cells[p.Panel][p.Bucket]
	s.X = append(s.X, x)
	s.Y = append(s.Y, millis)
	m.Samples = append(m.Samples, Sample{
		Panel: p.Panel, Bucket: p.Bucket, X: util.Float64(x), Millis: util.Float64(millis), Input: input,
	})
}

func (m *Measurements) Cell(panel, bucket int) *Series { return m.cells[panel][bucket] }

func (m *Measurements) NumPanels() int { return len(m.cells) }

func (m *Measurements) NumBuckets() int {
	if len(m.cells) == 0 {
		return 0
	}
	return len(m.cells[0])
}

func (m *Measurements) Len() int { return len(m.Samples) }

// MaxMillis returns the largest response time of a panel, 0 for an empty one.
func (m *Measurements) MaxMillis(panel int) float64 {
	max := 0.0
	for _, s := range m.cells[panel] {
		for _, y := range s.Y {
			max = math.Max(max, y)
		}
	}
	return max
}

// Box summarizes a distribution the way a box plot draws it.
// The whiskers reach the most extreme values within 1.5 IQR of the quartiles, the rest are outliers.
type Box struct {
	N                         int
	Low, Q1, Median, Q3, High float64
	Outliers                  []float64
}

func NewBox(values []float64) Box {
	if len(values) == 0 {
		return Box{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	b := Box{
		N:      len(sorted),
		Q1:     Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.50),
		Q3:     Quantile(sorted, 0.75),
	}

	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.Low, b.High = b.Q1, b.Q3
	first := true
	for _, v := range sorted {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		if first {
			b.Low = v
			first = false
		}
		b.High = v
	}

	return b
}

// Values returns [low, q1, median, q3, high].
func (b Box) Values() []float64 { return []float64{b.Low, b.Q1, b.Median, b.Q3, b.High} }

// Quantile returns the q quantile of sorted values with linear interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case n == 1 || q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}

	h := float64(len(sorted)-1) * q
	i := int(h)
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}
