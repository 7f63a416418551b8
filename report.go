package walkperf

import (
	"math"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/beorn7/perks/histogram"
	"github.com/beorn7/perks/quantile"
	"github.com/bingoohuang/walkperf/pkg/util"
)

type ReportRecord struct {
	cost      time.Duration
	code      []string
	error     string
	counting  []string
	readBytes int64
}

func (r *ReportRecord) Reset() {
	r.cost = 0
	r.code = nil
	r.counting = nil
	r.error = ""
	r.readBytes = 0
}

var (
	recordPool      = sync.Pool{New: func() interface{} { return new(ReportRecord) }}
	quantiles       = []float64{0.50, 0.75, 0.90, 0.95, 0.99, 0.999}
	quantilesTarget = map[float64]float64{0.50: 0.01, 0.75: 0.01, 0.90: 0.001, 0.95: 0.001, 0.99: 0.001, 0.999: 0.0001}
)

type Stats struct {
	count                int64
	sum, sumSq, min, max float64
}

func (s *Stats) Update(v float64) {
	s.count++
	s.sum += v
	s.sumSq += v * v
	if v < s.min || s.count == 1 {
		s.min = v
	}
	if v > s.max || s.count == 1 {
		s.max = v
	}
}

func (s *Stats) Stddev() float64 {
	div := float64(s.count * (s.count - 1))
	if div == 0 {
		return 0
	}
	num := (float64(s.count) * s.sumSq) - math.Pow(s.sum, 2)
	return math.Sqrt(num / div)
}

func (s *Stats) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// StreamReport aggregates the trial records while a benchmark is running.
type StreamReport struct {
	lock sync.Mutex

	startTime        time.Time
	latencyStats     *Stats
	rpsStats         *Stats
	latencyQuantile  *quantile.Stream
	latencyHistogram *histogram.Histogram
	codes            map[string]int64
	errors           map[string]int64
	inputs           *hyperloglog.Sketch

	readBytes int64
	doneChan  chan struct{}
}

func NewStreamReport() *StreamReport {
	return &StreamReport{
		startTime:        time.Now(),
		latencyQuantile:  quantile.NewTargeted(quantilesTarget),
		latencyHistogram: histogram.New(8),
		codes:            make(map[string]int64, 1),
		errors:           make(map[string]int64, 1),
		doneChan:         make(chan struct{}, 1),
		inputs:           hyperloglog.New16(),
		latencyStats:     &Stats{},
		rpsStats:         &Stats{},
	}
}

func (s *StreamReport) insert(v float64) {
	s.latencyQuantile.Insert(v)
	s.latencyHistogram.Insert(v)
	s.latencyStats.Update(v)
}

// Collect consumes records until the channel is closed, then closes Done.
func (s *StreamReport) Collect(records <-chan *ReportRecord) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		lastCount := int64(0)
		lastTime := s.startTime
		for {
			select {
			case <-ticker.C:
				s.lock.Lock()
				if dc := s.latencyStats.count - lastCount; dc > 0 {
					s.rpsStats.Update(float64(dc) / time.Since(lastTime).Seconds())
					lastCount = s.latencyStats.count
					lastTime = time.Now()
				}
				s.lock.Unlock()
			case <-s.doneChan:
				return
			}
		}
	}()

	for r := range records {
		s.lock.Lock()
		s.insert(float64(r.cost))
		if len(r.code) > 0 {
			s.codes[util.MergeCodes(r.code)]++
		}
		if r.error != "" {
			s.errors[r.error]++
		}
		for _, counting := range r.counting {
			s.inputs.Insert([]byte(counting))
		}
		s.readBytes += r.readBytes
		s.lock.Unlock()
		recordPool.Put(r)
	}

	close(s.doneChan)
}

type SnapshotPercentile struct {
	Percentile float64
	Latency    time.Duration
}

type SnapshotRpsStats struct {
	Min, Mean, StdDev, Max float64
}

type SnapshotStats struct {
	Min, Mean, StdDev, Max time.Duration
}

type SnapshotHistogram struct {
	Mean  time.Duration
	Count int
}

type SnapshotReport struct {
	Elapsed          time.Duration
	Codes, Errors    map[string]int64
	RPS, ElapseInSec float64
	ReadThroughput   float64
	ReadBytes        int64
	Count, Inputs    int64

	Stats       *SnapshotStats
	RpsStats    *SnapshotRpsStats
	Percentiles []*SnapshotPercentile
	Histograms  []*SnapshotHistogram
}

func (s *StreamReport) Snapshot() *SnapshotReport {
	s.lock.Lock()
	defer s.lock.Unlock()

	rs := &SnapshotReport{
		Elapsed: time.Since(s.startTime),
		Count:   s.latencyStats.count,
		Stats: &SnapshotStats{
			Min: time.Duration(s.latencyStats.min), Mean: time.Duration(s.latencyStats.Mean()),
			StdDev: time.Duration(s.latencyStats.Stddev()), Max: time.Duration(s.latencyStats.max),
		},
	}
	if s.rpsStats.count > 0 {
		rs.RpsStats = &SnapshotRpsStats{
			Min: s.rpsStats.min, Mean: s.rpsStats.Mean(),
			StdDev: s.rpsStats.Stddev(), Max: s.rpsStats.max,
		}
	}

	elapseInSec := rs.Elapsed.Seconds()
	rs.RPS = float64(rs.Count) / elapseInSec
	rs.ReadBytes = s.readBytes
	rs.ReadThroughput = float64(s.readBytes) / 1024. / 1024. / elapseInSec
	rs.Inputs = int64(s.inputs.Estimate())
	rs.ElapseInSec = elapseInSec

	rs.Codes = make(map[string]int64, len(s.codes))
	for k, v := range s.codes {
		rs.Codes[k] = v
	}
	rs.Errors = make(map[string]int64, len(s.errors))
	for k, v := range s.errors {
		rs.Errors[k] = v
	}

	rs.Percentiles = make([]*SnapshotPercentile, len(quantiles))
	for i, p := range quantiles {
		rs.Percentiles[i] = &SnapshotPercentile{Percentile: p, Latency: time.Duration(s.latencyQuantile.Query(p))}
	}

	hisBins := s.latencyHistogram.Bins()
	rs.Histograms = make([]*SnapshotHistogram, len(hisBins))
	for i, b := range hisBins {
		rs.Histograms[i] = &SnapshotHistogram{Mean: time.Duration(b.Mean()), Count: b.Count}
	}

	return rs
}

func (s *StreamReport) Done() <-chan struct{} { return s.doneChan }
