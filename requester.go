package walkperf

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bingoohuang/gg/pkg/ss"
)

// Requester runs the trials of one benchmark strictly one after another,
// so that every response time is measured on an otherwise idle server.
type Requester struct {
	spec    *Spec
	verbose int

	recordChan chan *ReportRecord
	closeOnce  sync.Once

	benchable Benchable
	config    *Config
}

func (c *Config) NewRequester(spec *Spec, fn Benchable) *Requester {
	maxResult := spec.Total()
	return &Requester{
		spec:       spec,
		verbose:    c.Verbose,
		recordChan: make(chan *ReportRecord, ss.Ifi(maxResult > 8192, 8192, maxResult)),
		benchable:  fn,
		config:     c,
	}
}

func (r *Requester) closeRecord() {
	r.closeOnce.Do(func() {
		close(r.recordChan)
	})
}

// Run invokes every trial in panel, bucket, trial order. The first failing trial
// aborts the run, the measurements taken so far are returned along with the error.
func (r *Requester) Run(ctx context.Context) (*Measurements, error) {
	defer r.closeRecord()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM) // handle ctrl-c
	defer signal.Stop(sigs)

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	m := NewMeasurements(r.spec)
	for panel := 0; panel < r.spec.NumPanels(); panel++ {
		for bucket := 0; bucket < r.spec.NumBuckets(); bucket++ {
			for trial := 0; trial < r.spec.Trials; trial++ {
				if err := ctx.Err(); err != nil {
					return m, fmt.Errorf("%s interrupted after %d trial(s): %w", r.spec.Name, m.Len(), err)
				}

				p := r.spec.Point(panel, bucket, trial)
				result, err := r.runOne(ctx, p)
				if err != nil {
					return m, fmt.Errorf("%s panel %s bucket %s trial %d: %w",
						r.spec.Name, r.spec.PanelTitle(panel), p.BucketLabel, trial, err)
				}
				m.Add(p, result.X, float64(result.Cost.Nanoseconds())/1e6, result.Input)
			}
		}
	}

	return m, nil
}

func (r *Requester) runOne(ctx context.Context, p Point) (*Result, error) {
	rr := recordPool.Get().(*ReportRecord)
	rr.Reset()

	t1 := time.Now()
	result, err := r.benchable.Invoke(ctx, r.config, p)
	if result == nil {
		result = &Result{}
	}
	if result.Cost <= 0 {
		result.Cost = time.Since(t1)
	}

	rr.cost = result.Cost
	if err != nil {
		rr.error = err.Error()
	} else {
		rr.code = result.Status
		rr.readBytes = result.ReadBytes
		if result.Input != "" {
			rr.counting = []string{result.Input}
		}
	}
	r.recordChan <- rr

	if r.verbose >= 2 {
		log.Debug("trial", "point", p, "ms", result.Cost.Milliseconds(), "input", result.Input)
	}
	return result, err
}
