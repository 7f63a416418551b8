package walkperf

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/bingoohuang/gg/pkg/fla9"
	"github.com/bingoohuang/gg/pkg/osx"
	"github.com/bingoohuang/walkperf/pkg/hostinfo"
	"github.com/bingoohuang/walkperf/pkg/logger"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
	"github.com/bingoohuang/walkperf/pkg/util"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
)

var (
	pf = os.Getenv("WALKPERF_PRE")

	pURL       = fla9.String(pf+"url", smartwalk.DefaultBaseURL, "Base URL of the smartwalk API")
	pMongo     = fla9.String(pf+"mongo", store.DefaultURI, "MongoDB connection uri")
	pDatabase  = fla9.String(pf+"db", store.DefaultDatabase, "MongoDB database name")
	pSnapshot  = fla9.String(pf+"snapshot", "", "Read inputs from a snapshot file (.json or .msgpack) instead of MongoDB")
	pBench     = fla9.Strings(pf+"bench,b", nil, "Benchmarks to run as doublestar patterns, e.g. search/** (default all)")
	pConf      = fla9.String(pf+"conf", "", "TOML file overriding the benchmark suite")
	pN         = fla9.Int(pf+"n", 0, "Trials per bucket, 0 keeps each benchmark's own count")
	pSeed      = fla9.Int(pf+"seed", 0, "Random seed, 0 for a time based one")
	pTimeout   = fla9.String(pf+"timeout", "", "Timeout for each request, e.g. 5s or do:5s,dial:1s,read:3s,write:3s")
	pOut       = fla9.String(pf+"out", ".", "Directory for the rendered charts")
	pSize      = fla9.String(pf+"size", "", "Size of each chart, e.g. 900x500")
	pFeatures  = fla9.String(pf+"f", "", "Customized features, e.g. dry (draw inputs only), nochart, open (open charts in browser)")
	pPlotsFile = fla9.String(pf+"plots", "", "Raw samples JSON file, append :dry to skip writing")
	pVerbose   = fla9.Count(pf+"v", 0, "Verbose level, e.g. -v -vv")
	pPort      = fla9.Int(pf+"port", 0, "Serve the rendered charts on this port after the run")
	pName      = fla9.String(pf+"name", "", "Name for this benchmarking run")
)

var log = logger.New("walkperf")

// Config defines the bench configuration.
type Config struct {
	BaseURL   string
	Timeout   *util.Durations
	Trials    int
	Seed      int64
	OutDir    string
	Size      util.WidthHeight
	Verbose   int
	ServePort int
	Name      string

	util.Features
	FeaturesConf string
	Opener       store.Opener
	PlotsFile    string
	PlotsHandle  *util.JSONLogFile

	// Rand is the only randomness source of a run, trials are sequential.
	Rand  *rand.Rand
	RunID string
	Host  *hostinfo.Info
}

type ConfigFn func(*Config)

// WithOpener replaces the store the inputs are drawn from.
func WithOpener(open store.Opener) ConfigFn { return func(c *Config) { c.Opener = open } }

// WithSeed fixes the random seed.
func WithSeed(seed int64) ConfigFn { return func(c *Config) { c.Seed = seed } }

// WithConfig with customized config.
func WithConfig(v *Config) ConfigFn { return func(c *Config) { *c = *v } }

// NewConfig builds the config from the command line flags and fns.
func NewConfig(fns ...ConfigFn) (*Config, error) {
	timeout, err := util.ParseDurations(*pTimeout)
	if err != nil {
		return nil, err
	}

	c := &Config{
		BaseURL: *pURL, Timeout: timeout, Trials: *pN, Seed: int64(*pSeed), OutDir: *pOut,
		Size: util.ParseWidthHeight(*pSize, 900, 500), Verbose: *pVerbose, ServePort: *pPort, Name: *pName,
		FeaturesConf: *pFeatures, PlotsFile: *pPlotsFile,
	}
	if *pSnapshot != "" {
		c.Opener = store.SnapshotOpener(*pSnapshot)
	} else {
		c.Opener = store.MongoOpener(*pMongo, *pDatabase)
	}

	for _, f := range fns {
		f(c)
	}

	return c, c.Setup()
}

// Setup fills the defaults that depend on other fields.
func (c *Config) Setup() (err error) {
	if c.Features == nil {
		c.Features = util.NewFeatures(c.FeaturesConf)
	}
	if c.Timeout == nil {
		c.Timeout = &util.Durations{}
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(c.Seed))
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Size.W == 0 || c.Size.H == 0 {
		c.Size = util.ParseWidthHeight("", 900, 500)
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.OutDir, err = homedir.Expand(c.OutDir); err != nil {
		return err
	}
	logger.SetVerbose(c.Verbose)
	return nil
}

// Description tells what the run is about to do.
func (c *Config) Description(spec *Spec) string {
	desc := "benchmarking " + spec.Name
	if c.Name != "" {
		desc += " " + c.Name
	}
	if c.FeaturesConf != "" {
		desc += fmt.Sprintf(" (%s)", c.FeaturesConf)
	}
	return desc + fmt.Sprintf(" with %d trial(s) against %s.", spec.Total(), c.BaseURL)
}

// Point addresses one trial within a benchmark.
type Point struct {
	Panel       int
	Bucket      int
	Trial       int
	PanelValue  float64
	BucketValue float64
	BucketLabel string
}

// Result is the outcome of one trial.
type Result struct {
	// Cost is the measured round trip, the requester's own timing is used when zero.
	Cost time.Duration
	// X is the scatter abscissa, e.g. a route distance.
	X      float64
	Input  string
	Status []string

	ReadBytes int64
}

type BenchOption struct {
	NoReport bool
}

type Benchable interface {
	Name(context.Context, *Config) string
	// Init draws everything the trials need from the store. The store is closed once Init returns.
	Init(context.Context, *Config, store.Store) (*BenchOption, error)
	Invoke(context.Context, *Config, Point) (*Result, error)
	Final(context.Context, *Config) error
}

type BenchEmpty struct{}

// ErrNoop means there is no operation defined.
var ErrNoop = errors.New("noop")

// ErrUnknownBenchmark means no benchmark is registered under the name.
var ErrUnknownBenchmark = errors.New("unknown benchmark")

func (f *BenchEmpty) Name(context.Context, *Config) string { return "bench" }
func (f *BenchEmpty) Init(context.Context, *Config, store.Store) (*BenchOption, error) {
	return &BenchOption{}, nil
}
func (f *BenchEmpty) Final(context.Context, *Config) error                    { return nil }
func (f *BenchEmpty) Invoke(context.Context, *Config, Point) (*Result, error) { return nil, ErrNoop }

type F func(context.Context, *Config, Point) (*Result, error)

func (f F) Name(context.Context, *Config) string { return reflect.ValueOf(f).Type().Name() }
func (f F) Init(context.Context, *Config, store.Store) (*BenchOption, error) {
	return &BenchOption{}, nil
}
func (f F) Final(context.Context, *Config) error { return nil }
func (f F) Invoke(ctx context.Context, c *Config, p Point) (*Result, error) {
	return f(ctx, c, p)
}

// Factory creates the benchmark for a spec.
type Factory func(*Spec) Benchable

var (
	factoriesLock sync.Mutex
	factories     = make(map[string]Factory)
)

// Register makes a benchmark available by name.
func Register(name string, f Factory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	factories[name] = f
}

// Lookup creates the benchmark registered for spec.Name.
func Lookup(spec *Spec) (Benchable, error) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	if f, ok := factories[spec.Name]; ok {
		return f(spec), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBenchmark, spec.Name)
}

// Registered lists the registered benchmark names.
func Registered() []string {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartBench runs the selected benchmarks of the suite one after another and exits on the first failure.
func StartBench(ctx context.Context, fns ...ConfigFn) {
	c, err := NewConfig(fns...)
	osx.ExitIfErr(err)

	suite, err := LoadSuite(*pConf, DefaultSuite())
	osx.ExitIfErr(err)
	specs, err := Select(suite, *pBench)
	osx.ExitIfErr(err)

	if c.Host, err = hostinfo.Gather(); err != nil {
		log.Warn("host info unavailable", "err", err)
	}

	c.PlotsHandle, err = util.NewJSONLogFile(c.PlotsFile)
	osx.ExitIfErr(err)
	defer c.PlotsHandle.Close()

	var pages []*Page
	for _, spec := range specs {
		fn, err := Lookup(spec)
		osx.ExitIfErr(err)

		_, page, err := c.Run(ctx, spec, fn)
		osx.ExitIfErr(err)
		if page != nil {
			pages = append(pages, page)
		}
	}

	if c.ServePort > 0 && len(pages) > 0 {
		osx.ExitIfErr(ServeCharts(c.ServePort, pages, c.Has("open")))
	}
}

// Run runs one benchmark and returns its measurements and the rendered chart page.
func (c *Config) Run(ctx context.Context, spec *Spec, fn Benchable) (*Measurements, *Page, error) {
	if c.Trials > 0 {
		spec = spec.WithTrials(c.Trials)
	}

	var option *BenchOption
	err := store.With(ctx, c.Opener, func(s store.Store) (err error) {
		option, err = fn.Init(ctx, c, s)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init %s: %w", spec.Name, err)
	}
	if option == nil {
		option = &BenchOption{}
	}

	log.Info(c.Description(spec), "seed", c.Seed, "run", c.RunID)

	requester := c.NewRequester(spec, fn)
	report := NewStreamReport()
	done := make(chan struct{})
	var m *Measurements
	var runErr error
	go func() {
		defer close(done)
		m, runErr = requester.Run(ctx)
	}()
	go report.Collect(requester.recordChan)

	p := c.createTerminalPrinter(spec, option)
	p.PrintLoop(report.Snapshot, report.Done())
	<-done

	if runErr != nil {
		return m, nil, runErr
	}
	p.PrintBuckets(m)

	if err := fn.Final(ctx, c); err != nil {
		return m, nil, err
	}

	if c.PlotsHandle != nil {
		if err := c.PlotsHandle.WriteJSON(c.newRunLog(spec, m)); err != nil {
			log.Warn("write raw samples", "file", c.PlotsHandle.Name, "err", err)
		}
	}

	if c.IsDry() || c.Has("nochart") {
		return m, nil, nil
	}

	page, err := RenderPage(c, spec, m)
	if err != nil {
		return m, nil, err
	}
	if err := page.WriteFile(filepath.Join(c.OutDir, spec.Output+".html")); err != nil {
		return m, nil, err
	}
	log.Info("chart rendered", "file", page.File)
	return m, page, nil
}

// RunLog is one element of the raw samples file.
type RunLog struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Time    string         `json:"time"`
	Seed    int64          `json:"seed"`
	BaseURL string         `json:"baseUrl"`
	Host    *hostinfo.Info `json:"host,omitempty"`
	Samples []Sample       `json:"samples"`
}

func (c *Config) newRunLog(spec *Spec, m *Measurements) *RunLog {
	return &RunLog{
		ID: c.RunID, Name: spec.Name, Time: time.Now().Format(time.RFC3339), Seed: c.Seed,
		BaseURL: c.BaseURL, Host: c.Host, Samples: m.Samples,
	}
}

func (c *Config) createTerminalPrinter(spec *Spec, option *BenchOption) *Printer {
	return &Printer{maxNum: int64(spec.Total()), verbose: c.Verbose, config: c, spec: spec, benchOption: option}
}
