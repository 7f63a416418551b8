package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bingoohuang/gg/pkg/ss"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/multierr"
)

type Float64 float64

func (f Float64) MarshalJSON() ([]byte, error) {
	b := []byte(strconv.FormatFloat(float64(f), 'f', 3, 64))
	i := len(b) - 1
	for ; i >= 0; i-- {
		if b[i] != '0' {
			if b[i] != '.' {
				i++
			}
			break
		}
	}

	return b[:i], nil
}

// JSONLogFile keeps a JSON array on disk and appends one element per WriteJSON.
type JSONLogFile struct {
	F *os.File
	*sync.Mutex
	Dry     bool
	Closed  bool
	HasRows bool
	Name    string
}

const DrySuffix = ":dry"

func IsDrySuffix(file string) bool { return strings.HasSuffix(file, DrySuffix) }

func TrimDrySuffix(file string) string { return strings.TrimSuffix(file, DrySuffix) }

// NewJSONLogFile opens or creates file. A :dry suffix disables writing.
func NewJSONLogFile(file string) (*JSONLogFile, error) {
	dry := IsDrySuffix(file)
	if file == "" {
		file = "walkperf_" + time.Now().Format(`200601021504`) + ".json"
	} else if dry {
		file = TrimDrySuffix(file)
	}

	file, err := homedir.Expand(file)
	if err != nil {
		return nil, err
	}

	logFile := &JSONLogFile{Name: file, Mutex: &sync.Mutex{}, Dry: dry}
	if dry {
		return logFile, nil
	}

	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", file, err)
	}
	logFile.F = f
	n, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek log file %s: %w", file, err)
	}
	if logFile.HasRows, err = hasRows(f, n); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read log file %s: %w", file, err)
	}
	if !logFile.HasRows {
		if err := resetArray(f); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return logFile, nil
}

// emptyArrayMax bounds the size of a file that may still hold only an empty array.
const emptyArrayMax = 64

// hasRows tells whether the n bytes of f hold anything besides an empty array.
func hasRows(f *os.File, n int64) (bool, error) {
	if n == 0 {
		return false, nil
	}
	if n > emptyArrayMax {
		return true, nil
	}

	data := make([]byte, n)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return false, err
	}
	return strings.Join(strings.Fields(string(data)), "") != "[]", nil
}

// resetArray rewrites f as the empty array header WriteJSON appends to.
func resetArray(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := f.WriteString("[]\n")
	return err
}

// WriteJSON appends v as the last element of the array.
func (f *JSONLogFile) WriteJSON(v interface{}) error {
	if f.F == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f.Lock()
	defer f.Unlock()

	_, err0 := f.F.Seek(-2, io.SeekEnd) // \n]
	var err1 error
	if !f.HasRows {
		f.HasRows = true
		_, err1 = f.F.WriteString("\n")
	} else {
		_, err1 = f.F.WriteString(",\n")
	}
	_, err2 := f.F.Write(data)
	_, err3 := f.F.WriteString("\n]")
	return multierr.Combine(err0, err1, err2, err3)
}

func (f JSONLogFile) IsDry() bool { return f.Dry }

func (f *JSONLogFile) Close() error {
	if f.F == nil {
		return nil
	}

	f.Lock()
	defer f.Unlock()
	f.Closed = true
	return f.F.Close()
}

func NewFeatures(features ...string) Features {
	m := make(Features)
	for _, f := range features {
		m.Setup(f)
	}
	return m
}

// Features defines a feature map.
type Features map[string]bool

// Setup sets up a feature map by features string, which separates feature names by comma.
func (f *Features) Setup(features string) {
	for _, feature := range strings.Split(strings.ToLower(features), ",") {
		if v := strings.TrimSpace(feature); v != "" {
			(*f)[v] = true
		}
	}
}

// IsDry tells the trials should only draw inputs without requesting.
func (f *Features) IsDry() bool { return f.Has("dry") }

// Has tells the feature map contains a features.
func (f *Features) Has(feature string) bool {
	return (*f)[feature] || (*f)[strings.ToLower(feature)]
}

// HasAny tells the feature map contains any of the features.
func (f *Features) HasAny(features ...string) bool {
	for _, feature := range features {
		if f.Has(feature) {
			return true
		}
	}

	return false
}

type WidthHeight struct {
	W, H int
}

func (h WidthHeight) WidthPx() string  { return fmt.Sprintf("%dpx", h.W) }
func (h WidthHeight) HeightPx() string { return fmt.Sprintf("%dpx", h.H) }

func ParseWidthHeight(val string, defaultWidth, defaultHeight int) WidthHeight {
	wh := WidthHeight{
		W: defaultWidth,
		H: defaultHeight,
	}
	if val != "" {
		val = strings.ToLower(val)
		parts := strings.SplitN(val, "x", 2)
		if len(parts) == 2 {
			if v := ss.ParseInt(parts[0]); v > 0 {
				wh.W = v
			}
			if v := ss.ParseInt(parts[1]); v > 0 {
				wh.H = v
			}
		}
	}
	return wh
}

type Durations struct {
	Default time.Duration
	Map     map[string]time.Duration
}

func (d *Durations) Get(keys ...string) time.Duration {
	for _, key := range keys {
		if v, ok := d.Map[strings.ToLower(key)]; ok {
			return v
		}
	}
	return d.Default
}

// ParseDurations parses expression like do:5s,dial:5s,write:5s,read:5s to Durations struct.
func ParseDurations(s string) (*Durations, error) {
	d := &Durations{Map: make(map[string]time.Duration)}
	var err error
	for _, one := range ss.Split(s, ss.WithSeps(","), ss.WithTrimSpace(true), ss.WithIgnoreEmpty(true)) {
		if p := strings.IndexRune(one, ':'); p > 0 {
			k, v := strings.TrimSpace(one[:p]), strings.TrimSpace(one[p+1:])
			d.Map[strings.ToLower(k)], err = time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("failed to parse expressions %s, err: %w", s, err)
			}
		} else {
			if d.Default, err = time.ParseDuration(one); err != nil {
				return nil, fmt.Errorf("failed to parse expressions %s, err: %w", s, err)
			}
		}
	}

	return d, nil
}

func MergeCodes(codes []string) string {
	n := 0
	last := ""
	merged := ""
	for _, code := range codes {
		if code != last {
			if last != "" {
				merged = mergeCodes(merged, n, last)
			}
			last = code
			n = 1
		} else {
			n++
		}
	}

	if n > 0 {
		merged = mergeCodes(merged, n, last)
	}

	return merged
}

func mergeCodes(merged string, n int, last string) string {
	if merged != "" {
		merged += ","
	}
	if n > 1 {
		merged += fmt.Sprintf("%sx%d", last, n)
	} else {
		merged += last
	}
	return merged
}
