package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mitchellh/go-homedir"
	"github.com/vmihailenco/msgpack/v5"
)

// Region holds the locations found within a bounding box.
type Region struct {
	BBox      BBox       `json:"bbox" msgpack:"bbox"`
	Locations []Location `json:"locations" msgpack:"locations"`
}

// Snapshot is an offline copy of a Store. It implements Store itself.
type Snapshot struct {
	Words   []Keyword `json:"keywords" msgpack:"keywords"`
	Places  []string  `json:"places" msgpack:"places"`
	Regions []Region  `json:"regions" msgpack:"regions"`
}

func (s *Snapshot) Keywords(context.Context) ([]Keyword, error) { return s.Words, nil }

func (s *Snapshot) PlaceIdentifiers(context.Context) ([]string, error) { return s.Places, nil }

func (s *Snapshot) Close(context.Context) error { return nil }

// LocationsWithin returns the region stored for b. Otherwise it filters the smallest stored region
// enclosing b, or every region when none does. Duplicates are kept, as the live store keeps them.
func (s *Snapshot) LocationsWithin(_ context.Context, b BBox) ([]Location, error) {
	for _, r := range s.Regions {
		if r.BBox == b {
			return r.Locations, nil
		}
	}

	regions := s.Regions
	if r := s.enclosing(b); r != nil {
		regions = []Region{*r}
	}

	var locations []Location
	for _, r := range regions {
		for _, l := range r.Locations {
			if b.Contains(l) {
				locations = append(locations, l)
			}
		}
	}
	return locations, nil
}

func (s *Snapshot) enclosing(b BBox) *Region {
	var found *Region
	for i, r := range s.Regions {
		if r.BBox.Encloses(b) && (found == nil || found.BBox.Encloses(r.BBox)) {
			found = &s.Regions[i]
		}
	}
	return found
}

// TakeSnapshot copies keywords, place identifiers and the locations within each bbox from src.
func TakeSnapshot(ctx context.Context, src Store, bboxes ...BBox) (*Snapshot, error) {
	var err error
	s := &Snapshot{}
	if s.Words, err = src.Keywords(ctx); err != nil {
		return nil, err
	}
	if s.Places, err = src.PlaceIdentifiers(ctx); err != nil {
		return nil, err
	}
	for _, b := range bboxes {
		locations, err := src.LocationsWithin(ctx, b)
		if err != nil {
			return nil, err
		}
		s.Regions = append(s.Regions, Region{BBox: b, Locations: locations})
	}
	return s, nil
}

func isMsgpackFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp", ".mpk":
		return true
	}
	return false
}

// isJSON sniffs the content type. Large files are only partially inspected by mimetype,
// so an object opening brace also counts.
func isJSON(data []byte) bool {
	if mimetype.Detect(data).Is("application/json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
}

// WriteSnapshot writes s to path, as msgpack for .msgpack/.mp/.mpk files and JSON otherwise.
func WriteSnapshot(path string, s *Snapshot) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}

	var data []byte
	if isMsgpackFile(path) {
		data, err = msgpack.Marshal(s)
	} else {
		data, err = json.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshot reads a snapshot file, detecting JSON or msgpack from its content.
func LoadSnapshot(path string) (*Snapshot, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	s := &Snapshot{}
	if isJSON(data) {
		err = json.Unmarshal(data, s)
	} else {
		err = msgpack.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return s, nil
}
