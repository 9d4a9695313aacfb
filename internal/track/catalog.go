package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

// Catalog is a list of tracks loaded from a file.
type Catalog struct {
	Tracks []AudioTrack `json:"tracks" yaml:"tracks"`
}

// LoadFile reads a catalog from a YAML or JSON file, picking the format by
// extension, and validates every track.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &c)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &c)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	var errs []error
	for _, t := range c.Tracks {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &c, nil
}

// Find returns the track with the given ID.
func (c *Catalog) Find(id string) (AudioTrack, bool) {
	for _, t := range c.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return AudioTrack{}, false
}

// Search returns the tracks whose ID or title fuzzily matches pattern, best
// match first. An exact ID match always wins.
func (c *Catalog) Search(pattern string) []AudioTrack {
	if t, ok := c.Find(pattern); ok {
		return []AudioTrack{t}
	}
	matches := fuzzy.FindFrom(pattern, searchSource(c.Tracks))
	out := make([]AudioTrack, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.Tracks[m.Index])
	}
	return out
}

type searchSource []AudioTrack

func (s searchSource) String(i int) string {
	if s[i].Title == "" {
		return s[i].ID
	}
	return s[i].ID + " " + s[i].Title
}

func (s searchSource) Len() int { return len(s) }
