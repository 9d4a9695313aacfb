// Package track describes audio tracks and picks which encoded variant of a
// track to stream.
package track

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPlayableVariant is returned when a track has neither a direct URL
// nor any variants.
var ErrNoPlayableVariant = errors.New("no playable variant for track")

// Codec is the container/codec family of a variant.
type Codec string

const (
	CodecWebM Codec = "webm"
	CodecM4A  Codec = "m4a"
)

// AudioVariant is one pre-encoded rendition of a track.
type AudioVariant struct {
	Codec       Codec  `json:"codec" yaml:"codec"`
	BitrateKbps int    `json:"bitrateKbps" yaml:"bitrate_kbps"`
	URL         string `json:"url" yaml:"url"`
}

// AudioTrack is a playable item. URL, when set, takes precedence over the
// variants.
type AudioTrack struct {
	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Variants []AudioVariant `json:"variants,omitempty" yaml:"variants,omitempty"`
	URL      string         `json:"url,omitempty" yaml:"url,omitempty"`
}

// Prober reports whether a MIME type can be played. The result follows the
// media element convention: "", "maybe" or "probably".
type Prober interface {
	CanPlayType(mimeType string) string
}

// PickURL chooses the URL to stream for t. A direct URL wins; otherwise the
// first WebM variant if WebM is playable, then the first M4A variant if MP4
// or AAC is playable, and finally the first variant regardless of support.
func PickURL(t AudioTrack, p Prober) (string, error) {
	if t.URL != "" {
		return t.URL, nil
	}
	if len(t.Variants) == 0 {
		return "", ErrNoPlayableVariant
	}

	webm := first(t.Variants, CodecWebM)
	m4a := first(t.Variants, CodecM4A)

	if webm != nil && canPlay(p, "audio/webm") {
		return webm.URL, nil
	}
	if m4a != nil && (canPlay(p, "audio/mp4") || canPlay(p, "audio/aac")) {
		return m4a.URL, nil
	}
	return t.Variants[0].URL, nil
}

func first(vs []AudioVariant, c Codec) *AudioVariant {
	for i := range vs {
		if vs[i].Codec == c {
			return &vs[i]
		}
	}
	return nil
}

func canPlay(p Prober, mimeType string) bool {
	return p != nil && p.CanPlayType(mimeType) != ""
}

// Validate checks that t could be loaded.
func (t AudioTrack) Validate() error {
	if t.URL != "" {
		return nil
	}
	if len(t.Variants) == 0 {
		return fmt.Errorf("track %q: %w", t.ID, ErrNoPlayableVariant)
	}
	var errs []error
	for i, v := range t.Variants {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("track %q variant %d: %w", t.ID, i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single variant.
func (v AudioVariant) Validate() error {
	switch v.Codec {
	case CodecWebM, CodecM4A:
	default:
		return fmt.Errorf("unknown codec %q", v.Codec)
	}
	if v.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", v.BitrateKbps)
	}
	if strings.TrimSpace(v.URL) == "" {
		return errors.New("url is required")
	}
	return nil
}

// DisplayTitle returns the title, falling back to the ID.
func (t AudioTrack) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}
