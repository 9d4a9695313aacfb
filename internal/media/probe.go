package media

import (
	"mime"
	"strings"
)

// Probe answers capability questions without loading anything.
type Probe struct {
	dec Decoder
}

// NewProbe returns a probe backed by dec.
func NewProbe(dec Decoder) *Probe {
	return &Probe{dec: dec}
}

// CanPlayType reports how likely the type is to play: "" when it cannot,
// "maybe" when only the container is known to be supported, and
// "probably" when the codecs parameter was checked as well.
func (p *Probe) CanPlayType(mimeType string) string {
	if p == nil || p.dec == nil {
		return ""
	}
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	if !p.dec.Supports(mimeType) {
		return ""
	}
	if strings.TrimSpace(params["codecs"]) != "" {
		return "probably"
	}
	return "maybe"
}
