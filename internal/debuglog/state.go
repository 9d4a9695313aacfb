package debuglog

import (
	"fmt"
	"math"
	"path"

	"github.com/dgnsrekt/focusplayer/internal/audio"
	"github.com/dgnsrekt/focusplayer/internal/media"
)

// LogContextState records the state of an audio context.
func (r *Recorder) LogContextState(c *audio.Context) {
	if c == nil {
		r.Warn("AudioContext", "audio context is nil")
		return
	}
	r.Debug("AudioContext", "current state",
		"state", c.State().String(),
		"sampleRate", c.SampleRate(),
		"currentTime", fmt.Sprintf("%.3f", c.CurrentTime()),
	)
}

// LogElementState records the state of a media element.
func (r *Recorder) LogElementState(e *media.Element) {
	if e == nil {
		r.Warn("MediaElement", "media element is nil")
		return
	}

	src := "none"
	if s := e.Src(); s != "" {
		src = path.Base(s)
	}
	duration := "unknown"
	if d := e.Duration(); !math.IsNaN(d) {
		duration = fmt.Sprintf("%.3f", d)
	}
	var buffered []string
	ranges := e.Buffered()
	for i := 0; i < ranges.Len(); i++ {
		buffered = append(buffered, fmt.Sprintf("%.2f-%.2f", ranges.Start(i), ranges.End(i)))
	}

	keyvals := []any{
		"src", src,
		"readyState", e.ReadyState().String(),
		"networkState", e.NetworkState().String(),
		"currentTime", fmt.Sprintf("%.3f", e.CurrentTime()),
		"duration", duration,
		"paused", e.Paused(),
		"ended", e.Ended(),
		"playbackRate", e.PlaybackRate(),
		"loop", e.Loop(),
		"preload", e.Preload(),
		"crossOrigin", e.CrossOrigin(),
		"buffered", buffered,
	}
	if err := e.Error(); err != nil {
		keyvals = append(keyvals, "error", err.Error(), "errorCode", int(err.Code))
	}
	r.Debug("MediaElement", "current state", keyvals...)
}
