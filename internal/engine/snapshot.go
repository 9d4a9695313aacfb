package engine

import (
	"math"

	"github.com/dgnsrekt/focusplayer/internal/debuglog"
	"github.com/dgnsrekt/focusplayer/internal/media"
)

// Snapshot is a point-in-time view of the engine for inspection tools.
type Snapshot struct {
	HasContext   bool
	ContextState string
	SampleRate   int
	AudioTime    float64

	HasTrack        bool
	Src             string
	ReadyState      media.ReadyState
	NetworkState    media.NetworkState
	CurrentTime     float64
	Duration        float64
	BufferedPercent float64
	BufferedBytes   uint64
	PlaybackRate    float64

	IsPlaying bool
	Volume    float64
	Muted     bool
	LoadToken uint64
	Destroyed bool
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		IsPlaying:    e.isPlaying,
		Volume:       e.volume,
		Muted:        e.muted,
		LoadToken:    e.loadToken,
		Destroyed:    e.destroyed,
		PlaybackRate: 1,
	}
	c, el := e.ctx, e.element
	e.mu.Unlock()

	if c != nil {
		s.HasContext = true
		s.ContextState = c.State().String()
		s.SampleRate = c.SampleRate()
		s.AudioTime = c.CurrentTime()
	}
	if el != nil {
		s.Src = el.Src()
		s.HasTrack = s.Src != ""
		s.ReadyState = el.ReadyState()
		s.NetworkState = el.NetworkState()
		s.CurrentTime = el.CurrentTime()
		if d := el.Duration(); !math.IsNaN(d) && !math.IsInf(d, 0) {
			s.Duration = d
		}
		s.BufferedPercent = bufferedPercent(el.Buffered(), s.CurrentTime, el.Duration())
		s.BufferedBytes = el.BufferedBytes()
		s.PlaybackRate = el.PlaybackRate()
	}
	return s
}

// LogState writes the engine, context and element state to the debug
// recorder.
func (e *Engine) LogState() {
	s := e.Snapshot()
	e.rec.Debug("Engine", "current state",
		"isPlaying", s.IsPlaying,
		"volume", s.Volume,
		"muted", s.Muted,
		"hasTrack", s.HasTrack,
		"loadToken", s.LoadToken,
	)

	e.mu.Lock()
	c, el := e.ctx, e.element
	e.mu.Unlock()
	if c != nil {
		e.rec.LogContextState(c)
	}
	if el != nil {
		e.rec.LogElementState(el)
	}
}

// Recorder returns the debug recorder the engine logs to.
func (e *Engine) Recorder() *debuglog.Recorder { return e.rec }
