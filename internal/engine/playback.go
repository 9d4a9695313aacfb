package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dgnsrekt/focusplayer/internal/audio"
	"github.com/dgnsrekt/focusplayer/internal/media"
)

const (
	minPlaybackRate = 0.25
	maxPlaybackRate = 4.0
)

// Play resumes the audio context if needed and starts playback. The
// statechange event is published before Play returns.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if err := e.ensureContextLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	c, el, loaded := e.ctx, e.element, e.loaded
	e.mu.Unlock()

	if el == nil || !loaded {
		return ErrNoTrackLoaded
	}

	if c.State() == audio.StateSuspended {
		if err := c.Resume(ctx); err != nil {
			// The element's playback policy reports the outcome.
			e.rec.Warn("AudioContext", "resume failed", "err", err)
		}
	}

	if err := el.Play(); err != nil {
		if errors.Is(err, media.ErrNotAllowed) {
			e.rec.Warn("Engine", "playback blocked", "state", c.State().String())
			return fmt.Errorf("%w: %w", ErrPlaybackBlocked, err)
		}
		return err
	}
	e.rec.Debug("Engine", "play")
	return nil
}

// Pause pauses playback. It does nothing before a track was loaded.
func (e *Engine) Pause() {
	if el := e.currentElement(); el != nil {
		el.Pause()
	}
}

// Stop pauses playback and rewinds to the start.
func (e *Engine) Stop() {
	el := e.currentElement()
	if el == nil {
		return
	}
	el.Pause()
	el.SetCurrentTime(0)
}

// Seek moves the playback position, clamped to [0, duration]. While the
// duration is unknown only the lower bound applies.
func (e *Engine) Seek(seconds float64) {
	el := e.currentElement()
	if el == nil || math.IsNaN(seconds) {
		return
	}
	upper := math.Inf(1)
	if d := el.Duration(); !math.IsNaN(d) && !math.IsInf(d, 0) {
		upper = d
	}
	el.SetCurrentTime(math.Max(0, math.Min(seconds, upper)))
}

// SetPlaybackRate sets the playback speed, clamped to [0.25, 4].
func (e *Engine) SetPlaybackRate(rate float64) {
	el := e.currentElement()
	if el == nil || math.IsNaN(rate) {
		return
	}
	el.SetPlaybackRate(math.Max(minPlaybackRate, math.Min(rate, maxPlaybackRate)))
}

// PlaybackRate returns the playback speed.
func (e *Engine) PlaybackRate() float64 {
	el := e.currentElement()
	if el == nil {
		return 1
	}
	return el.PlaybackRate()
}
