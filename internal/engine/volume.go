package engine

import (
	"errors"
	"math"
	"strconv"

	"github.com/dgnsrekt/focusplayer/internal/storage"
)

const (
	// VolumeKey is the storage key holding the master volume.
	VolumeKey     = "audio.masterVolume"
	defaultVolume = 0.5

	rampDuration     = 0.06
	rampTimeConstant = 0.05
)

// perceptual maps a linear volume to gain.
func perceptual(v float64) float64 { return v * v }

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// restoreVolume reads the persisted volume. Missing or unreadable values
// fall back to the default.
func (e *Engine) restoreVolume() float64 {
	raw, err := e.opts.Store.Get(VolumeKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.rec.Warn("Engine", "failed to read saved volume", "err", err)
		}
		return defaultVolume
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		e.rec.Warn("Engine", "ignoring invalid saved volume", "value", raw)
		return defaultVolume
	}
	return clampVolume(v)
}

// SetMasterVolume sets and persists the volume in [0, 1]. The gain ramps to
// the new level unless muted. A persistence failure is logged, not
// returned.
func (e *Engine) SetMasterVolume(v float64) error {
	e.mu.Lock()
	if err := e.ensureContextLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	v = clampVolume(v)
	e.volume = v
	target := perceptual(v)
	if e.muted {
		target = 0
	}
	rampParam(e.gain.Gain(), target, e.ctx.CurrentTime())
	muted := e.muted
	e.mu.Unlock()

	if err := e.opts.Store.Set(VolumeKey, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		e.rec.Warn("Engine", "failed to save volume", "err", err)
	}

	e.rec.Debug("Engine", "volume", "volume", v, "muted", muted)
	e.bus.publish(VolumeChangeEvent{Volume: v, Muted: muted})
	return nil
}

// MasterVolume returns the volume in [0, 1].
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Muted reports whether output is muted.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Mute silences output without changing the stored volume.
func (e *Engine) Mute() error { return e.setMuted(true) }

// Unmute restores output to the stored volume.
func (e *Engine) Unmute() error { return e.setMuted(false) }

func (e *Engine) setMuted(muted bool) error {
	e.mu.Lock()
	if err := e.ensureContextLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.muted = muted
	target := perceptual(e.volume)
	if muted {
		target = 0
	}
	rampParam(e.gain.Gain(), target, e.ctx.CurrentTime())
	v := e.volume
	e.mu.Unlock()

	e.rec.Debug("Engine", "mute", "muted", muted)
	e.bus.publish(VolumeChangeEvent{Volume: v, Muted: muted})
	return nil
}

type valueSetter interface {
	SetValue(v float64)
}

type scheduleCanceler interface {
	CancelScheduledValues(t float64)
}

type targetScheduler interface {
	SetTargetAtTime(target, start, timeConstant float64)
}

type linearRamper interface {
	LinearRampToValueAtTime(v, end float64)
}

// rampParam moves p to target over about 60ms starting at now, using the
// smoothest automation p supports.
func rampParam(p valueSetter, target, now float64) {
	if c, ok := p.(scheduleCanceler); ok {
		c.CancelScheduledValues(now)
	}
	switch r := p.(type) {
	case targetScheduler:
		r.SetTargetAtTime(target, now, math.Min(rampDuration, rampTimeConstant))
	case linearRamper:
		r.LinearRampToValueAtTime(target, now+rampDuration)
	default:
		p.SetValue(target)
	}
}
