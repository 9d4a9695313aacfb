// Package engine is the single-track streaming audio engine. It owns one
// audio graph (context and master gain) and one streaming media element,
// mediates load, playback and volume requests, and republishes element
// state as a small set of typed events.
//
// The engine is a process-wide singleton: use Get, optionally preceded by
// Configure, and Destroy to tear it down.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/focusplayer/internal/audio"
	"github.com/dgnsrekt/focusplayer/internal/debuglog"
	"github.com/dgnsrekt/focusplayer/internal/media"
)

// Engine is a single-track streaming audio controller. All methods are
// safe for concurrent use.
type Engine struct {
	opts   Options
	logger *log.Logger
	rec    *debuglog.Recorder
	bus    *bus

	// mu is never held while publishing events or calling element
	// methods that deliver events synchronously.
	mu        sync.Mutex
	ctx       *audio.Context
	gain      *audio.GainNode
	element   *media.Element
	source    *audio.MediaElementSource
	isPlaying bool
	volume    float64
	muted     bool
	loadToken uint64
	// elementLoad is the element load sequence of the current token.
	elementLoad uint64
	pending     *loadWaiter
	// loaded is set once a load has succeeded.
	loaded    bool
	destroyed bool
}

func newEngine(opts Options) *Engine {
	opts.setDefaults()
	logger := log.WithPrefix("engine")
	return &Engine{
		opts:   opts,
		logger: logger,
		rec:    opts.Recorder,
		bus:    newBus(logger),
		volume: defaultVolume,
	}
}

// ensureContextLocked builds the audio graph on first use: output device,
// context, and a master gain connected to the destination carrying the
// restored volume. The context starts suspended.
func (e *Engine) ensureContextLocked() error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.ctx != nil {
		return nil
	}

	done := e.rec.Time("Engine", "create audio graph")
	defer done()

	dev, err := e.opts.OpenDevice()
	if err != nil {
		e.rec.Error("AudioContext", "no audio output", "err", err)
		return fmt.Errorf("%w: %w", ErrNoAudioContext, err)
	}

	ctx := audio.NewContext(dev)
	e.volume = e.restoreVolume()

	gain := ctx.CreateGain()
	gain.Gain().SetValue(perceptual(e.volume))
	if err := gain.Connect(ctx.Destination()); err != nil {
		_ = ctx.Close()
		return fmt.Errorf("%w: %w", ErrNoAudioContext, err)
	}

	e.ctx, e.gain = ctx, gain
	e.rec.LogContextState(ctx)
	return nil
}

// Init creates the audio graph and resumes the context if it is suspended.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	err := e.ensureContextLocked()
	c := e.ctx
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if c.State() == audio.StateSuspended {
		if err := c.Resume(ctx); err != nil {
			return fmt.Errorf("failed to resume audio context: %w", err)
		}
	}
	return nil
}

// HasMainTrack reports whether a main track has loaded successfully.
func (e *Engine) HasMainTrack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded && e.element != nil
}

// onElementEvent is the persistent element listener. It runs on the
// element's event goroutine, or inline for play and pause.
func (e *Engine) onElementEvent(ev media.Event) {
	switch ev.Type {
	case media.EventCanPlay, media.EventCanPlayThrough:
		e.resolveLoad(ev, nil)

	case media.EventError:
		if ev.Err == nil {
			ev.Err = &media.Error{Code: media.CodeSrcNotSupported}
		}
		if e.resolveLoad(ev, ev.Err) {
			return
		}
		e.mu.Lock()
		current := ev.Load == e.elementLoad
		e.mu.Unlock()
		if !current {
			return
		}
		e.rec.Error("MediaElement", "playback error", "code", int(ev.Err.Code), "err", ev.Err)
		e.bus.publish(ErrorEvent{Message: errorMessage(ev.Err), Err: ev.Err})

	case media.EventPlay:
		e.setPlaying(true)

	case media.EventPause:
		e.setPlaying(false)

	case media.EventEnded:
		e.setPlaying(false)
		e.rec.Info("MediaElement", "ended")
		e.bus.publish(EndedEvent{})

	case media.EventLoadedMetadata, media.EventTimeUpdate:
		e.publishTime()
	}
}

// setPlaying publishes statechange on transitions only, so the pause
// preceding ended does not produce a second event.
func (e *Engine) setPlaying(playing bool) {
	e.mu.Lock()
	changed := e.isPlaying != playing
	e.isPlaying = playing
	e.mu.Unlock()
	if !changed {
		return
	}
	e.rec.Debug("Engine", "state change", "isPlaying", playing)
	e.bus.publish(StateChangeEvent{IsPlaying: playing})
}

func (e *Engine) publishTime() {
	e.bus.publish(TimeEvent{
		CurrentTime:     e.CurrentTime(),
		Duration:        e.Duration(),
		BufferedPercent: e.BufferedPercent(),
	})
}

// IsPlaying reports the playback state as last reported by the element.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPlaying
}

// CurrentTime returns the playback position in seconds.
func (e *Engine) CurrentTime() float64 {
	el := e.currentElement()
	if el == nil {
		return 0
	}
	return el.CurrentTime()
}

// Duration returns the track length in seconds, or 0 while unknown.
func (e *Engine) Duration() float64 {
	el := e.currentElement()
	if el == nil {
		return 0
	}
	d := el.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// BufferedPercent returns the end of the buffered range containing the
// position as a fraction of the duration, in [0, 1]. It is 0 when the
// duration is unknown or nothing around the position is buffered.
func (e *Engine) BufferedPercent() float64 {
	el := e.currentElement()
	if el == nil {
		return 0
	}
	return bufferedPercent(el.Buffered(), el.CurrentTime(), el.Duration())
}

func bufferedPercent(ranges media.TimeRanges, pos, duration float64) float64 {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0
	}
	for i := 0; i < ranges.Len(); i++ {
		if pos >= ranges.Start(i) && pos <= ranges.End(i) {
			return math.Max(0, math.Min(1, ranges.End(i)/duration))
		}
	}
	return 0
}

func (e *Engine) currentElement() *media.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.element
}

func (e *Engine) destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	el, c, w := e.element, e.ctx, e.pending
	e.element, e.ctx, e.gain, e.source, e.pending = nil, nil, nil, nil, nil
	e.isPlaying, e.loaded = false, false
	e.mu.Unlock()

	if w != nil {
		w.finish(ErrDestroyed)
	}
	if el != nil {
		el.Release()
	}
	if c != nil {
		if err := c.Close(); err != nil {
			e.logger.Warn("failed to close audio context", "err", err)
		}
	}
	e.rec.Info("Engine", "destroyed")
}

// newElementLocked creates the media element and attaches the persistent
// listeners.
func (e *Engine) newElementLocked() *media.Element {
	c := e.ctx
	el := media.NewElement(media.Options{
		Format:             media.Format{SampleRate: c.SampleRate(), Channels: c.Channels()},
		Decoder:            e.opts.Decoder,
		Policy:             media.PolicyFunc(func() bool { return c.State() == audio.StateRunning }),
		CrossOrigin:        "anonymous",
		Preload:            "auto",
		Loop:               false,
		PlayThrough:        e.opts.PlayThrough,
		MaxBufferAhead:     e.opts.MaxBufferAhead,
		BackBuffer:         e.opts.BackBuffer,
		TimeUpdateInterval: e.opts.TimeUpdateInterval,
	})
	for _, typ := range []media.EventType{
		media.EventTimeUpdate,
		media.EventEnded,
		media.EventPlay,
		media.EventPause,
		media.EventError,
		media.EventLoadedMetadata,
		media.EventCanPlay,
		media.EventCanPlayThrough,
	} {
		el.AddEventListener(typ, e.onElementEvent)
	}
	return el
}
