package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgnsrekt/focusplayer/internal/media"
	"github.com/dgnsrekt/focusplayer/internal/track"
)

// loadWaiter is the pending outcome of one LoadMainTrack call.
type loadWaiter struct {
	token       uint64
	elementLoad uint64
	once        sync.Once
	done        chan error
}

func newLoadWaiter(token uint64) *loadWaiter {
	return &loadWaiter{token: token, done: make(chan error, 1)}
}

func (w *loadWaiter) finish(err error) {
	w.once.Do(func() { w.done <- err })
}

// LoadMainTrackFromTrack picks the best variant of t and loads it.
func (e *Engine) LoadMainTrackFromTrack(ctx context.Context, t track.AudioTrack) error {
	url, err := track.PickURL(t, media.NewProbe(e.opts.Decoder))
	if err != nil {
		return err
	}
	e.rec.Info("Engine", "picked variant", "track", t.ID, "url", url)
	return e.LoadMainTrack(ctx, url)
}

// LoadMainTrack points the element at url and waits until it can play. A
// later call supersedes this one, which then returns ErrLoadSuperseded.
// Load failures are returned as *media.Error.
func (e *Engine) LoadMainTrack(ctx context.Context, url string) error {
	e.mu.Lock()
	if err := e.ensureContextLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	e.loadToken++
	token := e.loadToken
	if e.pending != nil {
		e.pending.finish(ErrLoadSuperseded)
	}

	if e.element == nil {
		e.element = e.newElementLocked()
	}
	el := e.element

	w := newLoadWaiter(token)
	e.pending = w

	el.SetSrc(url)
	w.elementLoad = el.Load()
	e.elementLoad = w.elementLoad

	if e.source == nil {
		src, err := e.ctx.CreateMediaElementSource(el)
		if err == nil {
			err = src.Connect(e.gain)
		}
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to connect media element: %w", err)
		}
		e.source = src
	}
	e.mu.Unlock()

	done := e.rec.Time("Engine", "load "+url)
	e.rec.Info("Engine", "loading main track", "url", url, "token", token)

	select {
	case err := <-w.done:
		if err == nil {
			done()
			e.rec.LogElementState(el)
		}
		return err
	case <-ctx.Done():
		e.mu.Lock()
		if e.pending == w {
			e.pending = nil
		}
		e.mu.Unlock()
		return ctx.Err()
	}
}

// resolveLoad settles the pending load if ev belongs to it. It reports
// whether a pending load consumed the event.
func (e *Engine) resolveLoad(ev media.Event, loadErr *media.Error) bool {
	e.mu.Lock()
	w := e.pending
	if w == nil || w.token != e.loadToken || w.elementLoad != ev.Load {
		e.mu.Unlock()
		return false
	}
	e.pending = nil
	if loadErr == nil {
		e.loaded = true
	}
	e.mu.Unlock()

	if loadErr != nil {
		e.rec.Error("Engine", "load failed", "token", w.token, "code", int(loadErr.Code), "message", errorMessage(loadErr))
		w.finish(loadErr)
		return true
	}
	e.rec.Info("Engine", "track ready", "token", w.token, "event", string(ev.Type))
	w.finish(nil)
	return true
}
