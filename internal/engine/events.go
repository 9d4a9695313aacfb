package engine

import (
	"sync"

	"github.com/charmbracelet/log"
)

// EventKind names an engine event.
type EventKind string

const (
	KindStateChange  EventKind = "statechange"
	KindTime         EventKind = "time"
	KindEnded        EventKind = "ended"
	KindError        EventKind = "error"
	KindVolumeChange EventKind = "volumechange"
)

// Event is implemented by every engine event payload.
type Event interface {
	Kind() EventKind
}

// StateChangeEvent reports that playback started or stopped.
type StateChangeEvent struct {
	IsPlaying bool
}

// TimeEvent reports playback progress. Duration is 0 while unknown.
type TimeEvent struct {
	CurrentTime     float64
	Duration        float64
	BufferedPercent float64
}

// EndedEvent reports that the track played to its end.
type EndedEvent struct{}

// ErrorEvent reports a failure that happened outside any pending call.
type ErrorEvent struct {
	Message string
	Err     error
}

// VolumeChangeEvent reports a new volume or mute state.
type VolumeChangeEvent struct {
	Volume float64
	Muted  bool
}

func (StateChangeEvent) Kind() EventKind  { return KindStateChange }
func (TimeEvent) Kind() EventKind         { return KindTime }
func (EndedEvent) Kind() EventKind        { return KindEnded }
func (ErrorEvent) Kind() EventKind        { return KindError }
func (VolumeChangeEvent) Kind() EventKind { return KindVolumeChange }

// Handler receives engine events.
type Handler func(Event)

// ListenerID identifies a registered handler.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// bus keeps handlers per kind in registration order.
type bus struct {
	mu        sync.Mutex
	next      ListenerID
	listeners map[EventKind][]listener
	logger    *log.Logger
}

func newBus(logger *log.Logger) *bus {
	return &bus{listeners: make(map[EventKind][]listener), logger: logger}
}

func (b *bus) add(kind EventKind, fn Handler) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.listeners[kind] = append(b.listeners[kind], listener{id: b.next, fn: fn})
	return b.next
}

func (b *bus) remove(kind EventKind, id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			b.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// publish calls every handler for ev on the calling goroutine. A panicking
// handler is logged and skipped.
func (b *bus) publish(ev Event) {
	b.mu.Lock()
	ls := append([]listener(nil), b.listeners[ev.Kind()]...)
	b.mu.Unlock()

	for _, l := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "event", ev.Kind(), "listener", l.id, "panic", r)
				}
			}()
			l.fn(ev)
		}()
	}
}

// AddEventListener registers fn for events of kind and returns an ID for
// RemoveEventListener.
func (e *Engine) AddEventListener(kind EventKind, fn Handler) ListenerID {
	return e.bus.add(kind, fn)
}

// RemoveEventListener unregisters a handler. Unknown IDs are ignored.
func (e *Engine) RemoveEventListener(kind EventKind, id ListenerID) {
	e.bus.remove(kind, id)
}

// OnStateChange registers a typed statechange handler.
func (e *Engine) OnStateChange(fn func(StateChangeEvent)) ListenerID {
	return e.AddEventListener(KindStateChange, func(ev Event) { fn(ev.(StateChangeEvent)) })
}

// OnTime registers a typed time handler.
func (e *Engine) OnTime(fn func(TimeEvent)) ListenerID {
	return e.AddEventListener(KindTime, func(ev Event) { fn(ev.(TimeEvent)) })
}

// OnEnded registers a typed ended handler.
func (e *Engine) OnEnded(fn func(EndedEvent)) ListenerID {
	return e.AddEventListener(KindEnded, func(ev Event) { fn(ev.(EndedEvent)) })
}

// OnError registers a typed error handler.
func (e *Engine) OnError(fn func(ErrorEvent)) ListenerID {
	return e.AddEventListener(KindError, func(ev Event) { fn(ev.(ErrorEvent)) })
}

// OnVolumeChange registers a typed volumechange handler.
func (e *Engine) OnVolumeChange(fn func(VolumeChangeEvent)) ListenerID {
	return e.AddEventListener(KindVolumeChange, func(ev Event) { fn(ev.(VolumeChangeEvent)) })
}
