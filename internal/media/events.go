package media

import (
	"sync"

	"github.com/charmbracelet/log"
)

// EventType names an element event.
type EventType string

const (
	EventLoadStart      EventType = "loadstart"
	EventAbort          EventType = "abort"
	EventEmptied        EventType = "emptied"
	EventDurationChange EventType = "durationchange"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventLoadedData     EventType = "loadeddata"
	EventCanPlay        EventType = "canplay"
	EventCanPlayThrough EventType = "canplaythrough"
	EventPlay           EventType = "play"
	EventPlaying        EventType = "playing"
	EventWaiting        EventType = "waiting"
	EventPause          EventType = "pause"
	EventTimeUpdate     EventType = "timeupdate"
	EventSeeking        EventType = "seeking"
	EventSeeked         EventType = "seeked"
	EventRateChange     EventType = "ratechange"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

// Event is delivered to element listeners. Load is the sequence number of
// the load the event belongs to, as returned by Element.Load.
type Event struct {
	Type EventType
	Load uint64
	// Err is set for EventError.
	Err *Error
}

// Listener receives element events.
type Listener func(Event)

// dispatcher keeps listeners and serializes background events through a
// single goroutine.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[EventType][]Listener

	qmu    sync.Mutex
	queue  []Event
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		listeners: make(map[EventType][]Listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) add(typ EventType, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[typ] = append(d.listeners[typ], fn)
}

// enqueue schedules evs for delivery on the dispatcher goroutine. It never
// blocks, so it is safe to call from the render path.
func (d *dispatcher) enqueue(evs ...Event) {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, evs...)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// deliver calls the listeners for ev on the current goroutine.
func (d *dispatcher) deliver(ev Event) {
	d.mu.Lock()
	fns := append([]Listener(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("media listener panicked", "event", ev.Type, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for range d.wake {
		d.drain()
	}
	d.drain()
}

func (d *dispatcher) drain() {
	for {
		d.qmu.Lock()
		if len(d.queue) == 0 {
			d.qmu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		d.qmu.Unlock()

		d.deliver(ev)
	}
}

// close stops accepting events. Events already queued are still delivered.
func (d *dispatcher) close() {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.wake)
}
