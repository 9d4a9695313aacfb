package audio

import (
	"math"
	"sort"
	"sync"
)

type automationKind int

const (
	setValueEvent automationKind = iota
	linearRampEvent
	setTargetEvent
)

type automationEvent struct {
	kind         automationKind
	time         float64 // event time; end time for linear ramps
	start        float64 // linear ramps only
	value        float64
	timeConstant float64
}

// Param is an automatable value evaluated against the audio clock. It
// mirrors the scheduling model of a Web Audio AudioParam: values may be set
// at a time, linearly ramped to a value by a time, or approach a target
// exponentially from a start time.
type Param struct {
	mu     sync.Mutex
	base   float64
	events []automationEvent
	clock  func() float64
}

func newParam(v float64, clock func() float64) *Param {
	return &Param{base: v, clock: clock}
}

// Value returns the value at the current audio clock time.
func (p *Param) Value() float64 {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAtLocked(now)
}

// ValueAt returns the value the automation yields at time t.
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAtLocked(t)
}

// SetValue drops any scheduled automation and jumps to v.
func (p *Param) SetValue(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.base = v
}

// SetValueAtTime schedules a step to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(automationEvent{kind: setValueEvent, time: t, value: v})
}

// LinearRampToValueAtTime schedules a linear ramp that reaches v at time
// end. The ramp starts at the previous event, or now when there is none.
func (p *Param) LinearRampToValueAtTime(v, end float64) {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	start := now
	for _, e := range p.events {
		if e.time <= end && e.time > start {
			start = e.time
		}
	}
	p.insertLocked(automationEvent{kind: linearRampEvent, time: end, start: start, value: v})
}

// SetTargetAtTime starts an exponential approach to target at time start.
// A non-positive time constant degrades to SetValueAtTime.
func (p *Param) SetTargetAtTime(target, start, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(target, start)
		return
	}
	p.insert(automationEvent{kind: setTargetEvent, time: start, value: target, timeConstant: timeConstant})
}

// CancelScheduledValues removes every event scheduled at or after t. The
// value at t is preserved, and an exponential approach already under way
// keeps going.
func (p *Param) CancelScheduledValues(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.events[:0]
	for _, e := range p.events {
		if e.time < t {
			kept = append(kept, e)
		}
	}
	p.events = kept

	// Collapse history into a single base value so the event list stays short.
	v := p.valueAtLocked(t)
	var active *automationEvent
	if n := len(p.events); n > 0 && p.events[n-1].kind == setTargetEvent {
		last := p.events[n-1]
		active = &last
	}
	p.base = v
	p.events = p.events[:0]
	if active != nil {
		active.time = t
		p.events = append(p.events, *active)
	}
}

// Scheduled returns the number of pending automation events.
func (p *Param) Scheduled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// fill writes one value per frame starting at time start.
func (p *Param) fill(dst []float64, start, step float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		for i := range dst {
			dst[i] = p.base
		}
		return
	}
	for i := range dst {
		dst[i] = p.valueAtLocked(start + float64(i)*step)
	}
}

func (p *Param) insert(e automationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertLocked(e)
}

// insertLocked keeps events ordered by time. An event of the same kind at
// the same time is replaced.
func (p *Param) insertLocked(e automationEvent) {
	for i := range p.events {
		if p.events[i].time == e.time && p.events[i].kind == e.kind {
			p.events[i] = e
			return
		}
	}
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, automationEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func (p *Param) valueAtLocked(t float64) float64 {
	v := p.base
	prev := math.Inf(-1)
	for i, e := range p.events {
		switch e.kind {
		case setValueEvent:
			if t < e.time {
				return v
			}
			v, prev = e.value, e.time

		case linearRampEvent:
			if t >= e.time {
				v, prev = e.value, e.time
				continue
			}
			start := math.Max(e.start, prev)
			if t <= start || e.time <= start {
				return v
			}
			return v + (e.value-v)*(t-start)/(e.time-start)

		case setTargetEvent:
			if t < e.time {
				return v
			}
			end := t
			if i+1 < len(p.events) {
				next := p.events[i+1]
				boundary := next.time
				if next.kind == linearRampEvent {
					boundary = math.Max(next.start, e.time)
				}
				end = math.Min(end, boundary)
			}
			v = e.value + (v-e.value)*math.Exp(-(end-e.time)/e.timeConstant)
			if end >= t {
				return v
			}
			prev = end
		}
	}
	return v
}

func (p *Param) now() float64 {
	if p.clock == nil {
		return 0
	}
	return p.clock()
}
