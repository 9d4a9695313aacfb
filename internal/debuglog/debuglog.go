// Package debuglog records audio diagnostics in a bounded in-memory ring
// for inspection tools, forwarding every record to charmbracelet/log.
package debuglog

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCapacity is the ring size used by Default.
const DefaultCapacity = 1000

// Event is one recorded diagnostic.
type Event struct {
	Time     time.Time
	Level    log.Level
	Category string
	Message  string
	// Fields holds alternating keys and values.
	Fields []any
	// Stack is captured for error records.
	Stack string
}

// Recorder keeps the most recent events. A disabled recorder still
// forwards to the logger but keeps nothing.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	enabled  bool
	logger   *log.Logger
}

// New returns a recorder holding at most capacity events.
func New(capacity int, enabled bool) *Recorder {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		enabled:  enabled,
		logger:   log.WithPrefix("audio"),
	}
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns the process-wide recorder. It starts disabled.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = New(DefaultCapacity, false)
	})
	return defaultRecorder
}

// SetEnabled turns recording on or off.
func (r *Recorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Enabled reports whether events are being kept.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetCapacity resizes the ring, dropping the oldest events if needed.
func (r *Recorder) SetCapacity(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity = n
	if over := len(r.events) - n; over > 0 {
		r.events = append([]Event(nil), r.events[over:]...)
	}
}

func (r *Recorder) Debug(category, msg string, keyvals ...any) {
	r.record(log.DebugLevel, category, msg, keyvals)
}

func (r *Recorder) Info(category, msg string, keyvals ...any) {
	r.record(log.InfoLevel, category, msg, keyvals)
}

func (r *Recorder) Warn(category, msg string, keyvals ...any) {
	r.record(log.WarnLevel, category, msg, keyvals)
}

func (r *Recorder) Error(category, msg string, keyvals ...any) {
	r.record(log.ErrorLevel, category, msg, keyvals)
}

func (r *Recorder) record(level log.Level, category, msg string, keyvals []any) {
	r.logger.Log(level, msg, append([]any{"category", category}, keyvals...)...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	ev := Event{
		Time:     time.Now(),
		Level:    level,
		Category: category,
		Message:  msg,
		Fields:   append([]any(nil), keyvals...),
	}
	if level == log.ErrorLevel {
		ev.Stack = string(debug.Stack())
	}
	r.events = append(r.events, ev)
	if len(r.events) > r.capacity {
		r.events[0] = Event{}
		r.events = r.events[1:]
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByCategory returns the events recorded under category.
func (r *Recorder) ByCategory(category string) []Event {
	return r.filter(func(ev Event) bool { return ev.Category == category })
}

// ByLevel returns the events recorded at level.
func (r *Recorder) ByLevel(level log.Level) []Event {
	return r.filter(func(ev Event) bool { return ev.Level == level })
}

func (r *Recorder) filter(keep func(Event) bool) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Clear drops every recorded event.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Time records the start of label and returns a func that records its
// completion with the elapsed time.
func (r *Recorder) Time(category, label string) func() {
	if !r.Enabled() {
		return func() {}
	}
	start := time.Now()
	r.Debug(category, "started: "+label)
	return func() {
		elapsed := time.Since(start)
		r.Info(category, "completed: "+label,
			"duration", fmt.Sprintf("%.2fms", float64(elapsed.Microseconds())/1000),
			"durationMs", float64(elapsed.Microseconds())/1000,
		)
	}
}
