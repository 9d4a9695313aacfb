package media

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	minPlaybackRate = 1.0 / 16
	maxPlaybackRate = 16.0
	chunkFrames     = 4096
)

// Options configures an Element.
type Options struct {
	Format  Format
	Decoder Decoder
	// Policy gates Play. Nil allows playback unconditionally.
	Policy PlaybackPolicy

	// CrossOrigin is "anonymous" (the default) or "use-credentials".
	CrossOrigin string
	// Preload is "auto" (the default), "metadata" or "none". With "none"
	// the fetch is deferred until Play.
	Preload string
	Loop    bool

	// PlayThrough is the buffered-ahead duration at which the element
	// reports HaveEnoughData.
	PlayThrough time.Duration
	// MaxBufferAhead bounds how far the fetch may run ahead of playback.
	MaxBufferAhead time.Duration
	// BackBuffer is how much already-played audio is kept for short
	// backwards seeks.
	BackBuffer time.Duration
	// TimeUpdateInterval throttles timeupdate events during playback.
	TimeUpdateInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.CrossOrigin == "" {
		o.CrossOrigin = "anonymous"
	}
	if o.Preload == "" {
		o.Preload = "auto"
	}
	if o.PlayThrough <= 0 {
		o.PlayThrough = 5 * time.Second
	}
	if o.MaxBufferAhead <= 0 {
		o.MaxBufferAhead = 30 * time.Second
	}
	if o.MaxBufferAhead < o.PlayThrough {
		o.MaxBufferAhead = o.PlayThrough
	}
	if o.BackBuffer < 0 {
		o.BackBuffer = 0
	}
	if o.TimeUpdateInterval <= 0 {
		o.TimeUpdateInterval = 250 * time.Millisecond
	}
}

func framesOf(d time.Duration, sampleRate int) int64 {
	return int64(d.Seconds() * float64(sampleRate))
}

// Element is a streaming audio element. Create one with NewElement, set
// its source, call Load, and read decoded frames through ReadFrames.
//
// Background events (metadata, readiness, timeupdate, ended, errors) are
// delivered in order on a dedicated goroutine. Play and Pause deliver their
// events on the calling goroutine before returning.
type Element struct {
	opts   Options
	logger *log.Logger
	events *dispatcher

	playThrough int64
	maxAhead    int64
	backBuffer  int64

	mu       sync.Mutex
	cond     *sync.Cond
	src      string
	loadSeq  uint64
	fetchGen uint64
	cancel   context.CancelFunc
	started  bool // a pipeline was started for the current load

	buf          *pcmBuffer
	position     float64 // absolute frame, fractional at non-unit rates
	paused       bool
	ended        bool
	seeking      bool
	waiting      bool
	rate         float64
	duration     float64
	readyState   ReadyState
	networkState NetworkState
	err          *Error
	released     bool

	timeupdate rate.Sometimes
}

// NewElement returns an idle element with no source.
func NewElement(opts Options) *Element {
	opts.setDefaults()
	sr := opts.Format.SampleRate
	e := &Element{
		opts:        opts,
		logger:      log.WithPrefix("media"),
		events:      newDispatcher(),
		playThrough: framesOf(opts.PlayThrough, sr),
		maxAhead:    framesOf(opts.MaxBufferAhead, sr),
		backBuffer:  framesOf(opts.BackBuffer, sr),
		paused:      true,
		rate:        1,
		duration:    math.NaN(),
		timeupdate:  rate.Sometimes{Interval: opts.TimeUpdateInterval},
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// AddEventListener registers fn for events of type typ.
func (e *Element) AddEventListener(typ EventType, fn Listener) {
	e.events.add(typ, fn)
}

// SetSrc sets the resource URL. It takes effect on the next Load.
func (e *Element) SetSrc(src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
}

// Src returns the current resource URL.
func (e *Element) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Load resets the element and starts fetching the current source. It
// returns the sequence number carried by every event of this load.
func (e *Element) Load() uint64 {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return 0
	}
	src := e.src

	e.loadSeq++
	seq := e.loadSeq
	prevCancel := e.cancel
	e.cancel = nil

	var evs []Event
	if e.networkState == NetworkLoading {
		evs = append(evs, Event{Type: EventAbort, Load: seq - 1})
	}
	if e.readyState != HaveNothing || e.buf != nil {
		evs = append(evs, Event{Type: EventEmptied, Load: seq})
	}
	if !e.paused {
		e.paused = true
		evs = append(evs, Event{Type: EventPause, Load: seq})
	}

	e.fetchGen++
	e.started = false
	e.buf = nil
	e.position = 0
	e.ended = false
	e.seeking = false
	e.waiting = false
	e.duration = math.NaN()
	e.readyState = HaveNothing
	e.err = nil

	if e.src == "" {
		e.networkState = NetworkNoSource
		e.err = newError(CodeSrcNotSupported, "no source", nil)
		evs = append(evs,
			Event{Type: EventLoadStart, Load: seq},
			Event{Type: EventError, Load: seq, Err: e.err},
		)
	} else {
		e.networkState = NetworkIdle
		evs = append(evs, Event{Type: EventLoadStart, Load: seq})
	}
	// Queue before the fetch starts so loadstart precedes its events.
	e.events.enqueue(evs...)
	if src != "" && e.opts.Preload != "none" {
		e.startFetchLocked(0)
	}
	e.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	e.cond.Broadcast()
	e.logger.Debug("load", "seq", seq, "src", src)
	return seq
}

// startFetchLocked starts a decode pipeline at frame offset, replacing any
// running one.
func (e *Element) startFetchLocked(offset int64) {
	if e.cancel != nil {
		e.cancel()
	}
	e.fetchGen++
	gen, seq := e.fetchGen, e.loadSeq
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.started = true
	e.buf = newPCMBuffer(e.opts.Format.Channels, offset)
	e.networkState = NetworkLoading

	req := Request{
		URL:         e.src,
		Offset:      float64(offset) / float64(e.opts.Format.SampleRate),
		Format:      e.opts.Format,
		Credentials: e.opts.CrossOrigin == "use-credentials",
	}
	go e.fetch(ctx, gen, seq, req)
}

func (e *Element) fetch(ctx context.Context, gen, seq uint64, req Request) {
	stream, err := e.opts.Decoder.Open(ctx, req)
	if err != nil {
		e.fail(ctx, gen, seq, err)
		return
	}
	defer stream.Close()

	e.mu.Lock()
	if e.fetchGen != gen {
		e.mu.Unlock()
		return
	}
	var evs []Event
	if e.readyState == HaveNothing {
		if d := stream.Duration(); !math.IsNaN(d) {
			e.duration = d
			evs = append(evs, Event{Type: EventDurationChange, Load: seq})
		}
		e.readyState = HaveMetadata
		evs = append(evs, Event{Type: EventLoadedMetadata, Load: seq})
	}
	e.mu.Unlock()
	e.events.enqueue(evs...)

	chunk := make([]float32, chunkFrames*req.Format.Channels)
	for {
		if !e.waitForRoom(ctx, gen) {
			return
		}
		n, err := stream.Read(chunk)
		if n -= n % req.Format.Channels; n > 0 {
			if !e.appendFrames(gen, seq, chunk[:n]) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			e.complete(gen, seq)
			return
		}
		if err != nil {
			e.fail(ctx, gen, seq, err)
			return
		}
	}
}

// waitForRoom blocks while the buffer is far enough ahead of playback.
func (e *Element) waitForRoom(ctx context.Context, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.fetchGen == gen && ctx.Err() == nil && e.buf.ahead(int64(e.position)) >= e.maxAhead {
		e.cond.Wait()
	}
	return e.fetchGen == gen && ctx.Err() == nil
}

func (e *Element) appendFrames(gen, seq uint64, samples []float32) bool {
	e.mu.Lock()
	if e.fetchGen != gen {
		e.mu.Unlock()
		return false
	}
	e.buf.append(samples)

	var evs []Event
	if e.seeking && e.buf.contains(int64(e.position)) {
		e.seeking = false
		evs = append(evs, Event{Type: EventSeeked, Load: seq}, Event{Type: EventTimeUpdate, Load: seq})
	}
	evs = append(evs, e.updateReadyLocked(seq)...)
	e.mu.Unlock()

	e.events.enqueue(evs...)
	return true
}

func (e *Element) complete(gen, seq uint64) {
	e.mu.Lock()
	if e.fetchGen != gen {
		e.mu.Unlock()
		return
	}
	e.buf.complete = true
	e.networkState = NetworkIdle

	var evs []Event
	if end := float64(e.buf.end()) / float64(e.opts.Format.SampleRate); math.IsNaN(e.duration) || e.buf.origin == 0 && e.duration != end {
		e.duration = end
		evs = append(evs, Event{Type: EventDurationChange, Load: seq})
	}
	if e.seeking {
		e.seeking = false
		evs = append(evs, Event{Type: EventSeeked, Load: seq}, Event{Type: EventTimeUpdate, Load: seq})
	}
	evs = append(evs, e.updateReadyLocked(seq)...)
	e.mu.Unlock()

	e.events.enqueue(evs...)
	e.logger.Debug("stream complete", "seq", seq, "duration", e.Duration())
}

func (e *Element) fail(ctx context.Context, gen, seq uint64, err error) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	if e.fetchGen != gen {
		e.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.err = asError(err, CodeSrcNotSupported)
	if e.err.Code == CodeSrcNotSupported && e.readyState == HaveNothing {
		e.networkState = NetworkNoSource
	} else {
		e.networkState = NetworkIdle
	}
	me := e.err
	e.mu.Unlock()

	e.logger.Warn("load failed", "seq", seq, "err", me)
	e.events.enqueue(Event{Type: EventError, Load: seq, Err: me})
}

// updateReadyLocked recomputes the ready state around the position and
// returns the events for upward transitions.
func (e *Element) updateReadyLocked(seq uint64) []Event {
	if e.buf == nil || e.readyState < HaveMetadata {
		return nil
	}
	pos := int64(e.position)
	prev := e.readyState
	next := HaveMetadata
	switch ahead := e.buf.ahead(pos); {
	case e.seeking:
		next = HaveMetadata
	case e.buf.complete && e.buf.contains(pos):
		next = HaveEnoughData
	case ahead >= e.playThrough:
		next = HaveEnoughData
	case ahead > 1:
		next = HaveFutureData
	case ahead > 0:
		next = HaveCurrentData
	}
	e.readyState = next

	var evs []Event
	if prev < HaveCurrentData && next >= HaveCurrentData {
		evs = append(evs, Event{Type: EventLoadedData, Load: seq})
	}
	if prev < HaveFutureData && next >= HaveFutureData {
		evs = append(evs, Event{Type: EventCanPlay, Load: seq})
		if !e.paused && e.waiting {
			e.waiting = false
			evs = append(evs, Event{Type: EventPlaying, Load: seq})
		}
	}
	if prev < HaveEnoughData && next == HaveEnoughData {
		evs = append(evs, Event{Type: EventCanPlayThrough, Load: seq})
	}
	return evs
}

// Play starts playback. The play event is delivered before Play returns.
func (e *Element) Play() error {
	if e.opts.Policy != nil && !e.opts.Policy.AllowPlayback() {
		return ErrNotAllowed
	}

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return ErrReleased
	}
	if e.src == "" {
		e.mu.Unlock()
		return newError(CodeSrcNotSupported, "no source", nil)
	}
	if e.err != nil {
		err := e.err
		e.mu.Unlock()
		return err
	}
	seq := e.loadSeq

	var async []Event
	if !e.started {
		e.startFetchLocked(int64(e.position))
	}
	if e.ended || e.atEndLocked() {
		async = append(async, e.seekLocked(0)...)
	}

	wasPaused := e.paused
	e.paused = false
	if wasPaused {
		if e.readyState >= HaveFutureData {
			async = append(async, Event{Type: EventPlaying, Load: seq})
		} else {
			e.waiting = true
			async = append(async, Event{Type: EventWaiting, Load: seq})
		}
	}
	e.mu.Unlock()

	if wasPaused {
		e.events.deliver(Event{Type: EventPlay, Load: seq})
	}
	e.events.enqueue(async...)
	return nil
}

// Pause stops playback. The pause event is delivered before Pause returns.
func (e *Element) Pause() {
	e.mu.Lock()
	if e.paused || e.released {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.waiting = false
	seq := e.loadSeq
	e.mu.Unlock()

	e.events.deliver(Event{Type: EventPause, Load: seq})
	e.events.enqueue(Event{Type: EventTimeUpdate, Load: seq})
}

func (e *Element) atEndLocked() bool {
	return e.buf != nil && e.buf.complete && int64(e.position) >= e.buf.end()
}

// SetCurrentTime seeks to t seconds. Seeks inside the buffered range are
// immediate; others restart the decode pipeline at the new offset.
func (e *Element) SetCurrentTime(t float64) {
	if math.IsNaN(t) {
		return
	}
	e.mu.Lock()
	evs := e.seekLocked(t)
	e.mu.Unlock()
	e.cond.Broadcast()
	e.events.enqueue(evs...)
}

func (e *Element) seekLocked(t float64) []Event {
	if e.released {
		return nil
	}
	t = math.Max(0, t)
	if !math.IsNaN(e.duration) && !math.IsInf(e.duration, 0) {
		t = math.Min(t, e.duration)
	}
	sr := float64(e.opts.Format.SampleRate)
	frame := int64(math.Round(t * sr))
	seq := e.loadSeq

	if e.buf == nil {
		// Nothing fetched yet; playback will start from here.
		e.position = float64(frame)
		return nil
	}

	e.ended = false
	evs := []Event{{Type: EventSeeking, Load: seq}}
	if e.buf.contains(frame) {
		e.position = float64(frame)
		e.seeking = false
		evs = append(evs, Event{Type: EventTimeUpdate, Load: seq}, Event{Type: EventSeeked, Load: seq})
		return append(evs, e.updateReadyLocked(seq)...)
	}

	e.position = float64(frame)
	e.seeking = true
	if e.readyState > HaveMetadata {
		e.readyState = HaveMetadata
	}
	e.startFetchLocked(frame)
	return evs
}

// CurrentTime returns the playback position in seconds.
func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position / float64(e.opts.Format.SampleRate)
}

// Duration returns the resource length in seconds, NaN when unknown.
func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Buffered returns the buffered time ranges.
func (e *Element) Buffered() TimeRanges {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil || e.buf.frames() == 0 {
		return nil
	}
	sr := float64(e.opts.Format.SampleRate)
	return TimeRanges{{Start: float64(e.buf.start) / sr, End: float64(e.buf.end()) / sr}}
}

// BufferedBytes returns the size of the decoded PCM held in memory.
func (e *Element) BufferedBytes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil {
		return 0
	}
	return uint64(len(e.buf.data)) * 4
}

// SetPlaybackRate sets the playback speed. Values outside the supported
// range are ignored.
func (e *Element) SetPlaybackRate(r float64) {
	if math.IsNaN(r) || r < minPlaybackRate || r > maxPlaybackRate {
		return
	}
	e.mu.Lock()
	if e.rate == r {
		e.mu.Unlock()
		return
	}
	e.rate = r
	seq := e.loadSeq
	e.mu.Unlock()
	e.events.enqueue(Event{Type: EventRateChange, Load: seq})
}

// PlaybackRate returns the playback speed.
func (e *Element) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Element) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

func (e *Element) Seeking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seeking
}

func (e *Element) ReadyState() ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyState
}

func (e *Element) NetworkState() NetworkState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.networkState
}

// Error returns the last load error, or nil.
func (e *Element) Error() *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// CrossOrigin returns the credentials mode.
func (e *Element) CrossOrigin() string { return e.opts.CrossOrigin }

// Preload returns the preload hint.
func (e *Element) Preload() string { return e.opts.Preload }

// Loop reports whether playback restarts at the end.
func (e *Element) Loop() bool { return e.opts.Loop }

// ReadFrames implements the audio graph's frame source. It runs on the
// render path and never blocks on the network.
func (e *Element) ReadFrames(dst []float32, channels int) int {
	e.mu.Lock()
	if e.paused || e.seeking || e.buf == nil || e.released {
		e.mu.Unlock()
		return 0
	}

	frames := len(dst) / channels
	pos := e.position
	n := 0
	for n < frames {
		i0 := int64(pos)
		if !e.buf.contains(i0) || i0 == e.buf.end() {
			break
		}
		frac := float32(pos - float64(i0))
		i1 := i0 + 1
		if i1 >= e.buf.end() {
			i1 = i0
		}
		for c := 0; c < channels; c++ {
			a, b := e.buf.sample(i0, c), e.buf.sample(i1, c)
			dst[n*channels+c] = a + (b-a)*frac
		}
		pos += e.rate
		n++
	}
	e.position = pos
	seq := e.loadSeq
	e.buf.trim(int64(pos) - e.backBuffer)

	var evs []Event
	switch {
	case e.atEndLocked() && e.opts.Loop:
		evs = append(evs, e.seekLocked(0)...)
	case e.atEndLocked():
		e.paused = true
		e.ended = true
		evs = append(evs,
			Event{Type: EventTimeUpdate, Load: seq},
			Event{Type: EventPause, Load: seq},
			Event{Type: EventEnded, Load: seq},
		)
	case n < frames && !e.waiting:
		// Underrun: the fetch has not caught up.
		e.waiting = true
		e.readyState = min(e.readyState, HaveCurrentData)
		evs = append(evs, Event{Type: EventWaiting, Load: seq})
	}

	if n > 0 {
		e.timeupdate.Do(func() {
			evs = append(evs, Event{Type: EventTimeUpdate, Load: seq})
		})
	}
	e.mu.Unlock()

	e.cond.Broadcast()
	e.events.enqueue(evs...)
	return n
}

// Release stops any fetch and event delivery. The element cannot be used
// afterwards.
func (e *Element) Release() {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.fetchGen++
	cancel := e.cancel
	e.cancel = nil
	e.buf = nil
	e.paused = true
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.cond.Broadcast()
	e.events.close()
}
