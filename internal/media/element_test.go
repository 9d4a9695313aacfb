package media

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"
)

const testRate = 1000

// fakeDecoder serves synthetic streams of a fixed length.
type fakeDecoder struct {
	mu       sync.Mutex
	frames   int64 // <0 streams forever
	duration float64
	openErr  error
	readErr  error // returned once the frames run out instead of io.EOF
	requests []Request
	mimes    map[string]bool
}

func (d *fakeDecoder) Open(ctx context.Context, req Request) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.openErr != nil {
		return nil, d.openErr
	}
	start := int64(req.Offset * float64(req.Format.SampleRate))
	left := int64(-1)
	if d.frames >= 0 {
		left = max(0, d.frames-start)
	}
	return &fakeStream{ctx: ctx, left: left, channels: req.Format.Channels, duration: d.duration, readErr: d.readErr}, nil
}

func (d *fakeDecoder) Supports(mimeType string) bool { return d.mimes[mimeType] }

func (d *fakeDecoder) opened() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

type fakeStream struct {
	ctx      context.Context
	left     int64
	channels int
	duration float64
	readErr  error
}

func (s *fakeStream) Duration() float64 { return s.duration }

func (s *fakeStream) Read(p []float32) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	frames := int64(len(p) / s.channels)
	if s.left >= 0 && frames > s.left {
		frames = s.left
	}
	for i := 0; i < int(frames)*s.channels; i++ {
		p[i] = 0.5
	}
	if s.left >= 0 {
		s.left -= frames
		if s.left == 0 {
			if s.readErr != nil {
				return int(frames) * s.channels, s.readErr
			}
			return int(frames) * s.channels, io.EOF
		}
	}
	return int(frames) * s.channels, nil
}

func (s *fakeStream) Close() error { return nil }

type recorder struct {
	mu  sync.Mutex
	evs []Event
	ch  chan Event
}

func record(e *Element, types ...EventType) *recorder {
	r := &recorder{ch: make(chan Event, 256)}
	for _, typ := range types {
		e.AddEventListener(typ, func(ev Event) {
			r.mu.Lock()
			r.evs = append(r.evs, ev)
			r.mu.Unlock()
			select {
			case r.ch <- ev:
			default:
			}
		})
	}
	return r
}

func (r *recorder) wait(t *testing.T, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.evs))
	for i, ev := range r.evs {
		out[i] = ev.Type
	}
	return out
}

func newTestElement(t *testing.T, dec Decoder, mod func(*Options)) *Element {
	t.Helper()
	opts := Options{
		Format:      Format{SampleRate: testRate, Channels: 1},
		Decoder:     dec,
		PlayThrough: 500 * time.Millisecond,
		BackBuffer:  time.Second,
	}
	if mod != nil {
		mod(&opts)
	}
	e := NewElement(opts)
	t.Cleanup(e.Release)
	return e
}

// waitComplete blocks until the whole stream has been decoded.
func waitComplete(t *testing.T, e *Element) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.NetworkState() != NetworkIdle {
		if time.Now().After(deadline) {
			t.Fatal("stream never completed")
		}
		time.Sleep(time.Millisecond)
	}
}

func drain(e *Element, frames int) int {
	buf := make([]float32, 100)
	total := 0
	for total < frames {
		n := e.ReadFrames(buf, 1)
		if n == 0 {
			break
		}
		total += n
	}
	return total
}

func TestElementLoadBecomesReady(t *testing.T) {
	dec := &fakeDecoder{frames: 2000, duration: 2}
	e := newTestElement(t, dec, nil)
	r := record(e, EventLoadStart, EventLoadedMetadata, EventCanPlay, EventCanPlayThrough)

	e.SetSrc("https://example.com/a.webm")
	seq := e.Load()
	if seq != 1 {
		t.Fatalf("first load sequence = %d, want 1", seq)
	}

	ev := r.wait(t, EventCanPlayThrough)
	if ev.Load != seq {
		t.Errorf("canplaythrough carries load %d, want %d", ev.Load, seq)
	}
	if got := e.ReadyState(); got != HaveEnoughData {
		t.Errorf("ReadyState = %v, want HAVE_ENOUGH_DATA", got)
	}
	if got := e.Duration(); got != 2 {
		t.Errorf("Duration = %v, want 2", got)
	}

	types := r.types()
	if len(types) < 2 || types[0] != EventLoadStart || types[1] != EventLoadedMetadata {
		t.Errorf("unexpected event order %v", types)
	}
}

func TestElementUnknownDurationResolvedAtEnd(t *testing.T) {
	dec := &fakeDecoder{frames: 1500, duration: math.NaN()}
	e := newTestElement(t, dec, nil)
	r := record(e, EventDurationChange, EventCanPlayThrough)

	e.SetSrc("https://example.com/live")
	e.Load()
	r.wait(t, EventDurationChange)
	if got := e.Duration(); got != 1.5 {
		t.Errorf("Duration = %v, want 1.5", got)
	}
}

func TestElementLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		want    ErrorCode
	}{
		{"network", newError(CodeNetwork, "fetch failed", nil), CodeNetwork},
		{"unsupported", newError(CodeSrcNotSupported, "HTTP 404 Not Found", nil), CodeSrcNotSupported},
		{"unclassified", errors.New("boom"), CodeSrcNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestElement(t, &fakeDecoder{openErr: tt.openErr}, nil)
			r := record(e, EventError)
			e.SetSrc("https://example.com/a")
			seq := e.Load()

			ev := r.wait(t, EventError)
			if ev.Load != seq || ev.Err == nil {
				t.Fatalf("error event = %+v", ev)
			}
			if ev.Err.Code != tt.want {
				t.Errorf("code = %v, want %v", ev.Err.Code, tt.want)
			}
			if e.Error() == nil {
				t.Error("Error() should report the failure")
			}
		})
	}
}

func TestElementDecodeErrorMidStream(t *testing.T) {
	dec := &fakeDecoder{frames: 300, duration: 10, readErr: newError(CodeDecode, "corrupt frame", nil)}
	e := newTestElement(t, dec, nil)
	r := record(e, EventError)
	e.SetSrc("https://example.com/a")
	e.Load()

	if ev := r.wait(t, EventError); ev.Err.Code != CodeDecode {
		t.Errorf("code = %v, want decode", ev.Err.Code)
	}
}

func TestElementLoadWithoutSource(t *testing.T) {
	e := newTestElement(t, &fakeDecoder{}, nil)
	r := record(e, EventError)
	e.Load()

	if ev := r.wait(t, EventError); ev.Err.Code != CodeSrcNotSupported {
		t.Errorf("code = %v, want source not supported", ev.Err.Code)
	}
	if e.NetworkState() != NetworkNoSource {
		t.Errorf("NetworkState = %v", e.NetworkState())
	}
	if err := e.Play(); err == nil {
		t.Error("Play without a source should fail")
	}
}

func TestElementSupersededLoadSequence(t *testing.T) {
	dec := &fakeDecoder{frames: -1, duration: math.NaN()}
	e := newTestElement(t, dec, nil)
	r := record(e, EventCanPlay)

	e.SetSrc("https://example.com/a")
	first := e.Load()
	e.SetSrc("https://example.com/b")
	second := e.Load()
	if second != first+1 {
		t.Fatalf("sequence %d after %d", second, first)
	}

	for {
		ev := r.wait(t, EventCanPlay)
		if ev.Load == second {
			break
		}
		if ev.Load != first {
			t.Fatalf("unexpected load %d", ev.Load)
		}
	}
	if e.Src() != "https://example.com/b" {
		t.Errorf("Src = %q", e.Src())
	}
}

func TestElementPlayPauseDeliverSynchronously(t *testing.T) {
	dec := &fakeDecoder{frames: 2000, duration: 2}
	e := newTestElement(t, dec, nil)

	var mu sync.Mutex
	var got []EventType
	for _, typ := range []EventType{EventPlay, EventPause} {
		e.AddEventListener(typ, func(ev Event) {
			mu.Lock()
			got = append(got, ev.Type)
			mu.Unlock()
		})
	}

	e.SetSrc("https://example.com/a")
	e.Load()
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	if len(got) != 1 || got[0] != EventPlay {
		t.Errorf("after Play got %v", got)
	}
	mu.Unlock()

	e.Pause()
	mu.Lock()
	if len(got) != 2 || got[1] != EventPause {
		t.Errorf("after Pause got %v", got)
	}
	mu.Unlock()

	// Redundant calls fire nothing.
	e.Pause()
	mu.Lock()
	if len(got) != 2 {
		t.Errorf("second Pause fired an event: %v", got)
	}
	mu.Unlock()
}

func TestElementPolicyBlocksPlay(t *testing.T) {
	e := newTestElement(t, &fakeDecoder{frames: 100}, func(o *Options) {
		o.Policy = PolicyFunc(func() bool { return false })
	})
	e.SetSrc("https://example.com/a")
	e.Load()
	if err := e.Play(); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Play = %v, want ErrNotAllowed", err)
	}
	if !e.Paused() {
		t.Error("element should stay paused")
	}
}

func TestElementPlaysToEnd(t *testing.T) {
	dec := &fakeDecoder{frames: 1000, duration: 1}
	e := newTestElement(t, dec, nil)
	r := record(e, EventCanPlayThrough, EventPause, EventEnded)

	e.SetSrc("https://example.com/a")
	e.Load()
	r.wait(t, EventCanPlayThrough)
	waitComplete(t, e)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	if n := drain(e, 5000); n != 1000 {
		t.Errorf("read %d frames, want 1000", n)
	}
	r.wait(t, EventEnded)

	if !e.Paused() || !e.Ended() {
		t.Errorf("paused=%v ended=%v after end of stream", e.Paused(), e.Ended())
	}
	types := r.types()
	if n := len(types); n < 2 || types[n-2] != EventPause || types[n-1] != EventEnded {
		t.Errorf("expected pause then ended, got %v", types)
	}
}

func TestElementPlaybackRate(t *testing.T) {
	dec := &fakeDecoder{frames: 2000, duration: 2}
	e := newTestElement(t, dec, nil)
	r := record(e, EventCanPlayThrough)
	e.SetSrc("https://example.com/a")
	e.Load()
	r.wait(t, EventCanPlayThrough)

	e.SetPlaybackRate(2)
	e.SetPlaybackRate(100) // out of range, ignored
	if got := e.PlaybackRate(); got != 2 {
		t.Fatalf("PlaybackRate = %v, want 2", got)
	}
	_ = e.Play()
	buf := make([]float32, 100)
	e.ReadFrames(buf, 1)
	if got := e.CurrentTime(); got != 0.2 {
		t.Errorf("CurrentTime = %v, want 0.2", got)
	}
}

func TestElementSeek(t *testing.T) {
	dec := &fakeDecoder{frames: -1, duration: 60}
	e := newTestElement(t, dec, func(o *Options) {
		o.MaxBufferAhead = 2 * time.Second
		o.BackBuffer = 0
	})
	r := record(e, EventCanPlayThrough, EventSeeked)
	e.SetSrc("https://example.com/a")
	e.Load()
	r.wait(t, EventCanPlayThrough)

	// Inside the buffer: no new pipeline.
	e.SetCurrentTime(0.25)
	r.wait(t, EventSeeked)
	if got := e.CurrentTime(); got != 0.25 {
		t.Errorf("CurrentTime = %v, want 0.25", got)
	}
	if n := len(dec.opened()); n != 1 {
		t.Errorf("local seek opened %d pipelines", n)
	}

	// Far ahead: restart at the offset.
	e.SetCurrentTime(30)
	r.wait(t, EventSeeked)
	reqs := dec.opened()
	if len(reqs) != 2 || reqs[1].Offset != 30 {
		t.Fatalf("requests = %+v, want a restart at 30s", reqs)
	}
	if got := e.CurrentTime(); got != 30 {
		t.Errorf("CurrentTime = %v, want 30", got)
	}

	// Past the duration clamps.
	e.SetCurrentTime(1e6)
	if got := e.CurrentTime(); got != 60 {
		t.Errorf("CurrentTime = %v, want 60", got)
	}
}

func TestElementBackpressure(t *testing.T) {
	dec := &fakeDecoder{frames: -1, duration: math.NaN()}
	e := newTestElement(t, dec, func(o *Options) {
		o.MaxBufferAhead = time.Second
	})
	r := record(e, EventCanPlayThrough)
	e.SetSrc("https://example.com/radio")
	e.Load()
	r.wait(t, EventCanPlayThrough)
	time.Sleep(50 * time.Millisecond)

	limit := uint64(testRate+chunkFrames) * 4
	if got := e.BufferedBytes(); got > limit {
		t.Errorf("buffered %d bytes, limit %d", got, limit)
	}
}

func TestElementLoop(t *testing.T) {
	dec := &fakeDecoder{frames: 200, duration: 0.2}
	e := newTestElement(t, dec, func(o *Options) { o.Loop = true })
	r := record(e, EventCanPlayThrough, EventEnded)
	e.SetSrc("https://example.com/a")
	e.Load()
	r.wait(t, EventCanPlayThrough)
	waitComplete(t, e)
	_ = e.Play()

	drain(e, 200)
	if e.Ended() || e.Paused() {
		t.Errorf("looping element ended=%v paused=%v", e.Ended(), e.Paused())
	}
	if got := e.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime after wrap = %v, want 0", got)
	}
}

func TestElementReleaseStopsEverything(t *testing.T) {
	dec := &fakeDecoder{frames: -1}
	e := newTestElement(t, dec, nil)
	e.SetSrc("https://example.com/a")
	e.Load()
	e.Release()

	if err := e.Play(); !errors.Is(err, ErrReleased) {
		t.Errorf("Play after Release = %v", err)
	}
	if n := e.ReadFrames(make([]float32, 10), 1); n != 0 {
		t.Errorf("ReadFrames after Release = %d", n)
	}
	e.Release()
}

func TestPCMBufferTrim(t *testing.T) {
	b := newPCMBuffer(2, 10)
	b.append(make([]float32, 20)) // frames 10..19
	if b.end() != 20 || !b.contains(15) || b.contains(20) {
		t.Fatalf("end=%d", b.end())
	}
	b.trim(14)
	if b.start != 14 || b.frames() != 6 {
		t.Errorf("after trim start=%d frames=%d", b.start, b.frames())
	}
	b.trim(100)
	if b.frames() != 0 || b.start != 20 {
		t.Errorf("over-trim start=%d frames=%d", b.start, b.frames())
	}
	b.complete = true
	if !b.contains(20) {
		t.Error("end of a complete buffer should be contained")
	}
}

func TestProbeCanPlayType(t *testing.T) {
	p := NewProbe(&fakeDecoder{mimes: map[string]bool{
		"audio/webm":                true,
		`audio/webm; codecs="opus"`: true,
	}})
	tests := map[string]string{
		"audio/webm":                "maybe",
		`audio/webm; codecs="opus"`: "probably",
		"audio/mp4":                 "",
		"not a type":                "",
	}
	for in, want := range tests {
		if got := p.CanPlayType(in); got != want {
			t.Errorf("CanPlayType(%q) = %q, want %q", in, got, want)
		}
	}
}
