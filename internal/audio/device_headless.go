package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

const headlessPeriod = 10 * time.Millisecond

// HeadlessDevice consumes rendered audio without playing it. In real-time
// mode it pulls one period of frames per tick so the audio clock tracks the
// wall clock. In manual mode frames are only pulled through Pull, which
// makes it suitable for deterministic tests.
type HeadlessDevice struct {
	sampleRate int
	channels   int
	realtime   bool

	mu      sync.Mutex
	r       io.Reader
	running bool
	closed  bool
	buf     []byte
	stop    chan struct{}
	done    chan struct{}
}

// NewHeadlessDevice returns a device at the given format. When realtime is
// false, frames are only pulled by explicit calls to Pull.
func NewHeadlessDevice(sampleRate, channels int, realtime bool) *HeadlessDevice {
	return &HeadlessDevice{sampleRate: sampleRate, channels: channels, realtime: realtime}
}

func (d *HeadlessDevice) Start(_ context.Context, r io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.r != nil {
		return errors.New("headless device already started")
	}
	d.r = r
	d.running = true
	if d.realtime {
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.loop()
	}
	return nil
}

func (d *HeadlessDevice) loop() {
	defer close(d.done)
	ticker := time.NewTicker(headlessPeriod)
	defer ticker.Stop()

	frames := int(int64(d.sampleRate) * int64(headlessPeriod) / int64(time.Second))
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			_, _ = d.Pull(frames)
		}
	}
}

// Pull reads up to frames frames from the attached reader. It returns the
// number of frames consumed, or zero when the device is suspended.
func (d *HeadlessDevice) Pull(frames int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.r == nil || !d.running || d.closed {
		return 0, nil
	}
	size := frames * d.channels * 4
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	n, err := io.ReadFull(d.r, d.buf[:size])
	return n / (d.channels * 4), err
}

func (d *HeadlessDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}

func (d *HeadlessDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.running = true
	return nil
}

func (d *HeadlessDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stop, done := d.stop, d.done
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (d *HeadlessDevice) SampleRate() int   { return d.sampleRate }
func (d *HeadlessDevice) ChannelCount() int { return d.channels }
