package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	// ErrClosed is returned by operations on a closed context.
	ErrClosed = errors.New("audio context is closed")

	// ErrSourceExists is returned when a media element source is requested
	// twice for the same element.
	ErrSourceExists = errors.New("media element is already connected to a source node")
)

// State is the running state of a Context.
type State int32

const (
	StateSuspended State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Context is an audio graph bound to an output device. It starts suspended
// and renders silence (without advancing its clock) until resumed.
type Context struct {
	device     Device
	sampleRate int
	channels   int
	logger     *log.Logger

	state  atomic.Int32
	frames atomic.Int64

	mu      sync.Mutex
	started bool
	dest    *Destination
	sources map[FrameSource]*MediaElementSource

	renderMu sync.Mutex
	renderF  []float32
}

// NewContext creates a suspended context rendering into dev.
func NewContext(dev Device) *Context {
	c := &Context{
		device:     dev,
		sampleRate: dev.SampleRate(),
		channels:   dev.ChannelCount(),
		logger:     log.WithPrefix("audio"),
		sources:    make(map[FrameSource]*MediaElementSource),
	}
	c.dest = &Destination{node: node{ctx: c}}
	c.state.Store(int32(StateSuspended))
	return c
}

// SampleRate returns the rendering sample rate in Hz.
func (c *Context) SampleRate() int { return c.sampleRate }

// Channels returns the number of interleaved output channels.
func (c *Context) Channels() int { return c.channels }

// State returns the current state.
func (c *Context) State() State { return State(c.state.Load()) }

// CurrentTime returns the audio clock in seconds: the number of frames
// rendered while running, divided by the sample rate.
func (c *Context) CurrentTime() float64 {
	return float64(c.frames.Load()) / float64(c.sampleRate)
}

// Destination returns the graph's final node.
func (c *Context) Destination() *Destination { return c.dest }

// CreateGain returns a new gain node with unity gain.
func (c *Context) CreateGain() *GainNode {
	return &GainNode{
		node: node{ctx: c},
		gain: newParam(1, c.CurrentTime),
	}
}

// CreateMediaElementSource wraps src as a graph node. Each source may be
// wrapped at most once per context.
func (c *Context) CreateMediaElementSource(src FrameSource) (*MediaElementSource, error) {
	if c.State() == StateClosed {
		return nil, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sources[src]; ok {
		return nil, ErrSourceExists
	}
	m := &MediaElementSource{node: node{ctx: c}, src: src}
	c.sources[src] = m
	return m, nil
}

// Resume starts or resumes output. The first call starts the device and
// blocks until it is ready or ctx is done.
func (c *Context) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateRunning:
		return nil
	}

	if !c.started {
		if err := c.device.Start(ctx, c); err != nil {
			return fmt.Errorf("start audio device: %w", err)
		}
		c.started = true
	} else if err := c.device.Resume(); err != nil {
		return fmt.Errorf("resume audio device: %w", err)
	}

	c.state.Store(int32(StateRunning))
	c.logger.Debug("context running", "sampleRate", c.sampleRate, "channels", c.channels)
	return nil
}

// Suspend pauses output and freezes the clock.
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateSuspended:
		return nil
	}
	c.state.Store(int32(StateSuspended))
	if c.started {
		if err := c.device.Suspend(); err != nil {
			return fmt.Errorf("suspend audio device: %w", err)
		}
	}
	return nil
}

// Close releases the device. A closed context cannot be resumed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateClosed {
		return nil
	}
	c.state.Store(int32(StateClosed))
	c.sources = nil
	if err := c.device.Close(); err != nil {
		return fmt.Errorf("close audio device: %w", err)
	}
	c.logger.Debug("context closed", "time", c.CurrentTime())
	return nil
}

// Render fills dst with interleaved frames from the graph. While the
// context is not running dst is zeroed and the clock does not move.
func (c *Context) Render(dst []float32) {
	if c.State() != StateRunning {
		clear(dst)
		return
	}
	frames := len(dst) / c.channels
	dst = dst[:frames*c.channels]
	c.dest.render(dst, c.frames.Load())
	c.frames.Add(int64(frames))
}

// Read implements io.Reader for the device, encoding rendered frames as
// little-endian float32.
func (c *Context) Read(p []byte) (int, error) {
	frameBytes := 4 * c.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		clear(p)
		return len(p), nil
	}

	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	n := frames * c.channels
	if cap(c.renderF) < n {
		c.renderF = make([]float32, n)
	}
	buf := c.renderF[:n]
	c.Render(buf)
	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}
