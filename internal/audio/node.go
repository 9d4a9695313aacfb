package audio

import (
	"errors"
	"sync"
)

// ErrForeignNode is returned when connecting nodes that belong to different
// contexts.
var ErrForeignNode = errors.New("cannot connect nodes from different audio contexts")

// Node is a processing stage in the audio graph. Nodes pull from their
// inputs when the destination renders.
type Node interface {
	// Connect routes this node's output into dst.
	Connect(dst Node) error

	owner() *Context
	addInput(src Node)
	render(buf []float32, frame int64)
}

type node struct {
	ctx *Context

	mu      sync.Mutex
	inputs  []Node
	scratch []float32
}

func (n *node) owner() *Context { return n.ctx }

func (n *node) addInput(src Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, in := range n.inputs {
		if in == src {
			return
		}
	}
	n.inputs = append(n.inputs, src)
}

// mix renders every input into buf, summing them.
func (n *node) mix(buf []float32, frame int64) {
	clear(buf)

	n.mu.Lock()
	inputs := append([]Node(nil), n.inputs...)
	if cap(n.scratch) < len(buf) {
		n.scratch = make([]float32, len(buf))
	}
	scratch := n.scratch[:len(buf)]
	n.mu.Unlock()

	for _, in := range inputs {
		in.render(scratch, frame)
		for i, s := range scratch {
			buf[i] += s
		}
	}
}

func connect(src, dst Node) error {
	if src.owner() != dst.owner() {
		return ErrForeignNode
	}
	dst.addInput(src)
	return nil
}

// Destination is the final node of a context; whatever reaches it is sent
// to the output device.
type Destination struct {
	node
}

// Connect always fails; the destination has no outputs.
func (d *Destination) Connect(Node) error {
	return errors.New("destination node has no outputs")
}

func (d *Destination) render(buf []float32, frame int64) { d.mix(buf, frame) }

// GainNode multiplies its input by an automatable gain.
type GainNode struct {
	node
	gain *Param

	curve []float64
}

// Gain returns the automatable gain parameter.
func (g *GainNode) Gain() *Param { return g.gain }

func (g *GainNode) Connect(dst Node) error { return connect(g, dst) }

func (g *GainNode) render(buf []float32, frame int64) {
	g.mix(buf, frame)

	channels := g.ctx.channels
	frames := len(buf) / channels
	if cap(g.curve) < frames {
		g.curve = make([]float64, frames)
	}
	curve := g.curve[:frames]
	rate := float64(g.ctx.sampleRate)
	g.gain.fill(curve, float64(frame)/rate, 1/rate)

	for f, v := range curve {
		for c := 0; c < channels; c++ {
			buf[f*channels+c] *= float32(v)
		}
	}
}

// FrameSource produces interleaved float32 frames at the context's sample
// rate and channel count. ReadFrames returns the number of frames written;
// the remainder of dst is treated as silence.
type FrameSource interface {
	ReadFrames(dst []float32, channels int) int
}

// MediaElementSource feeds a media element's decoded output into the graph.
type MediaElementSource struct {
	node
	src FrameSource
}

// Source returns the element this node reads from.
func (m *MediaElementSource) Source() FrameSource { return m.src }

func (m *MediaElementSource) Connect(dst Node) error { return connect(m, dst) }

func (m *MediaElementSource) render(buf []float32, _ int64) {
	channels := m.ctx.channels
	n := m.src.ReadFrames(buf, channels)
	if n < 0 {
		n = 0
	}
	clear(buf[min(n*channels, len(buf)):])
}
