package media

// pcmBuffer holds a single contiguous run of decoded frames starting at an
// absolute frame index.
type pcmBuffer struct {
	channels int
	origin   int64 // frame the pipeline started at
	start    int64
	data     []float32
	complete bool
	dropped  int
}

func newPCMBuffer(channels int, start int64) *pcmBuffer {
	return &pcmBuffer{channels: channels, origin: start, start: start}
}

// end returns the index one past the last buffered frame.
func (b *pcmBuffer) end() int64 {
	return b.start + int64(len(b.data)/b.channels)
}

func (b *pcmBuffer) frames() int64 { return int64(len(b.data) / b.channels) }

// contains reports whether frame f is buffered. The end of a complete
// buffer counts as contained so seeking to the very end is a local seek.
func (b *pcmBuffer) contains(f int64) bool {
	if f == b.end() && b.complete {
		return true
	}
	return f >= b.start && f < b.end()
}

// ahead returns how many frames are buffered past pos.
func (b *pcmBuffer) ahead(pos int64) int64 {
	if pos < b.start {
		return 0
	}
	return max(0, b.end()-pos)
}

// sample returns channel c of frame f, which must be buffered.
func (b *pcmBuffer) sample(f int64, c int) float32 {
	return b.data[int(f-b.start)*b.channels+c%b.channels]
}

func (b *pcmBuffer) append(samples []float32) {
	b.data = append(b.data, samples...)
}

// trim drops frames before f.
func (b *pcmBuffer) trim(f int64) {
	if f <= b.start {
		return
	}
	n := min(f, b.end()) - b.start
	b.data = b.data[int(n)*b.channels:]
	b.start += n
	b.dropped += int(n)

	// Reclaim the head of the backing array once more than half is dead.
	if b.dropped > len(b.data)/b.channels {
		b.data = append(make([]float32, 0, len(b.data)+len(b.data)/2), b.data...)
		b.dropped = 0
	}
}
