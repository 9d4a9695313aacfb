package media

import "context"

// Format is the PCM layout a decoder produces: interleaved float32 samples.
type Format struct {
	SampleRate int
	Channels   int
}

// Request describes one decode pipeline.
type Request struct {
	URL string
	// Offset starts decoding this many seconds into the resource.
	Offset float64
	Format Format
	// Credentials allows cookies and HTTP auth on the fetch. Anonymous
	// elements never send them.
	Credentials bool
}

// Decoder turns a remote resource into a PCM stream.
type Decoder interface {
	// Open starts fetching and decoding. It returns once stream metadata is
	// known or the pipeline has failed. Errors should be *Error values;
	// anything else is treated as an unsupported source.
	Open(ctx context.Context, req Request) (Stream, error)

	// Supports reports whether a MIME type, optionally carrying a codecs
	// parameter, can be decoded.
	Supports(mimeType string) bool
}

// Stream is an open decode pipeline.
type Stream interface {
	// Duration returns the total length in seconds, or NaN when unknown.
	Duration() float64

	// Read fills p with samples and returns how many were written. It
	// returns io.EOF at the natural end of the resource.
	Read(p []float32) (int, error)

	Close() error
}

// PlaybackPolicy decides whether Play may start output, the analogue of a
// browser autoplay policy.
type PlaybackPolicy interface {
	AllowPlayback() bool
}

// PolicyFunc adapts a function to a PlaybackPolicy.
type PolicyFunc func() bool

func (f PolicyFunc) AllowPlayback() bool { return f() }
