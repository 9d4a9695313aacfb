package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/focusplayer/internal/platform"
)

// ErrNoOutput is returned when no audio output can be opened.
var ErrNoOutput = errors.New("no audio output available")

// Device pulls rendered audio from a reader and delivers it to an output.
type Device interface {
	// Start begins pulling from r, blocking until the output is ready.
	Start(ctx context.Context, r io.Reader) error
	Suspend() error
	Resume() error
	Close() error
	SampleRate() int
	ChannelCount() int
}

// Kind selects which Device implementation OpenDevice returns.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindOto      Kind = "oto"
	KindHeadless Kind = "headless"
)

// DeviceOptions configures OpenDevice.
type DeviceOptions struct {
	Kind       Kind
	SampleRate int
	Channels   int
	// BufferSize is the device buffer duration. Zero picks a platform default.
	BufferSize time.Duration
}

// OpenDevice opens an output device. KindAuto uses the hardware output
// unless the platform is headless, in which case a real-time headless
// device keeps the clock running without producing sound.
func OpenDevice(opts DeviceOptions) (Device, error) {
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, fmt.Errorf("invalid device format: %d Hz, %d channels", opts.SampleRate, opts.Channels)
	}

	switch opts.Kind {
	case KindHeadless:
		log.Debug("Opening headless audio device")
		return NewHeadlessDevice(opts.SampleRate, opts.Channels, true), nil

	case KindOto:
		return openOto(opts)

	case KindAuto, "":
		info := platform.Detect()
		log.Debug("Platform detection complete", "info", info.String())
		if info.Headless() {
			log.Info("No audio device detected, using headless output")
			return NewHeadlessDevice(opts.SampleRate, opts.Channels, true), nil
		}
		if opts.BufferSize == 0 {
			opts.BufferSize = time.Duration(info.BufferSize()) * time.Millisecond
		}
		return openOto(opts)

	default:
		return nil, fmt.Errorf("unknown audio output %q", opts.Kind)
	}
}

func openOto(opts DeviceOptions) (Device, error) {
	dev, err := newOtoDevice(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoOutput, err)
	}
	return dev, nil
}
