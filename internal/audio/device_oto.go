//go:build !nocgo

package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it is shared by every device.
var (
	otoOnce  sync.Once
	otoCtx   *oto.Context
	otoReady chan struct{}
	otoErr   error
	otoOpts  DeviceOptions
)

type otoDevice struct {
	mu         sync.Mutex
	player     *oto.Player
	sampleRate int
	channels   int
}

func newOtoDevice(opts DeviceOptions) (Device, error) {
	otoOnce.Do(func() {
		otoOpts = opts
		otoCtx, otoReady, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   opts.SampleRate,
			ChannelCount: opts.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   opts.BufferSize,
		})
	})
	if otoErr != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", otoErr)
	}
	if opts.SampleRate != otoOpts.SampleRate || opts.Channels != otoOpts.Channels {
		return nil, fmt.Errorf("oto context already open at %d Hz, %d channels", otoOpts.SampleRate, otoOpts.Channels)
	}
	return &otoDevice{sampleRate: opts.SampleRate, channels: opts.Channels}, nil
}

func (d *otoDevice) Start(ctx context.Context, r io.Reader) error {
	select {
	case <-otoReady:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return nil
	}
	if err := otoCtx.Resume(); err != nil {
		return err
	}
	d.player = otoCtx.NewPlayer(r)
	d.player.Play()
	return nil
}

func (d *otoDevice) Suspend() error { return otoCtx.Suspend() }

func (d *otoDevice) Resume() error { return otoCtx.Resume() }

func (d *otoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	return err
}

func (d *otoDevice) SampleRate() int   { return d.sampleRate }
func (d *otoDevice) ChannelCount() int { return d.channels }
