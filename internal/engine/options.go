package engine

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/focusplayer/internal/audio"
	"github.com/dgnsrekt/focusplayer/internal/config"
	"github.com/dgnsrekt/focusplayer/internal/debuglog"
	"github.com/dgnsrekt/focusplayer/internal/media"
	"github.com/dgnsrekt/focusplayer/internal/storage"
)

// Options configures the engine. Zero fields get defaults.
type Options struct {
	// OpenDevice opens the output device when the audio graph is first
	// needed.
	OpenDevice func() (audio.Device, error)
	Decoder    media.Decoder
	// Store persists the master volume.
	Store    storage.Store
	Recorder *debuglog.Recorder

	PlayThrough        time.Duration
	MaxBufferAhead     time.Duration
	BackBuffer         time.Duration
	TimeUpdateInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.OpenDevice == nil {
		o.OpenDevice = func() (audio.Device, error) {
			return audio.OpenDevice(audio.DeviceOptions{
				Kind:       audio.KindAuto,
				SampleRate: 48000,
				Channels:   2,
			})
		}
	}
	if o.Decoder == nil {
		o.Decoder = media.NewFFmpegDecoder(media.FFmpegOptions{})
	}
	if o.Store == nil {
		o.Store = defaultStore()
	}
	if o.Recorder == nil {
		o.Recorder = debuglog.Default()
	}
}

func defaultStore() storage.Store {
	path, err := storage.DefaultPath()
	if err == nil {
		var fs *storage.FileStore
		if fs, err = storage.NewFileStore(path); err == nil {
			return fs
		}
	}
	log.Warn("Falling back to in-memory state", "err", err)
	return storage.NewMemoryStore()
}

// OptionsFromConfig builds engine options from the player configuration.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	path := cfg.StatePath
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return Options{}, fmt.Errorf("failed to resolve state path: %w", err)
		}
		path = p
	}
	store, err := storage.NewFileStore(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to open state file: %w", err)
	}

	rec := debuglog.Default()
	rec.SetCapacity(cfg.Debug.Events)
	rec.SetEnabled(cfg.Debug.Enabled)

	devOpts := audio.DeviceOptions{
		Kind:       audio.Kind(cfg.Audio.Output),
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BufferSize: cfg.Audio.BufferSize,
	}

	return Options{
		OpenDevice: func() (audio.Device, error) { return audio.OpenDevice(devOpts) },
		Decoder: media.NewFFmpegDecoder(media.FFmpegOptions{
			Path:           cfg.Stream.FFmpeg,
			UserAgent:      cfg.Stream.UserAgent,
			ConnectTimeout: cfg.Stream.ConnectTimeout,
		}),
		Store:          store,
		Recorder:       rec,
		PlayThrough:    cfg.Stream.PlayThrough,
		MaxBufferAhead: cfg.Stream.MaxBufferAhead,
		BackBuffer:     cfg.Stream.BackBuffer,
	}, nil
}
