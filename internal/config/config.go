// Package config holds the player configuration: defaults, the YAML config
// file read through viper, and FOCUSPLAYER_* environment overrides.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config contains all player configuration options.
type Config struct {
	Audio  AudioConfig  `yaml:"audio"`
	Stream StreamConfig `yaml:"stream"`
	Debug  DebugConfig  `yaml:"debug"`

	// StatePath is the persisted state file. Empty uses the data directory.
	StatePath string `yaml:"state_path" env:"FOCUSPLAYER_STATE_PATH"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	Output     string        `yaml:"output" env:"FOCUSPLAYER_OUTPUT"`
	SampleRate int           `yaml:"sample_rate" env:"FOCUSPLAYER_SAMPLE_RATE"`
	Channels   int           `yaml:"channels" env:"FOCUSPLAYER_CHANNELS"`
	BufferSize time.Duration `yaml:"buffer_size" env:"FOCUSPLAYER_BUFFER_SIZE"`
}

// StreamConfig configures fetching and decoding.
type StreamConfig struct {
	FFmpeg         string        `yaml:"ffmpeg" env:"FOCUSPLAYER_FFMPEG"`
	PlayThrough    time.Duration `yaml:"play_through" env:"FOCUSPLAYER_PLAY_THROUGH"`
	MaxBufferAhead time.Duration `yaml:"max_buffer_ahead" env:"FOCUSPLAYER_MAX_BUFFER_AHEAD"`
	BackBuffer     time.Duration `yaml:"back_buffer" env:"FOCUSPLAYER_BACK_BUFFER"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"FOCUSPLAYER_CONNECT_TIMEOUT"`
	UserAgent      string        `yaml:"user_agent" env:"FOCUSPLAYER_USER_AGENT"`
}

// DebugConfig configures diagnostics.
type DebugConfig struct {
	Enabled bool `yaml:"enabled" env:"FOCUSPLAYER_DEBUG"`
	// Events is the capacity of the in-memory debug event ring.
	Events int `yaml:"events" env:"FOCUSPLAYER_DEBUG_EVENTS"`
}

var (
	validOutputs     = []string{"auto", "oto", "headless"}
	validSampleRates = []int{22050, 44100, 48000}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			Output:     "auto",
			SampleRate: 48000,
			Channels:   2,
		},
		Stream: StreamConfig{
			FFmpeg:         "ffmpeg",
			PlayThrough:    5 * time.Second,
			MaxBufferAhead: 30 * time.Second,
			BackBuffer:     10 * time.Second,
			ConnectTimeout: 15 * time.Second,
			UserAgent:      "focusplayer",
		},
		Debug: DebugConfig{
			Events: 1000,
		},
	}
}

// Validate checks if the configuration is valid, normalizing case where
// that is harmless.
func (c *Config) Validate() error {
	c.Audio.Output = strings.ToLower(c.Audio.Output)
	if !slices.Contains(validOutputs, c.Audio.Output) {
		return fmt.Errorf("invalid output '%s': must be one of %v", c.Audio.Output, validOutputs)
	}
	if !slices.Contains(validSampleRates, c.Audio.SampleRate) {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.Audio.SampleRate, validSampleRates)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Audio.Channels)
	}
	if c.Audio.BufferSize < 0 || c.Audio.BufferSize > time.Second {
		return fmt.Errorf("buffer size must be between 0 and 1s, got %v", c.Audio.BufferSize)
	}

	if c.Stream.FFmpeg == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}
	if c.Stream.PlayThrough <= 0 {
		return fmt.Errorf("play_through must be positive, got %v", c.Stream.PlayThrough)
	}
	if c.Stream.MaxBufferAhead < c.Stream.PlayThrough {
		return fmt.Errorf("max_buffer_ahead (%v) must be at least play_through (%v)", c.Stream.MaxBufferAhead, c.Stream.PlayThrough)
	}
	if c.Stream.BackBuffer < 0 {
		return fmt.Errorf("back_buffer cannot be negative, got %v", c.Stream.BackBuffer)
	}
	if c.Stream.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %v", c.Stream.ConnectTimeout)
	}

	if c.Debug.Events < 1 || c.Debug.Events > 100000 {
		return fmt.Errorf("debug events must be between 1 and 100000, got %d", c.Debug.Events)
	}

	if c.StatePath != "" {
		p, err := homedir.Expand(c.StatePath)
		if err != nil {
			return fmt.Errorf("state_path: %w", err)
		}
		c.StatePath = p
	}
	return nil
}

// Load builds the effective configuration: defaults, then values set in
// viper, then environment variables.
func Load() (Config, error) {
	cfg := LoadConfigFromViper()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromViper overlays the keys set in viper on the defaults.
func LoadConfigFromViper() Config {
	cfg := DefaultConfig()

	if viper.IsSet("audio.output") {
		cfg.Audio.Output = viper.GetString("audio.output")
	}
	if viper.IsSet("audio.sample_rate") {
		cfg.Audio.SampleRate = viper.GetInt("audio.sample_rate")
	}
	if viper.IsSet("audio.channels") {
		cfg.Audio.Channels = viper.GetInt("audio.channels")
	}
	if viper.IsSet("audio.buffer_size") {
		cfg.Audio.BufferSize = viper.GetDuration("audio.buffer_size")
	}

	if viper.IsSet("stream.ffmpeg") {
		cfg.Stream.FFmpeg = viper.GetString("stream.ffmpeg")
	}
	if viper.IsSet("stream.play_through") {
		cfg.Stream.PlayThrough = viper.GetDuration("stream.play_through")
	}
	if viper.IsSet("stream.max_buffer_ahead") {
		cfg.Stream.MaxBufferAhead = viper.GetDuration("stream.max_buffer_ahead")
	}
	if viper.IsSet("stream.back_buffer") {
		cfg.Stream.BackBuffer = viper.GetDuration("stream.back_buffer")
	}
	if viper.IsSet("stream.connect_timeout") {
		cfg.Stream.ConnectTimeout = viper.GetDuration("stream.connect_timeout")
	}
	if viper.IsSet("stream.user_agent") {
		cfg.Stream.UserAgent = viper.GetString("stream.user_agent")
	}

	if viper.IsSet("debug.enabled") {
		cfg.Debug.Enabled = viper.GetBool("debug.enabled")
	}
	if viper.IsSet("debug.events") {
		cfg.Debug.Events = viper.GetInt("debug.events")
	}

	if viper.IsSet("state_path") {
		cfg.StatePath = viper.GetString("state_path")
	}

	return cfg
}

// SetDefaults registers the defaults with viper so they show up in
// viper.AllSettings.
func SetDefaults() {
	d := DefaultConfig()

	viper.SetDefault("audio.output", d.Audio.Output)
	viper.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	viper.SetDefault("audio.channels", d.Audio.Channels)
	viper.SetDefault("audio.buffer_size", d.Audio.BufferSize.String())

	viper.SetDefault("stream.ffmpeg", d.Stream.FFmpeg)
	viper.SetDefault("stream.play_through", d.Stream.PlayThrough.String())
	viper.SetDefault("stream.max_buffer_ahead", d.Stream.MaxBufferAhead.String())
	viper.SetDefault("stream.back_buffer", d.Stream.BackBuffer.String())
	viper.SetDefault("stream.connect_timeout", d.Stream.ConnectTimeout.String())
	viper.SetDefault("stream.user_agent", d.Stream.UserAgent)

	viper.SetDefault("debug.enabled", d.Debug.Enabled)
	viper.SetDefault("debug.events", d.Debug.Events)
}
