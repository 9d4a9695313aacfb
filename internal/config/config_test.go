package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad output", func(c *Config) { c.Audio.Output = "speakers" }, "invalid output"},
		{"upper case output", func(c *Config) { c.Audio.Output = "HEADLESS" }, ""},
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = 12345 }, "invalid sample rate"},
		{"bad channels", func(c *Config) { c.Audio.Channels = 6 }, "channels"},
		{"huge buffer", func(c *Config) { c.Audio.BufferSize = 2 * time.Second }, "buffer size"},
		{"empty ffmpeg", func(c *Config) { c.Stream.FFmpeg = "" }, "ffmpeg"},
		{"zero play through", func(c *Config) { c.Stream.PlayThrough = 0 }, "play_through"},
		{"ahead below play through", func(c *Config) { c.Stream.MaxBufferAhead = time.Second }, "max_buffer_ahead"},
		{"negative back buffer", func(c *Config) { c.Stream.BackBuffer = -time.Second }, "back_buffer"},
		{"zero timeout", func(c *Config) { c.Stream.ConnectTimeout = 0 }, "connect_timeout"},
		{"no debug events", func(c *Config) { c.Debug.Events = 0 }, "debug events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.Output = "OTO"
	cfg.StatePath = "~/state.yml"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.Output != "oto" {
		t.Errorf("Output = %q, want oto", cfg.Audio.Output)
	}
	if strings.HasPrefix(cfg.StatePath, "~") {
		t.Errorf("StatePath = %q, want ~ expanded", cfg.StatePath)
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	resetViper(t)
	viper.Set("audio.output", "headless")
	viper.Set("audio.sample_rate", 44100)
	viper.Set("stream.play_through", "2s")
	viper.Set("stream.user_agent", "test-agent")
	viper.Set("debug.enabled", true)

	cfg := LoadConfigFromViper()
	if cfg.Audio.Output != "headless" || cfg.Audio.SampleRate != 44100 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Stream.PlayThrough != 2*time.Second || cfg.Stream.UserAgent != "test-agent" {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	if !cfg.Debug.Enabled {
		t.Error("debug should be enabled")
	}
	// Unset keys keep their defaults.
	if cfg.Audio.Channels != 2 || cfg.Stream.MaxBufferAhead != 30*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvOverridesViper(t *testing.T) {
	resetViper(t)
	viper.Set("audio.output", "oto")
	t.Setenv("FOCUSPLAYER_OUTPUT", "headless")
	t.Setenv("FOCUSPLAYER_BACK_BUFFER", "3s")
	t.Setenv("FOCUSPLAYER_DEBUG_EVENTS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.Output != "headless" {
		t.Errorf("Output = %q, want headless from env", cfg.Audio.Output)
	}
	if cfg.Stream.BackBuffer != 3*time.Second {
		t.Errorf("BackBuffer = %v", cfg.Stream.BackBuffer)
	}
	if cfg.Debug.Events != 50 {
		t.Errorf("Events = %d", cfg.Debug.Events)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("FOCUSPLAYER_SAMPLE_RATE", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected error for unparsable env value")
	}
}

func TestSetDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()

	if got := viper.GetString("audio.output"); got != "auto" {
		t.Errorf("audio.output = %q", got)
	}
	if got := viper.GetDuration("stream.max_buffer_ahead"); got != 30*time.Second {
		t.Errorf("stream.max_buffer_ahead = %v", got)
	}
	if got := viper.GetInt("debug.events"); got != 1000 {
		t.Errorf("debug.events = %d", got)
	}
}
