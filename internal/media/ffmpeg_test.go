package media

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"  Duration: 00:03:25.48, start: 0.000000, bitrate: 128 kb/s", 205.48, true},
		{"  Duration: 01:00:00.00, start: 0.007000, bitrate: N/A", 3600, true},
		{"  Duration: N/A, start: 0.000000, bitrate: N/A", math.NaN(), true},
		{"  Stream #0:0: Audio: opus, 48000 Hz, stereo, fltp", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseDuration(tt.line)
		if ok != tt.ok {
			t.Errorf("parseDuration(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if math.IsNaN(tt.want) {
			if !math.IsNaN(got) {
				t.Errorf("parseDuration(%q) = %v, want NaN", tt.line, got)
			}
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

const decodersOutput = `Decoders:
 V..... = Video
 A..... = Audio
 ------
 V....D h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10
 A....D aac                  AAC (Advanced Audio Coding)
 A....D opus                 Opus
 A....D vorbis               Vorbis
 S..... ass                  ASS (Advanced SubStation Alpha) subtitle
`

func TestParseDecoders(t *testing.T) {
	caps := parseDecoders(decodersOutput)
	for _, name := range []string{"aac", "opus", "vorbis"} {
		if !caps[name] {
			t.Errorf("missing decoder %q", name)
		}
	}
	for _, name := range []string{"h264", "ass", "Video", "Audio"} {
		if caps[name] {
			t.Errorf("unexpected decoder %q", name)
		}
	}
}

func decoderWithCaps(names ...string) *FFmpegDecoder {
	d := NewFFmpegDecoder(FFmpegOptions{})
	d.capsOnce.Do(func() {})
	d.caps = make(map[string]bool)
	for _, n := range names {
		d.caps[n] = true
	}
	return d
}

func TestFFmpegSupports(t *testing.T) {
	d := decoderWithCaps("aac", "opus")
	tests := map[string]bool{
		"audio/webm":                    true,
		`audio/webm; codecs="opus"`:     true,
		`audio/webm; codecs="vorbis"`:   false,
		"audio/mp4":                     true,
		"audio/aac":                     true,
		`audio/mp4; codecs="mp4a.40.2"`: true,
		"audio/flac":                    false,
		"video/x-unknown":               false,
		"":                              false,
	}
	for in, want := range tests {
		if got := d.Supports(in); got != want {
			t.Errorf("Supports(%q) = %v, want %v", in, got, want)
		}
	}

	none := NewFFmpegDecoder(FFmpegOptions{Path: filepath.Join(t.TempDir(), "missing-ffmpeg")})
	if none.Supports("audio/webm") {
		t.Error("a missing binary should support nothing")
	}
}

func TestFFmpegFetchClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") != "focusplayer-test" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, "data")
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	d := NewFFmpegDecoder(FFmpegOptions{UserAgent: "focusplayer-test", ConnectTimeout: time.Second})
	ctx := context.Background()

	body, err := d.fetch(ctx, Request{URL: srv.URL + "/ok"})
	if err != nil {
		t.Fatalf("fetch /ok: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "data" {
		t.Errorf("body = %q", data)
	}

	tests := []struct {
		url  string
		want ErrorCode
	}{
		{srv.URL + "/missing", CodeSrcNotSupported},
		{srv.URL + "/broken", CodeNetwork},
		{"ftp://example.com/a.mp3", CodeSrcNotSupported},
		{filepath.Join(t.TempDir(), "nope.webm"), CodeSrcNotSupported},
	}
	for _, tt := range tests {
		_, err := d.fetch(ctx, Request{URL: tt.url})
		var me *Error
		if !errors.As(err, &me) {
			t.Errorf("fetch(%s) = %v, want *Error", tt.url, err)
			continue
		}
		if me.Code != tt.want {
			t.Errorf("fetch(%s) code = %v, want %v", tt.url, me.Code, tt.want)
		}
	}

	srv.Close()
	_, err = d.fetch(ctx, Request{URL: srv.URL + "/ok"})
	var me *Error
	if !errors.As(err, &me) || me.Code != CodeNetwork {
		t.Errorf("fetch from closed server = %v, want network error", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs(Request{Offset: 12.5, Format: Format{SampleRate: 48000, Channels: 2}})
	want := []string{
		"-hide_banner", "-nostats", "-loglevel", "info", "-i", "pipe:0",
		"-ss", "12.500",
		"-vn", "-f", "f32le", "-acodec", "pcm_f32le", "-ar", "48000", "-ac", "2", "pipe:1",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestFFmpegDecodeIntegration(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	dir := t.TempDir()
	wav := filepath.Join(dir, "tone.wav")
	gen := exec.Command(ffmpeg, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1", wav)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot synthesize test tone: %v: %s", err, out)
	}

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	d := NewFFmpegDecoder(FFmpegOptions{Path: ffmpeg})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := d.Open(ctx, Request{URL: srv.URL + "/tone.wav", Format: Format{SampleRate: 8000, Channels: 1}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if dur := s.Duration(); math.Abs(dur-1) > 0.05 {
		t.Errorf("Duration = %v, want ~1", dur)
	}

	total := 0
	buf := make([]float32, 1024)
	for {
		n, err := s.Read(buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if total < 7900 || total > 8100 {
		t.Errorf("decoded %d samples, want ~8000", total)
	}

	garbage := filepath.Join(dir, "garbage.webm")
	if err := os.WriteFile(garbage, []byte("definitely not audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = d.Open(ctx, Request{URL: srv.URL + "/garbage.webm", Format: Format{SampleRate: 8000, Channels: 1}})
	var me *Error
	if !errors.As(err, &me) || me.Code != CodeSrcNotSupported {
		t.Errorf("Open(garbage) = %v, want source not supported", err)
	}
}
