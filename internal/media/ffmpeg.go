package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// FFmpegOptions configures an FFmpegDecoder.
type FFmpegOptions struct {
	// Path is the ffmpeg binary. Defaults to "ffmpeg" on $PATH.
	Path           string
	UserAgent      string
	ConnectTimeout time.Duration
	// Client overrides the HTTP client used for fetching.
	Client *http.Client
}

// FFmpegDecoder fetches resources over HTTP and pipes them through an
// ffmpeg subprocess that emits raw float32 PCM.
type FFmpegDecoder struct {
	path      string
	userAgent string
	client    *http.Client
	logger    *log.Logger

	capsOnce sync.Once
	caps     map[string]bool
	capsErr  error
}

// NewFFmpegDecoder returns a decoder using opts.
func NewFFmpegDecoder(opts FFmpegOptions) *FFmpegDecoder {
	d := &FFmpegDecoder{
		path:      opts.Path,
		userAgent: opts.UserAgent,
		client:    opts.Client,
		logger:    log.WithPrefix("ffmpeg"),
	}
	if d.path == "" {
		d.path = "ffmpeg"
	}
	if d.client == nil {
		timeout := opts.ConnectTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		d.client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		}
	}
	return d
}

// Open implements Decoder.
func (d *FFmpegDecoder) Open(ctx context.Context, req Request) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	body, err := d.fetch(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.path, ffmpegArgs(req)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		body.Close()
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		body.Close()
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		body.Close()
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		body.Close()
		cancel()
		return nil, newError(CodeSrcNotSupported, "failed to start decoder", err)
	}

	s := &ffmpegStream{
		ctx:        ctx,
		cancel:     cancel,
		cmd:        cmd,
		stdout:     bufio.NewReaderSize(stdout, 64*1024),
		duration:   math.NaN(),
		meta:       make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	go s.feed(stdin, body)
	go s.scanStderr(stderr)

	select {
	case <-s.meta:
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}

	if !s.sawInput {
		err := s.finish()
		_ = s.Close()
		if err == nil {
			err = newError(CodeSrcNotSupported, "no audio stream found", nil)
		}
		return nil, err
	}

	d.logger.Debug("stream opened", "url", req.URL, "offset", req.Offset, "duration", s.duration)
	return s, nil
}

func ffmpegArgs(req Request) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "info", "-i", "pipe:0"}
	if req.Offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(req.Offset, 'f', 3, 64))
	}
	return append(args,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(req.Format.SampleRate),
		"-ac", strconv.Itoa(req.Format.Channels),
		"pipe:1",
	)
}

// fetch opens the resource body. Local paths and file URLs are read from
// disk. Cookies are never sent since the client has no jar.
func (d *FFmpegDecoder) fetch(ctx context.Context, req Request) (io.ReadCloser, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, newError(CodeSrcNotSupported, "invalid source URL", err)
	}

	switch u.Scheme {
	case "", "file":
		path := req.URL
		if u.Scheme == "file" {
			path = u.Path
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, newError(CodeSrcNotSupported, "cannot open source", err)
		}
		return f, nil
	case "http", "https":
	default:
		return nil, newError(CodeSrcNotSupported, fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, newError(CodeSrcNotSupported, "invalid request", err)
	}
	if d.userAgent != "" {
		hreq.Header.Set("User-Agent", d.userAgent)
	}
	if !req.Credentials {
		hreq.URL.User = nil
	}

	resp, err := d.client.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(CodeNetwork, "fetch failed", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		resp.Body.Close()
		return nil, newError(CodeSrcNotSupported, "HTTP "+resp.Status, nil)
	default:
		resp.Body.Close()
		return nil, newError(CodeNetwork, "HTTP "+resp.Status, nil)
	}
}

// Supports implements Decoder by checking the codecs ffmpeg was built with.
func (d *FFmpegDecoder) Supports(mimeType string) bool {
	base, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	caps, err := d.decoders()
	if err != nil {
		d.logger.Debug("capability probe failed", "err", err)
		return false
	}

	if codecs := strings.TrimSpace(params["codecs"]); codecs != "" {
		for _, c := range strings.Split(codecs, ",") {
			if !anyDecoder(caps, codecDecoders(strings.TrimSpace(c))) {
				return false
			}
		}
		return true
	}
	return anyDecoder(caps, containerDecoders[base])
}

var containerDecoders = map[string][]string{
	"audio/webm": {"opus", "libopus", "vorbis", "libvorbis"},
	"audio/ogg":  {"opus", "libopus", "vorbis", "libvorbis"},
	"audio/mp4":  {"aac", "aac_fixed", "libfdk_aac"},
	"audio/aac":  {"aac", "aac_fixed", "libfdk_aac"},
	"audio/mpeg": {"mp3", "mp3float"},
	"audio/flac": {"flac"},
	"audio/wav":  {"pcm_s16le", "pcm_f32le"},
}

func codecDecoders(codec string) []string {
	codec = strings.ToLower(codec)
	switch {
	case codec == "opus":
		return []string{"opus", "libopus"}
	case codec == "vorbis":
		return []string{"vorbis", "libvorbis"}
	case strings.HasPrefix(codec, "mp4a"):
		return []string{"aac", "aac_fixed", "libfdk_aac"}
	case codec == "mp3":
		return []string{"mp3", "mp3float"}
	default:
		return []string{codec}
	}
}

func anyDecoder(caps map[string]bool, names []string) bool {
	for _, n := range names {
		if caps[n] {
			return true
		}
	}
	return false
}

func (d *FFmpegDecoder) decoders() (map[string]bool, error) {
	d.capsOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, d.path, "-hide_banner", "-decoders").Output()
		if err != nil {
			d.capsErr = fmt.Errorf("ffmpeg -decoders: %w", err)
			return
		}
		d.caps = parseDecoders(string(out))
	})
	return d.caps, d.capsErr
}

// parseDecoders reads the audio decoder names from `ffmpeg -decoders`.
func parseDecoders(out string) map[string]bool {
	caps := make(map[string]bool)
	listing := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "A") {
			continue
		}
		caps[fields[1]] = true
	}
	return caps
}

var durationRe = regexp.MustCompile(`Duration: (?:(\d+):(\d{2}):(\d{2}(?:\.\d+)?)|N/A)`)

// parseDuration extracts the input duration from an ffmpeg log line. It
// returns NaN for "N/A" and false when the line carries no duration.
func parseDuration(line string) (float64, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return math.NaN(), true
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.ParseFloat(m[3], 64)
	return float64(h)*3600 + float64(mins)*60 + secs, true
}

const stderrTail = 8

type ffmpegStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout *bufio.Reader

	meta       chan struct{}
	metaOnce   sync.Once
	stderrDone chan struct{}

	// Written by scanStderr before meta or stderrDone close.
	duration float64
	sawInput bool

	mu      sync.Mutex
	tail    []string
	copyErr error

	raw      []byte
	decoded  int64
	err      error
	waitOnce sync.Once
	waitErr  error
}

func (s *ffmpegStream) Duration() float64 { return s.duration }

func (s *ffmpegStream) feed(stdin io.WriteCloser, body io.ReadCloser) {
	_, err := io.Copy(stdin, body)
	body.Close()
	stdin.Close()
	if err != nil && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, os.ErrClosed) {
		s.mu.Lock()
		s.copyErr = err
		s.mu.Unlock()
	}
}

func (s *ffmpegStream) scanStderr(r io.Reader) {
	defer close(s.stderrDone)
	defer s.metaOnce.Do(func() { close(s.meta) })

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		s.mu.Lock()
		s.tail = append(s.tail, line)
		if len(s.tail) > stderrTail {
			s.tail = s.tail[1:]
		}
		s.mu.Unlock()

		if strings.HasPrefix(line, "Input #0") {
			s.sawInput = true
		}
		if d, ok := parseDuration(line); ok && s.sawInput {
			s.metaOnce.Do(func() {
				s.duration = d
				close(s.meta)
			})
		}
		if strings.HasPrefix(line, "Output #0") || strings.HasPrefix(line, "Stream mapping") {
			s.metaOnce.Do(func() { close(s.meta) })
		}
	}
}

func (s *ffmpegStream) Read(p []float32) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	need := len(p) * 4
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]

	n, err := io.ReadFull(s.stdout, raw)
	samples := n / 4
	for i := 0; i < samples; i++ {
		p[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	s.decoded += int64(samples)

	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		err = s.finish()
		if err == nil {
			err = io.EOF
		}
	default:
		err = newError(CodeDecode, "reading decoder output", err)
	}
	s.err = err
	return samples, err
}

// finish reaps the process and classifies how it ended.
func (s *ffmpegStream) finish() error {
	s.waitOnce.Do(func() {
		<-s.stderrDone
		s.waitErr = s.cmd.Wait()
	})

	if err := s.ctx.Err(); err != nil {
		return newError(CodeAborted, "", err)
	}

	s.mu.Lock()
	copyErr := s.copyErr
	detail := strings.Join(s.tail, "; ")
	s.mu.Unlock()

	if copyErr != nil {
		return newError(CodeNetwork, "connection lost", copyErr)
	}
	if s.waitErr != nil {
		if s.decoded == 0 {
			return newError(CodeSrcNotSupported, detail, s.waitErr)
		}
		return newError(CodeDecode, detail, s.waitErr)
	}
	return nil
}

// Close kills the process if it is still running and waits briefly for it
// to exit.
func (s *ffmpegStream) Close() error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.waitOnce.Do(func() {
			<-s.stderrDone
			s.waitErr = s.cmd.Wait()
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn("ffmpeg did not exit after cancel", "pid", s.cmd.Process.Pid)
	}
	return nil
}
