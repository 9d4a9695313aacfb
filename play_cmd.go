package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/focusplayer/internal/engine"
	"github.com/dgnsrekt/focusplayer/internal/storage"
	"github.com/dgnsrekt/focusplayer/internal/track"
)

var (
	playCatalog string
	playTrack   string
	playVolume  float64
	playRate    float64
	playStart   time.Duration
	playMute    bool
	playLoad    time.Duration

	playCmd = &cobra.Command{
		Use:   "play [URL|FILE]",
		Short: "Stream a track until it ends or you press ctrl+c",
		Long: paragraph(fmt.Sprintf("\n%s a URL or a local file, or a track from a catalog file. "+
			"The best variant the decoder supports is chosen for catalog tracks.", keyword("Stream"))),
		Example: paragraph("focusplayer play https://example.com/rain.webm\n" +
			"focusplayer play --catalog tracks.yml --track rain --volume 0.4"),
		Args: cobra.MaximumNArgs(1),
		RunE: runPlay,
	}
)

func init() {
	playCmd.Flags().StringVarP(&playCatalog, "catalog", "c", "", "track catalog file (yaml or json)")
	playCmd.Flags().StringVarP(&playTrack, "track", "t", "", "track ID or fuzzy title in the catalog")
	playCmd.Flags().Float64VarP(&playVolume, "volume", "v", -1, "master volume 0..1 (default: last used)")
	playCmd.Flags().Float64VarP(&playRate, "rate", "r", 1, "playback rate 0.25..4")
	playCmd.Flags().DurationVarP(&playStart, "start", "s", 0, "start position")
	playCmd.Flags().BoolVarP(&playMute, "mute", "m", false, "start muted")
	playCmd.Flags().DurationVar(&playLoad, "load-timeout", 30*time.Second, "give up when the track is not ready in time")
}

// resolveTrack turns the command line into something to load.
func resolveTrack(args []string) (track.AudioTrack, error) {
	switch {
	case playCatalog != "":
		if len(args) > 0 {
			return track.AudioTrack{}, errors.New("cannot use both a source and --catalog")
		}
		cat, err := track.LoadFile(playCatalog)
		if err != nil {
			return track.AudioTrack{}, err
		}
		if playTrack == "" {
			if len(cat.Tracks) == 0 {
				return track.AudioTrack{}, fmt.Errorf("%s has no tracks", playCatalog)
			}
			return cat.Tracks[0], nil
		}
		found := cat.Search(playTrack)
		if len(found) == 0 {
			return track.AudioTrack{}, fmt.Errorf("track %q not found in %s", playTrack, playCatalog)
		}
		if len(found) > 1 {
			log.Debug("Ambiguous track, using best match", "pattern", playTrack, "matches", len(found), "track", found[0].ID)
		}
		return found[0], nil

	case len(args) == 1:
		return track.AudioTrack{ID: path.Base(args[0]), URL: args[0]}, nil

	default:
		return track.AudioTrack{}, errors.New("missing source: pass a URL, a file or --catalog")
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	t, err := resolveTrack(args)
	if err != nil {
		return err
	}

	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := engine.Configure(opts); err != nil {
		return err //nolint:wrapcheck
	}
	eng := engine.Get()
	defer engine.Destroy()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := newStatusLine(t.DisplayTitle(), eng)
	finished := make(chan error, 1)
	finish := func(err error) {
		select {
		case finished <- err:
		default:
		}
	}

	eng.OnStateChange(func(ev engine.StateChangeEvent) { status.setPlaying(ev.IsPlaying) })
	eng.OnTime(status.update)
	eng.OnVolumeChange(func(ev engine.VolumeChangeEvent) { status.setVolume(ev.Volume, ev.Muted) })
	eng.OnEnded(func(engine.EndedEvent) { finish(nil) })
	eng.OnError(func(ev engine.ErrorEvent) { finish(errors.New(ev.Message)) })

	if err := eng.Init(ctx); err != nil {
		return err //nolint:wrapcheck
	}
	if playVolume >= 0 {
		if err := eng.SetMasterVolume(playVolume); err != nil {
			return err //nolint:wrapcheck
		}
	}
	if playMute {
		if err := eng.Mute(); err != nil {
			return err //nolint:wrapcheck
		}
	}
	status.setVolume(eng.MasterVolume(), eng.Muted())

	loadCtx, cancel := context.WithTimeout(ctx, playLoad)
	err = eng.LoadMainTrackFromTrack(loadCtx, t)
	cancel()
	if err != nil {
		return fmt.Errorf("unable to load %s: %w", t.DisplayTitle(), err)
	}

	if playStart > 0 {
		eng.Seek(playStart.Seconds())
	}
	if playRate != 1 {
		eng.SetPlaybackRate(playRate)
	}
	if err := eng.Play(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	// Follow volume changes made with "focusplayer volume" elsewhere.
	if fs, ok := opts.Store.(*storage.FileStore); ok {
		go func() {
			err := fs.Watch(ctx, engine.VolumeKey, func(raw string) {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil || v == eng.MasterVolume() {
					return
				}
				if err := eng.SetMasterVolume(v); err != nil {
					log.Warn("Could not apply volume change", "err", err)
				}
			})
			if err != nil {
				log.Warn("Not following volume changes", "err", err)
			}
		}()
	}

	select {
	case err = <-finished:
	case <-ctx.Done():
		eng.Stop()
	}
	status.done()

	if cfg.Debug.Enabled {
		eng.LogState()
		log.Debug("Recorded audio events", "count", len(eng.Recorder().Events()))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText.Render(err.Error()))
	}
	return err
}

// statusLine redraws a single terminal line with the playback state. It
// draws nothing when stdout is not a terminal.
type statusLine struct {
	mu      sync.Mutex
	title   string
	eng     *engine.Engine
	out     *termenv.Output
	tty     bool
	playing bool
	volume  float64
	muted   bool
	last    engine.TimeEvent
}

func newStatusLine(title string, eng *engine.Engine) *statusLine {
	s := &statusLine{
		title: title,
		eng:   eng,
		out:   termenv.NewOutput(os.Stdout),
		tty:   term.IsTerminal(int(os.Stdout.Fd())),
	}
	if s.tty {
		s.out.HideCursor()
	}
	return s
}

func (s *statusLine) setPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
	s.draw()
}

func (s *statusLine) setVolume(v float64, muted bool) {
	s.mu.Lock()
	s.volume, s.muted = v, muted
	s.mu.Unlock()
	s.draw()
}

func (s *statusLine) update(ev engine.TimeEvent) {
	s.mu.Lock()
	s.last = ev
	s.mu.Unlock()
	s.draw()
}

func (s *statusLine) draw() {
	if !s.tty {
		return
	}
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	line := s.render(width, s.eng.Snapshot().BufferedBytes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.ClearLine()
	_, _ = fmt.Fprint(s.out, "\r"+line)
}

func (s *statusLine) render(width int, bufferedBytes uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	glyph, style := "❚❚", statusPaused
	if s.playing {
		glyph, style = "▶", statusPlaying
	}

	vol := fmt.Sprintf("vol %d%%", int(math.Round(s.volume*100)))
	if s.muted {
		vol = "muted"
	}

	progress := formatClock(s.last.CurrentTime)
	if s.last.Duration > 0 {
		progress += " / " + formatClock(s.last.Duration)
	}
	info := statusDim.Render(strings.Join([]string{
		progress,
		fmt.Sprintf("buffered %d%% (%s)", int(s.last.BufferedPercent*100), humanize.IBytes(bufferedBytes)),
		vol,
	}, " · "))

	// The title gets whatever the rest of the line leaves.
	room := width - ansi.PrintableRuneWidth(info) - runewidth.StringWidth(glyph) - 3
	if room < 8 {
		room = 8
	}
	title := statusTitle.Render(truncate.StringWithTail(s.title, uint(room), "…")) //nolint:gosec
	return style.Render(glyph) + " " + title + "  " + info
}

func (s *statusLine) done() {
	if s.tty {
		s.out.ShowCursor()
		fmt.Println()
	}
}

// formatClock renders seconds as m:ss, or h:mm:ss from one hour up.
func formatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds))
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
