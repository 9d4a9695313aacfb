package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/focusplayer/internal/audio"
	"github.com/dgnsrekt/focusplayer/internal/engine"
)

var volumeCmd = &cobra.Command{
	Use:   "volume [LEVEL]",
	Short: "Show or set the saved master volume",
	Long: paragraph(fmt.Sprintf("\n%s the master volume used by the next playback. "+
		"LEVEL is a fraction (0.7) or a percentage (70%%).", keyword("Show or set"))),
	Example: paragraph("focusplayer volume\nfocusplayer volume 40%"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		opts, err := engine.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		// Nothing is played, so a silent device is enough.
		opts.OpenDevice = func() (audio.Device, error) {
			return audio.NewHeadlessDevice(cfg.Audio.SampleRate, cfg.Audio.Channels, false), nil
		}
		if err := engine.Configure(opts); err != nil {
			return err //nolint:wrapcheck
		}
		eng := engine.Get()
		defer engine.Destroy()

		if err := eng.Init(context.Background()); err != nil {
			return err //nolint:wrapcheck
		}
		if len(args) == 1 {
			v, err := parseVolume(args[0])
			if err != nil {
				return err
			}
			if err := eng.SetMasterVolume(v); err != nil {
				return err //nolint:wrapcheck
			}
		}
		fmt.Printf("%s %d%%\n", keyword("volume"), int(eng.MasterVolume()*100+0.5))
		return nil
	},
}

// parseVolume accepts "0.7", "70%" and "70" (values above 1 without a
// percent sign are read as percentages).
func parseVolume(s string) (float64, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q: %w", s, err)
	}
	if pct || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("volume %q out of range", s)
	}
	return v, nil
}
