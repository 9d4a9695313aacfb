package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/focusplayer/internal/media"
	"github.com/dgnsrekt/focusplayer/internal/platform"
	"github.com/dgnsrekt/focusplayer/internal/track"
)

var defaultProbeTypes = []string{
	"audio/webm",
	`audio/webm; codecs="opus"`,
	"audio/mp4",
	`audio/mp4; codecs="mp4a.40.2"`,
	"audio/aac",
	"audio/mpeg",
	"audio/ogg",
	"audio/flac",
}

var probeCmd = &cobra.Command{
	Use:   "probe [MIME...]",
	Short: "Report which audio formats can be played",
	Long: paragraph(fmt.Sprintf("\n%s the decoder for the given MIME types, or a common set. "+
		"With --catalog, also shows the variant each track would stream.", keyword("Ask"))),
	Example: paragraph("focusplayer probe\nfocusplayer probe 'audio/webm; codecs=\"opus\"'\nfocusplayer probe --catalog tracks.yml"),
	RunE: func(cmd *cobra.Command, args []string) error {
		dec := media.NewFFmpegDecoder(media.FFmpegOptions{
			Path:      cfg.Stream.FFmpeg,
			UserAgent: cfg.Stream.UserAgent,
		})
		probe := media.NewProbe(dec)

		fmt.Println(statusDim.Render("platform: " + platform.Detect().String()))

		types := args
		if len(types) == 0 {
			types = defaultProbeTypes
		}
		for _, typ := range types {
			answer := probe.CanPlayType(typ)
			switch answer {
			case "":
				fmt.Printf("  %-32s %s\n", typ, errorText.Render("no"))
			default:
				fmt.Printf("  %-32s %s\n", typ, keyword(answer))
			}
		}

		catalog, _ := cmd.Flags().GetString("catalog")
		if catalog == "" {
			return nil
		}
		cat, err := track.LoadFile(catalog)
		if err != nil {
			return err //nolint:wrapcheck
		}
		fmt.Println()
		for _, t := range cat.Tracks {
			url, err := track.PickURL(t, probe)
			if err != nil {
				fmt.Printf("  %-24s %s\n", t.ID, errorText.Render(err.Error()))
				continue
			}
			fmt.Printf("  %-24s %s\n", t.ID, url)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringP("catalog", "c", "", "track catalog file to resolve")
}
