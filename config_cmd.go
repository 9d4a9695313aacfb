package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Audio output
audio:
  # auto, oto (speakers) or headless (no sound, clock keeps running)
  output: "auto"
  # 22050, 44100 or 48000
  sample_rate: 48000
  # 1 (mono) or 2 (stereo)
  channels: 2
  # device buffer; 0 picks a platform default
  buffer_size: "0s"

# Streaming and decoding
stream:
  # ffmpeg binary used to decode
  ffmpeg: "ffmpeg"
  # buffered audio needed before playback can run through
  play_through: "5s"
  # how far the download may run ahead of playback
  max_buffer_ahead: "30s"
  # played audio kept for short backwards seeks
  back_buffer: "10s"
  connect_timeout: "15s"
  user_agent: "focusplayer"

# Diagnostics
debug:
  enabled: false
  # number of recorded diagnostic events
  events: 1000

# where the master volume is persisted (default: user data directory)
# state_path: "~/.local/share/focusplayer/state.yml"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the focusplayer config file",
	Long:    paragraph(fmt.Sprintf("\n%s the focusplayer config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("focusplayer config\nfocusplayer config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("focusplayer", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
