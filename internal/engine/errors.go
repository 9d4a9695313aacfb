package engine

import (
	"errors"

	"github.com/dgnsrekt/focusplayer/internal/media"
)

var (
	// ErrNoAudioContext is a configuration error: no audio output could be
	// opened on this platform.
	ErrNoAudioContext = errors.New("audio output not supported on this platform")

	// ErrNoTrackLoaded is returned by Play before any track was loaded.
	ErrNoTrackLoaded = errors.New("no main track loaded")

	// ErrPlaybackBlocked is returned by Play when the output refused to
	// start.
	ErrPlaybackBlocked = errors.New("playback blocked by autoplay policy: user interaction required")

	// ErrLoadSuperseded is returned by a load that a newer load replaced
	// before it finished.
	ErrLoadSuperseded = errors.New("load superseded by a newer load")

	// ErrAlreadyCreated is returned by Configure once the engine exists.
	ErrAlreadyCreated = errors.New("audio engine already created")

	// ErrDestroyed is returned by operations on a destroyed engine.
	ErrDestroyed = errors.New("audio engine destroyed")
)

// errorMessage returns the human-readable description of a load error.
func errorMessage(err *media.Error) string {
	var msg string
	switch err.Code {
	case media.CodeAborted:
		msg = "Audio loading was aborted"
	case media.CodeNetwork:
		msg = "A network error interrupted audio loading"
	case media.CodeDecode:
		msg = "The audio could not be decoded"
	case media.CodeSrcNotSupported:
		msg = "The audio source is not supported"
	default:
		msg = "Audio failed to load"
	}
	if err.Message != "" {
		msg += ": " + err.Message
	}
	return msg
}
