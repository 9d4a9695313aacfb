// Package platform inspects the host for an audio output capability.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// OS identifies the host operating system.
type OS string

const (
	Linux   OS = "linux"
	Darwin  OS = "darwin"
	Windows OS = "windows"
	Unknown OS = "unknown"
)

// Subsystem identifies the host audio stack.
type Subsystem string

const (
	SubsystemALSA       Subsystem = "alsa"
	SubsystemPulseAudio Subsystem = "pulseaudio"
	SubsystemCoreAudio  Subsystem = "coreaudio"
	SubsystemWASAPI     Subsystem = "wasapi"
	SubsystemNone       Subsystem = "none"
)

// Info describes what the host can do for audio output.
type Info struct {
	OS        OS
	Subsystem Subsystem
	HasDevice bool
	IsCI      bool
}

// Detect probes the host. It shells out to a few well known tools and
// never fails; missing tools simply lower the reported capability.
func Detect() *Info {
	info := &Info{
		OS:   currentOS(),
		IsCI: IsCI(),
	}

	switch info.OS {
	case Linux:
		info.Subsystem = detectLinuxSubsystem()
		info.HasDevice = linuxHasDevice()
	case Darwin:
		info.Subsystem = SubsystemCoreAudio
		info.HasDevice = true
	case Windows:
		info.Subsystem = SubsystemWASAPI
		info.HasDevice = windowsAudioRunning()
	default:
		info.Subsystem = SubsystemNone
	}

	log.Debug("Platform detected",
		"os", info.OS,
		"audio", info.Subsystem,
		"has_device", info.HasDevice,
		"is_ci", info.IsCI)

	return info
}

// IsCI reports whether we are running under a CI system or the user asked
// for headless output explicitly.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
	}
	for _, v := range ciVars {
		if val := os.Getenv(v); val != "" && val != "false" {
			return true
		}
	}
	return os.Getenv("FOCUSPLAYER_HEADLESS") == "true"
}

// Headless reports whether real output should be skipped.
func (i *Info) Headless() bool {
	return i.IsCI || i.Subsystem == SubsystemNone || !i.HasDevice
}

// BufferSize returns the recommended device buffer in milliseconds.
func (i *Info) BufferSize() int {
	switch i.OS {
	case Darwin:
		return 100
	case Windows:
		return 80
	case Linux:
		if i.Subsystem == SubsystemPulseAudio {
			return 60
		}
		return 50
	default:
		return 50
	}
}

func (i *Info) String() string {
	return fmt.Sprintf("Platform{OS: %s, Audio: %s, HasDevice: %v, IsCI: %v}",
		i.OS, i.Subsystem, i.HasDevice, i.IsCI)
}

func currentOS() OS {
	switch runtime.GOOS {
	case "linux":
		return Linux
	case "darwin":
		return Darwin
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

func detectLinuxSubsystem() Subsystem {
	if available("pactl") {
		if out, err := exec.Command("pactl", "info").Output(); err == nil &&
			strings.Contains(string(out), "Server Name") {
			return SubsystemPulseAudio
		}
	}
	if _, err := os.Stat("/proc/asound"); err == nil {
		return SubsystemALSA
	}
	if available("aplay") {
		return SubsystemALSA
	}
	return SubsystemNone
}

func linuxHasDevice() bool {
	if entries, err := os.ReadDir("/dev/snd"); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "pcm") {
				return true
			}
		}
	}
	if b, err := os.ReadFile("/proc/asound/cards"); err == nil &&
		len(b) > 0 && !strings.Contains(string(b), "no soundcards") {
		return true
	}
	if available("pactl") {
		if out, err := exec.Command("pactl", "list", "short", "sinks").Output(); err == nil && len(out) > 0 {
			return true
		}
	}
	return false
}

func windowsAudioRunning() bool {
	if !available("sc") {
		return true
	}
	out, err := exec.Command("sc", "query", "AudioSrv").Output()
	if err != nil {
		return true
	}
	return strings.Contains(string(out), "RUNNING")
}

func available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
