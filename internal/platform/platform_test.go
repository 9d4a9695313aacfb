package platform

import (
	"strings"
	"testing"
)

func TestIsCIFromEnv(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "true")
	if !IsCI() {
		t.Error("expected CI to be detected from GITHUB_ACTIONS")
	}
}

func TestIsCIHeadlessOverride(t *testing.T) {
	for _, v := range []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI",
		"JENKINS_URL", "TRAVIS", "CIRCLECI", "BUILDKITE", "DRONE", "TEAMCITY_VERSION"} {
		t.Setenv(v, "")
	}
	t.Setenv("FOCUSPLAYER_HEADLESS", "true")
	if !IsCI() {
		t.Error("expected FOCUSPLAYER_HEADLESS=true to force headless")
	}
	t.Setenv("FOCUSPLAYER_HEADLESS", "")
	if IsCI() {
		t.Error("expected no CI without any variables set")
	}
}

func TestHeadless(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want bool
	}{
		{"ci", Info{OS: Linux, Subsystem: SubsystemALSA, HasDevice: true, IsCI: true}, true},
		{"no subsystem", Info{OS: Linux, Subsystem: SubsystemNone, HasDevice: true}, true},
		{"no device", Info{OS: Linux, Subsystem: SubsystemPulseAudio}, true},
		{"desktop", Info{OS: Darwin, Subsystem: SubsystemCoreAudio, HasDevice: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Headless(); got != tt.want {
				t.Errorf("Headless() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		info Info
		want int
	}{
		{Info{OS: Darwin}, 100},
		{Info{OS: Windows}, 80},
		{Info{OS: Linux, Subsystem: SubsystemPulseAudio}, 60},
		{Info{OS: Linux, Subsystem: SubsystemALSA}, 50},
		{Info{OS: Unknown}, 50},
	}
	for _, tt := range tests {
		if got := tt.info.BufferSize(); got != tt.want {
			t.Errorf("%s: BufferSize() = %d, want %d", tt.info.String(), got, tt.want)
		}
	}
}

func TestDetectNeverPanics(t *testing.T) {
	info := Detect()
	if info == nil {
		t.Fatal("Detect returned nil")
	}
	if !strings.HasPrefix(info.String(), "Platform{") {
		t.Errorf("unexpected String(): %s", info.String())
	}
}
