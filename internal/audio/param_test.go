package audio

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParamSetValue(t *testing.T) {
	p := newParam(1, nil)
	p.SetValueAtTime(0.5, 1)
	p.SetValue(0.25)
	if got := p.ValueAt(2); !approx(got, 0.25) {
		t.Errorf("ValueAt(2) = %v, want 0.25", got)
	}
	if p.Scheduled() != 0 {
		t.Errorf("SetValue should drop scheduled events, have %d", p.Scheduled())
	}
}

func TestParamAutomation(t *testing.T) {
	tests := []struct {
		name     string
		schedule func(p *Param)
		at       float64
		want     float64
	}{
		{
			name:     "before step",
			schedule: func(p *Param) { p.SetValueAtTime(0, 1) },
			at:       0.5,
			want:     1,
		},
		{
			name:     "after step",
			schedule: func(p *Param) { p.SetValueAtTime(0, 1) },
			at:       1,
			want:     0,
		},
		{
			name: "linear ramp midpoint",
			schedule: func(p *Param) {
				p.SetValueAtTime(0, 0)
				p.LinearRampToValueAtTime(1, 2)
			},
			at:   1,
			want: 0.5,
		},
		{
			name: "linear ramp complete",
			schedule: func(p *Param) {
				p.SetValueAtTime(0, 0)
				p.LinearRampToValueAtTime(1, 2)
			},
			at:   3,
			want: 1,
		},
		{
			name:     "target after one time constant",
			schedule: func(p *Param) { p.SetTargetAtTime(0, 1, 0.5) },
			at:       1.5,
			want:     math.Exp(-1),
		},
		{
			name:     "target before start",
			schedule: func(p *Param) { p.SetTargetAtTime(0, 1, 0.5) },
			at:       0.9,
			want:     1,
		},
		{
			name:     "zero time constant is a step",
			schedule: func(p *Param) { p.SetTargetAtTime(0.3, 1, 0) },
			at:       1,
			want:     0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParam(1, nil)
			tt.schedule(p)
			if got := p.ValueAt(tt.at); !approx(got, tt.want) {
				t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestParamRampStartsNow(t *testing.T) {
	now := 10.0
	p := newParam(0, func() float64 { return now })
	p.LinearRampToValueAtTime(1, 11)

	if got := p.ValueAt(10); !approx(got, 0) {
		t.Errorf("ramp should start at now, got %v", got)
	}
	if got := p.ValueAt(10.5); !approx(got, 0.5) {
		t.Errorf("ValueAt(10.5) = %v, want 0.5", got)
	}
}

func TestParamCancelPreservesValue(t *testing.T) {
	p := newParam(0, nil)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 2)

	p.CancelScheduledValues(1)
	if got := p.ValueAt(1); !approx(got, 0) {
		// The ramp ended after the cancel time and was removed; the step at 0 holds.
		t.Errorf("ValueAt(1) = %v, want 0", got)
	}

	q := newParam(1, nil)
	q.SetTargetAtTime(0, 0, 1)
	q.CancelScheduledValues(1)
	want := math.Exp(-1)
	if got := q.ValueAt(1); !approx(got, want) {
		t.Errorf("ValueAt(1) after cancel = %v, want %v", got, want)
	}
	if got := q.ValueAt(2); !approx(got, math.Exp(-2)) {
		t.Errorf("approach should continue after cancel, got %v", got)
	}
	if q.Scheduled() != 1 {
		t.Errorf("expected the active approach to be kept, have %d events", q.Scheduled())
	}
}

func TestParamCancelThenTarget(t *testing.T) {
	// The pattern used for click-free volume changes.
	p := newParam(0.25, nil)
	for i := 0; i < 50; i++ {
		now := float64(i) * 0.01
		p.CancelScheduledValues(now)
		p.SetTargetAtTime(0.49, now, 0.05)
	}
	if n := p.Scheduled(); n != 1 {
		t.Errorf("repeated ramps should not accumulate events, have %d", n)
	}
	if got := p.ValueAt(10); math.Abs(got-0.49) > 1e-6 {
		t.Errorf("ValueAt(10) = %v, want ~0.49", got)
	}
}

func TestParamSameTimeEventReplaces(t *testing.T) {
	p := newParam(1, nil)
	p.SetTargetAtTime(0, 1, 0.5)
	p.SetTargetAtTime(0.5, 1, 0.5)
	p.SetValueAtTime(0.2, 3)
	if n := p.Scheduled(); n != 2 {
		t.Fatalf("Scheduled = %d, want 2", n)
	}
	want := 0.5 + 0.5*math.Exp(-1)
	if got := p.ValueAt(1.5); !approx(got, want) {
		t.Errorf("ValueAt(1.5) = %v, want %v", got, want)
	}
}

func TestParamFill(t *testing.T) {
	p := newParam(0, nil)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	out := make([]float64, 5)
	p.fill(out, 0, 0.25)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if !approx(out[i], want[i]) {
			t.Errorf("fill[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}
