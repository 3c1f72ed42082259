package jd

import (
	"math"
	"testing"
)

func TestAddSecondsRoundTrip(t *testing.T) {
	start := Time{Whole: 2460689, Frac: 0.5}
	for _, s := range []float64{0, 1, -1, 3600, -86400, 43200.25} {
		advanced := AddSeconds(start, s)
		got := DiffSeconds(advanced, start)
		if math.Abs(got-s) > 1e-6 {
			t.Fatalf("round trip for %.3fs: got diff %.9f", s, got)
		}
	}
}

func TestMidpoint(t *testing.T) {
	a := Time{Whole: 2460689, Frac: 0.0}
	b := Time{Whole: 2460689, Frac: 0.5}
	m := Midpoint(a, b)
	if math.Abs(m.ToFloat()-2460689.25) > 1e-9 {
		t.Fatalf("expected midpoint 2460689.25, got %v", m.ToFloat())
	}
}

func TestFromFloatNormalizesFrac(t *testing.T) {
	tm := FromFloat(2460689.75)
	if tm.Whole != 2460689 {
		t.Fatalf("expected whole 2460689, got %v", tm.Whole)
	}
	if math.Abs(tm.Frac-0.75) > 1e-9 {
		t.Fatalf("expected frac 0.75, got %v", tm.Frac)
	}
}

func TestNewGridStepCount(t *testing.T) {
	start := Time{Whole: 2460689, Frac: 0.5}
	g, err := NewGrid(start, 4, 1440)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if g.Len() != 360 {
		t.Fatalf("expected 360 steps for a 24h horizon at 4 minute interval, got %d", g.Len())
	}
	if math.Abs(DiffSeconds(g.Times[1], g.Times[0])-240) > 1e-6 {
		t.Fatalf("expected 240s between consecutive grid instants, got %.3f", DiffSeconds(g.Times[1], g.Times[0]))
	}
}

func TestNewGridFloorsPartialStep(t *testing.T) {
	start := Time{Whole: 2460689, Frac: 0}
	g, err := NewGrid(start, 7, 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if g.Len() != 14 { // floor(100/7) == 14
		t.Fatalf("expected 14 steps, got %d", g.Len())
	}
}

func TestNewGridRejectsBadConfig(t *testing.T) {
	start := Time{Whole: 2460689, Frac: 0}
	if _, err := NewGrid(start, 0, 1440); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := NewGrid(start, 10, 5); err == nil {
		t.Fatal("expected error for horizon shorter than interval")
	}
}

func TestDriftOverFullHorizonStaysSubSecond(t *testing.T) {
	start := Time{Whole: 2460689, Frac: 0.5}
	g, err := NewGrid(start, 4, 1440)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	last := g.Times[g.Len()-1]
	expectedSeconds := float64(g.Len()-1) * g.IntervalSecond
	drift := math.Abs(DiffSeconds(last, start) - expectedSeconds)
	if drift > 1 {
		t.Fatalf("drift over full horizon exceeded one second: %.6f", drift)
	}
}

func TestToDateTimeEpoch(t *testing.T) {
	// 2451545.0 is 2000-01-01T12:00:00Z.
	tm := Time{Whole: 2451545, Frac: 0}
	dt := tm.ToDateTime()
	if dt.Year() != 2000 || dt.Month() != 1 || dt.Day() != 1 || dt.Hour() != 12 {
		t.Fatalf("expected 2000-01-01T12:00:00Z, got %s", dt)
	}
}
