// Package jd implements the two-part Julian date arithmetic that every
// other package in this module schedules against.
package jd

import (
	"errors"
	"math"
	"time"

	"github.com/soniakeys/meeus/julian"
)

// Time is a two-part Julian date: Whole is an integer day count, Frac is
// the fractional part of that day. The pair preserves more precision near
// the second scale than a single float64 would over a multi-decade span.
//
// Invariant: 0 <= Frac < 1 holds after Normalize, but is not enforced on
// intermediate results — callers that serialize a Time should Normalize
// it first.
type Time struct {
	Whole float64
	Frac  float64
}

// ToFloat collapses the two-part representation into a single float64.
func (t Time) ToFloat() float64 {
	return t.Whole + t.Frac
}

// FromFloat splits a single float64 Julian date back into (whole, frac).
func FromFloat(v float64) Time {
	whole := math.Floor(v)
	return Time{Whole: whole, Frac: v - whole}
}

// Normalize returns an equivalent Time with 0 <= Frac < 1.
func (t Time) Normalize() Time {
	return FromFloat(t.ToFloat())
}

// AddSeconds returns t advanced by s seconds (s may be negative).
//
// The offset is added to the fractional part and any whole days carried
// into Whole, so the result keeps sub-microsecond precision instead of
// the tens of microseconds a single float64 Julian date resolves.
func AddSeconds(t Time, s float64) Time {
	frac := t.Frac + s/86400
	carry := math.Floor(frac)
	return Time{Whole: t.Whole + carry, Frac: frac - carry}
}

// DiffSeconds returns a - b, in seconds, differencing the whole and
// fractional parts separately.
func DiffSeconds(a, b Time) float64 {
	return ((a.Whole - b.Whole) + (a.Frac - b.Frac)) * 86400
}

// Midpoint returns the Julian date halfway between a and b.
func Midpoint(a, b Time) Time {
	return FromFloat((a.ToFloat() + b.ToFloat()) / 2)
}

// ToDateTime converts a Time to a civil UTC datetime, for reporting only.
func (t Time) ToDateTime() time.Time {
	return julian.JDToTime(t.ToFloat())
}

// FromDateTime builds a Time from a civil UTC datetime.
func FromDateTime(dt time.Time) Time {
	return FromFloat(julian.TimeToJD(dt))
}

// Grid is the ordered sequence of instants the pipeline propagates and
// searches over. Built once at pipeline start; immutable thereafter.
type Grid struct {
	Start          Time
	IntervalSecond float64
	Times          []Time
}

// NewGrid builds the num_steps = floor(horizonMinutes / intervalMinutes)
// instants starting at start, intervalMinutes apart.
func NewGrid(start Time, intervalMinutes, horizonMinutes float64) (Grid, error) {
	if intervalMinutes <= 0 {
		return Grid{}, errors.New("jd: interval_minutes must be positive")
	}
	if horizonMinutes < intervalMinutes {
		return Grid{}, errors.New("jd: horizon_minutes must be at least one interval")
	}
	numSteps := int(math.Floor(horizonMinutes / intervalMinutes))
	intervalSeconds := intervalMinutes * 60
	times := make([]Time, numSteps)
	for i := 0; i < numSteps; i++ {
		times[i] = AddSeconds(start, float64(i)*intervalSeconds)
	}
	return Grid{Start: start, IntervalSecond: intervalSeconds, Times: times}, nil
}

// Len returns the number of instants in the grid.
func (g Grid) Len() int {
	return len(g.Times)
}
