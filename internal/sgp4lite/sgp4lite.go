// Package sgp4lite is a minimal two-body Keplerian propagator driven by a
// standard two-line element set. It is a stand-in for a full SGP4
// implementation: it converts classical orbital elements to a Cartesian
// state (Vallado, COE2RV) rather than applying SGP4's drag/J2 secular
// perturbation theory, so it is exact for the two-body problem only.
package sgp4lite

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gonum/matrix/mat64"
)

// earthMu is Earth's gravitational parameter in km^3/s^2.
const earthMu = 3.98600433e5

const (
	deg2rad = math.Pi / 180
	day2sec = 86400.0
)

// Satellite is a propagator handle constructed once from a pair of TLE
// lines. Propagate only reads the fields Parse set, so concurrent calls
// on one Satellite are safe; the pipeline constructs one handle per
// object and shares it between the narrow-phase workers.
type Satellite struct {
	epochWhole float64 // Julian day of the TLE epoch
	epochFrac  float64

	meanMotionRadS float64 // mean motion, radians/second
	eccentricity   float64
	inclination    float64 // radians
	raan           float64 // radians
	argPerigee     float64 // radians
	meanAnomaly0   float64 // radians, at epoch

	semiMajorAxis float64 // km
}

// Parse constructs a Satellite from the two ASCII lines of a TLE.
func Parse(line1, line2 string) (*Satellite, error) {
	if len(line1) < 69 || len(line2) < 69 {
		return nil, fmt.Errorf("sgp4lite: TLE lines too short")
	}
	epochYear, err := strconv.Atoi(strings.TrimSpace(line1[18:20]))
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: epoch year: %w", err)
	}
	epochDay, err := strconv.ParseFloat(strings.TrimSpace(line1[20:32]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: epoch day: %w", err)
	}
	fullYear := 1900 + epochYear
	if epochYear < 57 {
		fullYear = 2000 + epochYear
	}
	epochWhole, epochFrac := yearDayToJD(fullYear, epochDay)

	inclDeg, err := strconv.ParseFloat(strings.TrimSpace(line2[8:16]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: inclination: %w", err)
	}
	raanDeg, err := strconv.ParseFloat(strings.TrimSpace(line2[17:25]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: RAAN: %w", err)
	}
	eccStr := strings.TrimSpace(line2[26:33])
	ecc, err := strconv.ParseFloat("0."+eccStr, 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: eccentricity: %w", err)
	}
	argPerigeeDeg, err := strconv.ParseFloat(strings.TrimSpace(line2[34:42]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: argument of perigee: %w", err)
	}
	meanAnomalyDeg, err := strconv.ParseFloat(strings.TrimSpace(line2[43:51]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: mean anomaly: %w", err)
	}
	meanMotionRevDay, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
	if err != nil {
		return nil, fmt.Errorf("sgp4lite: mean motion: %w", err)
	}
	if meanMotionRevDay <= 0 {
		return nil, fmt.Errorf("sgp4lite: non-positive mean motion")
	}

	meanMotionRadS := meanMotionRevDay * 2 * math.Pi / day2sec
	semiMajorAxis := math.Cbrt(earthMu / (meanMotionRadS * meanMotionRadS))

	return &Satellite{
		epochWhole:     epochWhole,
		epochFrac:      epochFrac,
		meanMotionRadS: meanMotionRadS,
		eccentricity:   ecc,
		inclination:    inclDeg * deg2rad,
		raan:           raanDeg * deg2rad,
		argPerigee:     argPerigeeDeg * deg2rad,
		meanAnomaly0:   meanAnomalyDeg * deg2rad,
		semiMajorAxis:  semiMajorAxis,
	}, nil
}

// Propagate evaluates the satellite's state at the given Julian date,
// expressed as (whole, frac) to match the two-part time representation
// used throughout this module. status == 0 on success; any other value
// means posKm/velKmS must be treated as undefined by the caller.
func (s *Satellite) Propagate(whole, frac float64) (status int, posKm, velKmS [3]float64) {
	dtSeconds := ((whole - s.epochWhole) + (frac - s.epochFrac)) * day2sec
	meanAnomaly := s.meanAnomaly0 + s.meanMotionRadS*dtSeconds

	eccAnomaly, ok := solveKepler(meanAnomaly, s.eccentricity)
	if !ok {
		return 1, posKm, velKmS
	}

	trueAnomaly := eccentricToTrue(eccAnomaly, s.eccentricity)
	r, v := coe2rv(s.semiMajorAxis, s.eccentricity, s.inclination, s.raan, s.argPerigee, trueAnomaly)
	return 0, r, v
}

// solveKepler solves Kepler's equation M = E - e*sin(E) for E via
// Newton-Raphson, matching the precision the narrow-phase refiner needs
// (sub-second time resolution).
func solveKepler(meanAnomaly, ecc float64) (float64, bool) {
	m := math.Mod(meanAnomaly, 2*math.Pi)
	e := m
	for i := 0; i < 50; i++ {
		f := e - ecc*math.Sin(e) - m
		fPrime := 1 - ecc*math.Cos(e)
		if fPrime == 0 {
			return 0, false
		}
		delta := f / fPrime
		e -= delta
		if math.Abs(delta) < 1e-12 {
			return e, true
		}
	}
	return 0, false
}

func eccentricToTrue(eccAnomaly, ecc float64) float64 {
	sinE, cosE := math.Sincos(eccAnomaly)
	y := math.Sqrt(1-ecc*ecc) * sinE
	x := cosE - ecc
	return math.Atan2(y, x)
}

// coe2rv converts classical orbital elements to an Earth-centered
// inertial position/velocity pair. Ported from the perifocal-frame
// rotation used by NewOrbitFromOE (Vallado, 4th edition, COE2RV).
func coe2rv(a, e, incl, raan, argPerigee, trueAnomaly float64) (r, v [3]float64) {
	p := a * (1 - e*e)
	sinν, cosν := math.Sincos(trueAnomaly)
	muOverP := math.Sqrt(earthMu / p)

	rPQW := [3]float64{p * cosν / (1 + e*cosν), p * sinν / (1 + e*cosν), 0}
	vPQW := [3]float64{-muOverP * sinν, muOverP * (e + cosν), 0}

	r = rot313(argPerigee, incl, raan, rPQW)
	v = rot313(argPerigee, incl, raan, vPQW)
	return r, v
}

// rot313 applies the 3-1-3 Euler rotation (about perigee argument, then
// inclination, then RAAN) used to move a perifocal vector into the
// Earth-centered inertial frame, via gonum's dense matrix type.
func rot313(angle3a, angle1, angle3b float64, vec [3]float64) [3]float64 {
	var step mat64.Dense
	step.Mul(rotX(angle1), rotZ(angle3a))
	var combined mat64.Dense
	combined.Mul(rotZ(angle3b), &step)
	return mulVec3(&combined, vec)
}

func rotZ(angle float64) *mat64.Dense {
	s, c := math.Sincos(angle)
	return mat64.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func rotX(angle float64) *mat64.Dense {
	s, c := math.Sincos(angle)
	return mat64.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// mulVec3 multiplies a 3x3 matrix by a 3-vector, mirroring the teacher's
// own MxV33 helper.
func mulVec3(m *mat64.Dense, v [3]float64) [3]float64 {
	vVec := mat64.NewVector(3, v[:])
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return [3]float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// unixEpochJD is the Julian date of 1970-01-01T00:00:00Z.
const unixEpochJD = 2440587.5

// yearDayToJD converts a TLE epoch (4-digit year, fractional day-of-year)
// into a Julian date split as (whole, frac).
func yearDayToJD(year int, dayOfYear float64) (whole, frac float64) {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	full := unixEpochJD + float64(jan1.Unix())/day2sec + (dayOfYear - 1)
	whole = math.Floor(full)
	frac = full - whole
	return
}
