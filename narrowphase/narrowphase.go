// Package narrowphase takes the broad-phase engine's candidate pairs and
// refines each one to the sub-second instant of closest approach, by
// directed binary subdivision of a bracket window around the candidate
// time.
package narrowphase

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gonum/matrix/mat64"

	"github.com/csenn/space-trace-collisions/broadphase"
	"github.com/csenn/space-trace-collisions/config"
	"github.com/csenn/space-trace-collisions/jd"
	"github.com/csenn/space-trace-collisions/propagate"
)

// Event is one refined conjunction: a pair, the instant of closest
// approach found within the search window, the distance there, and each
// object's position at that instant (for reporting).
type Event struct {
	Pair          broadphase.Pair
	Time          jd.Time
	MinDistanceKm float64
	PosAKm        [3]float64
	PosBKm        [3]float64
}

// Candidate is one broad-phase hit to refine: a pair observed at a
// coarse grid instant.
type Candidate struct {
	Pair broadphase.Pair
	At   jd.Time
}

// RelativeState reports the relative position vector between two object
// states as a mat64.Vector, the form the gonum matrix package operates
// on directly.
func RelativeState(a, b [3]float64) *mat64.Vector {
	return mat64.NewVector(3, []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]})
}

// statesAt samples both handles at t. ok is false if either propagator
// sample failed, in which case posA/posB must not be trusted.
func statesAt(a, b propagate.Handle, t jd.Time) (posA, posB [3]float64, ok bool) {
	statusA, posA, _ := a.Propagate(t.Whole, t.Frac)
	statusB, posB, _ := b.Propagate(t.Whole, t.Frac)
	return posA, posB, statusA == 0 && statusB == 0
}

func distanceAt(a, b propagate.Handle, t jd.Time) float64 {
	posA, posB, ok := statesAt(a, b, t)
	if !ok {
		return math.Inf(1)
	}
	return mat64.Norm(RelativeState(posA, posB), 2)
}

// Refine brackets candidateTime by +/- cfg.RefineWindowSeconds and
// repeatedly bisects it, at each step looking one second to the left of
// the midpoint to decide which half contains the descent toward the
// minimum, until the bracket shrinks below cfg.RefineToleranceSeconds.
// A failed propagator sample (status != 0) reads as +Inf distance,
// steering the search away from it without aborting the run. The
// bracket's left edge is the refined instant, matching the documented
// binary-search termination contract.
func Refine(a, b propagate.Handle, candidateTime jd.Time, cfg config.Config) Event {
	left := jd.AddSeconds(candidateTime, -cfg.RefineWindowSeconds)
	right := jd.AddSeconds(candidateTime, cfg.RefineWindowSeconds)

	for jd.DiffSeconds(right, left) > cfg.RefineToleranceSeconds {
		mid := jd.Midpoint(left, right)
		probe := jd.AddSeconds(mid, -1)
		if distanceAt(a, b, probe) <= distanceAt(a, b, mid) {
			right = mid
		} else {
			left = mid
		}
	}

	posA, posB, ok := statesAt(a, b, left)
	dist := math.Inf(1)
	if ok {
		dist = mat64.Norm(RelativeState(posA, posB), 2)
	}
	return Event{Time: left, MinDistanceKm: dist, PosAKm: posA, PosBKm: posB}
}

// CandidatesFromBroadPhase flattens the per-time-index broad-phase
// output into one candidate per (pair, time) observation. A pair seen
// at several consecutive grid instants yields one candidate per
// instant; refinement around each converges to the same instant in
// practice, and aggregation later dedupes by pair.
func CandidatesFromBroadPhase(pairsByTime map[jd.Time]broadphase.PairSet) []Candidate {
	candidates := make([]Candidate, 0, len(pairsByTime))
	for t, pairs := range pairsByTime {
		for p := range pairs {
			candidates = append(candidates, Candidate{Pair: p, At: t})
		}
	}
	return candidates
}

// RefineAll refines every candidate in parallel. handles is indexed
// identically to the tensor/handle slice produced by propagate.Precompute.
// No per-worker handles are constructed: candidates that share an object
// call Propagate on the same handle, possibly at the same time.
func RefineAll(ctx context.Context, candidates []Candidate, handles []propagate.Handle, cfg config.Config) ([]Event, error) {
	events := make([]Event, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, b := handles[c.Pair.I], handles[c.Pair.J]
			event := Refine(a, b, c.At, cfg)
			event.Pair = c.Pair
			events[i] = event // disjoint write, one goroutine per index
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}
