// Package broadphase implements the conservative culling stage of the
// pipeline: for one time slice, it buckets objects into a uniform cubic
// grid and runs a per-axis sweep-and-prune over each bucket's
// 6-neighborhood to emit a superset of the pairs within the collision
// distance.
package broadphase

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/csenn/space-trace-collisions/config"
	"github.com/csenn/space-trace-collisions/internal/vecmath"
	"github.com/csenn/space-trace-collisions/jd"
	"github.com/csenn/space-trace-collisions/propagate"
)

// Pair is an unordered pair of distinct object indices, always
// represented canonically with I < J.
type Pair struct {
	I, J int32
}

// NewPair returns the canonical form of the pair {a, b}.
func NewPair(a, b int32) Pair {
	if a < b {
		return Pair{I: a, J: b}
	}
	return Pair{I: b, J: a}
}

// PairSet is a set of canonical pairs.
type PairSet map[Pair]struct{}

// Stats carries the aggregate statistics the error-handling design calls
// for at the broad-phase boundary.
type Stats struct {
	ZeroDistanceFiltered int64
}

type cellKey struct {
	X, Y, Z int64
}

// buildClusters buckets every object with a finite position at the given
// time index into its grid cell, skipping NaN-coordinate objects
// entirely (rather than the sentinel (0,0,0) bucket the original
// implementation used — see the Open Questions in the design notes).
func buildClusters(tensor *propagate.Tensor, timeIndex int, boxSizeKm float64) map[cellKey][]int32 {
	clusters := make(map[cellKey][]int32)
	for i := 0; i < tensor.N; i++ {
		pos := tensor.At(i, timeIndex)
		if math.IsNaN(pos[0]) || math.IsNaN(pos[1]) || math.IsNaN(pos[2]) {
			continue
		}
		key := cellKey{
			X: int64(math.Floor(pos[0] / boxSizeKm)),
			Y: int64(math.Floor(pos[1] / boxSizeKm)),
			Z: int64(math.Floor(pos[2] / boxSizeKm)),
		}
		clusters[key] = append(clusters[key], int32(i))
	}
	return clusters
}

var faceNeighbors = [7][3]int64{
	{0, 0, 0},
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

type axisSample struct {
	index int32
	coord float64
}

// axisPairs sorts the given samples by coordinate and sweeps forward
// from each element, emitting canonical pairs while the gap to the
// anchor stays within collisionDistanceKm. The inner scan stops at the
// first violation, since the samples are sorted (monotone).
func axisPairs(samples []axisSample, collisionDistanceKm float64) PairSet {
	sort.Slice(samples, func(i, j int) bool { return samples[i].coord < samples[j].coord })
	pairs := make(PairSet)
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			if samples[j].coord-samples[i].coord > collisionDistanceKm {
				break
			}
			pairs[NewPair(samples[i].index, samples[j].index)] = struct{}{}
		}
	}
	return pairs
}

func intersectPairSets(sets ...PairSet) PairSet {
	if len(sets) == 0 {
		return PairSet{}
	}
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}
	result := make(PairSet)
	for p := range smallest {
		inAll := true
		for _, s := range sets {
			if _, ok := s[p]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			result[p] = struct{}{}
		}
	}
	return result
}

// FindSlice runs Stages A-C for a single time slice and returns the
// surviving candidate pairs. It is a pure, stateless function of the
// tensor and time index.
func FindSlice(tensor *propagate.Tensor, timeIndex int, cfg config.Config) (PairSet, Stats) {
	clusters := buildClusters(tensor, timeIndex, cfg.BoxSizeKm)

	unionPairs := make(PairSet)
	for key, members := range clusters {
		var union []int32
		for _, d := range faceNeighbors {
			neighborKey := cellKey{X: key.X + d[0], Y: key.Y + d[1], Z: key.Z + d[2]}
			union = append(union, clusters[neighborKey]...)
		}
		if len(union) < 2 {
			continue
		}
		_ = members // membership is already folded into union via faceNeighbors[0] == (0,0,0)

		xs := make([]axisSample, 0, len(union))
		ys := make([]axisSample, 0, len(union))
		zs := make([]axisSample, 0, len(union))
		for _, idx := range union {
			pos := tensor.At(int(idx), timeIndex)
			xs = append(xs, axisSample{idx, pos[0]})
			ys = append(ys, axisSample{idx, pos[1]})
			zs = append(zs, axisSample{idx, pos[2]})
		}

		candidates := intersectPairSets(
			axisPairs(xs, cfg.CollisionDistanceKm),
			axisPairs(ys, cfg.CollisionDistanceKm),
			axisPairs(zs, cfg.CollisionDistanceKm),
		)
		for p := range candidates {
			unionPairs[p] = struct{}{}
		}
	}

	return exactDistanceFilter(tensor, timeIndex, unionPairs)
}

// exactDistanceFilter implements Stage C: compute true Euclidean
// distance for each surviving pair and reject NaN-bearing or
// zero-distance (data-duplication artifact) pairs.
func exactDistanceFilter(tensor *propagate.Tensor, timeIndex int, candidates PairSet) (PairSet, Stats) {
	var stats Stats
	final := make(PairSet, len(candidates))
	for p := range candidates {
		a := tensor.At(int(p.I), timeIndex)
		b := tensor.At(int(p.J), timeIndex)
		if math.IsNaN(a[0]) || math.IsNaN(a[1]) || math.IsNaN(a[2]) ||
			math.IsNaN(b[0]) || math.IsNaN(b[1]) || math.IsNaN(b[2]) {
			continue
		}
		relative := []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
		dist := vecmath.Norm(relative)
		if dist == 0 {
			stats.ZeroDistanceFiltered++
			continue
		}
		final[p] = struct{}{}
	}
	return final, stats
}

// FindAll fans FindSlice out across every time index in the grid,
// embarrassingly parallel per the concurrency model: each worker reads
// the shared, read-only tensor and returns its own pair set.
func FindAll(ctx context.Context, tensor *propagate.Tensor, grid jd.Grid, cfg config.Config) (map[jd.Time]PairSet, Stats, error) {
	results := make(map[jd.Time]PairSet, grid.Len())
	var mu sync.Mutex
	var totalZeroFiltered int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for ti := 0; ti < grid.Len(); ti++ {
		ti := ti
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pairs, stats := FindSlice(tensor, ti, cfg)
			mu.Lock()
			results[grid.Times[ti]] = pairs
			totalZeroFiltered += stats.ZeroDistanceFiltered
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	return results, Stats{ZeroDistanceFiltered: totalZeroFiltered}, nil
}
