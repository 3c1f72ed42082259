// Package propagate turns a catalog of objects and a time grid into the
// dense position tensor the broad-phase and narrow-phase stages read
// from. It owns one propagator handle per object and tolerates
// per-call numerical failure without aborting the run.
package propagate

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	kitlog "github.com/go-kit/kit/log"
	"golang.org/x/sync/errgroup"

	"github.com/csenn/space-trace-collisions/catalog"
	"github.com/csenn/space-trace-collisions/internal/sgp4lite"
	"github.com/csenn/space-trace-collisions/jd"
)

// Handle is the external propagator contract: given a Julian date split
// as (whole, frac), it returns a status code (0 == success) and the
// position/velocity at that instant. Precompute calls each handle from a
// single goroutine; narrowphase.RefineAll shares one handle per object
// between the goroutines refining that object's pairs, so Propagate may
// be called on one handle concurrently.
type Handle interface {
	Propagate(whole, frac float64) (status int, posKm, velKmS [3]float64)
}

// NewHandle constructs the in-module propagator stand-in from a TLE pair.
// Returning (nil, err) here is the "propagator initialization failure"
// case from the error-handling design: fatal for the object, not the run.
func NewHandle(line1, line2 string) (Handle, error) {
	return sgp4lite.Parse(line1, line2)
}

// Tensor is the dense [N x T x 3] position tensor, stored flat and
// row-major (object, then time, then axis) so that each object's writes
// during precomputation land in a disjoint, contiguous slice.
type Tensor struct {
	Data []float64 // len == N*T*3
	N    int
	T    int
}

// At returns the position at (objectIndex, timeIndex).
func (tn *Tensor) At(objectIndex, timeIndex int) [3]float64 {
	base := (objectIndex*tn.T + timeIndex) * 3
	return [3]float64{tn.Data[base], tn.Data[base+1], tn.Data[base+2]}
}

func (tn *Tensor) set(objectIndex, timeIndex int, pos [3]float64) {
	base := (objectIndex*tn.T + timeIndex) * 3
	tn.Data[base] = pos[0]
	tn.Data[base+1] = pos[1]
	tn.Data[base+2] = pos[2]
}

func (tn *Tensor) row(objectIndex int) []float64 {
	start := objectIndex * tn.T * 3
	return tn.Data[start : start+tn.T*3]
}

// IndexLookup is the pair of reverse maps TP emits alongside the tensor.
type IndexLookup struct {
	IndexToID     []string
	TimeToInstant []jd.Time
}

// Stats carries the aggregate statistics the error-handling design calls
// for: how many catalog entries were dropped at init, and how many
// individual (object, time) samples failed and were written as NaN.
type Stats struct {
	DroppedObjects int
	NaNSlots       int64
}

type objectTask struct {
	index  int
	id     string
	handle Handle
}

// Precompute builds the position tensor for every retained catalog entry
// over the given grid, parallelizing over objects (one propagator handle
// per object; disjoint tensor rows; no locking required). The returned
// handle slice is indexed identically to the tensor's object axis, so
// later stages can re-query a propagator directly at instants off the
// grid without re-parsing the catalog. A nil logger is treated as a
// no-op logger.
func Precompute(ctx context.Context, objects []catalog.Object, grid jd.Grid, logger kitlog.Logger) (*Tensor, IndexLookup, []Handle, Stats, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	retained := catalog.Filter(objects)

	var stats Stats
	tasks := make([]objectTask, 0, len(retained))
	indexToID := make([]string, 0, len(retained))
	handles := make([]Handle, 0, len(retained))
	for _, obj := range retained {
		handle, err := NewHandle(obj.Line1, obj.Line2)
		if err != nil {
			// Propagator initialization failure: fatal for this object,
			// not the run. Drop it and keep going.
			logger.Log("level", "warning", "subsys", "precompute", "object_id", obj.ObjectID, "err", err)
			stats.DroppedObjects++
			continue
		}
		tasks = append(tasks, objectTask{index: len(indexToID), id: obj.ObjectID, handle: handle})
		indexToID = append(indexToID, obj.ObjectID)
		handles = append(handles, handle)
	}

	t := grid.Len()
	tensor := &Tensor{Data: make([]float64, len(tasks)*t*3), N: len(tasks), T: t}
	timeToInstant := make([]jd.Time, t)
	copy(timeToInstant, grid.Times)

	var nanSlots int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := tensor.row(task.index)
			for ti, instant := range grid.Times {
				status, pos, _ := task.handle.Propagate(instant.Whole, instant.Frac)
				base := ti * 3
				if status != 0 {
					row[base] = nan()
					row[base+1] = nan()
					row[base+2] = nan()
					atomic.AddInt64(&nanSlots, 1)
					continue
				}
				row[base] = pos[0]
				row[base+1] = pos[1]
				row[base+2] = pos[2]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, IndexLookup{}, nil, stats, fmt.Errorf("propagate: precompute: %w", err)
	}

	stats.NaNSlots = atomic.LoadInt64(&nanSlots)
	return tensor, IndexLookup{IndexToID: indexToID, TimeToInstant: timeToInstant}, handles, stats, nil
}

func nan() float64 {
	var zero float64
	return zero / zero
}
