// Package collisions wires time arithmetic, trajectory precomputation,
// broad-phase culling, and narrow-phase refinement into the end-to-end
// conjunction search, and aggregates the refined events into a report.
package collisions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	kitlog "github.com/go-kit/kit/log"

	"github.com/csenn/space-trace-collisions/broadphase"
	"github.com/csenn/space-trace-collisions/catalog"
	"github.com/csenn/space-trace-collisions/config"
	"github.com/csenn/space-trace-collisions/jd"
	"github.com/csenn/space-trace-collisions/narrowphase"
	"github.com/csenn/space-trace-collisions/propagate"
)

// CollisionEvent is one refined approach within a pair's history: the
// instant it occurred and the distance then.
type CollisionEvent struct {
	DateISO       string  `json:"date_iso"`
	JulianDate    float64 `json:"julian_date"`
	MinDistanceKm float64 `json:"min_distance_km"`
}

// CollisionRecord is one pair's full conjunction history: every refined
// approach, sorted ascending by distance, plus each object's position at
// the closest of them.
type CollisionRecord struct {
	Sat1ID     string           `json:"sat_1_id"`
	Sat2ID     string           `json:"sat_2_id"`
	Sat1XYZ    [3]float64       `json:"sat_1_xyz"`
	Sat2XYZ    [3]float64       `json:"sat_2_xyz"`
	Collisions []CollisionEvent `json:"collisions"`
}

// Report is the top-level output document: one record per pair, sorted
// ascending by that pair's closest approach, truncated to top_k.
type Report []CollisionRecord

// Stats aggregates the diagnostics every stage contributes, for logging.
type Stats struct {
	DroppedObjects       int
	NaNSlots              int64
	ZeroDistanceFiltered  int64
	CandidatePairs        int
	RefinedPairs          int
}

// Run executes the full pipeline: validate cfg, precompute trajectories,
// cull with the broad-phase engine, refine every surviving candidate, and
// aggregate the results into a report truncated to cfg.TopK pairs.
func Run(ctx context.Context, objects []catalog.Object, cfg config.Config, logger kitlog.Logger) (Report, Stats, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	if err := cfg.Validate(); err != nil {
		return Report{}, Stats{}, fmt.Errorf("collisions: %w", err)
	}

	grid, err := jd.NewGrid(cfg.StartTime, cfg.IntervalMinutes, cfg.HorizonMinutes)
	if err != nil {
		return Report{}, Stats{}, fmt.Errorf("collisions: building grid: %w", err)
	}
	logger.Log("stage", "time-grid", "steps", grid.Len())

	tensor, lookup, handles, tpStats, err := propagate.Precompute(ctx, objects, grid, logger)
	if err != nil {
		return Report{}, Stats{}, fmt.Errorf("collisions: precompute: %w", err)
	}
	logger.Log("stage", "precompute", "objects", tensor.N, "dropped", tpStats.DroppedObjects, "nan_slots", tpStats.NaNSlots)

	pairsByTime, bpStats, err := broadphase.FindAll(ctx, tensor, grid, cfg)
	if err != nil {
		return Report{}, Stats{}, fmt.Errorf("collisions: broad phase: %w", err)
	}

	candidates := narrowphase.CandidatesFromBroadPhase(pairsByTime)
	logger.Log("stage", "broad-phase", "candidates", len(candidates), "zero_distance_filtered", bpStats.ZeroDistanceFiltered)

	events, err := narrowphase.RefineAll(ctx, candidates, handles, cfg)
	if err != nil {
		return Report{}, Stats{}, fmt.Errorf("collisions: narrow phase: %w", err)
	}
	logger.Log("stage", "narrow-phase", "refined", len(events))

	report := Aggregate(events, lookup, cfg.TopK)
	stats := Stats{
		DroppedObjects:       tpStats.DroppedObjects,
		NaNSlots:             tpStats.NaNSlots,
		ZeroDistanceFiltered: bpStats.ZeroDistanceFiltered,
		CandidatePairs:       len(candidates),
		RefinedPairs:         len(events),
	}
	return report, stats, nil
}

// Aggregate groups refined events by canonical pair, keeping every
// refined approach (not just the closest): per pair, events are sorted
// ascending by distance, and the closest one's positions become the
// pair's reported sat_1_xyz/sat_2_xyz. Pairs are then sorted by their own
// closest distance and truncated to the topK most urgent conjunctions.
//
// Grounded on find_closest_collisions's collision_lookup: it groups a
// globally-presorted event list by canonical pair, so the first event
// recorded against each pair is always that pair's closest.
func Aggregate(events []narrowphase.Event, lookup propagate.IndexLookup, topK int) Report {
	byPair := make(map[broadphase.Pair][]narrowphase.Event)
	for _, e := range events {
		byPair[e.Pair] = append(byPair[e.Pair], e)
	}

	records := make([]CollisionRecord, 0, len(byPair))
	for pair, group := range byPair {
		sort.Slice(group, func(i, j int) bool {
			return group[i].MinDistanceKm < group[j].MinDistanceKm
		})

		closest := group[0]
		collisionEvents := make([]CollisionEvent, 0, len(group))
		for _, e := range group {
			collisionEvents = append(collisionEvents, CollisionEvent{
				DateISO:       e.Time.ToDateTime().UTC().Format(time.RFC3339),
				JulianDate:    e.Time.ToFloat(),
				MinDistanceKm: e.MinDistanceKm,
			})
		}

		records = append(records, CollisionRecord{
			Sat1ID:     idFor(lookup, pair.I),
			Sat2ID:     idFor(lookup, pair.J),
			Sat1XYZ:    closest.PosAKm,
			Sat2XYZ:    closest.PosBKm,
			Collisions: collisionEvents,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Collisions[0].MinDistanceKm < records[j].Collisions[0].MinDistanceKm
	})

	if topK > 0 && len(records) > topK {
		records = records[:topK]
	}
	return Report(records)
}

func idFor(lookup propagate.IndexLookup, index int32) string {
	if int(index) < 0 || int(index) >= len(lookup.IndexToID) {
		return ""
	}
	return lookup.IndexToID[index]
}

// WriteReportJSON serializes the report to w as JSON.
func WriteReportJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
