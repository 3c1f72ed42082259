package broadphase

import (
	"context"
	"testing"

	"github.com/csenn/space-trace-collisions/config"
	"github.com/csenn/space-trace-collisions/jd"
	"github.com/csenn/space-trace-collisions/propagate"
)

func nan() float64 {
	var zero float64
	return zero / zero
}

func tensorOf(positions [][3]float64) *propagate.Tensor {
	tn := &propagate.Tensor{Data: make([]float64, len(positions)*3), N: len(positions), T: 1}
	for i, p := range positions {
		base := i * 3
		tn.Data[base], tn.Data[base+1], tn.Data[base+2] = p[0], p[1], p[2]
	}
	return tn
}

func testConfig() config.Config {
	return config.Default(jd.Time{Whole: 2460689, Frac: 0.5})
}

func TestNewPairIsCanonical(t *testing.T) {
	a := NewPair(5, 2)
	b := NewPair(2, 5)
	if a != b {
		t.Fatalf("expected canonical forms to match, got %v and %v", a, b)
	}
	if a.I != 2 || a.J != 5 {
		t.Fatalf("expected I<J, got %+v", a)
	}
}

func TestFindSliceFindsNearbyPair(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{10, 0, 0},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if _, ok := pairs[NewPair(0, 1)]; !ok {
		t.Fatalf("expected pair (0,1) within collision distance, got %v", pairs)
	}
}

func TestFindSliceRejectsDistantPair(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{cfg.BoxSizeKm * 10, 0, 0},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs for widely separated objects, got %v", pairs)
	}
}

func TestFindSliceRetainsExactlyAtDistance(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{cfg.CollisionDistanceKm, 0, 0},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if _, ok := pairs[NewPair(0, 1)]; !ok {
		t.Fatal("expected pair exactly at collision_distance_km to be retained")
	}
}

func TestFindSliceDropsZeroDistance(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{100, 100, 100},
		{100, 100, 100},
	})
	pairs, stats := FindSlice(tensor, 0, cfg)
	if len(pairs) != 0 {
		t.Fatalf("expected zero-distance pair to be filtered, got %v", pairs)
	}
	if stats.ZeroDistanceFiltered != 1 {
		t.Fatalf("expected 1 zero-distance pair counted, got %d", stats.ZeroDistanceFiltered)
	}
}

func TestFindSliceSkipsNaNObjects(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{nan(), nan(), nan()},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs when one object's position is NaN, got %v", pairs)
	}
}

func TestFindSliceCellBoundaryStillFindsNeighbors(t *testing.T) {
	cfg := testConfig()
	// Two objects straddling a cell boundary, within collision distance
	// of each other but in adjacent grid cells.
	tensor := tensorOf([][3]float64{
		{cfg.BoxSizeKm - 1, 0, 0},
		{cfg.BoxSizeKm + 1, 0, 0},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if _, ok := pairs[NewPair(0, 1)]; !ok {
		t.Fatal("expected pair straddling a cell boundary to still be found via 6-neighbor gathering")
	}
}

func TestFindSliceThreeObjectCluster(t *testing.T) {
	cfg := testConfig()
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{10, 0, 0},
		{0, 10, 0},
	})
	pairs, _ := FindSlice(tensor, 0, cfg)
	if len(pairs) != 3 {
		t.Fatalf("expected all 3 pairs among mutually close objects, got %v", pairs)
	}
}

func TestFindAllCoversEveryTimeIndex(t *testing.T) {
	cfg := testConfig()
	grid, err := jd.NewGrid(jd.Time{Whole: 2460689, Frac: 0.5}, 4, 12)
	if err != nil {
		t.Fatalf("unexpected grid error: %s", err)
	}
	tn := &propagate.Tensor{Data: make([]float64, 2*grid.Len()*3), N: 2, T: grid.Len()}
	for ti := 0; ti < grid.Len(); ti++ {
		tn.Data[ti*3] = 0
		tn.Data[ti*3+1] = 0
		tn.Data[ti*3+2] = 0
		base := (1*grid.Len() + ti) * 3
		tn.Data[base] = 5
		tn.Data[base+1] = 0
		tn.Data[base+2] = 0
	}
	results, _, err := FindAll(context.Background(), tn, grid, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(results) != grid.Len() {
		t.Fatalf("expected one result per time index, got %d", len(results))
	}
	for _, pairs := range results {
		if _, ok := pairs[NewPair(0, 1)]; !ok {
			t.Fatal("expected the close pair present at every time index")
		}
	}
}

func TestAxisPairsEarlyExitOnSortedGap(t *testing.T) {
	samples := []axisSample{
		{index: 0, coord: 0},
		{index: 1, coord: 50},
		{index: 2, coord: 1000},
	}
	pairs := axisPairs(samples, 100)
	if _, ok := pairs[NewPair(0, 1)]; !ok {
		t.Fatal("expected (0,1) within threshold")
	}
	if _, ok := pairs[NewPair(1, 2)]; ok {
		t.Fatal("did not expect (1,2) beyond threshold")
	}
	if _, ok := pairs[NewPair(0, 2)]; ok {
		t.Fatal("did not expect (0,2) beyond threshold")
	}
}

func TestBuildClustersSkipsNaN(t *testing.T) {
	tensor := tensorOf([][3]float64{
		{0, 0, 0},
		{nan(), 0, 0},
	})
	clusters := buildClusters(tensor, 0, 1200)
	total := 0
	for _, members := range clusters {
		total += len(members)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 bucketed object, got %d", total)
	}
}
