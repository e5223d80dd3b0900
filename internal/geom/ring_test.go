package geom

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestReconstructRingsAlreadyClosed(t *testing.T) {
	square := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	rings, ok := ReconstructRings([][]orb.Point{square})
	if !ok {
		t.Fatal("expected ok=true for an already-closed ring")
	}
	if len(rings) != 1 || len(rings[0]) != 5 {
		t.Fatalf("got %d rings (len0=%d), want 1 ring of 5 points", len(rings), len(rings[0]))
	}
}

func TestReconstructRingsChainsTwoArcs(t *testing.T) {
	arcA := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	arcB := []orb.Point{{1, 1}, {0, 1}, {0, 0}}
	rings, ok := ReconstructRings([][]orb.Point{arcA, arcB})
	if !ok {
		t.Fatal("expected the two arcs to chain into one closed ring")
	}
	if len(rings) != 1 {
		t.Fatalf("got %d rings, want 1", len(rings))
	}
	r := rings[0]
	if !coordsEqual(r[0], r[len(r)-1]) {
		t.Fatalf("chained ring did not close: %v", r)
	}
}

func TestReconstructRingsChainsReversedArc(t *testing.T) {
	arcA := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	arcB := []orb.Point{{0, 0}, {0, 1}, {1, 1}} // shares endpoints with arcA but runs the opposite way
	rings, ok := ReconstructRings([][]orb.Point{arcA, arcB})
	if !ok {
		t.Fatal("expected arcs sharing endpoints in either direction to chain")
	}
	if len(rings) != 1 {
		t.Fatalf("got %d rings, want 1", len(rings))
	}
}

func TestReconstructRingsFailsOnGap(t *testing.T) {
	arcA := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	arcB := []orb.Point{{5, 5}, {0, 1}, {0, 0}} // does not meet arcA within tolerance
	_, ok := ReconstructRings([][]orb.Point{arcA, arcB})
	if ok {
		t.Fatal("expected ok=false when arcs cannot close within tolerance")
	}
}

func TestDedupConsecutive(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0, 0}, {1, 0}, {1, 0.0000001}, {2, 0}}
	got := dedupConsecutive(pts)
	if len(got) != 3 {
		t.Fatalf("got %d points after dedup, want 3: %v", len(got), got)
	}
}

func TestGap(t *testing.T) {
	ring := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {3, 4}}
	if got := Gap(ring); got != 5 {
		t.Fatalf("Gap = %v, want 5 (3-4-5 triangle distance from (0,0) to (3,4))", got)
	}
	if got := Gap([]orb.Point{{0, 0}}); got != 0 {
		t.Fatalf("Gap of a single point should be 0, got %v", got)
	}
}
