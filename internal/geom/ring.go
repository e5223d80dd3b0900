// Package geom reconstructs closed rings and assembles feature
// geometries from the raw arc coordinate lists decoded by the
// edigeo package (C5).
package geom

import (
	"math"

	"github.com/paulmach/orb"
)

const ringTolerance = 1e-6

// ReconstructRings chains an unordered set of arc vertex sequences
// into closed rings by matching endpoints within ringTolerance. Arcs
// that already close on themselves are kept as-is; the rest are
// greedily chained, trying both ends in either orientation. A chain
// that cannot be closed within tolerance is dropped from the result
// and reported through ok=false — per spec, a gap larger than
// ringTolerance fails the whole face with GeometryIncomplete rather
// than being silently patched.
func ReconstructRings(arcs [][]orb.Point) (rings []orb.Ring, ok bool) {
	remaining := make([][]orb.Point, 0, len(arcs))
	ok = true

	for _, arc := range arcs {
		arc = dedupConsecutive(arc)
		if len(arc) > 3 && coordsEqual(arc[0], arc[len(arc)-1]) {
			rings = append(rings, orb.Ring(arc))
			continue
		}
		remaining = append(remaining, arc)
	}

	for len(remaining) > 0 {
		n := len(remaining)
		ring := remaining[n-1]
		remaining = remaining[:n-1]

		for progress := true; progress && len(remaining) > 0; {
			progress = false
			first, last := ring[0], ring[len(ring)-1]

			for i := len(remaining) - 1; i >= 0; i-- {
				arc := remaining[i]
				arcFirst, arcLast := arc[0], arc[len(arc)-1]

				switch {
				case coordsEqual(last, arcFirst):
					remaining = removeAt(remaining, i)
					ring = append(ring[:len(ring)-1], arc...)
				case coordsEqual(last, arcLast):
					remaining = removeAt(remaining, i)
					ring = append(ring[:len(ring)-1], reversed(arc)...)
				case coordsEqual(first, arcLast):
					remaining = removeAt(remaining, i)
					ring = append(arc[:len(arc)-1], ring...)
				case coordsEqual(first, arcFirst):
					remaining = removeAt(remaining, i)
					rev := reversed(arc)
					ring = append(rev[:len(rev)-1], ring...)
				default:
					continue
				}
				progress = true
				break
			}
		}

		ring = dedupConsecutive(ring)
		if closed := len(ring) > 1 && coordsEqual(ring[0], ring[len(ring)-1]); closed && len(ring) > 3 {
			rings = append(rings, orb.Ring(ring))
			continue
		}
		// Chain didn't close: either an unreachable arc remains
		// unmatched, or the final gap exceeds ringTolerance. Either way
		// this face fails per spec (GeometryIncomplete), not a silent
		// auto-close.
		ok = false
	}

	return rings, ok
}

// Gap reports the distance between a ring's first and last vertex
// before closing, used by callers that want to log why a chain failed.
func Gap(ring []orb.Point) float64 {
	if len(ring) < 2 {
		return 0
	}
	return math.Hypot(ring[0][0]-ring[len(ring)-1][0], ring[0][1]-ring[len(ring)-1][1])
}

func removeAt(s [][]orb.Point, i int) [][]orb.Point {
	s[i] = s[len(s)-1]
	return s[:len(s)-1]
}

func reversed(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

func coordsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < ringTolerance && math.Abs(a[1]-b[1]) < ringTolerance
}

// dedupConsecutive collapses consecutive duplicate vertices, matching
// the spec's "no consecutive duplicate vertices" invariant.
func dedupConsecutive(pts []orb.Point) []orb.Point {
	if len(pts) < 2 {
		return pts
	}
	out := make([]orb.Point, 0, len(pts))
	out = append(out, pts[0])
	for _, p := range pts[1:] {
		if !coordsEqual(p, out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}
