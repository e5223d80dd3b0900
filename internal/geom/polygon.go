package geom

import "github.com/paulmach/orb"

// OrganizeRings groups reconstructed rings into polygons: a ring whose
// first vertex falls inside another ring becomes a hole of the first
// such ring found, and every other ring becomes an outer shell. Ring
// area is not compared. Outer rings are normalized to CCW, holes to
// CW, matching the winding PostGIS expects for WKB/EWKB.
func OrganizeRings(rings []orb.Ring) []orb.Polygon {
	if len(rings) == 0 {
		return nil
	}
	if len(rings) == 1 {
		return []orb.Polygon{{normalize(rings[0], false)}}
	}

	assigned := make([]bool, len(rings))
	holesOf := make(map[int][]int)
	var outers []int

	for i := range rings {
		isHole := false
		for j := range rings {
			if i == j {
				continue
			}
			if pointInRing(rings[i][0], rings[j]) {
				holesOf[j] = append(holesOf[j], i)
				assigned[i] = true
				isHole = true
				break
			}
		}
		if !isHole {
			outers = append(outers, i)
		}
	}
	_ = assigned

	polys := make([]orb.Polygon, 0, len(outers))
	for _, oi := range outers {
		poly := orb.Polygon{normalize(rings[oi], false)}
		for _, hi := range holesOf[oi] {
			poly = append(poly, normalize(rings[hi], true))
		}
		polys = append(polys, poly)
	}
	return polys
}

// normalize returns ring reoriented CCW (hole=false) or CW (hole=true).
func normalize(ring orb.Ring, hole bool) orb.Ring {
	ccw := signedArea(ring) > 0
	if ccw == hole {
		return reverseRing(ring)
	}
	return ring
}

func reverseRing(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// signedArea returns twice the shoelace area; positive for CCW rings.
func signedArea(ring orb.Ring) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum
}

// pointInRing is an even-odd ray-casting test, sufficient for the
// shell/hole containment decision (rings are not self-intersecting).
func pointInRing(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) {
			x := (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1]) + pi[0]
			if p[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}
