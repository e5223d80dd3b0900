package geom

import (
	"github.com/paulmach/orb"
)

// Primitives is the minimal read-only view of the primitive arena
// assemble needs: coordinate lookups by arc/node/face id.
type Primitives interface {
	NodeCoord(id string) (orb.Point, bool)
	ArcCoords(id string, reversed bool) ([]orb.Point, bool)
	FaceArcs(id string) ([]SignedArc, bool)
}

// SignedArc is an arc identifier plus its traversal sign within one
// face boundary (true = reversed).
type SignedArc struct {
	ArcID    string
	Reversed bool
}

// AssemblePoint builds a Point geometry from the first referenced node.
func AssemblePoint(p Primitives, nodeRefs []string) (orb.Geometry, bool) {
	if len(nodeRefs) == 0 {
		return nil, false
	}
	pt, ok := p.NodeCoord(nodeRefs[0])
	if !ok {
		return nil, false
	}
	return pt, true
}

// AssembleMultiPoint builds a Point or MultiPoint from several node
// references, matching the "Multi variant" rule in spec.md §4.5.
func AssembleMultiPoint(p Primitives, nodeRefs []string) (orb.Geometry, bool) {
	var pts orb.MultiPoint
	for _, id := range nodeRefs {
		if pt, ok := p.NodeCoord(id); ok {
			pts = append(pts, pt)
		}
	}
	switch len(pts) {
	case 0:
		return nil, false
	case 1:
		return pts[0], true
	default:
		return pts, true
	}
}

// AssembleLine builds a LineString from a single arc reference, or a
// MultiLineString when several arcs back the same feature.
func AssembleLine(p Primitives, arcRefs []string) (orb.Geometry, bool) {
	var lines []orb.LineString
	for _, id := range arcRefs {
		coords, ok := p.ArcCoords(id, false)
		if !ok || len(coords) < 2 {
			continue
		}
		lines = append(lines, orb.LineString(dedupConsecutive(coords)))
	}
	switch len(lines) {
	case 0:
		return nil, false
	case 1:
		return lines[0], true
	default:
		return orb.MultiLineString(lines), true
	}
}

// AssemblePolygon builds a Polygon (or MultiPolygon, when the rings
// organize into more than one shell) from the arcs bounding the
// referenced faces. If any face's arcs fail to chain into a closed
// ring, the whole assembly fails (GeometryIncomplete) — spec.md §4.5
// point 4 does not allow a degraded fallback.
func AssemblePolygon(p Primitives, faceRefs []string) (orb.Geometry, bool) {
	var allArcs [][]orb.Point
	for _, faceID := range faceRefs {
		signedArcs, ok := p.FaceArcs(faceID)
		if !ok {
			return nil, false
		}
		for _, sa := range signedArcs {
			coords, ok := p.ArcCoords(sa.ArcID, sa.Reversed)
			if !ok || len(coords) == 0 {
				return nil, false
			}
			allArcs = append(allArcs, coords)
		}
	}
	if len(allArcs) == 0 {
		return nil, false
	}

	rings, ok := ReconstructRings(allArcs)
	if !ok || len(rings) == 0 {
		return nil, false
	}

	polys := OrganizeRings(rings)
	switch len(polys) {
	case 0:
		return nil, false
	case 1:
		return polys[0], true
	default:
		return orb.MultiPolygon(polys), true
	}
}
