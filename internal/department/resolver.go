// Package department implements C7: resolving the two-character
// department code for one sheet, either from an explicit override,
// the archive filename, or a spatial lookup against a preloaded
// department boundary set.
package department

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

var filenamePattern = regexp.MustCompile(`edigeo-(\d[0-9ab])`)

// Policy mirrors config.DepartmentPolicy without importing the config
// package, keeping this package free of a dependency cycle.
type Policy struct {
	Mode string // "auto" | "fromFile" | "literal"
	Code string
}

// Resolve implements the three-mode priority order of spec.md §4.7:
// an explicit literal code wins outright; "fromFile" reads the
// archive basename; "auto" falls back to the spatial index (nil idx
// or no intersection yields "00" plus a warning for the caller to log).
func Resolve(policy Policy, archivePath string, sectionBBox orb.Bound, idx *Index) (code string, warning string) {
	switch policy.Mode {
	case "literal":
		return policy.Code, ""
	case "fromFile":
		if code, ok := FromFilename(archivePath); ok {
			return code, ""
		}
		return "00", fmt.Sprintf("could not parse department from filename %q", archivePath)
	default: // "auto" / spatial
		code, ok := idx.Resolve(sectionBBox)
		if !ok {
			return "00", "no department boundary intersects the sheet bounding box"
		}
		return code, ""
	}
}

// FromFilename extracts the two-character department code following
// "edigeo-" in an archive's basename. Corsican codes 2A/2B are
// preserved as strings, matching spec.md §4.7 mode 2.
func FromFilename(basename string) (string, bool) {
	m := filenamePattern.FindStringSubmatch(strings.ToLower(basename))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// boundary is one department polygon with its INSEE code.
type boundary struct {
	code string
	geom orb.Polygon
}

// centroidPoint is the quadtree.Pointer wrapper used to index each
// boundary by its centroid; the index back-references the boundary
// slice so a quadtree hit can be resolved to its full polygon.
type centroidPoint struct {
	pt    orb.Point
	index int
}

func (c centroidPoint) Point() orb.Point { return c.pt }

// Index is the one-shot-built spatial index of department boundaries,
// queried by bounding-box overlap during the "spatial" resolution
// mode. It plays the role spec.md §4.7 assigns to "a static R-tree-
// like structure built once per process": a point quadtree over each
// boundary's centroid narrows the candidate set before the exact
// overlap-area comparison.
type Index struct {
	bounds []boundary
	tree   *quadtree.Quadtree
}

var (
	globalIndex *Index
	globalErr   error
	once        sync.Once
)

// Load builds the department boundary index from a GeoJSON
// FeatureCollection (each feature a department polygon carrying an
// "insee"/"code"-style property), guarded so only the first caller
// does the work (spec.md §4.7 / §9: "a one-shot initializer that is
// safe under concurrent first use"). Subsequent calls, regardless of
// path, observe the already-built index.
func Load(path string) (*Index, error) {
	once.Do(func() {
		globalIndex, globalErr = load(path)
	})
	return globalIndex, globalErr
}

func load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading department boundary set %s: %w", path, err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing department boundary set %s: %w", path, err)
	}

	idx := &Index{}
	var overall orb.Bound
	first := true

	for _, f := range fc.Features {
		poly := toPolygon(f.Geometry)
		if poly == nil {
			continue
		}
		code := propertyCode(f.Properties)
		if code == "" {
			continue
		}
		idx.bounds = append(idx.bounds, boundary{code: code, geom: *poly})
		b := poly.Bound()
		if first {
			overall, first = b, false
		} else {
			overall = overall.Union(b)
		}
	}
	if len(idx.bounds) == 0 {
		return nil, fmt.Errorf("department boundary set %s: no usable polygon features", path)
	}

	idx.tree = quadtree.New(overall)
	for i, b := range idx.bounds {
		centroid, _ := planar.CentroidArea(b.geom)
		idx.tree.Add(centroidPoint{pt: centroid, index: i})
	}
	return idx, nil
}

func toPolygon(g orb.Geometry) *orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return &v
	case orb.MultiPolygon:
		if len(v) > 0 {
			return &v[0]
		}
	}
	return nil
}

func propertyCode(props geojson.Properties) string {
	for _, key := range []string{"insee", "code", "code_insee", "dep", "code_dept"} {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Resolve returns the department code whose boundary has the largest
// overlap area with bbox. When no boundary intersects, it returns
// "00" and ok=false so the caller can surface the warning spec.md
// §4.7 requires. Ties resolve to the lower (lexically smaller) INSEE
// code, per spec.md §8's boundary behavior.
func (idx *Index) Resolve(bbox orb.Bound) (code string, ok bool) {
	if idx == nil || idx.tree == nil {
		return "00", false
	}

	// The tree holds one point per boundary (its centroid), so the query
	// window is bbox grown by the largest boundary extent: every boundary
	// that intersects bbox has its centroid inside that window.
	// Candidates are re-verified against the true polygon bound below.
	pad := 0.0
	for _, b := range idx.bounds {
		bb := b.geom.Bound()
		pad = maxF(pad, maxF(bb.Right()-bb.Left(), bb.Top()-bb.Bottom()))
	}
	hits := idx.tree.InBound(nil, bbox.Pad(pad))

	seen := make(map[int]bool, len(hits))
	type overlap struct {
		code string
		area float64
	}
	var candidates []overlap

	for _, h := range hits {
		cp, ok := h.(centroidPoint)
		if !ok || seen[cp.index] {
			continue
		}
		seen[cp.index] = true
		b := idx.bounds[cp.index]
		if !b.geom.Bound().Intersects(bbox) {
			continue
		}
		if area := overlapArea(b.geom.Bound(), bbox); area > 0 {
			candidates = append(candidates, overlap{code: b.code, area: area})
		}
	}
	if len(candidates) == 0 {
		return "00", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].area != candidates[j].area {
			return candidates[i].area > candidates[j].area
		}
		return candidates[i].code < candidates[j].code
	})
	return candidates[0].code, true
}

// overlapArea is the area of the axis-aligned intersection of two
// bounds — sufficient to rank candidate departments by how much of
// the query bbox they cover, without a full polygon clip.
func overlapArea(a, b orb.Bound) float64 {
	w := minF(a.Max[0], b.Max[0]) - maxF(a.Min[0], b.Min[0])
	h := minF(a.Max[1], b.Max[1]) - maxF(a.Min[1], b.Min[1])
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
