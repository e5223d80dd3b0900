// Package feature implements C6: joining decoded semantic objects to
// their assembled geometry and discarding anything the configured
// table set has no use for.
package feature

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/edigeo-cadastre/ingest/internal/edigeo"
	"github.com/edigeo-cadastre/ingest/internal/geom"
)

// Feature is a fully decoded object: its kind, the id callers should
// use in logs and foreign keys, its upper-cased attributes, and its
// assembled geometry.
type Feature struct {
	Kind       string
	ID         string // prefers the IDU attribute over the raw internal id
	Attributes map[string]string
	Geometry   orb.Geometry
}

// BuildError records a feature that could not be built, and why.
type BuildError struct {
	FeatureID string
	Kind      string
	Reason    string
}

// RelationPair is one feature-to-feature edge derived from a pure
// FEA-to-FEA LNK, resolved to the object kind of each side. Kinds is
// keyed by the lower-cased "<kind>_id" selector a relation table's
// field mapping names (e.g. "numvoie_id", "parcelle_id"), valued with
// that side's resolved feature id — matching how spec.md §4.8's
// relation tables are configured.
type RelationPair struct {
	LinkID string
	Kinds  map[string]string
}

// Build joins every raw feature in store to its geometry, normalizes
// attribute names to upper case, and drops features whose kind is not
// in wantedKinds. Features whose geometry cannot be assembled are
// reported as BuildErrors, not returned. It also derives the relation
// pairs backing spec.md §4.8's relation tables from the store's
// feature-to-feature links, independent of wantedKinds, since a
// relation row only needs each side's resolved id, not its geometry.
func Build(store *edigeo.Store, wantedKinds map[string]bool) ([]Feature, []BuildError, []RelationPair) {
	prims := &arenaView{store: store}

	var out []Feature
	var errs []BuildError
	resolvedID := make(map[string]string, len(store.Features)) // raw id -> preferred id
	resolvedKind := make(map[string]string, len(store.Features))

	for _, raw := range store.Features {
		attrs := make(map[string]string, len(raw.Attributes))
		for k, v := range raw.Attributes {
			attrs[strings.ToUpper(k)] = v
		}
		resolvedID[raw.ID] = preferredID(raw, attrs)
		resolvedKind[raw.ID] = raw.Kind

		if wantedKinds != nil && !wantedKinds[raw.Kind] {
			continue
		}

		geometry, reason := assembleOne(prims, raw)
		if geometry == nil {
			errs = append(errs, BuildError{FeatureID: raw.ID, Kind: raw.Kind, Reason: reason})
			continue
		}

		out = append(out, Feature{
			Kind:       raw.Kind,
			ID:         resolvedID[raw.ID],
			Attributes: attrs,
			Geometry:   geometry,
		})
	}

	var pairs []RelationPair
	for _, l := range store.Links {
		if len(l.Features) != 2 {
			continue
		}
		a, aOK := resolvedKind[l.Features[0]]
		b, bOK := resolvedKind[l.Features[1]]
		if !aOK || !bOK {
			continue
		}
		pairs = append(pairs, RelationPair{
			LinkID: l.ID,
			Kinds: map[string]string{
				relationKey(a): resolvedID[l.Features[0]],
				relationKey(b): resolvedID[l.Features[1]],
			},
		})
	}

	return out, errs, pairs
}

// relationKey turns an object kind ("NUMVOIE_id") into the field
// selector a relation table's config uses to name that side
// ("numvoie_id").
func relationKey(kind string) string {
	return strings.ToLower(strings.TrimSuffix(kind, "_id")) + "_id"
}

// preferredID resolves a feature's logging/foreign-key id, preferring
// the IDU attribute over the internal EDIGEO identifier, matching
// original_source's build_geometries behavior (spec.md is silent on
// this, so the legacy convention is carried over per SPEC_FULL.md §4.6).
func preferredID(raw *edigeo.RawFeature, attrs map[string]string) string {
	if idu, ok := attrs["IDU"]; ok && idu != "" {
		return idu
	}
	return raw.ID
}

func assembleOne(p geom.Primitives, raw *edigeo.RawFeature) (orb.Geometry, string) {
	refs := raw.GeomRefs
	kinds := 0
	if len(refs.PFE) > 0 {
		kinds++
	}
	if len(refs.PAR) > 0 {
		kinds++
	}
	if len(refs.PNO) > 0 {
		kinds++
	}
	if kinds > 1 {
		return nil, "mixed primitive kinds within one feature"
	}

	switch {
	case len(refs.PFE) > 0:
		g, ok := geom.AssemblePolygon(p, refs.PFE)
		if !ok {
			return nil, "face chaining did not close (GeometryIncomplete)"
		}
		return g, ""
	case len(refs.PAR) > 0:
		g, ok := geom.AssembleLine(p, refs.PAR)
		if !ok {
			return nil, "no arc produced a usable line"
		}
		return g, ""
	case len(refs.PNO) > 0:
		g, ok := geom.AssembleMultiPoint(p, refs.PNO)
		if !ok {
			return nil, "referenced node(s) not found"
		}
		return g, ""
	default:
		return nil, "feature references no geometry primitive"
	}
}

// arenaView adapts edigeo.Store to geom.Primitives.
type arenaView struct {
	store *edigeo.Store
}

func (a *arenaView) NodeCoord(id string) (orb.Point, bool) {
	n, ok := a.store.Node(id)
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{n.X, n.Y}, true
}

func (a *arenaView) ArcCoords(id string, reversed bool) ([]orb.Point, bool) {
	arc, ok := a.store.Arc(id)
	if !ok {
		return nil, false
	}
	pts := make([]orb.Point, len(arc.Coords))
	for i, c := range arc.Coords {
		pts[i] = orb.Point{c[0], c[1]}
	}
	if reversed {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts, true
}

func (a *arenaView) FaceArcs(id string) ([]geom.SignedArc, bool) {
	face, ok := a.store.Face(id)
	if !ok {
		return nil, false
	}
	out := make([]geom.SignedArc, len(face.Arcs))
	for i, ref := range face.Arcs {
		out[i] = geom.SignedArc{ArcID: ref.ArcID, Reversed: ref.Reversed}
	}
	return out, true
}
