package feature

import (
	"testing"

	"github.com/edigeo-cadastre/ingest/internal/edigeo"
)

func TestRelationKey(t *testing.T) {
	cases := map[string]string{
		"NUMVOIE_id":  "numvoie_id",
		"PARCELLE_id": "parcelle_id",
		"SUBDFISC_id": "subdfisc_id",
	}
	for kind, want := range cases {
		if got := relationKey(kind); got != want {
			t.Errorf("relationKey(%q) = %q, want %q", kind, got, want)
		}
	}
}

func TestPreferredIDPrefersIDU(t *testing.T) {
	raw := &edigeo.RawFeature{ID: "FEA_1"}
	if got := preferredID(raw, map[string]string{"IDU": "38185000A0001"}); got != "38185000A0001" {
		t.Fatalf("preferredID should prefer IDU, got %q", got)
	}
	if got := preferredID(raw, map[string]string{}); got != "FEA_1" {
		t.Fatalf("preferredID should fall back to the raw id when IDU is absent, got %q", got)
	}
	if got := preferredID(raw, map[string]string{"IDU": ""}); got != "FEA_1" {
		t.Fatalf("preferredID should treat an empty IDU as absent, got %q", got)
	}
}

func buildNodeFeature(id, kind string, x, y float64) *edigeo.RawFeature {
	return &edigeo.RawFeature{
		ID:         id,
		Kind:       kind,
		Attributes: map[string]string{"IDU": id + "-IDU"},
		GeomRefs:   edigeo.FeatureGeomRefs{PNO: []string{id + "_node"}},
	}
}

func TestBuildAssemblesPointFeatureAndFiltersByKind(t *testing.T) {
	store := edigeo.NewStore()
	store.Nodes["A_node"] = &edigeo.Node{ID: "A_node", X: 1, Y: 2}
	store.Nodes["B_node"] = &edigeo.Node{ID: "B_node", X: 3, Y: 4}

	fA := buildNodeFeature("A", "COMMUNE_id", 1, 2)
	fB := buildNodeFeature("B", "SECTION_id", 3, 4)
	store.Features["A"] = fA
	store.Features["B"] = fB

	features, errs, _ := Build(store, map[string]bool{"COMMUNE_id": true})
	if len(errs) != 0 {
		t.Fatalf("expected no build errors, got %v", errs)
	}
	if len(features) != 1 {
		t.Fatalf("got %d features, want 1 (SECTION_id should be filtered out)", len(features))
	}
	if features[0].ID != "A-IDU" {
		t.Fatalf("feature id = %q, want A-IDU (IDU preferred)", features[0].ID)
	}
}

func TestBuildReportsUnresolvableGeometry(t *testing.T) {
	store := edigeo.NewStore()
	store.Features["A"] = &edigeo.RawFeature{
		ID: "A", Kind: "PARCELLE_id", Attributes: map[string]string{},
		GeomRefs: edigeo.FeatureGeomRefs{PNO: []string{"missing_node"}},
	}

	features, errs, _ := Build(store, map[string]bool{"PARCELLE_id": true})
	if len(features) != 0 {
		t.Fatalf("expected no features for an unresolvable node reference, got %d", len(features))
	}
	if len(errs) != 1 || errs[0].FeatureID != "A" {
		t.Fatalf("expected one build error for feature A, got %v", errs)
	}
}

func TestBuildRejectsMixedPrimitiveKinds(t *testing.T) {
	store := edigeo.NewStore()
	store.Nodes["n1"] = &edigeo.Node{ID: "n1", X: 0, Y: 0}
	store.Arcs["a1"] = &edigeo.Arc{ID: "a1", Coords: [][2]float64{{0, 0}, {1, 1}}}
	store.Features["A"] = &edigeo.RawFeature{
		ID: "A", Kind: "PARCELLE_id", Attributes: map[string]string{},
		GeomRefs: edigeo.FeatureGeomRefs{PNO: []string{"n1"}, PAR: []string{"a1"}},
	}

	_, errs, _ := Build(store, map[string]bool{"PARCELLE_id": true})
	if len(errs) != 1 || errs[0].Reason != "mixed primitive kinds within one feature" {
		t.Fatalf("expected a mixed-primitive-kinds error, got %v", errs)
	}
}

func TestBuildDerivesRelationPairsIndependentOfWantedKinds(t *testing.T) {
	store := edigeo.NewStore()
	store.Nodes["A_node"] = &edigeo.Node{ID: "A_node", X: 0, Y: 0}
	store.Nodes["B_node"] = &edigeo.Node{ID: "B_node", X: 1, Y: 1}
	store.Features["A"] = buildNodeFeature("A", "NUMVOIE_id", 0, 0)
	store.Features["B"] = buildNodeFeature("B", "PARCELLE_id", 1, 1)
	store.Links = []edigeo.FeatureLink{{ID: "LNK1", Features: []string{"A", "B"}}}

	// wantedKinds excludes both object kinds entirely: relation pairs
	// must still be derived, since they only need resolved ids.
	_, _, pairs := Build(store, map[string]bool{})
	if len(pairs) != 1 {
		t.Fatalf("got %d relation pairs, want 1", len(pairs))
	}
	p := pairs[0]
	if p.LinkID != "LNK1" {
		t.Fatalf("link id = %q, want LNK1", p.LinkID)
	}
	if p.Kinds["numvoie_id"] != "A-IDU" || p.Kinds["parcelle_id"] != "B-IDU" {
		t.Fatalf("unexpected relation pair kinds: %v", p.Kinds)
	}
}
