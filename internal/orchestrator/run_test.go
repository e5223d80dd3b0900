package orchestrator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/edigeo-cadastre/ingest/internal/config"
	"github.com/edigeo-cadastre/ingest/internal/feature"
	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
)

func TestCommuneAndSection(t *testing.T) {
	bboxA := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	bboxB := orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{3, 3}}

	byKind := map[string][]feature.Feature{
		"COMMUNE_id": {{Kind: "COMMUNE_id", ID: "38185"}},
		"SECTION_id": {
			{Kind: "SECTION_id", ID: "38185000A", Geometry: bboxA},
			{Kind: "SECTION_id", ID: "38185000B", Geometry: bboxB},
		},
	}

	commune, section, bbox := communeAndSection(byKind)
	if commune != "38185" {
		t.Fatalf("commune = %q, want 38185", commune)
	}
	if section != "38185000A" {
		t.Fatalf("section = %q, want the first SECTION_id feature's ID", section)
	}
	want := bboxA.Union(bboxB)
	if bbox != want {
		t.Fatalf("bbox = %v, want union of both section geometries %v", bbox, want)
	}
}

func TestCommuneAndSectionMissing(t *testing.T) {
	commune, section, bbox := communeAndSection(map[string][]feature.Feature{})
	if commune != "" || section != "" {
		t.Fatalf("expected empty commune/section when no features present, got %q/%q", commune, section)
	}
	if bbox != (orb.Bound{}) {
		t.Fatalf("expected zero-value bbox when no SECTION_id features present, got %v", bbox)
	}
}

func TestRelationKeys(t *testing.T) {
	tc := config.TableConfig{
		Type: "relation",
		Fields: []config.FieldMapping{
			{DB: "numvoie_id", JSON: "numvoie_id"},
			{DB: "parcelle_id", JSON: "parcelle_id"},
			{DB: "millesime", Const: "millesime"},
		},
	}

	keys := relationKeys(tc)
	if len(keys) != 2 {
		t.Fatalf("relationKeys returned %d keys, want 2 (const fields excluded): %v", len(keys), keys)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["numvoie_id"] || !seen["parcelle_id"] {
		t.Fatalf("relationKeys = %v, want numvoie_id and parcelle_id", keys)
	}
}

func TestPairMatches(t *testing.T) {
	pair := feature.RelationPair{
		LinkID: "L1",
		Kinds:  map[string]string{"numvoie_id": "V1", "parcelle_id": "P1"},
	}

	if !pairMatches(pair, []string{"numvoie_id", "parcelle_id"}) {
		t.Fatal("expected pair with both keys to match")
	}
	if pairMatches(pair, []string{"numvoie_id", "subdsect_id"}) {
		t.Fatal("expected pair missing subdsect_id to not match")
	}
	if pairMatches(pair, nil) {
		t.Fatal("expected an empty key set to never match")
	}
}

func TestWrapArchiveErrPreservesExistingArchiveError(t *testing.T) {
	existing := ingesterrors.Wrap("foo.tar.bz2", ingesterrors.ErrMissingMember, errors.New("no THF member"))
	got := wrapArchiveErr("foo.tar.bz2", existing, ingesterrors.ErrSinkConflict)
	if got != existing {
		t.Fatalf("wrapArchiveErr should return an existing *ArchiveError unchanged, got %v", got)
	}
}

func TestWrapArchiveErrClassifiesSentinel(t *testing.T) {
	err := fmt.Errorf("%w: beginning transaction: boom", ingesterrors.ErrConnectionLost)
	got := wrapArchiveErr("bar.tar.bz2", err, ingesterrors.ErrSinkConflict)
	if got.Kind != ingesterrors.ErrConnectionLost {
		t.Fatalf("wrapArchiveErr should classify the wrapped sentinel, got kind %v, want ErrConnectionLost", got.Kind)
	}
}

func TestWrapArchiveErrFallsBackWhenUnclassifiable(t *testing.T) {
	err := errors.New("some opaque failure")
	got := wrapArchiveErr("baz.tar.bz2", err, ingesterrors.ErrSinkConflict)
	if got.Kind != ingesterrors.ErrSinkConflict {
		t.Fatalf("wrapArchiveErr should use the fallback kind when Classify can't determine one, got %v", got.Kind)
	}
}
