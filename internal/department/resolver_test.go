package department

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestFromFilename(t *testing.T) {
	cases := []struct {
		name     string
		wantCode string
		wantOK   bool
	}{
		{"edigeo-38185000A01.tar.bz2", "38", true},
		{"EDIGEO-2A004000A01.thf", "2A", true},
		{"EDIGEO-2b033000A01.thf", "2B", true},
		{"cadastre-38185.zip", "", false},
	}
	for _, c := range cases {
		code, ok := FromFilename(c.name)
		if ok != c.wantOK || code != c.wantCode {
			t.Errorf("FromFilename(%q) = (%q, %v), want (%q, %v)", c.name, code, ok, c.wantCode, c.wantOK)
		}
	}
}

func TestResolveLiteralPolicy(t *testing.T) {
	code, warning := Resolve(Policy{Mode: "literal", Code: "73"}, "whatever.tar.bz2", orb.Bound{}, nil)
	if code != "73" || warning != "" {
		t.Fatalf("literal policy should return its code verbatim, got (%q, %q)", code, warning)
	}
}

func TestResolveFromFilePolicy(t *testing.T) {
	code, warning := Resolve(Policy{Mode: "fromFile"}, "EDIGEO-38185000A01.thf", orb.Bound{}, nil)
	if code != "38" || warning != "" {
		t.Fatalf("fromFile policy should parse the filename, got (%q, %q)", code, warning)
	}

	code, warning = Resolve(Policy{Mode: "fromFile"}, "unparseable.thf", orb.Bound{}, nil)
	if code != "00" || warning == "" {
		t.Fatalf("fromFile policy should fall back to 00 with a warning when unparseable, got (%q, %q)", code, warning)
	}
}

func TestResolveAutoPolicyWithNilIndex(t *testing.T) {
	code, warning := Resolve(Policy{Mode: "auto"}, "EDIGEO-38185000A01.thf", orb.Bound{}, nil)
	if code != "00" || warning == "" {
		t.Fatalf("auto policy with a nil index should fall back to 00 with a warning, got (%q, %q)", code, warning)
	}
}

func TestOverlapArea(t *testing.T) {
	a := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	b := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{15, 15}}
	if got := overlapArea(a, b); got != 25 {
		t.Fatalf("overlapArea = %v, want 25", got)
	}

	disjoint := orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{110, 110}}
	if got := overlapArea(a, disjoint); got != 0 {
		t.Fatalf("overlapArea for disjoint bounds = %v, want 0", got)
	}
}

func TestIndexResolveNilTree(t *testing.T) {
	var idx *Index
	if code, ok := idx.Resolve(orb.Bound{}); ok || code != "00" {
		t.Fatalf("Resolve on a nil index should return (00, false), got (%q, %v)", code, ok)
	}
}
