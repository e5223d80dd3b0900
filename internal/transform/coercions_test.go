package transform

import "testing"

// TestCoercionRoundTripLaws exercises the exact examples spec.md §8
// enumerates for the coercion pipeline.
func TestCoercionRoundTripLaws(t *testing.T) {
	ctx := Context{Dep: "38", Millesime: "2025-04"}

	t.Run("toInt", func(t *testing.T) {
		if v, isNull := toInt(ctx, "0042", false); isNull || v != "42" {
			t.Fatalf("toInt(0042) = (%q, null=%v), want (42, false)", v, isNull)
		}
		if _, isNull := toInt(ctx, "", false); !isNull {
			t.Fatalf("toInt(\"\") should resolve to null")
		}
	})

	t.Run("toFloat comma is not a decimal separator", func(t *testing.T) {
		v, isNull := toFloat(ctx, "12,34 m²", false)
		if isNull || v != "12" {
			t.Fatalf(`toFloat("12,34 m²") = (%q, null=%v), want (12, false)`, v, isNull)
		}
	})

	t.Run("toDate", func(t *testing.T) {
		v, isNull := toDate(ctx, "19990307", false)
		if isNull || v != "1999-03-07" {
			t.Fatalf("toDate(19990307) = (%q, null=%v), want (1999-03-07, false)", v, isNull)
		}
	})

	t.Run("toDate rejects a pre-1000 year", func(t *testing.T) {
		if _, isNull := toDate(ctx, "00010307", false); !isNull {
			t.Fatalf("toDate with year < 1000 should resolve to null")
		}
	})

	t.Run("toDateFR", func(t *testing.T) {
		v, isNull := toDateFR(ctx, "07/03/1999", false)
		if isNull || v != "1999-03-07" {
			t.Fatalf(`toDateFR("07/03/1999") = (%q, null=%v), want (1999-03-07, false)`, v, isNull)
		}
	})

	t.Run("toDateFR without separators", func(t *testing.T) {
		v, isNull := toDateFR(ctx, "07031999", false)
		if isNull || v != "1999-03-07" {
			t.Fatalf(`toDateFR("07031999") = (%q, null=%v), want (1999-03-07, false)`, v, isNull)
		}
	})

	t.Run("addDep", func(t *testing.T) {
		v, isNull := addDep(ctx, "X", false)
		if isNull || v != "38X" {
			t.Fatalf(`addDep("X", dep="38") = (%q, null=%v), want (38X, false)`, v, isNull)
		}
	})

	t.Run("addMillesime ignores its input", func(t *testing.T) {
		v, isNull := addMillesime(ctx, "anything", false)
		if isNull || v != "2025" {
			t.Fatalf(`addMillesime(any, date="2025-04") = (%q, null=%v), want (2025, false)`, v, isNull)
		}
	})

	t.Run("null propagates through a downstream coercion", func(t *testing.T) {
		_, isNull := applyPipeline(ctx, []string{"toInt", "addDep"}, "", false)
		if !isNull {
			t.Fatalf("null value through toInt then addDep should remain null")
		}
	})
}

func TestLookupUnknownCoercion(t *testing.T) {
	if _, err := Lookup("toSomethingElse"); err == nil {
		t.Fatal("expected an error for an unrecognized coercion name")
	}
}
