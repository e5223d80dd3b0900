package config

import "testing"

func TestPresetNamesAreValid(t *testing.T) {
	for _, name := range []string{"full", "light", "bati"} {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q) returned error: %v", name, err)
		}
		if err := cfg.validate(); err != nil {
			t.Fatalf("Preset(%q) produced an invalid config: %v", name, err)
		}
		if len(cfg) == 0 {
			t.Fatalf("Preset(%q) produced an empty config", name)
		}
	}
}

func TestPresetUnknownName(t *testing.T) {
	if _, err := Preset("exhaustive"); err == nil {
		t.Fatal("expected an error for an unrecognized preset name")
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	cfg := TableConfigSet{"X": TableConfig{Type: "bogus", Table: "t", Fields: []FieldMapping{{DB: "a", JSON: "A"}}}}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for an unrecognized table type")
	}
}

func TestValidateRejectsMissingTableName(t *testing.T) {
	cfg := TableConfigSet{"X": TableConfig{Type: "FeatureCollection", Fields: []FieldMapping{{DB: "a", JSON: "A"}}}}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for a missing table name")
	}
}

func TestValidateRejectsFieldWithNoSelector(t *testing.T) {
	cfg := TableConfigSet{"X": TableConfig{Type: "FeatureCollection", Table: "t", Fields: []FieldMapping{{DB: "a"}}}}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for a field with neither json nor const set")
	}
}

func TestValidateRejectsUnknownCoercion(t *testing.T) {
	cfg := TableConfigSet{"X": TableConfig{
		Type: "FeatureCollection", Table: "t",
		Fields: []FieldMapping{{DB: "a", JSON: "A", Functions: []string{"toUppercase"}}},
	}}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for an unrecognized coercion name")
	}
}

func TestParseDepartmentPolicy(t *testing.T) {
	if p := ParseDepartmentPolicy(""); p.Mode != "auto" {
		t.Fatalf("empty string should default to auto mode, got %q", p.Mode)
	}
	if p := ParseDepartmentPolicy("fromFile"); p.Mode != "fromFile" {
		t.Fatalf("expected fromFile mode, got %q", p.Mode)
	}
	if p := ParseDepartmentPolicy("38"); p.Mode != "literal" || p.Code != "38" {
		t.Fatalf("expected literal mode with code 38, got mode=%q code=%q", p.Mode, p.Code)
	}
}

func TestParseMillesime(t *testing.T) {
	m, err := ParseMillesime("2025-04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Year != 2025 || m.Raw != "2025-04" {
		t.Fatalf("got year=%d raw=%q, want 2025/2025-04", m.Year, m.Raw)
	}

	for _, bad := range []string{"", "2025", "abcd-04"} {
		if _, err := ParseMillesime(bad); err == nil {
			t.Fatalf("ParseMillesime(%q) should have errored", bad)
		}
	}
}
