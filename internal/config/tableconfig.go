package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// FieldMapping maps one raw feature attribute (or a derived constant)
// onto one target column, applying an ordered coercion pipeline.
//
// Exactly one of JSON or Const must be set: JSON names a raw attribute
// key, Const names a key into the per-archive constant table
// ("dep", "millesime", "commune_id" and "section_id").
type FieldMapping struct {
	DB          string   `json:"db"`
	JSON        string   `json:"json,omitempty"`
	Const       string   `json:"const,omitempty"`
	Functions   []string `json:"functions,omitempty"`
	PgType      string   `json:"pgtype"`
	JSONSchema  string   `json:"jsonSchema,omitempty"`
	TableSource string   `json:"tableSource,omitempty"`
}

// GeomField names the geometry column of a FeatureCollection table.
type GeomField struct {
	Name string `json:"name"`
}

// TableConfig is one entry of the top-level config object, keyed by
// object kind (e.g. "PARCELLE_id") or by relation name.
type TableConfig struct {
	Type           string         `json:"type"` // "FeatureCollection" | "relation"
	Table          string         `json:"table"`
	GeomField      *GeomField     `json:"geomField,omitempty"`
	InsertGid      bool           `json:"insertGid,omitempty"`
	HashGeom       bool           `json:"hashGeom,omitempty"`
	Fields         []FieldMapping `json:"fields"`
	PgConstraint   []string       `json:"pgCONSTRAINT,omitempty"`
	PgFkConstraint []string       `json:"pgFkCONSTRAINT,omitempty"`
}

// TableConfigSet is the full table-config document: object kind / relation
// name -> TableConfig.
type TableConfigSet map[string]TableConfig

// Load reads and parses a JSON table config file.
func Load(path string) (TableConfigSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg TableConfigSet
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// recognizedCoercions mirrors the enumerated coercion names from
// the transform engine; unknown names are a config error.
var recognizedCoercions = map[string]bool{
	"addMillesime": true,
	"addDep":       true,
	"toInt":        true,
	"toFloat":      true,
	"toDate":       true,
	"toDateFR":     true,
}

func (c TableConfigSet) validate() error {
	for kind, tc := range c {
		if tc.Type != "FeatureCollection" && tc.Type != "relation" {
			return fmt.Errorf("config %s: unknown type %q", kind, tc.Type)
		}
		if tc.Table == "" {
			return fmt.Errorf("config %s: table name required", kind)
		}
		for _, f := range tc.Fields {
			if f.JSON == "" && f.Const == "" {
				return fmt.Errorf("config %s: field %s needs json or const selector", kind, f.DB)
			}
			for _, fn := range f.Functions {
				if !recognizedCoercions[fn] {
					return fmt.Errorf("config %s: field %s: unknown coercion %q", kind, f.DB, fn)
				}
			}
		}
	}
	return nil
}

// Preset returns a built-in config for one of the three canonical
// presets ("full", "light", "bati"), matching the table subsets the
// legacy cadastre-pg tool shipped under the same names.
func Preset(name string) (TableConfigSet, error) {
	switch name {
	case "full":
		return fullPreset(), nil
	case "light":
		return lightPreset(), nil
	case "bati":
		return batiPreset(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}
}

func commonFields(idu string) []FieldMapping {
	return []FieldMapping{
		{DB: "id", JSON: idu, PgType: "text"},
		{DB: "commune_id", Const: "commune_id", PgType: "text"},
		{DB: "section_id", Const: "section_id", PgType: "text"},
		{DB: "millesime", Const: "millesime", Functions: []string{"addMillesime"}, PgType: "smallint"},
	}
}

func batiPreset() TableConfigSet {
	return TableConfigSet{
		"COMMUNE_id": {
			Type: "FeatureCollection", Table: "edi_commune", HashGeom: true,
			GeomField: &GeomField{Name: "geom"},
			Fields:    append(commonFields("IDU"), FieldMapping{DB: "nom", JSON: "NOM_COM", PgType: "text"}),
		},
		"BATIMENT_id": {
			Type: "FeatureCollection", Table: "edi_batiment", HashGeom: true,
			GeomField: &GeomField{Name: "geom"},
			Fields:    commonFields("IDU"),
		},
	}
}

func lightPreset() TableConfigSet {
	cfg := batiPreset()
	cfg["SECTION_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_section", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["PARCELLE_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_parcelle", HashGeom: true,
		GeomField:      &GeomField{Name: "geom"},
		InsertGid:      true,
		PgConstraint:   []string{"PRIMARY KEY (id, millesime)"},
		Fields:         append(commonFields("IDU"), FieldMapping{DB: "contenance", JSON: "CONTEN", Functions: []string{"toInt"}, PgType: "integer"}),
	}
	return cfg
}

func fullPreset() TableConfigSet {
	cfg := lightPreset()
	cfg["SUBDSECT_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_subdsection", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["SUBDFISC_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_subdfisc", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["NUMVOIE_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_numvoie", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    append(commonFields("IDU"), FieldMapping{DB: "numero", JSON: "TEXTE", PgType: "text"}),
	}
	cfg["TSURF_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_tsurf", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["TLINE_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_tline", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["TPOINT_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_tpoint", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["LIEUDIT_id"] = TableConfig{
		Type: "FeatureCollection", Table: "edi_lieudit", HashGeom: true,
		GeomField: &GeomField{Name: "geom"},
		Fields:    commonFields("IDU"),
	}
	cfg["NUMVOIE_PARCELLE"] = TableConfig{
		Type: "relation", Table: "rel_numvoie_parcelle",
		PgConstraint:   []string{"PRIMARY KEY (numvoie_id, parcelle_id, millesime)"},
		PgFkConstraint: []string{"FOREIGN KEY (numvoie_id, millesime) REFERENCES $schema$.edi_numvoie(id, millesime)", "FOREIGN KEY (parcelle_id, millesime) REFERENCES $schema$.edi_parcelle(id, millesime)"},
		Fields: []FieldMapping{
			{DB: "numvoie_id", JSON: "numvoie_id", PgType: "text"},
			{DB: "parcelle_id", JSON: "parcelle_id", PgType: "text"},
			{DB: "millesime", Const: "millesime", Functions: []string{"addMillesime"}, PgType: "smallint"},
		},
	}
	cfg["PARCELLE_SUBDSECT"] = TableConfig{
		Type: "relation", Table: "rel_parcelle_subdsect",
		PgConstraint:   []string{"PRIMARY KEY (parcelle_id, subdsect_id, millesime)"},
		PgFkConstraint: []string{"FOREIGN KEY (parcelle_id, millesime) REFERENCES $schema$.edi_parcelle(id, millesime)", "FOREIGN KEY (subdsect_id, millesime) REFERENCES $schema$.edi_subdsection(id, millesime)"},
		Fields: []FieldMapping{
			{DB: "parcelle_id", JSON: "parcelle_id", PgType: "text"},
			{DB: "subdsect_id", JSON: "subdsect_id", PgType: "text"},
			{DB: "millesime", Const: "millesime", Functions: []string{"addMillesime"}, PgType: "smallint"},
		},
	}
	// SUBDFISC_PARCELLE intentionally carries no PK/FK declarations — see
	// Open Question #3: the canonical config leaves its constraints
	// optional, and this preset documents that choice rather than
	// inventing one.
	cfg["SUBDFISC_PARCELLE"] = TableConfig{
		Type: "relation", Table: "rel_subdfisc_parcelle",
		Fields: []FieldMapping{
			{DB: "subdfisc_id", JSON: "subdfisc_id", PgType: "text"},
			{DB: "parcelle_id", JSON: "parcelle_id", PgType: "text"},
			{DB: "millesime", Const: "millesime", Functions: []string{"addMillesime"}, PgType: "smallint"},
		},
	}
	return cfg
}
