package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/edigeo-cadastre/ingest/internal/config"
	"github.com/edigeo-cadastre/ingest/internal/feature"
	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
	"github.com/edigeo-cadastre/ingest/internal/proj"
)

// nullText is the COPY text-format representation of SQL NULL.
const nullText = `\N`

// Row is one table row ready for the sink: column names paired with
// their text-format values, plus — for a FeatureCollection table —
// the geometry already reprojected and WKB-encoded, and its content
// hash when the table config asks for one.
type Row struct {
	Columns  []string
	Values   []string
	GeomCol  string // empty for a relation row
	GeomWKB  []byte
	GeomHash string
}

// Engine resolves one decoded feature or relation pair against a
// TableConfig, running the coercion pipeline over each field and
// reprojecting geometry through the configured Reprojector.
type Engine struct {
	Reproject *proj.Reprojector
	Ctx       Context
}

// NewEngine builds a transform engine for one archive: reproject may
// be nil when the source and target CRS are identical.
func NewEngine(reproject *proj.Reprojector, ctx Context) *Engine {
	return &Engine{Reproject: reproject, Ctx: ctx}
}

// BuildFeatureRow resolves one FeatureCollection table's row from a
// decoded feature (C6 output), per spec.md §4.8.
func (e *Engine) BuildFeatureRow(tc config.TableConfig, f feature.Feature) (Row, error) {
	nonNullable := nonNullableColumns(tc)
	row := Row{}
	for _, fm := range tc.Fields {
		raw, ok := resolveFeatureValue(e.Ctx, fm, f)
		val, isNull := applyPipeline(e.Ctx, fm.Functions, raw, !ok)
		if isNull && nonNullable[fm.DB] {
			return Row{}, fmt.Errorf("%w: field %s resolved to null for feature %s", ingesterrors.ErrCoercionFailed, fm.DB, f.ID)
		}
		row.Columns = append(row.Columns, fm.DB)
		if isNull {
			row.Values = append(row.Values, nullText)
		} else {
			row.Values = append(row.Values, val)
		}
	}

	if tc.GeomField != nil {
		g, wkbBytes, err := e.encodeGeometry(f.Geometry)
		if err != nil {
			return Row{}, err
		}
		row.GeomCol = tc.GeomField.Name
		row.GeomWKB = wkbBytes
		if tc.HashGeom {
			row.GeomHash = geometryHash(g)
		}
	}
	return row, nil
}

// BuildRelationRow resolves one relation table's row from a pair of
// linked features, per spec.md §4.8's relation-table contract.
func (e *Engine) BuildRelationRow(tc config.TableConfig, pair feature.RelationPair) (Row, error) {
	nonNullable := nonNullableColumns(tc)
	row := Row{}
	for _, fm := range tc.Fields {
		raw, ok := resolveRelationValue(e.Ctx, fm, pair)
		val, isNull := applyPipeline(e.Ctx, fm.Functions, raw, !ok)
		if isNull && nonNullable[fm.DB] {
			return Row{}, fmt.Errorf("%w: relation field %s resolved to null", ingesterrors.ErrCoercionFailed, fm.DB)
		}
		row.Columns = append(row.Columns, fm.DB)
		if isNull {
			row.Values = append(row.Values, nullText)
		} else {
			row.Values = append(row.Values, val)
		}
	}
	return row, nil
}

// pkColumnPattern extracts the column list out of a
// "PRIMARY KEY (a, b)" table constraint string.
var pkColumnPattern = regexp.MustCompile(`(?i)PRIMARY KEY\s*\(([^)]+)\)`)

// nonNullableColumns reports which columns a null must not land in: a
// table's declared primary-key columns, plus "id" itself even when a
// preset doesn't spell out an explicit PRIMARY KEY constraint — spec.md
// never allows a feature's own identifier to be absent.
func nonNullableColumns(tc config.TableConfig) map[string]bool {
	cols := map[string]bool{"id": true}
	for _, c := range tc.PgConstraint {
		m := pkColumnPattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		for _, col := range strings.Split(m[1], ",") {
			cols[strings.TrimSpace(col)] = true
		}
	}
	return cols
}

func resolveFeatureValue(ctx Context, fm config.FieldMapping, f feature.Feature) (string, bool) {
	if fm.JSON != "" {
		v, ok := f.Attributes[strings.ToUpper(fm.JSON)]
		return v, ok
	}
	if fm.Const != "" {
		return ctx.Constant(fm.Const)
	}
	return "", false
}

func resolveRelationValue(ctx Context, fm config.FieldMapping, pair feature.RelationPair) (string, bool) {
	if fm.JSON != "" {
		v, ok := pair.Kinds[fm.JSON]
		return v, ok
	}
	if fm.Const != "" {
		return ctx.Constant(fm.Const)
	}
	return "", false
}

// applyPipeline runs the named coercions left to right over value,
// starting from isNull (true when the field had no source value at
// all, e.g. a missing attribute). An unknown coercion name is a config
// bug the loader should already have rejected; it's treated here as
// resolving to null rather than panicking or aborting the whole row.
func applyPipeline(ctx Context, functions []string, value string, isNull bool) (string, bool) {
	for _, name := range functions {
		fn, err := Lookup(name)
		if err != nil {
			return "", true
		}
		value, isNull = fn(ctx, value, isNull)
	}
	return value, isNull
}

// encodeGeometry reprojects g (when the engine's Reprojector requires
// it) and returns the result alongside its plain WKB encoding, ready
// for the sink's temp-table COPY step (see internal/sink/loader.go,
// which wraps this payload in ST_SetSRID(ST_GeomFromWKB(...),
// targetEPSG) rather than carrying the SRID inside the WKB payload
// itself).
func (e *Engine) encodeGeometry(g orb.Geometry) (orb.Geometry, []byte, error) {
	if e.Reproject != nil && e.Reproject.NeedsTransform() {
		transformed, err := e.Reproject.Transform(g)
		if err != nil {
			return nil, nil, err
		}
		g = transformed
	}
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoding geometry: %v", ingesterrors.ErrReprojectionFailed, err)
	}
	return g, b, nil
}

// geometryHash is the SHA-256 digest over the canonical GeoJSON
// serialization of g — a plain digest, not an HMAC, per spec.md §9's
// resolved Open Question on geometry hashing. geojson.Geometry always
// marshals its "type"/"coordinates" fields in the same order, and a
// reprojected geometry's coordinates have already been rounded to a
// fixed precision by Reprojector.TransformPoint, so two structurally
// identical geometries always hash identically. A geometry that needs
// no transform (no Reprojector, or source CRS equal to target) is
// hashed with its coordinates as decoded, without that rounding.
func geometryHash(g orb.Geometry) string {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
