// Package transform implements C8: mapping a decoded feature's
// attributes onto a target table's columns through the schema-driven
// coercion pipeline spec.md §4.8 names, and reprojecting its geometry.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
)

// Context carries the per-archive constants a coercion or a "const"
// field selector may need: addDep prefixes the department code,
// addMillesime resolves the release year, and CommuneID/SectionID
// back the "commune_id"/"section_id" const selectors every preset's
// commonFields helper wires in.
type Context struct {
	Dep       string
	Millesime string // "YYYY-MM"
	CommuneID string
	SectionID string
}

// Constant resolves one of the per-archive constant-table selectors a
// field mapping's "const" key names.
func (ctx Context) Constant(name string) (string, bool) {
	switch name {
	case "dep":
		return ctx.Dep, true
	case "millesime":
		return ctx.Millesime, true
	case "commune_id":
		return ctx.CommuneID, true
	case "section_id":
		return ctx.SectionID, true
	default:
		return "", false
	}
}

// CoercionFunc is one named transform in the enumerated pipeline
// spec.md §4.8 fixes (addMillesime, addDep, toInt, toFloat, toDate,
// toDateFR). It receives the accumulated value and whether it is
// already null, and returns the next value/null state. Only a
// genuinely malformed pipeline (an unknown coercion name) returns an
// error here — unparsable *values* resolve to null per spec.md §4.8,
// not to ErrCoercionFailed; that sentinel is reserved for a null
// landing in a non-nullable column, which the caller (engine.go)
// checks once the whole pipeline has run.
type CoercionFunc func(ctx Context, value string, isNull bool) (string, bool)

// registry keys every coercion by the name a table config's
// "functions" array spells it with, mirroring the teacher's
// internal/flex/transforms.go dispatch-table idiom (one Go function
// per named transform, looked up by string key) rather than a
// scripting surface.
var registry = map[string]CoercionFunc{
	"addMillesime": addMillesime,
	"addDep":       addDep,
	"toInt":        toInt,
	"toFloat":      toFloat,
	"toDate":       toDate,
	"toDateFR":     toDateFR,
}

// Lookup resolves a named coercion, or reports ErrConfigInvalid if the
// name isn't one of the six spec.md §4.8 enumerates — config.Load
// already rejects unknown names at load time, so this only fires for
// hand-built configs that bypass Load.
func Lookup(name string) (CoercionFunc, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown coercion %q", ingesterrors.ErrConfigInvalid, name)
	}
	return fn, nil
}

// addMillesime replaces the value with the integer millésime derived
// from ctx.Millesime ("YYYY-MM"), per spec.md §4.8's
// `addMillesime(any, date="2025-04") = 2025` example — the field's own
// raw value is ignored outright, and the result is never null.
func addMillesime(ctx Context, _ string, _ bool) (string, bool) {
	year := strings.SplitN(ctx.Millesime, "-", 2)[0]
	return year, false
}

// addDep prefixes the value with the two-character department code,
// per spec.md §4.8's `addDep("X", dep="38") = "38X"` example.
func addDep(ctx Context, value string, isNull bool) (string, bool) {
	if isNull {
		return value, true
	}
	return ctx.Dep + value, false
}

// intPattern extracts the first (optionally signed) integer run
// from a value that may carry surrounding text (e.g. "1234 m²").
var intPattern = regexp.MustCompile(`-?\d+`)

// toInt parses a decimal integer; an empty or unparsable value
// resolves to null rather than an error, per spec.md §4.8.
func toInt(_ Context, value string, isNull bool) (string, bool) {
	if isNull {
		return "", true
	}
	m := intPattern.FindString(strings.TrimSpace(value))
	if m == "" {
		return "", true
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return "", true
	}
	return strconv.Itoa(n), false
}

// floatPattern extracts the first decimal number using a dot as the
// only recognized decimal separator. A comma is deliberately NOT
// accepted as a decimal point: spec.md §8's coercion round-trip law
// requires toFloat("12,34 m²") == 12, i.e. the comma halts the match
// rather than being read as a French decimal separator.
var floatPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// toFloat extracts the first decimal number in the value; empty or
// none found resolves to null, per spec.md §4.8.
func toFloat(_ Context, value string, isNull bool) (string, bool) {
	if isNull {
		return "", true
	}
	m := floatPattern.FindString(strings.TrimSpace(value))
	if m == "" {
		return "", true
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "", true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), false
}

// isoDateLayout is the ISO date form every persisted date column is
// written in, matching PostgreSQL's own default textual date
// representation for a COPY text-format row.
const isoDateLayout = "2006-01-02"

// toDate parses a raw "YYYYMMDD" value (spec.md §4.8); a year below
// 1000 or an otherwise invalid calendar date resolves to null.
func toDate(_ Context, value string, isNull bool) (string, bool) {
	if isNull {
		return "", true
	}
	v := strings.TrimSpace(value)
	if len(v) != 8 {
		return "", true
	}
	year, err := strconv.Atoi(v[:4])
	if err != nil || year < 1000 {
		return "", true
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return "", true
	}
	return t.Format(isoDateLayout), false
}

// toDateFR parses a raw "DDMMYYYY" value with optional "/" separators
// (spec.md §4.8), applying the same null rules as toDate.
func toDateFR(_ Context, value string, isNull bool) (string, bool) {
	if isNull {
		return "", true
	}
	v := strings.ReplaceAll(strings.TrimSpace(value), "/", "")
	if len(v) != 8 {
		return "", true
	}
	year, err := strconv.Atoi(v[4:])
	if err != nil || year < 1000 {
		return "", true
	}
	t, err := time.Parse("02012006", v)
	if err != nil {
		return "", true
	}
	return t.Format(isoDateLayout), false
}
