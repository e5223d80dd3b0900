// Package proj reprojects decoded EDIGEO coordinates from their
// source French CRS (Lambert 93, the legacy NTF Lambert zones, or a
// UTM DOM zone) into the output CRS spec.md §6 allows: WGS84 (4326)
// or Web Mercator (3857).
package proj

import "math"

// ellipsoid holds the two parameters (semi-major axis and flattening)
// that every inverse-projection formula below is built from, following
// original_source/cadastre-pg/src/reproject_lite/ellipsoid.rs.
type ellipsoid struct {
	a float64 // semi-major axis, metres
	f float64 // flattening
	e float64 // first eccentricity
}

func newEllipsoid(a, f float64) ellipsoid {
	e2 := f * (2 - f)
	return ellipsoid{a: a, f: f, e: math.Sqrt(e2)}
}

// wgs84 backs the UTM DOM zones and Lambert 93; the legacy NTF Lambert
// zones use the older Clarke 1880 IGN ellipsoid via clarke1880IGN below.
var wgs84 = newEllipsoid(6378137.0, 1.0/298.257223563)

// clarke1880IGN is the historical ellipsoid the NTF Lambert zones are
// defined against. Lambert 93 is defined on GRS80, which is numerically
// indistinguishable from WGS84 at the precision spec.md requires, so
// lambert93 reuses wgs84 instead.
var clarke1880IGN = newEllipsoid(6378249.2, 1.0/293.4660213)
