package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
)

// SRID constants for the two output projections spec.md §6 allows.
const (
	SRID4326 = 4326 // WGS84 (lat/lon)
	SRID3857 = 3857 // Web Mercator
)

// sourceKind selects which inverse-projection family a source EPSG
// code resolves to.
type sourceKind int

const (
	kindGeographic sourceKind = iota
	kindLambert
	kindUTM
)

// Reprojector converts geometry from one of spec.md §4.3's accepted
// source CRS into 4326 or 3857, generalizing the teacher's narrow
// 4326-only Transformer into the full French CRS set (Lambert 93, the
// legacy NTF Lambert zones, and the UTM DOM zones), per
// SPEC_FULL.md §4.8.
type Reprojector struct {
	SourceEPSG int
	TargetEPSG int

	kind   sourceKind
	lambZ  lambertZone
	utmZ   utmZone
}

// NewReprojector validates the source/target EPSG pair against
// spec.md §4.3/§6 and builds the matching inverse projection.
func NewReprojector(sourceEPSG, targetEPSG int) (*Reprojector, error) {
	if targetEPSG != SRID4326 && targetEPSG != SRID3857 {
		return nil, fmt.Errorf("%w: unsupported target EPSG %d", ingesterrors.ErrUnsupportedCRS, targetEPSG)
	}

	r := &Reprojector{SourceEPSG: sourceEPSG, TargetEPSG: targetEPSG}

	switch sourceEPSG {
	case SRID4326:
		r.kind = kindGeographic
	case 2154:
		r.kind, r.lambZ = kindLambert, lambert93
	case 27561:
		r.kind, r.lambZ = kindLambert, lambert1
	case 27562:
		r.kind, r.lambZ = kindLambert, lambert2
	case 27572:
		r.kind, r.lambZ = kindLambert, lambert2Etendu
	case 27563:
		r.kind, r.lambZ = kindLambert, lambert3
	case 27564:
		r.kind, r.lambZ = kindLambert, lambert4
	case 2971, 2973, 32620:
		r.kind, r.utmZ = kindUTM, utmZone20N
	case 2972, 32622:
		r.kind, r.utmZ = kindUTM, utmZone22N
	case 2975, 32740:
		r.kind, r.utmZ = kindUTM, utmZone40S
	case 32738:
		r.kind, r.utmZ = kindUTM, utmZone38S
	default:
		return nil, fmt.Errorf("%w: unsupported source EPSG %d", ingesterrors.ErrUnsupportedCRS, sourceEPSG)
	}
	return r, nil
}

// NeedsTransform reports whether Transform does anything other than
// pass coordinates through unchanged.
func (r *Reprojector) NeedsTransform() bool {
	return !(r.SourceEPSG == r.TargetEPSG && r.kind == kindGeographic)
}

// toGeographicDegrees inverts the source projection into geographic
// longitude/latitude degrees, the common intermediate every target
// below is built from.
func (r *Reprojector) toGeographicDegrees(x, y float64) (lon, lat float64) {
	switch r.kind {
	case kindLambert:
		lonR, latR := r.lambZ.toGeographic(x, y)
		return lonR / deg, latR / deg
	case kindUTM:
		lonR, latR := r.utmZ.toGeographic(x, y)
		return lonR / deg, latR / deg
	default:
		return x, y
	}
}

// TransformPoint converts one coordinate pair from the source CRS
// into the target CRS.
func (r *Reprojector) TransformPoint(x, y float64) (float64, float64, error) {
	lon, lat := r.toGeographicDegrees(x, y)
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, fmt.Errorf("%w: non-finite coordinate at (%v, %v)", ingesterrors.ErrReprojectionFailed, x, y)
	}

	switch r.TargetEPSG {
	case SRID4326:
		return round(lon, 7), round(lat, 7), nil
	case SRID3857:
		mx, my := toWebMercator(lon*deg, lat*deg)
		return round(mx, 2), round(my, 2), nil
	default:
		return 0, 0, fmt.Errorf("%w: unsupported target EPSG %d", ingesterrors.ErrUnsupportedCRS, r.TargetEPSG)
	}
}

// Transform walks geometry, converting every vertex from the source
// CRS to the target CRS. It covers every OGC variant spec.md §4.5 can
// produce (Point, LineString, Polygon and their Multi* siblings).
func (r *Reprojector) Transform(g orb.Geometry) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return r.transformPoint(v)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(v))
		for i, p := range v {
			tp, err := r.transformPoint(p)
			if err != nil {
				return nil, err
			}
			out[i] = tp
		}
		return out, nil
	case orb.LineString:
		return r.transformLineString(v)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			tls, err := r.transformLineString(ls)
			if err != nil {
				return nil, err
			}
			out[i] = tls
		}
		return out, nil
	case orb.Ring:
		ls, err := r.transformLineString(orb.LineString(v))
		if err != nil {
			return nil, err
		}
		return orb.Ring(ls), nil
	case orb.Polygon:
		return r.transformPolygon(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			tp, err := r.transformPolygon(p)
			if err != nil {
				return nil, err
			}
			out[i] = tp
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %T", ingesterrors.ErrReprojectionFailed, g)
	}
}

func (r *Reprojector) transformPoint(p orb.Point) (orb.Point, error) {
	x, y, err := r.TransformPoint(p[0], p[1])
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

func (r *Reprojector) transformLineString(ls orb.LineString) (orb.LineString, error) {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		tp, err := r.transformPoint(p)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

func (r *Reprojector) transformPolygon(p orb.Polygon) (orb.Polygon, error) {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		ls, err := r.transformLineString(orb.LineString(ring))
		if err != nil {
			return nil, err
		}
		out[i] = orb.Ring(ls)
	}
	return out, nil
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// ParseSRID parses a projection string to SRID, accepting "4326",
// "3857", "EPSG:4326", "EPSG:3857" — the two values spec.md §6 allows
// for --output-epsg.
func ParseSRID(s string) (int, error) {
	switch s {
	case "4326", "EPSG:4326":
		return SRID4326, nil
	case "3857", "EPSG:3857":
		return SRID3857, nil
	default:
		return 0, fmt.Errorf("unsupported projection: %s (supported: 4326, 3857)", s)
	}
}
