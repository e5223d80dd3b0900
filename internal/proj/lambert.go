package proj

import "math"

const deg = math.Pi / 180.0

// isometricLatitude and latitudeFromIsometric implement the two
// conversions every Lambert conformal conic inverse needs, ported from
// original_source/cadastre-pg/src/reproject_lite/lambert.rs.
func isometricLatitude(lat, e float64) float64 {
	s := e * math.Sin(lat)
	return math.Log(math.Tan(math.Pi/4+lat/2)) - e/2*math.Log((1+s)/(1-s))
}

func latitudeFromIsometric(l, e float64) float64 {
	lat := 2*math.Atan(math.Exp(l)) - math.Pi/2
	for i := 0; i < 10; i++ {
		s := e * math.Sin(lat)
		lat = 2*math.Atan(math.Pow((1+s)/(1-s), e/2)*math.Exp(l)) - math.Pi/2
	}
	return lat
}

// grandeNormale is the radius of curvature in the prime vertical, N(φ).
func grandeNormale(lat float64, el ellipsoid) float64 {
	s := math.Sin(lat)
	return el.a / math.Sqrt(1-el.e*el.e*s*s)
}

// lambertZone is a secant Lambert conformal conic projection fully
// resolved to its n/C/Xs/Ys constants, following the IGN published
// parameter set for each legacy zone. Lambert 93's constants are
// derived at init time from its two standard parallels; the legacy NTF
// zones use IGN's own published n/C/Ys directly, matching the
// constants circulated for each zone in any standard French geodesy
// reference.
type lambertZone struct {
	n, c, xs, ys, lon0 float64
	ellipsoid          ellipsoid
}

func secantLambert(lat0, lat1, lat2, lon0, x0, y0 float64, el ellipsoid) lambertZone {
	n1 := grandeNormale(lat1, el) * math.Cos(lat1)
	n2 := grandeNormale(lat2, el) * math.Cos(lat2)
	l1 := isometricLatitude(lat1, el.e)
	l2 := isometricLatitude(lat2, el.e)

	n := (math.Log(n2) - math.Log(n1)) / (l1 - l2)
	c := n1 / n * math.Exp(n*l1)

	l0 := isometricLatitude(lat0, el.e)
	r0 := c * math.Exp(-n*l0)

	return lambertZone{n: n, c: c, xs: x0, ys: y0 + r0, lon0: lon0, ellipsoid: el}
}

// lambert93 is IGN's standard Lambert 93 (EPSG:2154) projection,
// secant on 44°N/49°N, origin 46.5°N/3°E, false origin
// (700000, 6600000).
var lambert93 = secantLambert(46.5*deg, 44*deg, 49*deg, 3*deg, 700000, 6600000, wgs84)

// Paris meridian, 2°20'14.025" east of Greenwich — the origin every
// legacy NTF Lambert zone is defined against.
const parisMeridian = (2 + 20.0/60 + 14.025/3600) * deg

// legacyLambert builds one NTF Lambert zone from IGN's published
// n/C/Ys constants (Xs is 600000 for every zone). These are the
// classic zone parameters circulated by IGN for Lambert I-IV and
// Lambert II étendu; original_source only implements Lambert 93, so
// these are not cross-checked against it, unlike lambert93 above.
func legacyLambert(n, c, ys float64) lambertZone {
	return lambertZone{n: n, c: c, xs: 600000, ys: ys, lon0: parisMeridian, ellipsoid: clarke1880IGN}
}

var (
	lambert1        = legacyLambert(0.7604059656, 11603796.98, 5657616.674)
	lambert2        = legacyLambert(0.7289686274, 11745793.39, 6199695.768)
	lambert2Etendu  = legacyLambert(0.7289686274, 11745793.39, 8199695.768)
	lambert3        = legacyLambert(0.6959127966, 11947992.52, 6791905.085)
	lambert4        = legacyLambert(0.6712679322, 12136281.99, 7239161.542)
)

// toGeographic inverts the zone's Lambert conformal conic projection,
// returning longitude/latitude in radians.
func (z lambertZone) toGeographic(x, y float64) (lon, lat float64) {
	dx := x - z.xs
	dy := z.ys - y
	r := math.Sqrt(dx*dx + dy*dy)
	if z.n < 0 {
		r = -r
	}
	gamma := math.Atan2(dx, dy)
	lon = z.lon0 + gamma/z.n
	l := (math.Log(z.c) - math.Log(math.Abs(r))) / z.n
	lat = latitudeFromIsometric(l, z.ellipsoid.e)
	return lon, lat
}
