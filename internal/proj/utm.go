package proj

import "math"

// utmZone is one UTM projection on WGS84, inverted with Snyder's
// series expansion, following
// original_source/cadastre-pg/src/reproject_lite/utm.rs.
type utmZone struct {
	zone  int
	south bool
	lon0  float64
}

func newUTMZone(zone int, south bool) utmZone {
	return utmZone{zone: zone, south: south, lon0: float64(zone)*6*deg - 183*deg}
}

// DOM zones spec.md §4.3 accepts, keyed by their French EPSG aliases
// (2971/2972/2973/2975) as well as the standard UTM EPSG codes
// (32620/32622/32738/32740) the Rust original only recognizes — the
// underlying projection is the same, selected by zone/hemisphere, not
// by which EPSG alias named it.
var (
	utmZone20N = newUTMZone(20, false) // Guadeloupe, Martinique
	utmZone22N = newUTMZone(22, false) // Guyane
	utmZone40S = newUTMZone(40, true)  // Réunion
	utmZone38S = newUTMZone(38, true)  // Mayotte-adjacent alias, kept for completeness
)

const (
	utmK0 = 0.9996
	utmX0 = 500000.0
)

func (z utmZone) y0() float64 {
	if z.south {
		return 10000000.0
	}
	return 0.0
}

// toGeographic inverts the Transverse Mercator projection on WGS84 at
// this zone, returning longitude/latitude in radians.
func (z utmZone) toGeographic(x, y float64) (lon, lat float64) {
	a := wgs84.a
	e2 := wgs84.e * wgs84.e
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	m := (y - z.y0()) / utmK0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (x - utmX0) / (n1 * utmK0)

	lat = phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lon = z.lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lon, lat
}
