package proj

import "math"

// webMercatorRadius is the spherical radius EPSG:3857 is defined
// against, matching the teacher's own lonLatToWebMercator constant in
// internal/proj/transform.go before this package absorbed it.
const webMercatorRadius = 6378137.0

// maxMercatorLat clamps latitude to the ±85.051129° range Web Mercator
// can represent, following
// original_source/cadastre-pg/src/reproject_lite/mercator.rs.
const maxMercatorLat = 85.05112878 * deg

// toWebMercator projects geographic coordinates (radians) forward into
// EPSG:3857 metres.
func toWebMercator(lon, lat float64) (x, y float64) {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	} else if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}
	x = webMercatorRadius * lon
	y = webMercatorRadius * math.Log(math.Tan(math.Pi/4+lat/2))
	return x, y
}
