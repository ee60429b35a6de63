package spatial

import (
	"math"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// EPSG:2180 (PUWG 1992): transverse Mercator on GRS80.
const (
	grs80A      = 6378137.0
	grs80F      = 1 / 298.257222101
	puwgLon0    = 19.0
	puwgK0      = 0.9993
	puwgEasting = 500000.0
	puwgNorth   = -5300000.0
)

// FromWGS84 projects a WGS84 coordinate into EPSG:2180 metres.
func FromWGS84(lat, lon float64) core.Point {
	e2 := grs80F * (2 - grs80F)
	e4, e6 := e2*e2, e2*e2*e2
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	dLam := (lon - puwgLon0) * math.Pi / 180
	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)

	n := grs80A / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := dLam * cos

	m := grs80A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	x := puwgEasting + puwgK0*n*(a+(1-t+c)*a2*a/6+(5-18*t+t*t+72*c-58*ep2)*a2*a2*a/120)
	y := puwgNorth + puwgK0*(m+n*tan*(a2/2+(5-t+9*c+4*c*c)*a2*a2/24+(61-58*t+t*t+600*c-330*ep2)*a2*a2*a2/720))
	return core.Point{X: x, Y: y}
}
