package core

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a planar coordinate in EPSG:2180 metres. X is easting, Y northing.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// DistanceTo returns the Euclidean distance in metres.
func (p Point) DistanceTo(o Point) float64 {
	return planar.Distance(p.Orb(), o.Orb())
}

// IsZero reports whether the point is the origin.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Orb returns p as an orb point.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// PointFromOrb converts an orb point.
func PointFromOrb(p orb.Point) Point {
	return Point{X: p.X(), Y: p.Y()}
}

// Polygon is a parcel outline. Rings[0] is the outer ring; later rings are holes.
// Rings may be open or closed.
type Polygon struct {
	Rings [][]Point `json:"rings" msgpack:"rings"`
}

// IsEmpty reports whether the polygon lacks a usable outer ring.
func (g Polygon) IsEmpty() bool {
	return len(g.Rings) == 0 || len(g.Rings[0]) < 3
}

// Orb returns g as an orb polygon with every ring closed.
func (g Polygon) Orb() orb.Polygon {
	poly := make(orb.Polygon, 0, len(g.Rings))
	for _, ring := range g.Rings {
		if len(ring) == 0 {
			continue
		}
		r := make(orb.Ring, 0, len(ring)+1)
		for _, p := range ring {
			r = append(r, p.Orb())
		}
		if !r.Closed() {
			r = append(r, r[0])
		}
		poly = append(poly, r)
	}
	return poly
}

// Area returns the planar area in square metres, holes subtracted.
func (g Polygon) Area() float64 {
	if g.IsEmpty() {
		return 0
	}
	outer := g.Orb()
	area := math.Abs(planar.Area(outer[0]))
	for _, hole := range outer[1:] {
		area -= math.Abs(planar.Area(hole))
	}
	return math.Max(area, 0)
}

// Perimeter returns the total boundary length of all rings.
func (g Polygon) Perimeter() float64 {
	return planar.Length(g.Orb())
}

// Compactness is the isoperimetric quotient 4πA/P², 1 for a disc and
// approaching 0 for slivers.
func (g Polygon) Compactness() float64 {
	p := g.Perimeter()
	if p == 0 {
		return 0
	}
	c := 4 * math.Pi * g.Area() / (p * p)
	return math.Min(math.Max(c, 0), 1)
}

// Centroid returns the area centroid of the outer ring.
func (g Polygon) Centroid() Point {
	if g.IsEmpty() {
		return Point{}
	}
	c, _ := planar.CentroidArea(g.Orb()[0])
	return PointFromOrb(c)
}

// Contains reports whether p lies inside the outer ring and outside every hole.
func (g Polygon) Contains(p Point) bool {
	if g.IsEmpty() {
		return false
	}
	return planar.PolygonContains(g.Orb(), p.Orb())
}

// Rectangle builds an axis-aligned rectangular polygon anchored at its
// south-west corner. Used by fixtures and the seeder.
func Rectangle(sw Point, widthM, heightM float64) Polygon {
	return Polygon{Rings: [][]Point{{
		sw,
		{X: sw.X + widthM, Y: sw.Y},
		{X: sw.X + widthM, Y: sw.Y + heightM},
		{X: sw.X, Y: sw.Y + heightM},
	}}}
}
