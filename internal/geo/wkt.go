// Package geo provides the minimal geometry representation the uploader
// needs: plot outlines and observation points carried through record fields
// and serialized to well-known text when geometry upload is requested.
package geo

import (
	"strconv"
	"strings"
)

// Geometry is any shape that can render itself as canonical well-known text.
type Geometry interface {
	WKT() string
}

// Point is a single lon/lat coordinate.
type Point struct {
	X float64
	Y float64
}

// WKT renders the point, e.g. "POINT (-74.1 4.6)".
func (p Point) WKT() string {
	return "POINT (" + coord(p.X, p.Y) + ")"
}

// Ring is a closed sequence of coordinates. The closing coordinate is
// emitted even when the caller omitted it.
type Ring []Point

// Polygon is an outer ring plus optional holes.
type Polygon struct {
	Rings []Ring
}

// WKT renders the polygon, e.g. "POLYGON ((0 0, 1 0, 1 1, 0 0))".
func (p Polygon) WKT() string {
	return "POLYGON " + ringSet(p.Rings)
}

// MultiPolygon is a collection of polygons.
type MultiPolygon struct {
	Polygons []Polygon
}

// WKT renders the collection, e.g. "MULTIPOLYGON (((0 0, 1 0, 1 1, 0 0)))".
func (m MultiPolygon) WKT() string {
	parts := make([]string, 0, len(m.Polygons))
	for _, poly := range m.Polygons {
		parts = append(parts, ringSet(poly.Rings))
	}
	return "MULTIPOLYGON (" + strings.Join(parts, ", ") + ")"
}

func ringSet(rings []Ring) string {
	parts := make([]string, 0, len(rings))
	for _, ring := range rings {
		parts = append(parts, "("+ringCoords(ring)+")")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func ringCoords(ring Ring) string {
	if len(ring) == 0 {
		return ""
	}
	pts := ring
	if ring[0] != ring[len(ring)-1] {
		pts = append(append(Ring{}, ring...), ring[0])
	}
	parts := make([]string, 0, len(pts))
	for _, pt := range pts {
		parts = append(parts, coord(pt.X, pt.Y))
	}
	return strings.Join(parts, ", ")
}

func coord(x, y float64) string {
	return num(x) + " " + num(y)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
