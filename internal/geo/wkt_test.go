package geo

import "testing"

func TestPointWKT(t *testing.T) {
	p := Point{X: -74.1, Y: 4.65}
	if got := p.WKT(); got != "POINT (-74.1 4.65)" {
		t.Errorf("unexpected WKT: %s", got)
	}
}

func TestPolygonWKT_ClosesRing(t *testing.T) {
	poly := Polygon{Rings: []Ring{{{0, 0}, {1, 0}, {1, 1}}}}
	want := "POLYGON ((0 0, 1 0, 1 1, 0 0))"
	if got := poly.WKT(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestPolygonWKT_AlreadyClosed(t *testing.T) {
	poly := Polygon{Rings: []Ring{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}
	want := "POLYGON ((0 0, 1 0, 1 1, 0 0))"
	if got := poly.WKT(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMultiPolygonWKT(t *testing.T) {
	m := MultiPolygon{Polygons: []Polygon{
		{Rings: []Ring{{{0, 0}, {1, 0}, {1, 1}}}},
		{Rings: []Ring{{{5, 5}, {6, 5}, {6, 6}}}},
	}}
	want := "MULTIPOLYGON (((0 0, 1 0, 1 1, 0 0)), ((5 5, 6 5, 6 6, 5 5)))"
	if got := m.WKT(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
