package geometry

import "math"

// PolygonArea returns the signed area of a simple polygon (shoelace formula).
// Counter-clockwise polygons in a y-up frame are positive.
func PolygonArea(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return sum / 2
}

// PolygonCentroid returns the area centroid of a simple polygon. Degenerate
// polygons (zero area) fall back to the vertex average.
func PolygonCentroid(polygon []Point2D) Point2D {
	area := PolygonArea(polygon)
	if math.Abs(area) < 1e-9 {
		return Centroid(polygon)
	}

	var cx, cy float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
		cx += (polygon[i].X + polygon[j].X) * cross
		cy += (polygon[i].Y + polygon[j].Y) * cross
	}
	return Point2D{X: cx / (6 * area), Y: cy / (6 * area)}
}

// Spread returns the ratio of the smaller to the larger principal variance of a
// point set. Values near zero mean the points are (nearly) collinear.
func Spread(points []Point2D) float64 {
	if len(points) < 2 {
		return 0
	}
	c := Centroid(points)
	var sxx, sxy, syy float64
	for _, p := range points {
		dx, dy := p.X-c.X, p.Y-c.Y
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	tr := sxx + syy
	if tr == 0 {
		return 0
	}
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(tr*tr/4-det, 0))
	hi := tr/2 + disc
	lo := tr/2 - disc
	if lo < 0 {
		lo = 0
	}
	return lo / hi
}
