package barcode

import (
	"fmt"
	"math"
)

// Point is a position in frame coordinates.
type Point struct {
	X, Y float64
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// Quadrilateral locates a barcode in a frame. Corners are clockwise from
// the top left.
type Quadrilateral struct {
	TopLeft, TopRight, BottomRight, BottomLeft Point
}

// Rect builds an axis-aligned quadrilateral.
func Rect(x, y, w, h float64) Quadrilateral {
	return Quadrilateral{
		TopLeft:     Point{x, y},
		TopRight:    Point{x + w, y},
		BottomRight: Point{x + w, y + h},
		BottomLeft:  Point{x, y + h},
	}
}

// BoundingQuad returns the axis-aligned quadrilateral enclosing pts.
func BoundingQuad(pts []Point) Quadrilateral {
	if len(pts) == 0 {
		return Quadrilateral{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect(minX, minY, maxX-minX, maxY-minY)
}

// Corners returns the four corners in clockwise order.
func (q Quadrilateral) Corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Center is the mean of the four corners.
func (q Quadrilateral) Center() Point {
	var c Point
	for _, p := range q.Corners() {
		c.X += p.X
		c.Y += p.Y
	}
	return Point{c.X / 4, c.Y / 4}
}

// Translate shifts every corner by (dx, dy).
func (q Quadrilateral) Translate(dx, dy float64) Quadrilateral {
	corners := q.Corners()
	for i := range corners {
		corners[i].X += dx
		corners[i].Y += dy
	}
	return Quadrilateral{corners[0], corners[1], corners[2], corners[3]}
}

// Contains reports whether p lies inside q. q is assumed convex; points on
// an edge count as inside.
func (q Quadrilateral) Contains(p Point) bool {
	corners := q.Corners()
	var sign float64
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
			continue
		}
		if (cross > 0) != (sign > 0) {
			return false
		}
	}
	return true
}
