// Package geometry provides the polygon and projective math used to find and
// rectify the soroban frame.
package geometry

import (
	"image"
	"math"
	"sort"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// FromImagePoints converts integer contour points.
func FromImagePoints(pts []image.Point) []vision.Point {
	out := make([]vision.Point, len(pts))
	for i, p := range pts {
		out[i] = vision.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

// ContourArea returns the absolute polygon area (shoelace formula).
func ContourArea(pts []vision.Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// ArcLength returns the perimeter of a closed contour or the length of an
// open curve.
func ArcLength(pts []vision.Point, closed bool) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 1; i < n; i++ {
		total += dist(pts[i-1], pts[i])
	}
	if closed {
		total += dist(pts[n-1], pts[0])
	}
	return total
}

// ApproxPolyDP simplifies a curve with the Douglas-Peucker algorithm.
//
// For closed curves the contour is split at its first point and the point
// farthest from it, each half is simplified separately and the halves are
// joined, so the result does not depend on where the contour starts as long
// as the true corners are sharp.
func ApproxPolyDP(pts []vision.Point, epsilon float64, closed bool) []vision.Point {
	n := len(pts)
	if n < 3 {
		out := make([]vision.Point, n)
		copy(out, pts)
		return out
	}
	if !closed {
		return douglasPeucker(pts, epsilon)
	}

	far := 0
	var best float64
	for i := 1; i < n; i++ {
		if d := dist(pts[0], pts[i]); d > best {
			best = d
			far = i
		}
	}
	if far == 0 {
		return []vision.Point{pts[0]}
	}

	first := douglasPeucker(pts[:far+1], epsilon)
	second := make([]vision.Point, 0, n-far+1)
	second = append(second, pts[far:]...)
	second = append(second, pts[0])
	secondSimplified := douglasPeucker(second, epsilon)

	// Both halves share their endpoints.
	out := make([]vision.Point, 0, len(first)+len(secondSimplified))
	out = append(out, first...)
	out = append(out, secondSimplified[1:len(secondSimplified)-1]...)
	return out
}

// douglasPeucker simplifies an open polyline keeping both endpoints.
// Iterative to keep stack depth flat on long contours.
func douglasPeucker(pts []vision.Point, epsilon float64) []vision.Point {
	n := len(pts)
	if n < 3 {
		out := make([]vision.Point, n)
		copy(out, pts)
		return out
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx := -1
		var maxD float64
		for i := s.lo + 1; i < s.hi; i++ {
			if d := perpendicularDistance(pts[i], pts[s.lo], pts[s.hi]); d > maxD {
				maxD = d
				idx = i
			}
		}
		if idx >= 0 && maxD > epsilon {
			keep[idx] = true
			stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
		}
	}

	out := make([]vision.Point, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// IsConvex reports whether a simple polygon is convex. Collinear runs are
// tolerated.
func IsConvex(polygon []vision.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		c := cross(polygon[i], polygon[(i+1)%n], polygon[(i+2)%n])
		if c == 0 {
			continue
		}
		s := 1
		if c < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

// BoundingRect returns the pixel-inclusive bounding box of integer contour
// points: a single pixel has width and height 1.
func BoundingRect(pts []vision.Point) vision.Rect {
	if len(pts) == 0 {
		return vision.Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return vision.Rect{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// Centroid returns the arithmetic mean of the points.
func Centroid(pts []vision.Point) vision.Point {
	if len(pts) == 0 {
		return vision.Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return vision.Point{X: sx / n, Y: sy / n}
}

// ConvexHull returns the hull in counter-clockwise order (monotone chain).
func ConvexHull(points []vision.Point) []vision.Point {
	if len(points) < 3 {
		out := make([]vision.Point, len(points))
		copy(out, points)
		return out
	}

	pts := make([]vision.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]vision.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b vision.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func dist(a, b vision.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func perpendicularDistance(p, a, b vision.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return dist(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}
