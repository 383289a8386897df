package vision

import (
	"image"
	"math"
)

// DistanceBetweenPoints calculates the Euclidean distance between two points
func DistanceBetweenPoints(p1, p2 image.Point) float64 {
	dx := float64(p2.X - p1.X)
	dy := float64(p2.Y - p1.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ReorderPoints reorders 4 points as tl, tr, br, bl. Other counts are
// returned unchanged.
func ReorderPoints(pts []image.Point) []image.Point {
	if len(pts) != 4 {
		return pts
	}

	// TL: min sum, BR: max sum
	// TR: min diff, BL: max diff
	tl, tr, br, bl := pts[0], pts[0], pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.X+p.Y < tl.X+tl.Y {
			tl = p
		}
		if p.X+p.Y > br.X+br.Y {
			br = p
		}
		if p.Y-p.X < tr.Y-tr.X {
			tr = p
		}
		if p.Y-p.X > bl.Y-bl.X {
			bl = p
		}
	}
	return []image.Point{tl, tr, br, bl}
}

// BoundingBox returns the smallest rectangle containing pts.
func BoundingBox(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}
