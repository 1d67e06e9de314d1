// Package geom holds the integer image-plane primitives shared by the
// counting layers: detection boxes and their centres.
package geom

import "fmt"

// Point is a pixel position in the image plane.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Box is an axis-aligned bounding box for one detection in one frame.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// BoxFromRect builds a Box from a top-left corner and a size, the form
// returned by contour bounding-rect helpers.
func BoxFromRect(x, y, w, h int) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Center returns the box midpoint. Integer division truncates toward zero.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels.
func (b Box) Area() int { return b.Width() * b.Height() }

// AspectRatio returns width/height, or 0 for a box with no height.
func (b Box) AspectRatio() float64 {
	if b.Height() == 0 {
		return 0
	}
	return float64(b.Width()) / float64(b.Height())
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d %d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}
