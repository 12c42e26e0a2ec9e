package cv

import (
	"fmt"
	"image"
)

// Region is a rectangle in absolute screen coordinates
type Region struct {
	X, Y, Width, Height int
}

// NewRegion creates a new region
func NewRegion(x, y, width, height int) Region {
	return Region{X: x, Y: y, Width: width, Height: height}
}

// RegionFromPoints builds the region spanned by two corner clicks in either order
func RegionFromPoints(a, b image.Point) Region {
	r := image.Rectangle{Min: a, Max: b}.Canon()
	return RegionFromRect(r)
}

// RegionFromRect converts an image.Rectangle
func RegionFromRect(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether the region has a positive area
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains checks if a point is within the region
func (r Region) Contains(p image.Point) bool {
	return p.In(r.Rect())
}

// Offset translates a box local to the region into absolute coordinates
func (r Region) Offset(b BoundingBox) Region {
	return Region{X: r.X + b.X, Y: r.Y + b.Y, Width: b.Width, Height: b.Height}
}

// Within checks that the region lies fully inside bounds
func (r Region) Within(bounds image.Rectangle) error {
	if !r.Valid() {
		return fmt.Errorf("region %s has no area", r)
	}
	if !r.Rect().In(bounds) {
		return fmt.Errorf("region %s outside screen %v", r, bounds)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// BoundingBox is an axis-aligned box in frame-local pixel coordinates
type BoundingBox struct {
	X, Y, Width, Height int
}

// BoxFromRect converts an image.Rectangle
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Top returns the top edge
func (b BoundingBox) Top() int {
	return b.Y
}

// Bottom returns the bottom edge (exclusive)
func (b BoundingBox) Bottom() int {
	return b.Y + b.Height
}

// Area returns the box area in pixels
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}
