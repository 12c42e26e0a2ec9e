package cv

import (
	"image"

	"gocv.io/x/gocv"
)

// Contour is the part of a detected contour the selection strategies need
type Contour struct {
	Area   float64
	Bounds image.Rectangle
}

// RegionSelector picks the primary region out of a set of contours
type RegionSelector interface {
	SelectPrimary(contours []Contour) (BoundingBox, bool)
}

// RegionSelectorFunc adapts a function to RegionSelector
type RegionSelectorFunc func(contours []Contour) (BoundingBox, bool)

// SelectPrimary calls f
func (f RegionSelectorFunc) SelectPrimary(contours []Contour) (BoundingBox, bool) {
	return f(contours)
}

// LargestAreaSelector picks the contour with the largest enclosed area.
// Ties keep the first contour seen.
type LargestAreaSelector struct{}

// SelectPrimary implements RegionSelector
func (LargestAreaSelector) SelectPrimary(contours []Contour) (BoundingBox, bool) {
	if len(contours) == 0 {
		return BoundingBox{}, false
	}

	best := 0
	for i := 1; i < len(contours); i++ {
		if contours[i].Area > contours[best].Area {
			best = i
		}
	}
	return BoxFromRect(contours[best].Bounds), true
}

// findContours detects every contour of a binary mask with tree retrieval
func findContours(mask gocv.Mat) []Contour {
	points := gocv.FindContours(mask, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer points.Close()

	contours := make([]Contour, 0, points.Size())
	for i := 0; i < points.Size(); i++ {
		pv := points.At(i)
		contours = append(contours, Contour{
			Area:   gocv.ContourArea(pv),
			Bounds: gocv.BoundingRect(pv),
		})
	}
	return contours
}
