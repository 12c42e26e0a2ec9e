package cv

import "gocv.io/x/gocv"

// PlayerLocator finds the player sprite in the player mask
type PlayerLocator struct {
	selector RegionSelector
}

// NewPlayerLocator creates a locator using the given selection strategy
func NewPlayerLocator(selector RegionSelector) *PlayerLocator {
	if selector == nil {
		selector = LargestAreaSelector{}
	}
	return &PlayerLocator{selector: selector}
}

// Locate returns the player's bounding box in frame coordinates, or false
// when the mask has no contour
func (l *PlayerLocator) Locate(mask gocv.Mat) (BoundingBox, bool) {
	if mask.Empty() {
		return BoundingBox{}, false
	}
	return l.selector.SelectPrimary(findContours(mask))
}
