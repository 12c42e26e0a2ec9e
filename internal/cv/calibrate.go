package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Calibrator tightens a user-marked rough region to the game viewport
type Calibrator struct {
	selector RegionSelector
}

// NewCalibrator creates a calibrator. WithSelector is the only option it reads.
func NewCalibrator(opts ...Option) *Calibrator {
	o := applyOptions(opts)
	return &Calibrator{selector: o.selector}
}

// Calibrate captures the rough region once and refines it
func (c *Calibrator) Calibrate(capturer Capturer, rough Region) (Region, error) {
	img, err := capturer.Capture(rough)
	if err != nil {
		return rough, fmt.Errorf("%w: %v", ErrCalibrationFailure, err)
	}
	return c.Refine(img, rough)
}

// Refine returns the bounding box of the dominant contour in a screenshot of
// the rough region, in absolute screen coordinates. When nothing usable is
// found it returns the rough region with ErrCalibrationFailure.
func (c *Calibrator) Refine(img image.Image, rough Region) (Region, error) {
	mat, err := imageToMat(img)
	if err != nil {
		mat.Close()
		return rough, fmt.Errorf("%w: %v", ErrCalibrationFailure, err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(blurred, &thresh, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	box, ok := c.selector.SelectPrimary(findContours(thresh))
	if !ok || box.Width <= 0 || box.Height <= 0 {
		return rough, fmt.Errorf("%w: no contour in rough region %s", ErrCalibrationFailure, rough)
	}

	// Screenshots from the provider are at native size, so the box is already in
	// region-local pixels
	return rough.Offset(box), nil
}
