package cv

import (
	"image"
	"image/draw"

	"gocv.io/x/gocv"

	"jordanella.com/runner-collector/internal/config"
)

// shopPixelThreshold is the eroded shop-button pixel count above which the prompt is shown
const shopPixelThreshold = 15

// Segmenter builds binary masks from a BGR frame. It owns a 5x5 kernel and
// must be closed.
type Segmenter struct {
	colors config.Colors
	kernel gocv.Mat
}

// NewSegmenter creates a segmenter for the given colour ranges
func NewSegmenter(colors config.Colors) *Segmenter {
	return &Segmenter{
		colors: colors,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5)),
	}
}

// Close releases the kernel
func (s *Segmenter) Close() error {
	return s.kernel.Close()
}

// InRange returns a mask that is 255 where every channel of the BGR frame lies
// inside the RGB range, inclusive
func InRange(frame gocv.Mat, r config.ColorRange) gocv.Mat {
	lower := gocv.NewScalar(float64(r.Lower[2]), float64(r.Lower[1]), float64(r.Lower[0]), 0)
	upper := gocv.NewScalar(float64(r.Upper[2]), float64(r.Upper[1]), float64(r.Upper[0]), 0)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(frame, lower, upper, &mask)
	return mask
}

// PlatformMask merges the platform and coin masks, removes salt noise and closes gaps
func (s *Segmenter) PlatformMask(frame gocv.Mat) gocv.Mat {
	platform := InRange(frame, s.colors.Platform)
	defer platform.Close()
	coin := InRange(frame, s.colors.Coin)
	defer coin.Close()

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.BitwiseOr(platform, coin, &merged)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(merged, &blurred, 3)

	closed := gocv.NewMat()
	gocv.MorphologyEx(blurred, &closed, gocv.MorphClose, s.kernel)
	return closed
}

// PlayerMask thresholds the player colour and opens the result to drop speckles
func (s *Segmenter) PlayerMask(frame gocv.Mat) gocv.Mat {
	player := InRange(frame, s.colors.Player)
	defer player.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(player, &opened, gocv.MorphOpen, s.kernel)
	return opened
}

// GameOver reports whether any play-again button pixel is visible
func (s *Segmenter) GameOver(frame gocv.Mat) bool {
	mask := InRange(frame, s.colors.PlayAgain)
	defer mask.Close()
	return gocv.CountNonZero(mask) > 0
}

// ShopPrompt reports whether the shop replay button is visible after erosion
func (s *Segmenter) ShopPrompt(frame gocv.Mat) bool {
	mask := InRange(frame, s.colors.Shop)
	defer mask.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(mask, &eroded, s.kernel)
	return gocv.CountNonZero(eroded) > shopPixelThreshold
}

// maskToGray copies a single-channel mask into a Go image
func maskToGray(mask gocv.Mat) (*image.Gray, error) {
	rows, cols := mask.Rows(), mask.Cols()
	if rows == 0 || cols == 0 {
		return nil, ErrEmptyFrame
	}
	pix, err := mask.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	gray := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(gray.Pix, pix)
	return gray, nil
}

// imageToMat converts an image to a BGR Mat
func imageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	return gocv.ImageToMatRGB(toRGBA(img))
}

// toRGBA returns img as a zero-origin *image.RGBA with a tight stride
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
