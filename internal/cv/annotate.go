package cv

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

var (
	cellColor     = color.RGBA{0, 0, 255, 255}
	occupiedColor = color.RGBA{0, 255, 0, 255}
	playerColor   = color.RGBA{255, 0, 0, 255}
)

// Annotate draws every evaluated cell and the player box onto a canonical frame
func Annotate(frame *gocv.Mat, res *Result) {
	for _, cell := range res.Cells {
		c := cellColor
		if cell.Occupied {
			c = occupiedColor
		}
		gocv.Rectangle(frame, cell.Rect, c, 2)
	}
	if res.PlayerFound {
		gocv.Rectangle(frame, res.Player.Rect(), playerColor, 2)
	}
}

// SaveSnapshot writes a frame as PNG under dir, named by sequence number
func SaveSnapshot(img image.Image, dir string, seq int) (string, error) {
	if img == nil {
		return "", ErrEmptyFrame
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", seq))
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return path, nil
}

// LoadImage opens a PNG or JPEG screenshot from disk
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return img, nil
}

// Thumbnail scales a frame down for display, keeping the aspect ratio
func Thumbnail(img image.Image, maxHeight int) image.Image {
	if img == nil || img.Bounds().Dy() <= maxHeight {
		return img
	}
	return imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
}
