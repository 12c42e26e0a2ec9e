package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"jordanella.com/runner-collector/internal/config"
)

// Result is everything extracted from one frame
type Result struct {
	Grid        OccupancyGrid
	Player      BoundingBox
	PlayerFound bool
	GameOver    bool
	ShopPrompt  bool
	Cells       []Cell

	// Annotated is set only when the extractor was built WithAnnotation
	Annotated image.Image
}

// Extractor runs segmentation, player location and quantization on one frame.
// It is not safe for concurrent use.
type Extractor struct {
	grid      config.Grid
	segmenter *Segmenter
	locator   *PlayerLocator
	quantizer *Quantizer
	opts      cvOptions
}

// NewExtractor creates an extractor for the given configuration
func NewExtractor(cfg *config.Config, opts ...Option) *Extractor {
	o := applyOptions(opts)
	return &Extractor{
		grid:      cfg.Grid,
		segmenter: NewSegmenter(cfg.Colors),
		locator:   NewPlayerLocator(o.selector),
		quantizer: NewQuantizer(cfg.Grid),
		opts:      o,
	}
}

// Close releases native resources
func (e *Extractor) Close() error {
	return e.segmenter.Close()
}

// Extract converts a captured image into features. A missing player yields
// ErrPlayerNotFound together with a valid result holding an all-zero grid.
func (e *Extractor) Extract(img image.Image) (*Result, error) {
	mat, err := imageToMat(img)
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	return e.ExtractMat(mat)
}

// ExtractMat is Extract for a BGR Mat of any size
func (e *Extractor) ExtractMat(frame gocv.Mat) (*Result, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	canonical := e.resize(frame)
	defer canonical.Close()

	platform := e.segmenter.PlatformMask(canonical)
	defer platform.Close()
	player := e.segmenter.PlayerMask(canonical)
	defer player.Close()

	res := &Result{
		Grid: NewOccupancyGrid(e.grid.Bands, e.grid.Columns),
	}
	if e.opts.detectGameOver {
		res.GameOver = e.segmenter.GameOver(canonical)
		res.ShopPrompt = e.segmenter.ShopPrompt(canonical)
	}

	var extractErr error
	box, found := e.locator.Locate(player)
	if found {
		mask, err := maskToGray(platform)
		if err != nil {
			return nil, fmt.Errorf("failed to read platform mask: %w", err)
		}
		res.Player = box
		res.PlayerFound = true
		res.Grid, res.Cells = e.quantizer.Quantize(mask, box)
	} else {
		extractErr = ErrPlayerNotFound
	}

	if e.opts.annotate {
		Annotate(&canonical, res)
		annotated, err := canonical.ToImage()
		if err != nil {
			return nil, fmt.Errorf("failed to render annotation: %w", err)
		}
		res.Annotated = annotated
	}

	return res, extractErr
}

// resize returns a copy of frame at the canonical size
func (e *Extractor) resize(frame gocv.Mat) gocv.Mat {
	w, h := e.grid.FrameSize()
	if frame.Cols() == w && frame.Rows() == h {
		return frame.Clone()
	}
	out := gocv.NewMat()
	gocv.Resize(frame, &out, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	return out
}
