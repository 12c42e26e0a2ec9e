package cv

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"gocv.io/x/gocv"

	"jordanella.com/runner-collector/internal/config"
)

var (
	black    = color.RGBA{0, 0, 0, 255}
	white    = color.RGBA{255, 255, 255, 255}
	blue     = color.RGBA{0, 0, 255, 255}
	green    = color.RGBA{90, 220, 90, 255}
	shopRed  = color.RGBA{220, 90, 90, 255}
	darkGray = color.RGBA{30, 30, 30, 255}
	light    = color.RGBA{220, 220, 220, 255}
)

func newFrame(w, h int, bg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), bg)
	return img
}

func fillRect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func mustMat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	mat, err := imageToMat(img)
	if err != nil {
		t.Fatalf("Failed to convert image: %v", err)
	}
	return mat
}

// canonicalFrame builds the 481x841 scene with a blue player at (200,700)-(240,740)
func canonicalFrame(strips ...image.Rectangle) *image.RGBA {
	img := newFrame(481, 841, black)
	for _, s := range strips {
		fillRect(img, s, white)
	}
	fillRect(img, image.Rect(200, 700, 240, 740), blue)
	return img
}

func TestInRangeMatchesColorRange(t *testing.T) {
	r := config.ColorRange{Lower: [3]uint8{40, 80, 120}, Upper: [3]uint8{200, 160, 220}}

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), uint8((x + y) * 2), 255})
		}
	}

	mat := mustMat(t, img)
	defer mat.Close()
	mask := InRange(mat, r)
	defer mask.Close()

	gray, err := maskToGray(mask)
	if err != nil {
		t.Fatalf("maskToGray failed: %v", err)
	}

	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			v := gray.GrayAt(x, y).Y
			if v != 0 && v != 255 {
				t.Fatalf("Mask value %d at (%d,%d) not binary", v, x, y)
			}
			p := img.RGBAAt(x, y)
			want := r.Contains(p.R, p.G, p.B)
			if (v == 255) != want {
				t.Fatalf("Pixel (%d,%d) rgb=%v: mask=%d, want in-range=%v", x, y, p, v, want)
			}
		}
	}
}

func TestCalibratorRefinesAndIsIdempotent(t *testing.T) {
	img := newFrame(300, 400, darkGray)
	fillRect(img, image.Rect(40, 60, 260, 360), light)
	rough := NewRegion(100, 50, 300, 400)

	c := NewCalibrator()
	first, err := c.Refine(img, rough)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	second, err := c.Refine(img, rough)
	if err != nil {
		t.Fatalf("Second Refine failed: %v", err)
	}
	if first != second {
		t.Errorf("Refine not idempotent: %s vs %s", first, second)
	}

	want := NewRegion(140, 110, 220, 300)
	if abs(first.X-want.X) > 2 || abs(first.Y-want.Y) > 2 ||
		abs(first.Width-want.Width) > 4 || abs(first.Height-want.Height) > 4 {
		t.Errorf("Refined region %s, want about %s", first, want)
	}
}

func TestCalibratorFallsBackToRoughRegion(t *testing.T) {
	rough := NewRegion(10, 20, 120, 80)

	got, err := NewCalibrator().Refine(newFrame(120, 80, black), rough)
	if !errors.Is(err, ErrCalibrationFailure) {
		t.Fatalf("Expected ErrCalibrationFailure, got %v", err)
	}
	if got != rough {
		t.Errorf("Expected rough region %s, got %s", rough, got)
	}

	got, err = NewCalibrator().Calibrate(NewStaticCapturer(false), rough)
	if !errors.Is(err, ErrCalibrationFailure) || got != rough {
		t.Errorf("Expected fallback on capture failure, got %s, %v", got, err)
	}
}

func TestLocatorPicksLargestBlob(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 200, 200))
	fillRect(gray, image.Rect(20, 20, 30, 30), color.Gray{Y: 255})     // 100 px
	fillRect(gray, image.Rect(100, 120, 120, 140), color.Gray{Y: 255}) // 400 px

	mask, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		t.Fatalf("Failed to build mask: %v", err)
	}
	defer mask.Close()

	box, ok := NewPlayerLocator(nil).Locate(mask)
	if !ok {
		t.Fatal("Expected a player box")
	}
	if box != (BoundingBox{X: 100, Y: 120, Width: 20, Height: 20}) {
		t.Errorf("Expected the 400px blob, got %+v", box)
	}

	empty := gocv.Zeros(50, 50, gocv.MatTypeCV8U)
	defer empty.Close()
	if _, ok := NewPlayerLocator(nil).Locate(empty); ok {
		t.Error("Expected not found on an empty mask")
	}
}

func TestLocatorUsesPluggableSelector(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	fillRect(gray, image.Rect(5, 5, 15, 15), color.Gray{Y: 255})
	fillRect(gray, image.Rect(50, 50, 90, 90), color.Gray{Y: 255})

	mask, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		t.Fatalf("Failed to build mask: %v", err)
	}
	defer mask.Close()

	smallest := RegionSelectorFunc(func(cs []Contour) (BoundingBox, bool) {
		if len(cs) == 0 {
			return BoundingBox{}, false
		}
		best := cs[0]
		for _, c := range cs[1:] {
			if c.Area < best.Area {
				best = c
			}
		}
		return BoxFromRect(best.Bounds), true
	})

	box, ok := NewPlayerLocator(smallest).Locate(mask)
	if !ok || box.X != 5 || box.Y != 5 {
		t.Errorf("Expected the small blob from the custom selector, got %+v (%v)", box, ok)
	}
}

func TestLargestAreaSelector(t *testing.T) {
	if _, ok := (LargestAreaSelector{}).SelectPrimary(nil); ok {
		t.Error("Expected not found for no contours")
	}

	box, ok := (LargestAreaSelector{}).SelectPrimary([]Contour{
		{Area: 10, Bounds: image.Rect(0, 0, 1, 1)},
		{Area: 30, Bounds: image.Rect(5, 5, 10, 10)},
		{Area: 30, Bounds: image.Rect(7, 7, 9, 9)},
	})
	if !ok || box.X != 5 {
		t.Errorf("Expected first largest contour, got %+v", box)
	}
}

func TestExtractDefaultOffsets(t *testing.T) {
	cfg := config.NewDefaultConfig()
	ext := NewExtractor(cfg)
	defer ext.Close()

	res, err := ext.Extract(canonicalFrame(image.Rect(0, 720, 481, 780)))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.PlayerFound {
		t.Fatal("Expected player found")
	}
	if res.Player != (BoundingBox{X: 200, Y: 700, Width: 40, Height: 40}) {
		t.Errorf("Unexpected player box %+v", res.Player)
	}

	want := OccupancyGrid{
		{1, 1, 1, 1, 1, 1, 1, 1},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
	}
	if !res.Grid.Equal(want) {
		t.Errorf("Unexpected grid %s, want %s", res.Grid, want)
	}
	if res.GameOver || res.ShopPrompt {
		t.Error("No game-over buttons in frame")
	}
}

func TestExtractAboveOffsetsNearBand(t *testing.T) {
	// Window 460..580 above the player selects bands 448, 504 and 560.
	// Rows follow top-to-bottom scan order, so row 0 is the farthest band here.
	cfg := config.NewDefaultConfig()
	cfg.Grid.NearOffset = -6
	cfg.Grid.FarOffset = -3
	ext := NewExtractor(cfg)
	defer ext.Close()

	res, err := ext.Extract(canonicalFrame(image.Rect(0, 500, 481, 560), image.Rect(0, 440, 481, 500)))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for row := 0; row < 2; row++ {
		for col, v := range res.Grid[row] {
			if v != 1 {
				t.Errorf("Row %d column %d expected occupied, grid %s", row, col, res.Grid)
			}
		}
	}
	if res.Grid.OccupiedRows() != 2 {
		t.Errorf("Expected two occupied rows, got %s", res.Grid)
	}
}

func TestExtractPlayerNotFound(t *testing.T) {
	ext := NewExtractor(config.NewDefaultConfig())
	defer ext.Close()

	img := newFrame(481, 841, black)
	fillRect(img, image.Rect(0, 720, 481, 780), white)

	res, err := ext.Extract(img)
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("Expected ErrPlayerNotFound, got %v", err)
	}
	if res == nil || res.PlayerFound {
		t.Fatal("Expected a result without a player")
	}
	if !res.Grid.IsZero() || len(res.Grid) != 3 || len(res.Grid[0]) != 8 {
		t.Errorf("Expected an all-zero 3x8 grid, got %s", res.Grid)
	}
	if len(res.Cells) != 0 {
		t.Errorf("No cells should be evaluated, got %d", len(res.Cells))
	}
}

func TestExtractGameStateFlags(t *testing.T) {
	ext := NewExtractor(config.NewDefaultConfig(), WithAnnotation(true))
	defer ext.Close()

	img := canonicalFrame()
	fillRect(img, image.Rect(200, 780, 280, 800), green)
	fillRect(img, image.Rect(200, 600, 240, 640), shopRed)

	res, err := ext.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.GameOver {
		t.Error("Expected game over")
	}
	if !res.ShopPrompt {
		t.Error("Expected shop prompt")
	}
	if res.Annotated == nil || res.Annotated.Bounds().Dx() != 481 || res.Annotated.Bounds().Dy() != 841 {
		t.Errorf("Expected a 481x841 annotated frame")
	}

	quiet := NewExtractor(config.NewDefaultConfig(), WithGameStateDetection(false))
	defer quiet.Close()
	res, err = quiet.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.GameOver || res.ShopPrompt || res.Annotated != nil {
		t.Error("Game-state detection and annotation should be off")
	}
}

func TestExtractRejectsEmptyFrame(t *testing.T) {
	ext := NewExtractor(config.NewDefaultConfig())
	defer ext.Close()

	if _, err := ext.Extract(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
	if _, err := ext.Extract(image.NewRGBA(image.Rectangle{})); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

func TestStaticCapturer(t *testing.T) {
	full := newFrame(100, 100, black)
	fillRect(full, image.Rect(10, 10, 20, 20), white)

	c := NewStaticCapturer(false, full, nil)

	img, err := c.Capture(NewRegion(10, 10, 10, 10))
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 10 {
		t.Errorf("Expected cropped 10x10, got %v", img.Bounds())
	}

	if _, err := c.Capture(NewRegion(0, 0, 10, 10)); !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("Expected ErrCaptureFailure for nil frame, got %v", err)
	}
	if _, err := c.Capture(NewRegion(0, 0, 10, 10)); !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("Expected ErrCaptureFailure when exhausted, got %v", err)
	}

	looping := NewStaticCapturer(true, full)
	for i := 0; i < 3; i++ {
		if _, err := looping.Capture(NewRegion(0, 0, 500, 500)); err != nil {
			t.Fatalf("Looping capture %d failed: %v", i, err)
		}
	}
}

func TestCroppedFrameExtracts(t *testing.T) {
	// Cropped sub-images keep a non-zero origin
	screen := newFrame(600, 900, darkGray)
	draw.Draw(screen, image.Rect(50, 30, 531, 871), canonicalFrame(image.Rect(0, 720, 481, 780)), image.Point{}, draw.Src)

	img, err := NewStaticCapturer(false, screen).Capture(NewRegion(50, 30, 481, 841))
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	ext := NewExtractor(config.NewDefaultConfig())
	defer ext.Close()
	res, err := ext.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Player.X != 200 || res.Player.Y != 700 {
		t.Errorf("Expected frame-local player box, got %+v", res.Player)
	}
}

func TestRegionFromPoints(t *testing.T) {
	r := RegionFromPoints(image.Pt(300, 400), image.Pt(100, 50))
	if r != NewRegion(100, 50, 200, 350) {
		t.Errorf("Unexpected region %s", r)
	}
	if err := r.Within(image.Rect(0, 0, 1920, 1080)); err != nil {
		t.Errorf("Region should fit screen: %v", err)
	}
	if err := r.Within(image.Rect(0, 0, 250, 250)); err == nil {
		t.Error("Expected error for region outside screen")
	}
	if NewRegion(0, 0, 0, 10).Valid() {
		t.Error("Zero-width region should be invalid")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
