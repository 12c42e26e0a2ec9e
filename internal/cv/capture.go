package cv

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"jordanella.com/runner-collector/internal/config"
)

// Capturer grabs the pixels of a screen region at native size
type Capturer interface {
	Capture(region Region) (image.Image, error)
}

// NewCapturer returns the capturer for a configured backend
func NewCapturer(backend config.CaptureBackend) (Capturer, error) {
	switch backend {
	case config.CaptureBackendScreenshot, "":
		return &ScreenCapturer{}, nil
	case config.CaptureBackendRobotgo:
		return &RobotgoCapturer{}, nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", backend)
	}
}

// ScreenCapturer captures with kbinani/screenshot
type ScreenCapturer struct{}

// Capture implements Capturer
func (c *ScreenCapturer) Capture(region Region) (image.Image, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: invalid region %s", ErrCaptureFailure, region)
	}
	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	return checkFrame(img)
}

// RobotgoCapturer captures with robotgo
type RobotgoCapturer struct{}

// Capture implements Capturer
func (c *RobotgoCapturer) Capture(region Region) (image.Image, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: invalid region %s", ErrCaptureFailure, region)
	}
	img, err := robotgo.CaptureImg(region.X, region.Y, region.Width, region.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	return checkFrame(img)
}

// ScreenBounds returns the primary screen rectangle
func ScreenBounds() image.Rectangle {
	if screenshot.NumActiveDisplays() > 0 {
		return screenshot.GetDisplayBounds(0)
	}
	w, h := robotgo.GetScreenSize()
	return image.Rect(0, 0, w, h)
}

// StaticCapturer replays a fixed list of frames, cropping each to the region
// when it fits. Used for offline extraction and tests.
type StaticCapturer struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	loop   bool
}

// NewStaticCapturer creates a capturer over frames. With loop set the frames repeat.
func NewStaticCapturer(loop bool, frames ...image.Image) *StaticCapturer {
	return &StaticCapturer{frames: frames, loop: loop}
}

// Capture implements Capturer. A nil entry in the frame list reports a capture failure.
func (c *StaticCapturer) Capture(region Region) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next >= len(c.frames) {
		if !c.loop || len(c.frames) == 0 {
			return nil, fmt.Errorf("%w: no more frames", ErrCaptureFailure)
		}
		c.next = 0
	}
	img := c.frames[c.next]
	c.next++

	if img == nil {
		return nil, fmt.Errorf("%w: no data", ErrCaptureFailure)
	}
	return CropToRegion(img, region), nil
}

// Remaining returns how many frames are left before exhaustion
func (c *StaticCapturer) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames) - c.next
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropToRegion returns the region of img when it lies inside the image bounds,
// otherwise img unchanged
func CropToRegion(img image.Image, region Region) image.Image {
	if !region.Valid() || !region.Rect().In(img.Bounds()) || region.Rect() == img.Bounds() {
		return img
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(region.Rect())
	}
	return img
}

func checkFrame(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailure, ErrEmptyFrame)
	}
	return img, nil
}
