package session

import (
	"image"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/dataset"
	"jordanella.com/runner-collector/internal/events"
	"jordanella.com/runner-collector/internal/logging"
)

// FrameUpdate is handed to a FrameObserver after every cycle that produced a result
type FrameUpdate struct {
	Frame       int
	Image       image.Image // annotated frame
	Grid        cv.OccupancyGrid
	Action      bool
	PlayerFound bool
	GameOver    bool
	Samples     int
}

// FrameObserver receives per-cycle updates. ShowFrame is called on the loop goroutine
// and must not block.
type FrameObserver interface {
	ShowFrame(update FrameUpdate)
}

// Option configures a Collector
type Option func(*Collector)

// WithRegion skips calibration and uses region as is
func WithRegion(region cv.Region) Option {
	return func(c *Collector) {
		c.presetRegion = &region
	}
}

// WithScreenBounds rejects calibration regions that leave bounds
func WithScreenBounds(bounds image.Rectangle) Option {
	return func(c *Collector) {
		c.screenBounds = bounds
	}
}

// WithEventBus publishes session lifecycle events to bus
func WithEventBus(bus events.EventBus) Option {
	return func(c *Collector) {
		c.bus = bus
	}
}

// WithErrorReporter reports pipeline failures to reporter
func WithErrorReporter(reporter *logging.ErrorReporter) Option {
	return func(c *Collector) {
		c.reporter = reporter
	}
}

// WithSinks sets where the dataset goes at session end
func WithSinks(sinks ...dataset.Sink) Option {
	return func(c *Collector) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithObserver enables annotation and sends every frame to observer
func WithObserver(observer FrameObserver) Option {
	return func(c *Collector) {
		c.observer = observer
	}
}

// WithSessionID overrides the generated session ID
func WithSessionID(id string) Option {
	return func(c *Collector) {
		c.sessionID = id
	}
}

// WithSelector swaps the contour selection strategy for calibration and player location
func WithSelector(selector cv.RegionSelector) Option {
	return func(c *Collector) {
		c.selector = selector
	}
}

// WithoutStartClick begins recording right after calibration, regardless of
// Session.WaitForStartClick. Used when no mouse hook can deliver the click.
func WithoutStartClick() Option {
	return func(c *Collector) {
		c.waitForStart = false
	}
}
