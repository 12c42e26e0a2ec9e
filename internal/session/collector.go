// Package session runs the collection loop: calibrate once, then capture,
// extract and record until a stop is requested, then export.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"jordanella.com/runner-collector/internal/config"
	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/dataset"
	"jordanella.com/runner-collector/internal/events"
	"jordanella.com/runner-collector/internal/input"
	"jordanella.com/runner-collector/internal/logging"
	"jordanella.com/runner-collector/internal/monitor"
)

const (
	exportTimeout = 30 * time.Second
	recentErrors  = 5
)

// Summary describes a finished session
type Summary struct {
	SessionID string
	Region    cv.Region
	Samples   int
	Actions   int
	Duration  time.Duration
	Stats     monitor.StatsSnapshot

	// RecentErrors holds the last reports when an error reporter is attached
	RecentErrors []*logging.ErrorReport
}

// Collector owns one collection session
type Collector struct {
	cfg      *config.Config
	capturer cv.Capturer
	listener *input.Listener

	presetRegion *cv.Region
	screenBounds image.Rectangle
	selector     cv.RegionSelector
	bus          events.EventBus
	reporter     *logging.ErrorReporter
	observer     FrameObserver
	sinks        []dataset.Sink
	sessionID    string
	waitForStart bool

	calibrator *cv.Calibrator
	extractor  *cv.Extractor
	policy     monitor.Policy
	stats      *monitor.Stats
	health     *monitor.HealthChecker
	logger     *logging.Logger

	inGameOver bool
}

// New creates a collector. The listener is the only input source; capturer is
// called once for calibration and once per cycle.
func New(cfg *config.Config, capturer cv.Capturer, listener *input.Listener, opts ...Option) *Collector {
	c := &Collector{
		cfg:          cfg,
		capturer:     capturer,
		listener:     listener,
		selector:     cv.LargestAreaSelector{},
		sessionID:    newSessionID(),
		waitForStart: cfg.Session.WaitForStartClick,
		policy:       monitor.Policy{RecordWithoutPlayer: cfg.Session.RecordWithoutPlayer},
		stats:        monitor.NewStats(),
		logger:       logging.NewLogger("Session"),
	}
	for _, opt := range opts {
		opt(c)
	}

	annotate := c.observer != nil || (cfg.Output.SnapshotDir != "" && cfg.Output.SnapshotEvery > 0)
	c.calibrator = cv.NewCalibrator(cv.WithSelector(c.selector))
	c.extractor = cv.NewExtractor(cfg,
		cv.WithSelector(c.selector),
		cv.WithAnnotation(annotate),
	)
	c.health = monitor.NewHealthChecker(c.stats, c.bus).
		WithThresholds(cfg.Session.StallTimeout, cfg.Session.PlayerMissingWarn)

	return c
}

func newSessionID() string {
	now := time.Now()
	return fmt.Sprintf("%s-%06d", now.Format("20060102-150405"), now.Nanosecond()/1000)
}

// SessionID returns the ID samples are exported under
func (c *Collector) SessionID() string {
	return c.sessionID
}

// Stats returns the live counters
func (c *Collector) Stats() *monitor.Stats {
	return c.stats
}

// Close releases native resources held by the extractor
func (c *Collector) Close() error {
	return c.extractor.Close()
}

// Run calibrates, collects until the listener reports a stop or ctx is done,
// and exports the dataset. Per-frame failures never end the session. The
// returned error is non-nil only when calibration could not produce a region
// or an export sink failed; the summary is valid in the latter case.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	region, err := c.calibrate(ctx)
	if err != nil {
		return nil, err
	}

	rec := dataset.NewRecorder(c.sessionID, region, c.cfg.Grid.Columns)
	started := time.Now()

	if err := c.awaitStart(ctx); err != nil {
		c.logger.InfoWithContext("Stopped before the first frame", map[string]interface{}{
			"reason": err.Error(),
		})
	} else {
		c.collect(ctx, region, rec)
	}

	duration := time.Since(started)
	snap := c.stats.Snapshot()
	c.publish(events.NewSessionStoppedEvent(c.sessionID, rec.Len(), snap.Frames, duration))

	summary := &Summary{
		SessionID: c.sessionID,
		Region:    region,
		Samples:   rec.Len(),
		Actions:   snap.Actions,
		Duration:  duration,
		Stats:     snap,
	}
	c.logger.InfoWithContext("Session finished", snap.Fields())

	err = c.export(ctx, rec)
	if c.reporter != nil {
		summary.RecentErrors = c.reporter.Recent(recentErrors)
	}
	return summary, err
}

// calibrate waits for two corner clicks and tightens the region they span
func (c *Collector) calibrate(ctx context.Context) (cv.Region, error) {
	if c.presetRegion != nil {
		region := *c.presetRegion
		if err := c.checkBounds(region); err != nil {
			return cv.Region{}, err
		}
		return region, nil
	}

	c.logger.Info("Click the top-left and bottom-right corners of the game area")
	points, err := c.listener.WaitClicks(ctx, 2)
	if err != nil {
		return cv.Region{}, fmt.Errorf("calibration interrupted: %w", err)
	}

	rough := cv.RegionFromPoints(points[0], points[1])
	if err := c.checkBounds(rough); err != nil {
		return cv.Region{}, err
	}

	region, err := c.calibrator.Calibrate(c.capturer, rough)
	if err != nil {
		event := monitor.NewErrorEvent(0, err)
		response := c.policy.Handle(event)
		c.report(logging.ErrorCategoryCalibration, logging.ErrorSeverityMedium, response.Message, err, map[string]interface{}{
			"rough": rough.String(),
		})
		c.publish(events.NewCalibrationFailedEvent(rough.Rect(), err))
		return rough, nil
	}

	c.logger.InfoWithContext("Calibrated game region", map[string]interface{}{
		"rough":   rough.String(),
		"refined": region.String(),
	})
	c.publish(events.NewCalibrationCompletedEvent(rough.Rect(), region.Rect()))
	return region, nil
}

func (c *Collector) checkBounds(region cv.Region) error {
	if !region.Valid() {
		return fmt.Errorf("%w: region %s has no area", cv.ErrCalibrationFailure, region)
	}
	if c.screenBounds.Empty() {
		return nil
	}
	return region.Within(c.screenBounds)
}

// awaitStart blocks on the start click when configured, then discards
// anything clicked so far
func (c *Collector) awaitStart(ctx context.Context) error {
	if c.waitForStart {
		c.logger.Info("Click inside the game to start recording")
		if _, err := c.listener.WaitClick(ctx); err != nil {
			return err
		}
	}
	if c.listener.Stopped() {
		return input.ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.listener.Drain()
	return nil
}

// collect runs capture cycles until a stop
func (c *Collector) collect(ctx context.Context, region cv.Region, rec *dataset.Recorder) {
	c.publish(events.NewSessionStartedEvent(c.sessionID, region.Rect()))
	c.logger.InfoWithContext("Recording started", map[string]interface{}{
		"session": c.sessionID,
		"region":  region.String(),
	})

	c.health.Start()
	defer c.health.Stop()

	interval := c.cfg.Capture.FrameInterval
	for frame := 0; ; frame++ {
		cycleStart := time.Now()

		if stop := c.cycle(frame, region, rec); stop {
			return
		}

		wait := interval - time.Since(cycleStart)
		if wait <= 0 {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.listener.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle processes one frame and reports whether a stop was requested
func (c *Collector) cycle(frame int, region cv.Region, rec *dataset.Recorder) bool {
	start := time.Now()

	img, err := c.capturer.Capture(region)
	var res *cv.Result
	if err == nil {
		res, err = c.extractor.Extract(img)
	}

	// Clicks that arrived while this frame was captured belong to it
	in := c.listener.Drain()

	if res != nil {
		c.stats.RecordFrame(time.Since(start), res.PlayerFound)
	} else {
		c.stats.RecordCaptureFailure()
	}

	var event *monitor.ErrorEvent
	if err != nil {
		event = monitor.NewErrorEvent(frame, err)
	}
	response := c.policy.Handle(event)
	if event != nil {
		c.handleFrameError(event, response)
	}

	switch response.Action {
	case monitor.ActionRecord, monitor.ActionRecordZeroGrid:
		grid := res.Grid
		if response.Action == monitor.ActionRecordZeroGrid {
			grid = cv.NewOccupancyGrid(c.cfg.Grid.Bands, c.cfg.Grid.Columns)
		}
		rec.Append(dataset.Sample{
			Grid:        grid,
			Action:      dataset.ActionLabel(in.Action),
			PlayerFound: res.PlayerFound,
			GameOver:    res.GameOver,
			ShopPrompt:  res.ShopPrompt,
		})
		c.stats.RecordSample(in.Action)
	default:
		c.publish(events.NewFrameSkippedEvent(c.sessionID, frame, err))
	}

	if res != nil {
		c.trackGameOver(frame, res)
		c.show(frame, res, in, rec.Len())
		c.snapshot(frame, res)
	}

	return in.Stop
}

func (c *Collector) handleFrameError(event *monitor.ErrorEvent, response monitor.ErrorResponse) {
	fields := map[string]interface{}{
		"frame":  event.Frame,
		"type":   event.Type.String(),
		"action": response.Action.String(),
	}

	switch event.Type {
	case monitor.ErrorPlayerNotFound:
		// Expected between runs; the health checker watches for long streaks
		c.logger.DebugWithContext(response.Message, fields)
		if streak := c.stats.MissingStreak(); streak == 1 {
			c.publish(events.NewPlayerMissingEvent(c.sessionID, event.Frame, streak))
		}
	case monitor.ErrorCapture, monitor.ErrorEmptyFrame:
		c.report(logging.ErrorCategoryCapture, logging.ErrorSeverityHigh, response.Message, event.Err, fields)
	default:
		c.report(logging.ErrorCategoryDetection, logging.ErrorSeverityHigh, response.Message, event.Err, fields)
	}
}

// trackGameOver publishes once per transition into the game-over screen
func (c *Collector) trackGameOver(frame int, res *cv.Result) {
	if res.GameOver && !c.inGameOver {
		c.publish(events.NewGameOverEvent(c.sessionID, frame, res.ShopPrompt))
	}
	c.inGameOver = res.GameOver
}

func (c *Collector) show(frame int, res *cv.Result, in input.CycleInput, samples int) {
	if c.observer == nil {
		return
	}
	c.observer.ShowFrame(FrameUpdate{
		Frame:       frame,
		Image:       res.Annotated,
		Grid:        res.Grid,
		Action:      in.Action,
		PlayerFound: res.PlayerFound,
		GameOver:    res.GameOver,
		Samples:     samples,
	})
}

func (c *Collector) snapshot(frame int, res *cv.Result) {
	out := c.cfg.Output
	if out.SnapshotDir == "" || out.SnapshotEvery <= 0 || frame%out.SnapshotEvery != 0 || res.Annotated == nil {
		return
	}
	if _, err := cv.SaveSnapshot(res.Annotated, out.SnapshotDir, frame); err != nil {
		c.report(logging.ErrorCategoryPersistence, logging.ErrorSeverityMedium, "Failed to save snapshot", err, map[string]interface{}{
			"frame": frame,
		})
	}
}

// export hands the dataset to every sink. It runs even when ctx is already
// cancelled, bounded by exportTimeout.
func (c *Collector) export(ctx context.Context, rec *dataset.Recorder) error {
	if len(c.sinks) == 0 {
		c.logger.Warn("No export sinks configured, dataset discarded")
		return nil
	}

	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()

	err := rec.Export(exportCtx, c.sinks...)
	for _, sink := range c.sinks {
		if !sinkFailed(err, sink.Name()) {
			c.publish(events.NewDatasetExportedEvent(c.sessionID, sink.Name(), rec.Len()))
		}
	}

	if err != nil {
		c.report(logging.ErrorCategoryPersistence, logging.ErrorSeverityHigh, "Dataset export failed", err, map[string]interface{}{
			"session": c.sessionID,
			"samples": rec.Len(),
		})
	}
	return err
}

// sinkFailed reports whether a joined export error contains a failure for name
func sinkFailed(err error, name string) bool {
	if err == nil {
		return false
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var exportErr *dataset.ExportError
		if errors.As(e, &exportErr) && exportErr.Sink == name {
			return true
		}
	}
	return false
}

func (c *Collector) publish(event events.Event) {
	if c.bus != nil {
		c.bus.Publish(event)
	}
}

func (c *Collector) report(category logging.ErrorCategory, severity logging.ErrorSeverity, message string, err error, fields map[string]interface{}) {
	if c.reporter != nil {
		c.reporter.Report(category, severity, "Session", message, err, fields)
		return
	}
	if severity == logging.ErrorSeverityHigh {
		c.logger.ErrorWithContext(message, err, fields)
	} else {
		c.logger.WarnWithContext(message, fields)
	}
}
