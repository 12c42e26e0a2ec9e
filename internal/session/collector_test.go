package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jordanella.com/runner-collector/internal/config"
	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/dataset"
	"jordanella.com/runner-collector/internal/events"
	"jordanella.com/runner-collector/internal/input"
	"jordanella.com/runner-collector/internal/logging"
)

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

var fullFrame = cv.NewRegion(0, 0, 481, 841)

func fillRect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// gameFrame has a platform strip in the nearest band and optionally the player at (200,700)
func gameFrame(withPlayer bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 481, 841))
	fillRect(img, img.Bounds(), black)
	fillRect(img, image.Rect(0, 720, 481, 780), white)
	if withPlayer {
		fillRect(img, image.Rect(200, 700, 240, 740), blue)
	}
	return img
}

// captureFunc adapts a function to cv.Capturer
type captureFunc func(region cv.Region) (image.Image, error)

func (f captureFunc) Capture(region cv.Region) (image.Image, error) {
	return f(region)
}

// script returns a capturer that plays steps in order and requests a stop once
// they run out
func script(l *input.Listener, steps ...func() (image.Image, error)) cv.Capturer {
	var mu sync.Mutex
	calls := 0
	return captureFunc(func(region cv.Region) (image.Image, error) {
		mu.Lock()
		defer mu.Unlock()
		if calls >= len(steps) {
			l.Stop()
			return nil, cv.ErrCaptureFailure
		}
		step := steps[calls]
		calls++
		return step()
	})
}

func frame(img image.Image) func() (image.Image, error) {
	return func() (image.Image, error) { return img, nil }
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Session.WaitForStartClick = false
	cfg.Session.StallTimeout = 0
	cfg.Session.PlayerMissingWarn = 0
	return cfg
}

func runCollector(t *testing.T, cfg *config.Config, capturer cv.Capturer, l *input.Listener, opts ...Option) (*Summary, []dataset.Sample) {
	t.Helper()

	csvPath := filepath.Join(t.TempDir(), "data.csv")
	opts = append([]Option{WithSinks(dataset.NewCSVSink(csvPath))}, opts...)

	c := New(cfg, capturer, l, opts...)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	samples, err := dataset.LoadCSV(csvPath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	return summary, samples
}

func TestClicksWithinOneCycleCoalesce(t *testing.T) {
	l := input.NewListener(8)
	img := gameFrame(true)

	capturer := script(l,
		func() (image.Image, error) {
			// Two clicks land while the first frame is being captured
			l.Click(image.Pt(1, 1))
			l.Click(image.Pt(2, 2))
			return img, nil
		},
		frame(img),
	)

	summary, samples := runCollector(t, testConfig(), capturer, l, WithRegion(fullFrame))

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0].Action != 1 || samples[1].Action != 0 {
		t.Errorf("Expected actions [1 0], got [%d %d]", samples[0].Action, samples[1].Action)
	}
	if summary.Actions != 1 || summary.Samples != 2 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	want := cv.OccupancyGrid{
		{1, 1, 1, 1, 1, 1, 1, 1},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
	}
	if !samples[0].Grid.Equal(want) {
		t.Errorf("Unexpected grid %v", samples[0].Grid)
	}
}

func TestStopBeforeFirstFrameExportsEmptyDataset(t *testing.T) {
	l := input.NewListener(4)
	l.Stop()

	calls := 0
	capturer := captureFunc(func(region cv.Region) (image.Image, error) {
		calls++
		return gameFrame(true), nil
	})

	summary, samples := runCollector(t, testConfig(), capturer, l, WithRegion(fullFrame))

	if len(samples) != 0 || summary.Samples != 0 {
		t.Errorf("Expected empty dataset, got %d samples", len(samples))
	}
	if calls != 0 {
		t.Errorf("Expected no captures, got %d", calls)
	}
}

func TestCaptureFailureSkipsCycle(t *testing.T) {
	l := input.NewListener(4)
	reporter := logging.NewErrorReporter(16)

	capturer := script(l,
		func() (image.Image, error) { return nil, cv.ErrCaptureFailure },
		frame(gameFrame(true)),
	)

	summary, samples := runCollector(t, testConfig(), capturer, l,
		WithRegion(fullFrame),
		WithErrorReporter(reporter),
	)

	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}
	// The scripted failure plus the failing capture that requested the stop
	if summary.Stats.CaptureFailures != 2 {
		t.Errorf("Expected 2 capture failures, got %d", summary.Stats.CaptureFailures)
	}
	if got := reporter.Counts().ByCategory[logging.ErrorCategoryCapture]; got != 2 {
		t.Errorf("Expected 2 capture reports, got %d", got)
	}
	if len(summary.RecentErrors) != 2 || summary.RecentErrors[0].Category != logging.ErrorCategoryCapture {
		t.Errorf("Expected the capture reports in the summary, got %v", summary.RecentErrors)
	}
}

func TestPlayerNotFoundPolicy(t *testing.T) {
	tests := []struct {
		name                string
		recordWithoutPlayer bool
		wantSamples         int
	}{
		{"record zero grid", true, 1},
		{"skip", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := input.NewListener(4)
			cfg := testConfig()
			cfg.Session.RecordWithoutPlayer = tt.recordWithoutPlayer

			capturer := script(l, frame(gameFrame(false)))
			summary, samples := runCollector(t, cfg, capturer, l, WithRegion(fullFrame))

			if len(samples) != tt.wantSamples {
				t.Fatalf("Expected %d samples, got %d", tt.wantSamples, len(samples))
			}
			if tt.wantSamples > 0 && !samples[0].Grid.IsZero() {
				t.Errorf("Expected zero grid, got %v", samples[0].Grid)
			}
			if summary.Stats.PlayerMisses != 1 {
				t.Errorf("Expected 1 player miss, got %d", summary.Stats.PlayerMisses)
			}
		})
	}
}

func TestCalibrationFromClicks(t *testing.T) {
	l := input.NewListener(4)
	// Corners clicked in reverse order
	l.Click(image.Pt(300, 200))
	l.Click(image.Pt(100, 50))

	scene := image.NewRGBA(image.Rect(0, 0, 200, 150))
	fillRect(scene, scene.Bounds(), black)
	fillRect(scene, image.Rect(20, 30, 120, 110), white)

	var calibratedWith cv.Region
	capturer := script(l, func() (image.Image, error) {
		return scene, nil
	})
	recording := captureFunc(func(region cv.Region) (image.Image, error) {
		if calibratedWith == (cv.Region{}) {
			calibratedWith = region
		}
		return capturer.Capture(region)
	})

	bus := events.NewEventBus(10)
	defer bus.Stop()
	completed := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeCalibrationCompleted, func(e events.Event) {
		completed <- e
	})

	summary, _ := runCollector(t, testConfig(), recording, l, WithEventBus(bus))

	if calibratedWith != cv.NewRegion(100, 50, 200, 150) {
		t.Errorf("Expected rough region (100,50 200x150), got %s", calibratedWith)
	}
	want := cv.NewRegion(120, 80, 100, 80)
	got := summary.Region
	if abs(got.X-want.X) > 2 || abs(got.Y-want.Y) > 2 ||
		abs(got.Width-want.Width) > 4 || abs(got.Height-want.Height) > 4 {
		t.Errorf("Expected region about %s, got %s", want, got)
	}

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Error("Expected a calibration completed event")
	}
}

func TestCalibrationOutsideScreenFails(t *testing.T) {
	l := input.NewListener(4)
	l.Click(image.Pt(10, 10))
	l.Click(image.Pt(5000, 5000))

	c := New(testConfig(), script(l), l, WithScreenBounds(image.Rect(0, 0, 1920, 1080)))
	defer c.Close()

	if _, err := c.Run(context.Background()); err == nil {
		t.Error("Expected an error for a region outside the screen")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Write(ctx context.Context, ds dataset.Dataset) error {
	return errors.New("unreachable")
}

func TestExportFailureKeepsSummary(t *testing.T) {
	l := input.NewListener(4)
	csvPath := filepath.Join(t.TempDir(), "data.csv")

	c := New(testConfig(), script(l, frame(gameFrame(true))), l,
		WithRegion(fullFrame),
		WithSinks(failingSink{}, dataset.NewCSVSink(csvPath)),
	)
	defer c.Close()

	summary, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("Expected export error")
	}
	if summary == nil || summary.Samples != 1 {
		t.Fatalf("Expected summary with 1 sample, got %+v", summary)
	}
	if _, statErr := os.Stat(csvPath); statErr != nil {
		t.Errorf("CSV sink should still run: %v", statErr)
	}
}

type recordingObserver struct {
	updates []FrameUpdate
}

func (o *recordingObserver) ShowFrame(update FrameUpdate) {
	o.updates = append(o.updates, update)
}

func TestObserverAndSnapshots(t *testing.T) {
	l := input.NewListener(4)
	cfg := testConfig()
	cfg.Output.SnapshotDir = t.TempDir()
	cfg.Output.SnapshotEvery = 1

	observer := &recordingObserver{}
	img := gameFrame(true)
	runCollector(t, cfg, script(l, frame(img), frame(img)), l,
		WithRegion(fullFrame),
		WithObserver(observer),
	)

	if len(observer.updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(observer.updates))
	}
	if observer.updates[0].Image == nil || !observer.updates[0].PlayerFound {
		t.Error("Expected an annotated frame with the player")
	}

	entries, err := os.ReadDir(cfg.Output.SnapshotDir)
	if err != nil || len(entries) != 2 {
		t.Errorf("Expected 2 snapshots, got %d, %v", len(entries), err)
	}
}

func TestContextCancelEndsSession(t *testing.T) {
	l := input.NewListener(4)
	cfg := testConfig()
	cfg.Capture.FrameInterval = 5 * time.Millisecond

	img := gameFrame(true)
	capturer := captureFunc(func(region cv.Region) (image.Image, error) {
		return img, nil
	})

	csvPath := filepath.Join(t.TempDir(), "data.csv")
	c := New(cfg, capturer, l, WithRegion(fullFrame), WithSinks(dataset.NewCSVSink(csvPath)))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Samples == 0 {
		t.Error("Expected samples before the deadline")
	}

	// Export still runs after the context is done
	samples, err := dataset.LoadCSV(csvPath)
	if err != nil || len(samples) != summary.Samples {
		t.Errorf("Expected %d exported samples, got %d, %v", summary.Samples, len(samples), err)
	}
}

func TestWithoutStartClickLeavesConfigUntouched(t *testing.T) {
	l := input.NewListener(4)
	cfg := testConfig()
	cfg.Session.WaitForStartClick = true

	capturer := script(l, frame(gameFrame(true)))

	// No click is ever queued; the gate would block until the deadline
	summary, samples := runCollector(t, cfg, capturer, l, WithRegion(fullFrame), WithoutStartClick())

	if len(samples) != 1 || summary.Samples != 1 {
		t.Errorf("Expected recording to start without a click, got %d samples", len(samples))
	}
	if !cfg.Session.WaitForStartClick {
		t.Error("Config should not be modified by the option")
	}
}
