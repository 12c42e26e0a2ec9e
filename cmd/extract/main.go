package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"time"

	"jordanella.com/runner-collector/internal/config"
	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/dataset"
	"jordanella.com/runner-collector/internal/logging"
	"jordanella.com/runner-collector/internal/monitor"
	"jordanella.com/runner-collector/internal/replay"
)

func main() {
	configPath := flag.String("config", "settings.ini", "Path to settings (.ini, .yaml or legacy .json)")
	videoPath := flag.String("video", "", "Read frames from a video file instead of images")
	fps := flag.Int("fps", 0, "Resample the video to this frame rate (0 keeps the source rate)")
	csvPath := flag.String("csv", "", "Export the grids to this CSV file")
	snapshotDir := flag.String("snapshots", "", "Write annotated frames to this directory")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.NewLogger("Extract")
	if err := logging.Configure(logging.Options{Level: *logLevel}); err != nil {
		fatal(logger, "Invalid log level", err)
	}

	cfg := config.NewDefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(logger, "Failed to load config", err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var source cv.Capturer
	switch {
	case *videoPath != "":
		video, err := replay.Open(ctx, *videoPath, *fps)
		if err != nil {
			fatal(logger, "Failed to open video", err)
		}
		defer video.Close()
		source = video
	case flag.NArg() > 0:
		source = cv.NewStaticCapturer(false, loadImages(flag.Args(), logger)...)
	default:
		fmt.Fprintln(os.Stderr, "usage: extract [-config settings.ini] [-csv out.csv] (-video clip.mp4 | frame.png ...)")
		os.Exit(2)
	}

	extractor := cv.NewExtractor(cfg, cv.WithAnnotation(*snapshotDir != ""))
	defer extractor.Close()

	rec := dataset.NewRecorder(fmt.Sprintf("extract-%d", time.Now().Unix()), cv.Region{}, cfg.Grid.Columns)
	stats := monitor.NewStats()
	policy := monitor.Policy{RecordWithoutPlayer: cfg.Session.RecordWithoutPlayer}

	// The end of the input shows up as a capture failure after the last frame
	for frame := 0; ctx.Err() == nil; frame++ {
		img, err := source.Capture(cv.Region{})
		if err != nil {
			if remaining, ok := source.(*cv.StaticCapturer); ok && remaining.Remaining() > 0 {
				stats.RecordCaptureFailure()
				logger.WarnWithContext("Skipping unreadable frame", map[string]interface{}{"frame": frame})
				continue
			}
			if errors.Is(err, cv.ErrCaptureFailure) {
				break
			}
			fatal(logger, "Capture failed", err)
		}

		start := time.Now()
		res, err := extractor.Extract(img)
		if res != nil {
			stats.RecordFrame(time.Since(start), res.PlayerFound)
		}

		var event *monitor.ErrorEvent
		if err != nil {
			event = monitor.NewErrorEvent(frame, err)
		}
		response := policy.Handle(event)
		if response.Action == monitor.ActionSkipFrame {
			logger.WarnWithContext(response.Message, map[string]interface{}{"frame": frame})
			continue
		}

		grid := res.Grid
		if response.Action == monitor.ActionRecordZeroGrid {
			grid = cv.NewOccupancyGrid(cfg.Grid.Bands, cfg.Grid.Columns)
		}
		rec.Append(dataset.Sample{
			Grid:        grid,
			PlayerFound: res.PlayerFound,
			GameOver:    res.GameOver,
			ShopPrompt:  res.ShopPrompt,
		})
		stats.RecordSample(false)
		fmt.Printf("%d\t%s\tplayer=%v\tgame_over=%v\n", frame, grid, res.PlayerFound, res.GameOver)

		if *snapshotDir != "" && res.Annotated != nil {
			if _, err := cv.SaveSnapshot(res.Annotated, *snapshotDir, frame); err != nil {
				logger.Error("Failed to save snapshot", err)
			}
		}
	}

	if *csvPath != "" {
		if err := rec.Export(context.WithoutCancel(ctx), dataset.NewCSVSink(*csvPath)); err != nil {
			fatal(logger, "Export failed", err)
		}
	}

	logger.InfoWithContext("Extraction finished", stats.Snapshot().Fields())
}

func loadImages(paths []string, logger *logging.Logger) []image.Image {
	frames := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := cv.LoadImage(path)
		if err != nil {
			// A nil frame is served as a capture failure and skipped
			logger.ErrorWithContext("Failed to load image", err, map[string]interface{}{"path": path})
		}
		frames = append(frames, img)
	}
	return frames
}

func fatal(logger *logging.Logger, message string, err error) {
	logger.Fatal(message, err)
	os.Exit(1)
}
