package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"jordanella.com/runner-collector/internal/config"
	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/database"
	"jordanella.com/runner-collector/internal/dataset"
	"jordanella.com/runner-collector/internal/events"
	"jordanella.com/runner-collector/internal/input"
	"jordanella.com/runner-collector/internal/logging"
	"jordanella.com/runner-collector/internal/preview"
	"jordanella.com/runner-collector/internal/session"
)

func main() {
	configPath := flag.String("config", "settings.ini", "Path to settings (.ini, .yaml or legacy .json)")
	initConfig := flag.String("init-config", "", "Write a default settings.ini to this path and exit")
	regionFlag := flag.String("region", "", "Skip calibration and use x,y,width,height")
	showPreview := flag.Bool("preview", false, "Show the annotated capture in a window")
	flag.Parse()

	logger := logging.NewLogger("Main")

	if *initConfig != "" {
		if err := config.SaveToINI(config.NewDefaultConfig(), *initConfig); err != nil {
			fatal(logger, "Failed to write default config", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", *initConfig)
		return
	}

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		fatal(logger, "Failed to load config", err)
	}

	logFile, err := setupLogging(cfg.Logging)
	if err != nil {
		fatal(logger, "Failed to set up logging", err)
	}
	defer logFile.Close()

	bus := events.NewEventBus(100)
	defer bus.Stop()

	eventLogger, err := logging.NewEventLogger(bus, cfg.Logging.Dir)
	if err != nil {
		logger.Error("Event log disabled", err)
	} else {
		defer eventLogger.Close()
	}

	reporter := logging.NewErrorReporter(100)
	reporter.OnError(logging.ErrorSeverityHigh, func(r *logging.ErrorReport) {
		bus.Publish(events.NewErrorEvent("reporter", r.Component, r.Err, r.Context))
	})

	capturer, err := cv.NewCapturer(cfg.Capture.Backend)
	if err != nil {
		fatal(logger, "Failed to create capturer", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener := input.NewListener(input.DefaultBuffer)
	go func() {
		<-ctx.Done()
		listener.Stop()
	}()

	opts := []session.Option{
		session.WithEventBus(bus),
		session.WithErrorReporter(reporter),
		session.WithScreenBounds(cv.ScreenBounds()),
	}

	if *regionFlag != "" {
		region, err := parseRegion(*regionFlag)
		if err != nil {
			fatal(logger, "Invalid -region", err)
		}
		opts = append(opts, session.WithRegion(region))
	}

	hooks, err := input.NewHookSource(listener, cfg.Session.StopKey)
	if err != nil {
		if !errors.Is(err, input.ErrHooksUnsupported) {
			fatal(logger, "Failed to set up input hooks", err)
		}
		if *regionFlag == "" {
			fatal(logger, "Calibration needs global mouse hooks; pass -region on this platform", err)
		}
		logger.Warn("Global input hooks unavailable: actions will not be recorded, stop with Ctrl+C")
		opts = append(opts, session.WithoutStartClick())
	} else {
		go func() {
			if err := hooks.Run(ctx); err != nil {
				reporter.Report(logging.ErrorCategoryInput, logging.ErrorSeverityHigh, "HookSource", "Input hooks stopped", err, nil)
				listener.Stop()
			}
		}()
	}

	sinks, closeSinks, err := buildSinks(cfg.Output)
	if err != nil {
		fatal(logger, "Failed to open dataset sinks", err)
	}
	defer closeSinks()
	opts = append(opts, session.WithSinks(sinks...))

	var win *preview.Window
	if *showPreview {
		win = preview.New("Runner Collector", listener.Stop)
		opts = append(opts, session.WithObserver(win))
		reporter.OnError(logging.ErrorSeverityMedium, func(r *logging.ErrorReport) {
			win.ShowError(r.String())
		})
	}

	collector := session.New(cfg, capturer, listener, opts...)
	defer collector.Close()

	logger.InfoWithContext("Collector ready", map[string]interface{}{
		"session":  collector.SessionID(),
		"backend":  string(cfg.Capture.Backend),
		"stop_key": cfg.Session.StopKey,
		"sinks":    len(sinks),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx, collector, reporter, bus, logger)
		if win != nil {
			win.Quit()
		}
	}()

	if win != nil {
		win.Run()
		// Closing the window requests a stop; wait for the export
		listener.Stop()
	}
	<-done
}

func run(ctx context.Context, collector *session.Collector, reporter *logging.ErrorReporter, bus *events.DefaultEventBus, logger *logging.Logger) {
	summary, err := collector.Run(ctx)
	if summary == nil {
		logger.Error("Session aborted", err)
		return
	}
	if err != nil {
		logger.Error("Session finished with export errors", err)
	}

	fields := summary.Stats.Fields()
	fields["session"] = summary.SessionID
	fields["region"] = summary.Region.String()
	fields["events_dropped"] = bus.Dropped()
	for k, v := range reporter.Counts().Fields() {
		fields[k] = v
	}
	logger.InfoWithContext("Session summary", fields)

	for _, report := range summary.RecentErrors {
		logger.WarnWithContext("Recent error", map[string]interface{}{
			"at":     report.Timestamp.Format("15:04:05.000"),
			"report": report.String(),
		})
	}
}

func loadConfig(path string, logger *logging.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.WarnWithContext("Config file not found, using defaults", map[string]interface{}{
			"path": path,
		})
		cfg := config.NewDefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func setupLogging(cfg config.Logging) (io.Closer, error) {
	logFile, err := logging.OpenSessionLog(cfg.Dir)
	if err != nil {
		return nil, err
	}
	err = logging.Configure(logging.Options{
		Level:   cfg.Level,
		JSON:    cfg.JSON,
		Outputs: []io.Writer{os.Stdout, logFile},
	})
	if err != nil {
		logFile.Close()
		return nil, err
	}
	return logFile, nil
}

// buildSinks opens every configured output. The returned func closes them.
func buildSinks(out config.Output) ([]dataset.Sink, func(), error) {
	var sinks []dataset.Sink
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if out.CSVPath != "" {
		sinks = append(sinks, dataset.NewCSVSink(out.CSVPath))
	}

	if out.SQLitePath != "" {
		db, err := database.Open(out.SQLitePath)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		if err := db.RunMigrations(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		sinks = append(sinks, dataset.NewSQLSink(db))
	}

	if out.MySQLDSN != "" {
		db, err := database.OpenMySQL(out.MySQLDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		if err := db.RunMigrations(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mysql migrations: %w", err)
		}
		sinks = append(sinks, dataset.NewSQLSink(db))
	}

	if out.RedisAddr != "" {
		pool := dataset.NewRedisPool(out.RedisAddr, 4)
		closers = append(closers, func() { pool.Close() })
		sinks = append(sinks, dataset.NewRedisSink(pool, out.RedisKey))
	}

	return sinks, closeAll, nil
}

func parseRegion(s string) (cv.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return cv.Region{}, fmt.Errorf("expected x,y,width,height, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cv.Region{}, fmt.Errorf("invalid number %q", p)
		}
		v[i] = n
	}
	return cv.NewRegion(v[0], v[1], v[2], v[3]), nil
}

func fatal(logger *logging.Logger, message string, err error) {
	logger.Fatal(message, err)
	os.Exit(1)
}
