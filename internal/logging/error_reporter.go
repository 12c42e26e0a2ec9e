package logging

import (
	"fmt"
	"sync"
	"time"
)

// ErrorCategory groups reports by the pipeline stage that failed
type ErrorCategory string

const (
	ErrorCategoryCalibration ErrorCategory = "calibration"
	ErrorCategoryCapture     ErrorCategory = "capture"
	ErrorCategoryDetection   ErrorCategory = "detection"
	ErrorCategoryPersistence ErrorCategory = "persistence"
	ErrorCategoryInput       ErrorCategory = "input"
	ErrorCategoryConfig      ErrorCategory = "config"
	ErrorCategorySystem      ErrorCategory = "system"
)

// ErrorSeverity orders reports. Nothing reported here ends a session;
// fatal startup errors go straight to Logger.Fatal.
type ErrorSeverity int

const (
	ErrorSeverityLow ErrorSeverity = iota
	ErrorSeverityMedium
	ErrorSeverityHigh
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityLow:
		return "low"
	case ErrorSeverityMedium:
		return "medium"
	case ErrorSeverityHigh:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ErrorReport is one reported failure
type ErrorReport struct {
	Timestamp time.Time
	Category  ErrorCategory
	Severity  ErrorSeverity
	Component string
	Message   string
	Err       error
	Context   map[string]interface{}
}

func (r *ErrorReport) String() string {
	if r.Err == nil {
		return fmt.Sprintf("[%s/%s] %s", r.Category, r.Severity, r.Message)
	}
	return fmt.Sprintf("[%s/%s] %s: %v", r.Category, r.Severity, r.Message, r.Err)
}

// ErrorCounts tallies every report of a session, including those no longer in history
type ErrorCounts struct {
	Total      int
	BySeverity map[ErrorSeverity]int
	ByCategory map[ErrorCategory]int
}

// Fields flattens the counts for a log line, skipping zero buckets
func (c ErrorCounts) Fields() map[string]interface{} {
	fields := map[string]interface{}{"errors_total": c.Total}
	for sev, n := range c.BySeverity {
		fields["errors_"+sev.String()] = n
	}
	for cat, n := range c.ByCategory {
		fields["errors_"+string(cat)] = n
	}
	return fields
}

// ErrorCallback is invoked on the reporting goroutine and must not block
type ErrorCallback func(report *ErrorReport)

type severityCallback struct {
	min ErrorSeverity
	fn  ErrorCallback
}

// ErrorReporter logs reports by severity, keeps the most recent ones in a
// fixed ring, and notifies callbacks registered for a minimum severity
type ErrorReporter struct {
	mu        sync.Mutex
	logger    *Logger
	ring      []*ErrorReport
	next      int
	full      bool
	counts    ErrorCounts
	callbacks []severityCallback
}

// NewErrorReporter keeps the last historySize reports
func NewErrorReporter(historySize int) *ErrorReporter {
	if historySize < 1 {
		historySize = 1
	}
	return &ErrorReporter{
		logger: NewLogger("ErrorReporter"),
		ring:   make([]*ErrorReport, historySize),
		counts: ErrorCounts{
			BySeverity: make(map[ErrorSeverity]int),
			ByCategory: make(map[ErrorCategory]int),
		},
	}
}

// SetLogger replaces the logger reports are written to
func (er *ErrorReporter) SetLogger(logger *Logger) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.logger = logger
}

// OnError calls fn for every report at or above min
func (er *ErrorReporter) OnError(min ErrorSeverity, fn ErrorCallback) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.callbacks = append(er.callbacks, severityCallback{min: min, fn: fn})
}

// Report records one failure. context may be nil.
func (er *ErrorReporter) Report(category ErrorCategory, severity ErrorSeverity, component, message string, err error, context map[string]interface{}) {
	report := &ErrorReport{
		Timestamp: time.Now(),
		Category:  category,
		Severity:  severity,
		Component: component,
		Message:   message,
		Err:       err,
		Context:   context,
	}

	er.mu.Lock()
	er.ring[er.next] = report
	er.next = (er.next + 1) % len(er.ring)
	if er.next == 0 {
		er.full = true
	}
	er.counts.Total++
	er.counts.BySeverity[severity]++
	er.counts.ByCategory[category]++

	logger := er.logger
	var notify []ErrorCallback
	for _, cb := range er.callbacks {
		if severity >= cb.min {
			notify = append(notify, cb.fn)
		}
	}
	er.mu.Unlock()

	er.log(logger, report)
	for _, fn := range notify {
		fn(report)
	}
}

func (er *ErrorReporter) log(logger *Logger, report *ErrorReport) {
	fields := map[string]interface{}{
		"category":  string(report.Category),
		"severity":  report.Severity.String(),
		"component": report.Component,
	}
	for k, v := range report.Context {
		fields[k] = v
	}

	switch {
	case report.Severity >= ErrorSeverityHigh:
		logger.ErrorWithContext(report.Message, report.Err, fields)
	case report.Severity == ErrorSeverityMedium:
		if report.Err != nil {
			fields["error"] = report.Err.Error()
		}
		logger.WarnWithContext(report.Message, fields)
	default:
		logger.DebugWithContext(report.Message, fields)
	}
}

// Recent returns up to n reports, oldest first
func (er *ErrorReporter) Recent(n int) []*ErrorReport {
	er.mu.Lock()
	defer er.mu.Unlock()

	size := er.next
	if er.full {
		size = len(er.ring)
	}
	if n > size {
		n = size
	}
	out := make([]*ErrorReport, 0, n)
	for i := n; i > 0; i-- {
		idx := (er.next - i + len(er.ring)) % len(er.ring)
		out = append(out, er.ring[idx])
	}
	return out
}

// Counts returns a copy of the session tallies
func (er *ErrorReporter) Counts() ErrorCounts {
	er.mu.Lock()
	defer er.mu.Unlock()

	c := ErrorCounts{
		Total:      er.counts.Total,
		BySeverity: make(map[ErrorSeverity]int, len(er.counts.BySeverity)),
		ByCategory: make(map[ErrorCategory]int, len(er.counts.ByCategory)),
	}
	for k, v := range er.counts.BySeverity {
		c.BySeverity[k] = v
	}
	for k, v := range er.counts.ByCategory {
		c.ByCategory[k] = v
	}
	return c
}
