package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/logging"
)

// Sink persists a finished dataset
type Sink interface {
	Name() string
	Write(ctx context.Context, ds Dataset) error
}

// Recorder accumulates samples for a single session.
// It is owned by the collection loop and is not safe for concurrent use.
type Recorder struct {
	sessionID string
	region    cv.Region
	columns   int
	startedAt time.Time
	samples   []Sample
	logger    *logging.Logger
}

// NewRecorder creates an empty recorder for a session
func NewRecorder(sessionID string, region cv.Region, columns int) *Recorder {
	return &Recorder{
		sessionID: sessionID,
		region:    region,
		columns:   columns,
		startedAt: time.Now(),
		logger:    logging.NewLogger("Recorder"),
	}
}

// SessionID returns the session this recorder belongs to
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Append adds a sample, assigning its sequence number and capture time when unset
func (r *Recorder) Append(s Sample) Sample {
	s.Seq = len(r.samples)
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}
	r.samples = append(r.samples, s)
	return s
}

// Len returns the number of recorded samples
func (r *Recorder) Len() int {
	return len(r.samples)
}

// Samples returns a copy of the recorded samples in capture order
func (r *Recorder) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Dataset snapshots the recorder contents
func (r *Recorder) Dataset(endedAt time.Time) Dataset {
	return Dataset{
		SessionID: r.sessionID,
		StartedAt: r.startedAt,
		EndedAt:   endedAt,
		Region:    r.region,
		Columns:   r.columns,
		Samples:   r.Samples(),
	}
}

// Export hands the dataset to every sink once. A failing sink does not stop the others;
// all failures are returned joined.
func (r *Recorder) Export(ctx context.Context, sinks ...Sink) error {
	ds := r.Dataset(time.Now())

	var errs []error
	for _, sink := range sinks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		if err := sink.Write(ctx, ds); err != nil {
			r.logger.ErrorWithContext("Export failed", err, map[string]interface{}{
				"sink":    sink.Name(),
				"session": r.sessionID,
			})
			errs = append(errs, &ExportError{Sink: sink.Name(), Err: err})
			continue
		}

		r.logger.InfoWithContext("Dataset exported", map[string]interface{}{
			"sink":     sink.Name(),
			"session":  r.sessionID,
			"samples":  len(ds.Samples),
			"duration": time.Since(start).String(),
		})
	}

	return errors.Join(errs...)
}

// ExportError identifies the sink that failed
type ExportError struct {
	Sink string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s: %v", e.Sink, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
