// Package input turns asynchronous mouse and keyboard activity into messages
// the collection loop drains once per cycle.
package input

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the click channel capacity used by NewListener when size <= 0
const DefaultBuffer = 64

var (
	// ErrStopped is returned by the wait methods once a stop was requested
	ErrStopped = errors.New("input: stop requested")

	// ErrHooksUnsupported is returned on platforms without global input hooks
	ErrHooksUnsupported = errors.New("input: global hooks are only available on windows")
)

// CycleInput is what happened since the previous Drain
type CycleInput struct {
	Action bool // at least one click
	Stop   bool
	Clicks int
}

// Listener owns the bounded click channel and the stop signal. Producers call
// Click and Stop from any goroutine; the collection loop is the only consumer.
type Listener struct {
	clicks   chan image.Point
	stop     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
}

// NewListener creates a listener with the given click buffer
func NewListener(size int) *Listener {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Listener{
		clicks: make(chan image.Point, size),
		stop:   make(chan struct{}),
	}
}

// Click records a click at an absolute screen position. It never blocks; a
// click arriving while the buffer is full is dropped, which is harmless because
// clicks within one cycle collapse into a single action.
func (l *Listener) Click(p image.Point) {
	select {
	case l.clicks <- p:
	default:
		l.dropped.Add(1)
	}
}

// Stop requests the end of the session. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed once Stop has been called
func (l *Listener) Done() <-chan struct{} {
	return l.stop
}

// Stopped reports whether Stop has been called
func (l *Listener) Stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// Dropped returns how many clicks were discarded because the buffer was full
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// Drain empties every pending click without blocking and reports the stop state
func (l *Listener) Drain() CycleInput {
	var in CycleInput
drain:
	for {
		select {
		case <-l.clicks:
			in.Clicks++
		default:
			break drain
		}
	}
	in.Action = in.Clicks > 0
	in.Stop = l.Stopped()
	return in
}

// WaitClick blocks until the next click, a stop request, or ctx is done
func (l *Listener) WaitClick(ctx context.Context) (image.Point, error) {
	select {
	case p := <-l.clicks:
		return p, nil
	case <-l.stop:
		return image.Point{}, ErrStopped
	case <-ctx.Done():
		return image.Point{}, ctx.Err()
	}
}

// WaitClicks collects the next n clicks in order
func (l *Listener) WaitClicks(ctx context.Context, n int) ([]image.Point, error) {
	points := make([]image.Point, 0, n)
	for len(points) < n {
		p, err := l.WaitClick(ctx)
		if err != nil {
			return points, err
		}
		points = append(points, p)
	}
	return points, nil
}
