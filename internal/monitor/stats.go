package monitor

import (
	"sync"
	"time"
)

// Stats counts what the collection loop did. Safe for concurrent use.
type Stats struct {
	mu              sync.RWMutex
	startedAt       time.Time
	lastFrameAt     time.Time
	frames          int
	samples         int
	actions         int
	captureFailures int
	playerMisses    int
	missingStreak   int
	totalLatency    time.Duration
	maxLatency      time.Duration
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	StartedAt       time.Time
	LastFrameAt     time.Time
	Frames          int
	Samples         int
	Actions         int
	CaptureFailures int
	PlayerMisses    int
	MissingStreak   int
	AverageLatency  time.Duration
	MaxLatency      time.Duration
}

// NewStats creates zeroed stats starting now
func NewStats() *Stats {
	now := time.Now()
	return &Stats{startedAt: now, lastFrameAt: now}
}

// RecordFrame records a processed frame and how long extraction took
func (s *Stats) RecordFrame(latency time.Duration, playerFound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.lastFrameAt = time.Now()
	s.totalLatency += latency
	if latency > s.maxLatency {
		s.maxLatency = latency
	}

	if playerFound {
		s.missingStreak = 0
	} else {
		s.playerMisses++
		s.missingStreak++
	}
}

// RecordCaptureFailure records a cycle whose capture failed
func (s *Stats) RecordCaptureFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureFailures++
}

// RecordSample records an appended sample
func (s *Stats) RecordSample(action bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	if action {
		s.actions++
	}
}

// MissingStreak returns the number of consecutive frames without a player
func (s *Stats) MissingStreak() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.missingStreak
}

// SinceLastFrame returns the time since the last processed frame
func (s *Stats) SinceLastFrame() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastFrameAt)
}

// Snapshot copies the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		StartedAt:       s.startedAt,
		LastFrameAt:     s.lastFrameAt,
		Frames:          s.frames,
		Samples:         s.samples,
		Actions:         s.actions,
		CaptureFailures: s.captureFailures,
		PlayerMisses:    s.playerMisses,
		MissingStreak:   s.missingStreak,
		MaxLatency:      s.maxLatency,
	}
	if s.frames > 0 {
		snap.AverageLatency = s.totalLatency / time.Duration(s.frames)
	}
	return snap
}

// Fields renders the snapshot for structured logging
func (snap StatsSnapshot) Fields() map[string]interface{} {
	return map[string]interface{}{
		"frames":           snap.Frames,
		"samples":          snap.Samples,
		"actions":          snap.Actions,
		"capture_failures": snap.CaptureFailures,
		"player_misses":    snap.PlayerMisses,
		"avg_latency":      snap.AverageLatency.String(),
		"max_latency":      snap.MaxLatency.String(),
		"elapsed":          time.Since(snap.StartedAt).Round(time.Millisecond).String(),
	}
}
