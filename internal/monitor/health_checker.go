package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jordanella.com/runner-collector/internal/events"
	"jordanella.com/runner-collector/internal/logging"
)

const (
	CheckStall         = "stall"
	CheckPlayerMissing = "player_missing"
)

// UnhealthyCallback is called when a health check fails
type UnhealthyCallback func(check string, err error)

// HealthChecker watches pipeline stats for stalls and long player-missing streaks
type HealthChecker struct {
	stats             *Stats
	bus               events.EventBus
	logger            *logging.Logger
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	stallTimeout      time.Duration
	playerMissingWarn int
	checkInterval     time.Duration
	onUnhealthy       UnhealthyCallback
	stallReported     bool
	missingReported   bool
	mu                sync.Mutex
}

// NewHealthChecker creates a health checker over stats. bus may be nil.
func NewHealthChecker(stats *Stats, bus events.EventBus) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthChecker{
		stats:             stats,
		bus:               bus,
		logger:            logging.NewLogger("HealthChecker"),
		ctx:               ctx,
		cancel:            cancel,
		stallTimeout:      5 * time.Second,
		playerMissingWarn: 150,
		checkInterval:     time.Second,
	}
}

// WithUnhealthyCallback sets the callback for failed checks
func (hc *HealthChecker) WithUnhealthyCallback(callback UnhealthyCallback) *HealthChecker {
	hc.onUnhealthy = callback
	return hc
}

// WithCheckInterval sets the health check interval
func (hc *HealthChecker) WithCheckInterval(interval time.Duration) *HealthChecker {
	hc.checkInterval = interval
	return hc
}

// WithThresholds sets the stall timeout and the player-missing streak that trigger warnings.
// Zero disables the corresponding check.
func (hc *HealthChecker) WithThresholds(stallTimeout time.Duration, playerMissingWarn int) *HealthChecker {
	hc.stallTimeout = stallTimeout
	hc.playerMissingWarn = playerMissingWarn
	return hc
}

// Start begins health monitoring
func (hc *HealthChecker) Start() {
	hc.wg.Add(2)
	go hc.monitor(hc.checkStall)
	go hc.monitor(hc.checkPlayerMissing)
}

// Stop stops health monitoring
func (hc *HealthChecker) Stop() {
	hc.cancel()
	hc.wg.Wait()
}

// Check runs every check once
func (hc *HealthChecker) Check() {
	hc.checkStall()
	hc.checkPlayerMissing()
}

func (hc *HealthChecker) monitor(check func()) {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// checkStall warns once per stall; the flag resets when frames flow again
func (hc *HealthChecker) checkStall() {
	if hc.stallTimeout <= 0 {
		return
	}

	idle := hc.stats.SinceLastFrame()

	hc.mu.Lock()
	if idle <= hc.stallTimeout {
		hc.stallReported = false
		hc.mu.Unlock()
		return
	}
	if hc.stallReported {
		hc.mu.Unlock()
		return
	}
	hc.stallReported = true
	hc.mu.Unlock()

	hc.unhealthy(CheckStall, fmt.Errorf("no frame processed for %v", idle.Round(time.Millisecond)))
}

// checkPlayerMissing warns once per streak
func (hc *HealthChecker) checkPlayerMissing() {
	if hc.playerMissingWarn <= 0 {
		return
	}

	streak := hc.stats.MissingStreak()

	hc.mu.Lock()
	if streak < hc.playerMissingWarn {
		hc.missingReported = false
		hc.mu.Unlock()
		return
	}
	if hc.missingReported {
		hc.mu.Unlock()
		return
	}
	hc.missingReported = true
	hc.mu.Unlock()

	hc.unhealthy(CheckPlayerMissing,
		fmt.Errorf("player missing for %d consecutive frames, check the player colour range", streak))
}

func (hc *HealthChecker) unhealthy(check string, err error) {
	hc.logger.WarnWithContext("Health check failed", map[string]interface{}{
		"check":  check,
		"reason": err.Error(),
	})
	if hc.bus != nil {
		hc.bus.Publish(events.NewHealthWarningEvent(check, err.Error()))
	}
	if hc.onUnhealthy != nil {
		hc.onUnhealthy(check, err)
	}
}
