package dataset

import (
	"time"

	"jordanella.com/runner-collector/internal/cv"
)

// Sample pairs one frame's occupancy grid with the action observed in the same cycle
type Sample struct {
	Seq         int
	Grid        cv.OccupancyGrid
	Action      uint8
	PlayerFound bool
	GameOver    bool
	ShopPrompt  bool
	CapturedAt  time.Time
}

// Dataset is the ordered set of samples from one collection session
type Dataset struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time
	Region    cv.Region
	Columns   int
	Samples   []Sample
}

// Actions counts samples labelled with an action
func (d Dataset) Actions() int {
	n := 0
	for _, s := range d.Samples {
		if s.Action != 0 {
			n++
		}
	}
	return n
}

// ActionLabel converts a coalesced click state into a label
func ActionLabel(action bool) uint8 {
	if action {
		return 1
	}
	return 0
}
