package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ColorRange is an inclusive per-channel RGB window
type ColorRange struct {
	Lower [3]uint8 // R, G, B
	Upper [3]uint8 // R, G, B
}

// Contains reports whether an RGB triple lies inside the range on every channel
func (c ColorRange) Contains(r, g, b uint8) bool {
	return r >= c.Lower[0] && r <= c.Upper[0] &&
		g >= c.Lower[1] && g <= c.Upper[1] &&
		b >= c.Lower[2] && b <= c.Upper[2]
}

func (c ColorRange) String() string {
	return fmt.Sprintf("[%d,%d,%d]-[%d,%d,%d]",
		c.Lower[0], c.Lower[1], c.Lower[2], c.Upper[0], c.Upper[1], c.Upper[2])
}

// Colors holds one range per semantic class
type Colors struct {
	Platform  ColorRange
	Coin      ColorRange
	Player    ColorRange
	PlayAgain ColorRange
	Shop      ColorRange
}

// Grid describes the logical grid the frame is divided into and how bands
// in front of the player are selected
type Grid struct {
	Columns    int // logical columns (scaledx)
	Rows       int // logical rows (scaledy)
	BaseWidth  int // canonical width before the +1 padding
	BaseHeight int // canonical height before the +1 padding
	Bands      int // rows of the occupancy grid

	// A band is kept when band_top < playerTop + FarOffset*playerHeight
	// and band_bottom > playerTop + NearOffset*playerHeight.
	NearOffset float64
	FarOffset  float64

	// A cell is occupied when strictly more than this share of its pixels is foreground.
	OccupancyRatio float64
}

// CellWidth returns the pixel width of one grid cell
func (g Grid) CellWidth() int {
	return g.BaseWidth / g.Columns
}

// CellHeight returns the pixel height of one grid cell
func (g Grid) CellHeight() int {
	return g.BaseHeight / g.Rows
}

// FrameSize returns the canonical frame size every capture is resized to
func (g Grid) FrameSize() (width, height int) {
	return g.BaseWidth + 1, g.BaseHeight + 1
}

// CaptureBackend selects the screenshot implementation
type CaptureBackend string

const (
	CaptureBackendScreenshot CaptureBackend = "screenshot"
	CaptureBackendRobotgo    CaptureBackend = "robotgo"
)

// Capture configures frame acquisition
type Capture struct {
	Backend       CaptureBackend
	FrameInterval time.Duration // 0 runs as fast as capture allows
}

// Session configures the collection loop
type Session struct {
	WaitForStartClick   bool
	RecordWithoutPlayer bool
	StopKey             string // single letter, default "q"
	PlayerMissingWarn   int    // consecutive misses before the health checker warns
	StallTimeout        time.Duration
}

// Output configures where the dataset goes at session end
type Output struct {
	CSVPath       string
	SQLitePath    string
	MySQLDSN      string
	RedisAddr     string
	RedisKey      string
	SnapshotDir   string
	SnapshotEvery int
}

// Logging configures the logging package
type Logging struct {
	Level string
	Dir   string
	JSON  bool
}

// Config is built once at startup and treated as read-only afterwards
type Config struct {
	Colors  Colors
	Grid    Grid
	Capture Capture
	Session Session
	Output  Output
	Logging Logging
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Colors: Colors{
			Platform:  ColorRange{Lower: [3]uint8{200, 200, 200}, Upper: [3]uint8{255, 255, 255}},
			Coin:      ColorRange{Lower: [3]uint8{200, 160, 0}, Upper: [3]uint8{255, 220, 80}},
			Player:    ColorRange{Lower: [3]uint8{0, 0, 150}, Upper: [3]uint8{80, 80, 255}},
			PlayAgain: ColorRange{Lower: [3]uint8{60, 180, 60}, Upper: [3]uint8{120, 255, 120}},
			Shop:      ColorRange{Lower: [3]uint8{180, 60, 60}, Upper: [3]uint8{255, 120, 120}},
		},
		Grid: Grid{
			Columns:        8,
			Rows:           15,
			BaseWidth:      480,
			BaseHeight:     840,
			Bands:          3,
			NearOffset:     1,
			FarOffset:      3,
			OccupancyRatio: 0.25,
		},
		Capture: Capture{
			Backend: CaptureBackendScreenshot,
		},
		Session: Session{
			WaitForStartClick:   true,
			RecordWithoutPlayer: true,
			StopKey:             "q",
			PlayerMissingWarn:   150,
			StallTimeout:        5 * time.Second,
		},
		Output: Output{
			CSVPath:  "data.csv",
			RedisKey: "runner:samples",
		},
		Logging: Logging{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Validate checks the config and returns every problem found
func (c *Config) Validate() error {
	var problems []string

	ranges := map[string]ColorRange{
		"platform":  c.Colors.Platform,
		"coin":      c.Colors.Coin,
		"player":    c.Colors.Player,
		"playagain": c.Colors.PlayAgain,
		"shop":      c.Colors.Shop,
	}
	for _, name := range []string{"platform", "coin", "player", "playagain", "shop"} {
		r := ranges[name]
		for i := 0; i < 3; i++ {
			if r.Lower[i] > r.Upper[i] {
				problems = append(problems, fmt.Sprintf("%s: lower bound above upper bound on channel %d", name, i))
				break
			}
		}
	}

	g := c.Grid
	if g.Columns <= 0 || g.Rows <= 0 {
		problems = append(problems, fmt.Sprintf("grid: columns and rows must be positive, got %dx%d", g.Columns, g.Rows))
	} else if g.BaseWidth < g.Columns || g.BaseHeight < g.Rows {
		problems = append(problems, fmt.Sprintf("grid: base size %dx%d must be at least one pixel per cell", g.BaseWidth, g.BaseHeight))
	} else {
		if g.BaseWidth%g.Columns != 0 {
			problems = append(problems, fmt.Sprintf("grid: base width %d not divisible by %d columns", g.BaseWidth, g.Columns))
		}
		if g.BaseHeight%g.Rows != 0 {
			problems = append(problems, fmt.Sprintf("grid: base height %d not divisible by %d rows", g.BaseHeight, g.Rows))
		}
	}
	if g.Bands <= 0 {
		problems = append(problems, "grid: bands must be positive")
	}
	if g.FarOffset <= g.NearOffset {
		problems = append(problems, fmt.Sprintf("grid: far offset %.2f must exceed near offset %.2f", g.FarOffset, g.NearOffset))
	}
	if g.OccupancyRatio < 0 || g.OccupancyRatio >= 1 {
		problems = append(problems, fmt.Sprintf("grid: occupancy ratio %.2f outside [0,1)", g.OccupancyRatio))
	}

	switch c.Capture.Backend {
	case CaptureBackendScreenshot, CaptureBackendRobotgo:
	default:
		problems = append(problems, fmt.Sprintf("capture: unknown backend %q", c.Capture.Backend))
	}
	if c.Capture.FrameInterval < 0 {
		problems = append(problems, "capture: frame interval must not be negative")
	}

	if len(c.Session.StopKey) != 1 {
		problems = append(problems, fmt.Sprintf("session: stop key must be a single character, got %q", c.Session.StopKey))
	}
	if c.Output.SnapshotEvery < 0 {
		problems = append(problems, "output: snapshot_every must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func rangeFromInts(name string, lower, upper []int) (ColorRange, error) {
	var r ColorRange
	if len(lower) != 3 || len(upper) != 3 {
		return r, fmt.Errorf("%s: expected 3 channels, got %d and %d", name, len(lower), len(upper))
	}
	for i := 0; i < 3; i++ {
		if lower[i] < 0 || lower[i] > 255 || upper[i] < 0 || upper[i] > 255 {
			return r, fmt.Errorf("%s: channel %d out of 0-255", name, i)
		}
		r.Lower[i] = uint8(lower[i])
		r.Upper[i] = uint8(upper[i])
	}
	return r, nil
}

func rangeToInts(r ColorRange) (lower, upper []int) {
	return []int{int(r.Lower[0]), int(r.Lower[1]), int(r.Lower[2])},
		[]int{int(r.Upper[0]), int(r.Upper[1]), int(r.Upper[2])}
}
