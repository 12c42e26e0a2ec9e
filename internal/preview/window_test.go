package preview

import (
	"strings"
	"testing"

	"fyne.io/fyne/v2/theme"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/session"
)

func TestFormatGrid(t *testing.T) {
	grid := cv.OccupancyGrid{
		{1, 1, 0},
		{0, 1, 0},
		{0, 0, 0},
	}

	want := "...\n.#.\n##."
	if got := FormatGrid(grid); got != want {
		t.Errorf("FormatGrid() = %q, want %q", got, want)
	}

	if FormatGrid(nil) != "" {
		t.Error("Empty grid should render as empty string")
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name   string
		update session.FrameUpdate
		want   string
	}{
		{
			name:   "jump",
			update: session.FrameUpdate{Frame: 3, Samples: 4, PlayerFound: true, Action: true},
			want:   "frame 3 | samples 4 | player ok | JUMP",
		},
		{
			name:   "game over",
			update: session.FrameUpdate{Frame: 9, Samples: 9, GameOver: true},
			want:   "frame 9 | samples 9 | player missing | idle | game over",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine(tt.update); got != tt.want {
				t.Errorf("StatusLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThemeFallsBackToDefaults(t *testing.T) {
	th := &Theme{}
	if th.Color(theme.ColorNamePrimary, theme.VariantLight) != colorAccent {
		t.Error("Primary colour should be the accent")
	}
	if th.Color(theme.ColorNameForeground, theme.VariantLight) == nil {
		t.Error("Unthemed colours should fall back to the default theme")
	}
	if th.Size(theme.SizeNameText) != 16 {
		t.Errorf("Unexpected text size %v", th.Size(theme.SizeNameText))
	}
}

func TestAlertLine(t *testing.T) {
	if got := AlertLine("[capture/high] frame 3 not captured\nstack"); got != "error: [capture/high] frame 3 not captured" {
		t.Errorf("Unexpected alert %q", got)
	}
	long := AlertLine(strings.Repeat("x", 200))
	if len(long) != len("error: ")+80 || !strings.HasSuffix(long, "...") {
		t.Errorf("Expected truncated alert, got %q", long)
	}
}
